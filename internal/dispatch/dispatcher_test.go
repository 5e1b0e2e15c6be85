package dispatch

import (
	"testing"
	"time"

	"velha-online/internal/game"
	"velha-online/internal/store"
)

// stubStore hands the subscription callbacks back to the test so events can
// be fired (and re-fired) deterministically.
type stubStore struct {
	store.Store

	roomFn func(store.Event)
	chatFn func(store.ChatMessage)

	roomClosed int
	chatClosed int
}

type stubSub struct{ onClose func() }

func (s stubSub) Close() { s.onClose() }

func (s *stubStore) SubscribeRoom(id string, fn func(store.Event)) store.Subscription {
	s.roomFn = fn
	return stubSub{onClose: func() { s.roomClosed++ }}
}

func (s *stubStore) SubscribeMessages(id string, fn func(store.ChatMessage)) store.Subscription {
	s.chatFn = fn
	return stubSub{onClose: func() { s.chatClosed++ }}
}

func roomSnapshot(id string, updatedAt time.Time) store.Room {
	return store.Room{
		ID:        id,
		PlayerOne: "alice",
		Board:     game.NewBoard().Encode(),
		TurnOwner: game.MarkX,
		Status:    store.StatusWaiting,
		UpdatedAt: updatedAt,
	}
}

func recvEvent(t *testing.T, ch <-chan store.Event, within time.Duration) store.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(within):
		t.Fatalf("timed out waiting for forwarded event")
		return store.Event{} // unreachable
	}
}

func TestDispatcherForwardsAndDemuxes(t *testing.T) {
	st := &stubStore{}
	rooms := make(chan store.Event, 8)
	chats := make(chan store.ChatMessage, 8)

	d := Open(st, "AB23", func(ev store.Event) { rooms <- ev }, func(m store.ChatMessage) { chats <- m })
	defer d.Close()

	now := time.Now()
	st.roomFn(store.Event{Kind: store.EventInsert, Room: roomSnapshot("AB23", now)})
	st.chatFn(store.ChatMessage{RoomID: "AB23", PlayerName: "bob", Text: "hi"})

	ev := recvEvent(t, rooms, time.Second)
	if ev.Kind != store.EventInsert {
		t.Fatalf("want insert, got %s", ev.Kind)
	}
	select {
	case msg := <-chats:
		if msg.Text != "hi" {
			t.Fatalf("chat text: %q", msg.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for chat message")
	}
}

func TestDispatcherDropsDuplicatesAndStale(t *testing.T) {
	st := &stubStore{}
	rooms := make(chan store.Event, 8)

	d := Open(st, "AB23", func(ev store.Event) { rooms <- ev }, func(store.ChatMessage) {})
	defer d.Close()

	now := time.Now()
	snap := roomSnapshot("AB23", now)
	st.roomFn(store.Event{Kind: store.EventUpdate, Room: snap})
	recvEvent(t, rooms, time.Second)

	// at-least-once delivery: same snapshot again, then an older one
	st.roomFn(store.Event{Kind: store.EventUpdate, Room: snap})
	st.roomFn(store.Event{Kind: store.EventUpdate, Room: roomSnapshot("AB23", now.Add(-time.Second))})

	select {
	case ev := <-rooms:
		t.Fatalf("duplicate/stale event forwarded: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	// a genuinely newer snapshot still gets through
	st.roomFn(store.Event{Kind: store.EventUpdate, Room: roomSnapshot("AB23", now.Add(time.Second))})
	recvEvent(t, rooms, time.Second)
}

func TestDispatcherIgnoresOtherRooms(t *testing.T) {
	st := &stubStore{}
	rooms := make(chan store.Event, 8)

	d := Open(st, "AB23", func(ev store.Event) { rooms <- ev }, func(store.ChatMessage) {})
	defer d.Close()

	st.roomFn(store.Event{Kind: store.EventUpdate, Room: roomSnapshot("XY99", time.Now())})
	select {
	case ev := <-rooms:
		t.Fatalf("event for another room forwarded: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatcherCloseReleasesSubscriptions(t *testing.T) {
	st := &stubStore{}
	d := Open(st, "AB23", func(store.Event) {}, func(store.ChatMessage) {})

	d.Close()
	d.Close() // idempotent

	if st.roomClosed != 1 || st.chatClosed != 1 {
		t.Fatalf("subscriptions closed %d/%d times, want 1/1", st.roomClosed, st.chatClosed)
	}
}
