package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"velha-online/internal/game"
)

func waitingRoom(id, host string, createdAt time.Time) Room {
	return Room{
		ID:        id,
		PlayerOne: host,
		Board:     game.NewBoard().Encode(),
		TurnOwner: game.MarkX,
		Status:    StatusWaiting,
		CreatedAt: createdAt,
	}
}

// helper: receive one event with a timeout so tests never hang
func recvEvent(t *testing.T, ch <-chan Event, within time.Duration) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(within):
		t.Fatalf("timed out waiting for room event")
		return Event{} // unreachable
	}
}

func recvNoEvent(t *testing.T, ch <-chan Event, within time.Duration) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("expected no event within %v, got %+v", within, ev)
	case <-time.After(within):
	}
}

func TestCreateAndGetRoom(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	if err := m.CreateRoom(ctx, waitingRoom("AB23", "alice", time.Time{})); err != nil {
		t.Fatalf("create: %v", err)
	}

	r, err := m.GetRoom(ctx, "AB23")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r.Version != 1 {
		t.Fatalf("version: want 1, got %d", r.Version)
	}
	if r.CreatedAt.IsZero() || r.UpdatedAt.IsZero() {
		t.Fatal("timestamps not stamped")
	}
	if r.Status != StatusWaiting || r.PlayerOne != "alice" {
		t.Fatalf("unexpected room: %+v", r)
	}

	if _, err := m.GetRoom(ctx, "ZZZZ"); err != ErrRoomNotFound {
		t.Fatalf("missing room: want ErrRoomNotFound, got %v", err)
	}
}

func TestCreateRoomDuplicateCode(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	if err := m.CreateRoom(ctx, waitingRoom("AB23", "alice", time.Time{})); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.CreateRoom(ctx, waitingRoom("AB23", "bob", time.Time{})); err != ErrRoomExists {
		t.Fatalf("duplicate create: want ErrRoomExists, got %v", err)
	}
}

func TestUpdateRoomAppliesPatch(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	if err := m.CreateRoom(ctx, waitingRoom("AB23", "alice", time.Time{})); err != nil {
		t.Fatalf("create: %v", err)
	}

	name := "bob"
	playing := StatusPlaying
	if err := m.UpdateRoom(ctx, "AB23", RoomPatch{PlayerTwo: &name, Status: &playing}, 1); err != nil {
		t.Fatalf("update: %v", err)
	}

	r, _ := m.GetRoom(ctx, "AB23")
	if r.PlayerTwo != "bob" || r.Status != StatusPlaying {
		t.Fatalf("patch not applied: %+v", r)
	}
	if r.Version != 2 {
		t.Fatalf("version: want 2, got %d", r.Version)
	}
	if r.PlayerOne != "alice" || r.Board != game.NewBoard().Encode() {
		t.Fatalf("untouched fields changed: %+v", r)
	}
}

func TestUpdateRoomConflicts(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	if err := m.CreateRoom(ctx, waitingRoom("AB23", "alice", time.Time{})); err != nil {
		t.Fatalf("create: %v", err)
	}

	name := "bob"
	if err := m.UpdateRoom(ctx, "AB23", RoomPatch{PlayerTwo: &name}, 99); err != ErrVersionConflict {
		t.Fatalf("stale version: want ErrVersionConflict, got %v", err)
	}
	if err := m.UpdateRoom(ctx, "ZZZZ", RoomPatch{PlayerTwo: &name}, 1); err != ErrRoomNotFound {
		t.Fatalf("missing room: want ErrRoomNotFound, got %v", err)
	}
}

func TestUpdatedAtStrictlyMonotonic(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	if err := m.CreateRoom(ctx, waitingRoom("AB23", "alice", time.Time{})); err != nil {
		t.Fatalf("create: %v", err)
	}

	prev, _ := m.GetRoom(ctx, "AB23")
	for i := 0; i < 20; i++ {
		board := "X,,,,,,,," // content irrelevant, stamps matter
		if err := m.UpdateRoom(ctx, "AB23", RoomPatch{Board: &board}, prev.Version); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		cur, _ := m.GetRoom(ctx, "AB23")
		if !cur.UpdatedAt.After(prev.UpdatedAt) {
			t.Fatalf("update %d: UpdatedAt %v not after %v", i, cur.UpdatedAt, prev.UpdatedAt)
		}
		prev = cur
	}
}

func TestListWaitingRooms(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("RM%02d", i)
		if err := m.CreateRoom(ctx, waitingRoom(id, "host", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	// one playing room must never show up
	playing := StatusPlaying
	name := "bob"
	if err := m.UpdateRoom(ctx, "RM11", RoomPatch{PlayerTwo: &name, Status: &playing}, 1); err != nil {
		t.Fatalf("update: %v", err)
	}

	out, err := m.ListWaitingRooms(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 10 {
		t.Fatalf("page size: want 10, got %d", len(out))
	}
	if out[0].ID != "RM10" {
		t.Fatalf("newest first: want RM10, got %s", out[0].ID)
	}
	for i := 1; i < len(out); i++ {
		if out[i].CreatedAt.After(out[i-1].CreatedAt) {
			t.Fatalf("not sorted descending at index %d", i)
		}
	}

	out, err = m.ListWaitingRooms(ctx, 3)
	if err != nil {
		t.Fatalf("list limit 3: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("limit 3: got %d", len(out))
	}
}

func TestSubscribeRoomDeliversEvents(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	events := make(chan Event, 8)
	sub := m.SubscribeRoom("AB23", func(ev Event) { events <- ev })
	defer sub.Close()

	if err := m.CreateRoom(ctx, waitingRoom("AB23", "alice", time.Time{})); err != nil {
		t.Fatalf("create: %v", err)
	}
	ev := recvEvent(t, events, time.Second)
	if ev.Kind != EventInsert {
		t.Fatalf("first event: want insert, got %s", ev.Kind)
	}
	if ev.Old != nil {
		t.Fatal("insert event carries an old snapshot")
	}

	name := "bob"
	playing := StatusPlaying
	if err := m.UpdateRoom(ctx, "AB23", RoomPatch{PlayerTwo: &name, Status: &playing}, 1); err != nil {
		t.Fatalf("update: %v", err)
	}
	ev = recvEvent(t, events, time.Second)
	if ev.Kind != EventUpdate {
		t.Fatalf("second event: want update, got %s", ev.Kind)
	}
	if ev.Old == nil || ev.Old.PlayerTwo != "" || ev.Room.PlayerTwo != "bob" {
		t.Fatalf("update event old/new mismatch: old=%+v new=%+v", ev.Old, ev.Room)
	}
	if !ev.Room.UpdatedAt.After(ev.Old.UpdatedAt) {
		t.Fatal("update event UpdatedAt not newer than prior snapshot")
	}
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	events := make(chan Event, 8)
	sub := m.SubscribeRoom("AB23", func(ev Event) { events <- ev })

	if err := m.CreateRoom(ctx, waitingRoom("AB23", "alice", time.Time{})); err != nil {
		t.Fatalf("create: %v", err)
	}
	recvEvent(t, events, time.Second)

	sub.Close()
	sub.Close() // closing twice is fine

	board := "X,,,,,,,,"
	if err := m.UpdateRoom(ctx, "AB23", RoomPatch{Board: &board}, 1); err != nil {
		t.Fatalf("update: %v", err)
	}
	recvNoEvent(t, events, 50*time.Millisecond)
}

func TestMessages(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	got := make(chan ChatMessage, 8)
	sub := m.SubscribeMessages("AB23", func(msg ChatMessage) { got <- msg })
	defer sub.Close()

	for i := 0; i < 3; i++ {
		err := m.AppendMessage(ctx, ChatMessage{
			RoomID:     "AB23",
			PlayerName: "alice",
			Text:       fmt.Sprintf("hello %d", i),
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	msgs, err := m.ListMessages(ctx, "AB23", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("want 3 messages, got %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if !msgs[i].CreatedAt.After(msgs[i-1].CreatedAt) {
			t.Fatalf("CreatedAt not strictly increasing at %d", i)
		}
	}

	msgs, err = m.ListMessages(ctx, "AB23", 2)
	if err != nil {
		t.Fatalf("list limit: %v", err)
	}
	if len(msgs) != 2 || msgs[1].Text != "hello 2" {
		t.Fatalf("limited list wrong: %+v", msgs)
	}

	for i := 0; i < 3; i++ {
		select {
		case <-got:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for chat event %d", i)
		}
	}
}
