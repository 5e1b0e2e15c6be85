// Package dispatch demultiplexes a room's change notifications into
// session inputs. One dispatcher owns the room and chat subscriptions for
// one room and serializes every callback onto a single goroutine, so the
// session never observes concurrent events.
package dispatch

import (
	"log"
	"sync"
	"time"

	"velha-online/internal/store"
)

// Dispatcher forwards room events (stale and duplicate snapshots dropped)
// and chat messages to the handlers it was opened with. Close releases both
// store subscriptions; the handlers are never called again afterwards.
type Dispatcher struct {
	roomID string
	inbox  chan any
	done   chan struct{}
	once   sync.Once

	roomSub store.Subscription
	chatSub store.Subscription
}

// Open subscribes to roomID on st and starts the forwarding loop. The
// caller owns at most one live dispatcher at a time; binding to a new room
// means closing the previous dispatcher first.
func Open(st store.Store, roomID string, onRoom func(store.Event), onChat func(store.ChatMessage)) *Dispatcher {
	d := &Dispatcher{
		roomID: roomID,
		inbox:  make(chan any, 64),
		done:   make(chan struct{}),
	}
	d.roomSub = st.SubscribeRoom(roomID, func(ev store.Event) { d.push(ev) })
	d.chatSub = st.SubscribeMessages(roomID, func(msg store.ChatMessage) { d.push(msg) })

	go d.loop(onRoom, onChat)
	return d
}

func (d *Dispatcher) push(v any) {
	select {
	case d.inbox <- v:
	case <-d.done:
	}
}

func (d *Dispatcher) loop(onRoom func(store.Event), onChat func(store.ChatMessage)) {
	// Delivery is at-least-once; lastSeen suppresses replays of snapshots
	// already forwarded.
	var lastSeen time.Time

	for {
		select {
		case <-d.done:
			return
		case v := <-d.inbox:
			switch ev := v.(type) {
			case store.Event:
				if ev.Room.ID != d.roomID {
					continue
				}
				if !ev.Room.UpdatedAt.After(lastSeen) {
					log.Printf("dispatch: dropping duplicate event for room %s", d.roomID)
					continue
				}
				lastSeen = ev.Room.UpdatedAt
				onRoom(ev)
			case store.ChatMessage:
				if ev.RoomID != d.roomID {
					continue
				}
				onChat(ev)
			}
		}
	}
}

// Close tears the notification streams down. Safe to call more than once.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.roomSub.Close()
		d.chatSub.Close()
		close(d.done)
	})
}
