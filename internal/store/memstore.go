package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps rooms and chat in process memory. Change events reach
// every subscriber in the same process, which makes it the store for tests
// and the single-node default.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]Room
	msgs  map[string][]ChatMessage

	roomEvents *notifier[Event]
	chatEvents *notifier[ChatMessage]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:      map[string]Room{},
		msgs:       map[string][]ChatMessage{},
		roomEvents: newNotifier[Event](),
		chatEvents: newNotifier[ChatMessage](),
	}
}

func (m *MemoryStore) CreateRoom(ctx context.Context, r Room) error {
	m.mu.Lock()
	if _, ok := m.rooms[r.ID]; ok {
		m.mu.Unlock()
		return ErrRoomExists
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.UpdatedAt = r.CreatedAt
	r.Version = 1
	m.rooms[r.ID] = r
	m.mu.Unlock()

	m.roomEvents.publish(r.ID, Event{Kind: EventInsert, Room: r})
	return nil
}

func (m *MemoryStore) GetRoom(ctx context.Context, id string) (Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	return r, nil
}

func (m *MemoryStore) UpdateRoom(ctx context.Context, id string, patch RoomPatch, expectedVersion int64) error {
	m.mu.Lock()
	old, ok := m.rooms[id]
	if !ok {
		m.mu.Unlock()
		return ErrRoomNotFound
	}
	if expectedVersion != 0 && old.Version != expectedVersion {
		m.mu.Unlock()
		return ErrVersionConflict
	}
	updated := old
	patch.apply(&updated)
	updated.Version = old.Version + 1
	updated.UpdatedAt = stampAfter(old.UpdatedAt)
	m.rooms[id] = updated
	m.mu.Unlock()

	prior := old
	m.roomEvents.publish(id, Event{Kind: EventUpdate, Room: updated, Old: &prior})
	return nil
}

func (m *MemoryStore) ListWaitingRooms(ctx context.Context, limit int) ([]RoomSummary, error) {
	m.mu.RLock()
	out := []RoomSummary{}
	for _, r := range m.rooms {
		if r.Status == StatusWaiting {
			out = append(out, RoomSummary{ID: r.ID, HostName: r.PlayerOne, CreatedAt: r.CreatedAt})
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if n := clampLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *MemoryStore) SubscribeRoom(id string, fn func(Event)) Subscription {
	return m.roomEvents.subscribe(id, fn)
}

func (m *MemoryStore) AppendMessage(ctx context.Context, msg ChatMessage) error {
	msg.Text = strings.TrimSpace(msg.Text)

	m.mu.Lock()
	prev := m.msgs[msg.RoomID]
	if len(prev) > 0 {
		msg.CreatedAt = stampAfter(prev[len(prev)-1].CreatedAt)
	} else {
		msg.CreatedAt = stampAfter(msg.CreatedAt)
	}
	m.msgs[msg.RoomID] = append(prev, msg)
	m.mu.Unlock()

	m.chatEvents.publish(msg.RoomID, msg)
	return nil
}

func (m *MemoryStore) ListMessages(ctx context.Context, roomID string, limit int) ([]ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.msgs[roomID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *MemoryStore) SubscribeMessages(roomID string, fn func(ChatMessage)) Subscription {
	return m.chatEvents.subscribe(roomID, fn)
}
