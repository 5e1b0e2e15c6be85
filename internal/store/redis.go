package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists rooms and chat in Redis and carries change events
// over pub/sub, so every process subscribed to a room observes the same
// stream. Optimistic updates run under WATCH: any concurrent writer to the
// same room key aborts the transaction and surfaces as a version conflict.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func roomKey(id string) string     { return "velha:room:" + id }
func chatKey(id string) string     { return "velha:chat:" + id }
func roomChannel(id string) string { return "velha:events:room:" + id }
func chatChannel(id string) string { return "velha:events:chat:" + id }

const waitingKey = "velha:rooms:waiting"

func (s *RedisStore) CreateRoom(ctx context.Context, r Room) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.UpdatedAt = r.CreatedAt
	r.Version = 1

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	ok, err := s.client.SetNX(ctx, roomKey(r.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	if !ok {
		return ErrRoomExists
	}
	if err := s.client.ZAdd(ctx, waitingKey, redis.Z{
		Score:  float64(r.CreatedAt.UnixNano()),
		Member: r.ID,
	}).Err(); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	s.publishEvent(ctx, Event{Kind: EventInsert, Room: r})
	return nil
}

func (s *RedisStore) GetRoom(ctx context.Context, id string) (Room, error) {
	data, err := s.client.Get(ctx, roomKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Room{}, ErrRoomNotFound
		}
		return Room{}, fmt.Errorf("get room: %w", err)
	}
	var r Room
	if err := json.Unmarshal(data, &r); err != nil {
		return Room{}, fmt.Errorf("get room: %w", err)
	}
	return r, nil
}

func (s *RedisStore) UpdateRoom(ctx context.Context, id string, patch RoomPatch, expectedVersion int64) error {
	var old, updated Room

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, roomKey(id)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrRoomNotFound
			}
			return fmt.Errorf("update room: %w", err)
		}
		if err := json.Unmarshal(data, &old); err != nil {
			return fmt.Errorf("update room: %w", err)
		}
		if expectedVersion != 0 && old.Version != expectedVersion {
			return ErrVersionConflict
		}

		updated = old
		patch.apply(&updated)
		updated.Version = old.Version + 1
		updated.UpdatedAt = stampAfter(old.UpdatedAt)

		out, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("update room: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, roomKey(id), out, 0)
			if old.Status == StatusWaiting && updated.Status != StatusWaiting {
				pipe.ZRem(ctx, waitingKey, id)
			}
			return nil
		})
		return err
	}, roomKey(id))
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return ErrVersionConflict
		}
		return err
	}

	prior := old
	s.publishEvent(ctx, Event{Kind: EventUpdate, Room: updated, Old: &prior})
	return nil
}

func (s *RedisStore) ListWaitingRooms(ctx context.Context, limit int) ([]RoomSummary, error) {
	ids, err := s.client.ZRevRange(ctx, waitingKey, 0, int64(clampLimit(limit))-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list waiting rooms: %w", err)
	}
	out := make([]RoomSummary, 0, len(ids))
	for _, id := range ids {
		r, err := s.GetRoom(ctx, id)
		if err != nil {
			// room expired or left waiting between the ZSET read and here
			continue
		}
		if r.Status != StatusWaiting {
			continue
		}
		out = append(out, RoomSummary{ID: r.ID, HostName: r.PlayerOne, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

func (s *RedisStore) SubscribeRoom(id string, fn func(Event)) Subscription {
	ps := s.client.Subscribe(context.Background(), roomChannel(id))
	go func() {
		for msg := range ps.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("store: bad room event payload: %v", err)
				continue
			}
			fn(ev)
		}
	}()
	return pubsubHandle{ps: ps}
}

func (s *RedisStore) AppendMessage(ctx context.Context, msg ChatMessage) error {
	msg.Text = strings.TrimSpace(msg.Text)
	msg.CreatedAt = stampAfter(msg.CreatedAt)

	if data, err := s.client.LIndex(ctx, chatKey(msg.RoomID), -1).Bytes(); err == nil {
		var last ChatMessage
		if json.Unmarshal(data, &last) == nil {
			msg.CreatedAt = stampAfter(last.CreatedAt)
		}
	}

	out, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if err := s.client.RPush(ctx, chatKey(msg.RoomID), out).Err(); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if err := s.client.Publish(ctx, chatChannel(msg.RoomID), out).Err(); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *RedisStore) ListMessages(ctx context.Context, roomID string, limit int) ([]ChatMessage, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	rows, err := s.client.LRange(ctx, chatKey(roomID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]ChatMessage, 0, len(rows))
	for _, row := range rows {
		var msg ChatMessage
		if err := json.Unmarshal([]byte(row), &msg); err != nil {
			log.Printf("store: bad chat payload in %s: %v", roomID, err)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *RedisStore) SubscribeMessages(roomID string, fn func(ChatMessage)) Subscription {
	ps := s.client.Subscribe(context.Background(), chatChannel(roomID))
	go func() {
		for msg := range ps.Channel() {
			var cm ChatMessage
			if err := json.Unmarshal([]byte(msg.Payload), &cm); err != nil {
				log.Printf("store: bad chat event payload: %v", err)
				continue
			}
			fn(cm)
		}
	}()
	return pubsubHandle{ps: ps}
}

func (s *RedisStore) publishEvent(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("store: marshal room event: %v", err)
		return
	}
	if err := s.client.Publish(ctx, roomChannel(ev.Room.ID), data).Err(); err != nil {
		log.Printf("store: publish room event for %s: %v", ev.Room.ID, err)
	}
}

type pubsubHandle struct {
	ps *redis.PubSub
}

func (h pubsubHandle) Close() {
	_ = h.ps.Close()
}
