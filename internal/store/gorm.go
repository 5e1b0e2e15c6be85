package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore persists rooms and chat in SQLite through GORM. Change events
// are fanned out in process, same as MemoryStore; a deployment that needs
// cross-process notifications uses RedisStore instead.
type GormStore struct {
	db *gorm.DB

	roomEvents *notifier[Event]
	chatEvents *notifier[ChatMessage]
}

// OpenGorm opens (and migrates) the SQLite database at path.
func OpenGorm(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&Room{}, &ChatMessage{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &GormStore{
		db:         db,
		roomEvents: newNotifier[Event](),
		chatEvents: newNotifier[ChatMessage](),
	}, nil
}

func (s *GormStore) CreateRoom(ctx context.Context, r Room) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.UpdatedAt = r.CreatedAt
	r.Version = 1

	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrRoomExists
		}
		return fmt.Errorf("create room: %w", err)
	}
	s.roomEvents.publish(r.ID, Event{Kind: EventInsert, Room: r})
	return nil
}

func (s *GormStore) GetRoom(ctx context.Context, id string) (Room, error) {
	var r Room
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Room{}, ErrRoomNotFound
		}
		return Room{}, fmt.Errorf("get room: %w", err)
	}
	return r, nil
}

func (s *GormStore) UpdateRoom(ctx context.Context, id string, patch RoomPatch, expectedVersion int64) error {
	var old, updated Room

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&old, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoomNotFound
			}
			return fmt.Errorf("update room: %w", err)
		}
		if expectedVersion != 0 && old.Version != expectedVersion {
			return ErrVersionConflict
		}

		updated = old
		patch.apply(&updated)
		updated.Version = old.Version + 1
		updated.UpdatedAt = stampAfter(old.UpdatedAt)

		res := tx.Model(&Room{}).
			Where("id = ? AND version = ?", id, old.Version).
			Updates(map[string]any{
				"player_two": updated.PlayerTwo,
				"board":      updated.Board,
				"turn_owner": updated.TurnOwner,
				"status":     updated.Status,
				"winner":     updated.Winner,
				"version":    updated.Version,
				"updated_at": updated.UpdatedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("update room: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}
		return nil
	})
	if err != nil {
		return err
	}

	prior := old
	s.roomEvents.publish(id, Event{Kind: EventUpdate, Room: updated, Old: &prior})
	return nil
}

func (s *GormStore) ListWaitingRooms(ctx context.Context, limit int) ([]RoomSummary, error) {
	var rooms []Room
	err := s.db.WithContext(ctx).
		Where("status = ?", StatusWaiting).
		Order("created_at DESC").
		Limit(clampLimit(limit)).
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("list waiting rooms: %w", err)
	}
	out := make([]RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomSummary{ID: r.ID, HostName: r.PlayerOne, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

func (s *GormStore) SubscribeRoom(id string, fn func(Event)) Subscription {
	return s.roomEvents.subscribe(id, fn)
}

func (s *GormStore) AppendMessage(ctx context.Context, msg ChatMessage) error {
	msg.Text = strings.TrimSpace(msg.Text)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last ChatMessage
		err := tx.Where("room_id = ?", msg.RoomID).Order("created_at DESC").First(&last).Error
		switch {
		case err == nil:
			msg.CreatedAt = stampAfter(last.CreatedAt)
		case errors.Is(err, gorm.ErrRecordNotFound):
			msg.CreatedAt = stampAfter(msg.CreatedAt)
		default:
			return fmt.Errorf("append message: %w", err)
		}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("append message: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.chatEvents.publish(msg.RoomID, msg)
	return nil
}

func (s *GormStore) ListMessages(ctx context.Context, roomID string, limit int) ([]ChatMessage, error) {
	q := s.db.WithContext(ctx).Where("room_id = ?", roomID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var msgs []ChatMessage
	if err := q.Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	// newest last
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *GormStore) SubscribeMessages(roomID string, fn func(ChatMessage)) Subscription {
	return s.chatEvents.subscribe(roomID, fn)
}
