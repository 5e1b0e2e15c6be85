// Package store defines the persisted room record, the chat log, and the
// change-notification contract the session layer depends on. Adapters:
// in-memory (tests, single node), SQLite via GORM (durable single node),
// Redis (durable, cross-process notifications).
package store

import (
	"context"
	"errors"
	"time"

	"velha-online/internal/game"
)

type Status string

const (
	StatusWaiting      Status = "waiting"
	StatusPlaying      Status = "playing"
	StatusFinishedWin  Status = "finished_win"
	StatusFinishedDraw Status = "finished_draw"
)

// Finished reports whether the match has reached a terminal status.
func (s Status) Finished() bool {
	return s == StatusFinishedWin || s == StatusFinishedDraw
}

// Seat identifies one of the two match positions. Seat one plays X.
type Seat string

const (
	SeatOne Seat = "player1"
	SeatTwo Seat = "player2"
)

// SeatOf maps a mark to the seat that plays it.
func SeatOf(m game.Mark) Seat {
	if m == game.MarkO {
		return SeatTwo
	}
	return SeatOne
}

// Room is the single source of truth for a match.
//
// Board holds the wire form (comma-joined 9 cells). Winner is a seat
// reference, empty unless Status is finished_win. Version increments by one
// per accepted update; UpdatedAt is strictly monotonic per room so readers
// can discard stale or duplicate notifications.
type Room struct {
	ID        string    `json:"id" gorm:"primaryKey;size:8"`
	PlayerOne string    `json:"player1"`
	PlayerTwo string    `json:"player2"`
	Board     string    `json:"board"`
	TurnOwner game.Mark `json:"current_player"`
	Status    Status    `json:"status"`
	Winner    Seat      `json:"winner"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime:false"`
}

// RoomSummary is one row of the waiting-room listing.
type RoomSummary struct {
	ID        string    `json:"id"`
	HostName  string    `json:"host_name"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is append-only and immutable once created. CreatedAt is
// monotonically increasing per room.
type ChatMessage struct {
	ID         uint      `json:"-" gorm:"primaryKey"`
	RoomID     string    `json:"room_id" gorm:"index"`
	PlayerName string    `json:"player_name"`
	Text       string    `json:"message"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime:false"`
}

// RoomPatch carries only the fields an update sets. Winner pointing at an
// empty seat clears the winner (restart).
type RoomPatch struct {
	PlayerTwo *string
	Board     *string
	TurnOwner *game.Mark
	Status    *Status
	Winner    *Seat
}

type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
)

// Event is one room change notification. Old carries the prior snapshot on
// updates (nil for inserts); consumers use it to detect seat two filling.
type Event struct {
	Kind EventKind `json:"kind"`
	Room Room      `json:"room"`
	Old  *Room     `json:"old,omitempty"`
}

// Subscription owns one live notification stream. Close releases it; it is
// safe to call more than once.
type Subscription interface {
	Close()
}

var (
	ErrRoomExists      = errors.New("room code already taken")
	ErrRoomNotFound    = errors.New("room not found")
	ErrVersionConflict = errors.New("room version conflict")
)

// MaxWaitingRooms bounds the waiting-room listing page.
const MaxWaitingRooms = 10

// Store is the persistence and notification contract. Delivery of change
// events is at-least-once; no ordering is guaranteed across distinct fields
// of the same update beyond the room's monotonic UpdatedAt.
type Store interface {
	CreateRoom(ctx context.Context, r Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	UpdateRoom(ctx context.Context, id string, patch RoomPatch, expectedVersion int64) error
	ListWaitingRooms(ctx context.Context, limit int) ([]RoomSummary, error)
	SubscribeRoom(id string, fn func(Event)) Subscription

	AppendMessage(ctx context.Context, msg ChatMessage) error
	ListMessages(ctx context.Context, roomID string, limit int) ([]ChatMessage, error)
	SubscribeMessages(roomID string, fn func(ChatMessage)) Subscription
}

func (p RoomPatch) apply(r *Room) {
	if p.PlayerTwo != nil {
		r.PlayerTwo = *p.PlayerTwo
	}
	if p.Board != nil {
		r.Board = *p.Board
	}
	if p.TurnOwner != nil {
		r.TurnOwner = *p.TurnOwner
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Winner != nil {
		r.Winner = *p.Winner
	}
}

// stampAfter returns a timestamp strictly after prev even when the clock
// has not advanced, keeping UpdatedAt usable for duplicate suppression.
func stampAfter(prev time.Time) time.Time {
	now := time.Now()
	if !now.After(prev) {
		return prev.Add(time.Millisecond)
	}
	return now
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxWaitingRooms {
		return MaxWaitingRooms
	}
	return limit
}
