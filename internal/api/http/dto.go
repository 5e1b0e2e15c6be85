package http

import (
	"time"

	"velha-online/internal/game"
	"velha-online/internal/store"
)

// RoomResponse is the REST view of a room. The board is expanded to its 9
// cells so clients never touch the wire encoding.
type RoomResponse struct {
	ID        string    `json:"id"`
	PlayerOne string    `json:"player1"`
	PlayerTwo string    `json:"player2,omitempty"`
	Board     []string  `json:"board"`
	TurnOwner string    `json:"current_player"`
	Status    string    `json:"status"`
	Winner    string    `json:"winner,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoomSummaryResponse is one row of the waiting-room listing.
type RoomSummaryResponse struct {
	ID        string    `json:"id"`
	HostName  string    `json:"host_name"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageResponse is one chat message.
type MessageResponse struct {
	PlayerName string    `json:"player_name"`
	Text       string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

func toRoomResponse(r store.Room) (RoomResponse, error) {
	board, err := game.ParseBoard(r.Board)
	if err != nil {
		return RoomResponse{}, err
	}
	cells := make([]string, game.Size)
	for i, c := range board {
		cells[i] = string(c)
	}
	return RoomResponse{
		ID:        r.ID,
		PlayerOne: r.PlayerOne,
		PlayerTwo: r.PlayerTwo,
		Board:     cells,
		TurnOwner: string(r.TurnOwner),
		Status:    string(r.Status),
		Winner:    string(r.Winner),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}
