package game

import (
	"fmt"
	"strings"
)

// The board travels as a comma-joined string of 9 cells; the empty board is
// ",,,,,,,," (eight commas). Empty cells are empty strings, never a null
// marker.

// Encode renders b in wire form.
func (b Board) Encode() string {
	cells := make([]string, Size)
	for i, c := range b {
		cells[i] = string(c)
	}
	return strings.Join(cells, ",")
}

// ParseBoard decodes a wire-form board. It rejects anything that is not
// exactly 9 cells of {empty, X, O}.
func ParseBoard(s string) (Board, error) {
	var b Board
	cells := strings.Split(s, ",")
	if len(cells) != Size {
		return b, fmt.Errorf("board: want %d cells, got %d", Size, len(cells))
	}
	for i, c := range cells {
		switch Mark(c) {
		case Empty, MarkX, MarkO:
			b[i] = Mark(c)
		default:
			return b, fmt.Errorf("board: bad cell %q at index %d", c, i)
		}
	}
	return b, nil
}
