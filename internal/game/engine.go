package game

import "errors"

// ErrIllegalMove fires on an occupied cell or an out-of-range index. Callers
// pre-validate with IsLegalMove, so reaching it indicates a programming
// error upstream.
var ErrIllegalMove = errors.New("illegal move")

// IsLegalMove reports whether idx addresses an empty cell.
func IsLegalMove(b Board, idx int) bool {
	return idx >= 0 && idx < Size && b[idx] == Empty
}

// ApplyMove returns a copy of b with mark placed at idx.
func ApplyMove(b Board, idx int, mark Mark) (Board, error) {
	if !IsLegalMove(b, idx) {
		return b, ErrIllegalMove
	}
	if mark != MarkX && mark != MarkO {
		return b, ErrIllegalMove
	}
	b[idx] = mark
	return b, nil
}
