package game

// Mark is the symbol a seat plays. Seat one plays X, seat two plays O.
type Mark string

const (
	Empty Mark = ""
	MarkX Mark = "X"
	MarkO Mark = "O"
)

// Size is the number of cells on the board.
const Size = 9

// Board is one tic-tac-toe grid, indexed 0..8 row-major.
type Board [Size]Mark

func NewBoard() Board {
	return Board{}
}

// Full reports whether every cell is occupied.
func (b Board) Full() bool {
	for _, c := range b {
		if c == Empty {
			return false
		}
	}
	return true
}

// NextMark returns the mark that moves after m.
func NextMark(m Mark) Mark {
	if m == MarkX {
		return MarkO
	}
	return MarkX
}

type OutcomeKind int

const (
	OutcomeNone OutcomeKind = iota
	OutcomeWin
	OutcomeDraw
)

// Outcome is the result of inspecting a board: nothing decided yet, a win
// for Winner, or a draw.
type Outcome struct {
	Kind   OutcomeKind
	Winner Mark
}
