package game

import "testing"

// helper: build a board from wire form, failing the test on bad input
func mustBoard(t *testing.T, wire string) Board {
	t.Helper()
	b, err := ParseBoard(wire)
	if err != nil {
		t.Fatalf("ParseBoard(%q): %v", wire, err)
	}
	return b
}

func TestDetectOutcome(t *testing.T) {
	cases := []struct {
		name   string
		wire   string
		kind   OutcomeKind
		winner Mark
	}{
		{"empty board", ",,,,,,,,", OutcomeNone, Empty},
		{"in progress", "X,O,,,X,,,,", OutcomeNone, Empty},
		{"top row X", "X,X,X,O,O,,,,", OutcomeWin, MarkX},
		{"middle row O", "X,X,,O,O,O,X,,", OutcomeWin, MarkO},
		{"bottom row X", "O,O,,,,,X,X,X", OutcomeWin, MarkX},
		{"left column X", "X,O,,X,O,,X,,", OutcomeWin, MarkX},
		{"middle column O", ",O,X,,O,X,,O,", OutcomeWin, MarkO},
		{"right column O", "X,,O,X,,O,,,O", OutcomeWin, MarkO},
		{"main diagonal X", "X,O,,O,X,,,,X", OutcomeWin, MarkX},
		{"anti diagonal O", "X,X,O,,O,,O,,X", OutcomeWin, MarkO},
		{"draw", "X,O,X,X,O,O,O,X,X", OutcomeDraw, Empty},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := DetectOutcome(mustBoard(t, tc.wire))
			if out.Kind != tc.kind {
				t.Fatalf("kind: want %v, got %v", tc.kind, out.Kind)
			}
			if out.Winner != tc.winner {
				t.Fatalf("winner: want %q, got %q", tc.winner, out.Winner)
			}
		})
	}
}

func TestIsLegalMove(t *testing.T) {
	b := mustBoard(t, "X,,,,,,,,")
	if IsLegalMove(b, 0) {
		t.Fatal("occupied cell reported legal")
	}
	if !IsLegalMove(b, 1) {
		t.Fatal("empty cell reported illegal")
	}
	if IsLegalMove(b, -1) || IsLegalMove(b, 9) {
		t.Fatal("out-of-range index reported legal")
	}
}

func TestApplyMove(t *testing.T) {
	b := NewBoard()

	next, err := ApplyMove(b, 4, MarkX)
	if err != nil {
		t.Fatalf("legal move rejected: %v", err)
	}
	if next[4] != MarkX {
		t.Fatalf("cell 4: want X, got %q", next[4])
	}
	if b[4] != Empty {
		t.Fatal("ApplyMove mutated its input board")
	}

	if _, err := ApplyMove(next, 4, MarkO); err != ErrIllegalMove {
		t.Fatalf("occupied cell: want ErrIllegalMove, got %v", err)
	}
	if _, err := ApplyMove(next, 9, MarkO); err != ErrIllegalMove {
		t.Fatalf("out of range: want ErrIllegalMove, got %v", err)
	}
	if _, err := ApplyMove(next, 0, Mark("Z")); err != ErrIllegalMove {
		t.Fatalf("bad mark: want ErrIllegalMove, got %v", err)
	}
}

func TestBoardCodecRoundTrip(t *testing.T) {
	wires := []string{
		",,,,,,,,",
		"X,O,X,X,O,O,O,X,X",
		"X,,,,O,,,,",
	}
	for _, wire := range wires {
		b := mustBoard(t, wire)
		if got := b.Encode(); got != wire {
			t.Fatalf("round trip: want %q, got %q", wire, got)
		}
	}
	if got := NewBoard().Encode(); got != ",,,,,,,," {
		t.Fatalf("empty board wire form: got %q", got)
	}
}

func TestParseBoardRejectsBadInput(t *testing.T) {
	bad := []string{
		"",          // one cell
		",,,,,,,",   // eight cells
		",,,,,,,,,", // ten cells
		"X,O,Q,,,,,,",
		"null,,,,,,,,",
	}
	for _, wire := range bad {
		if _, err := ParseBoard(wire); err == nil {
			t.Fatalf("ParseBoard(%q): expected an error", wire)
		}
	}
}

// Any legal fill of the board must reach win or draw within 9 moves.
func TestFullGameAlwaysTerminates(t *testing.T) {
	orders := [][]int{
		{0, 1, 2, 3, 4, 5, 6, 7, 8},
		{4, 0, 8, 2, 6, 3, 5, 1, 7},
		{0, 4, 1, 2, 7, 3, 5, 6, 8},
	}

	for _, order := range orders {
		b := NewBoard()
		mark := MarkX
		terminal := false

		for moves, idx := range order {
			var err error
			b, err = ApplyMove(b, idx, mark)
			if err != nil {
				t.Fatalf("move %d at %d: %v", moves, idx, err)
			}
			if out := DetectOutcome(b); out.Kind != OutcomeNone {
				terminal = true
				break
			}
			mark = NextMark(mark)
		}
		if !terminal {
			t.Fatalf("board %v filled without reaching win or draw", order)
		}
	}
}

func TestNextMarkAlternates(t *testing.T) {
	if NextMark(MarkX) != MarkO || NextMark(MarkO) != MarkX {
		t.Fatal("NextMark does not alternate")
	}
}
