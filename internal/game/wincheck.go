package game

// The 8 winning triples: 3 rows, 3 columns, 2 diagonals. Scan order is
// fixed; at most one mark can complete a line per move, so the first match
// is the only match.
var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// DetectOutcome inspects the board for a completed line or a draw.
func DetectOutcome(b Board) Outcome {
	for _, line := range winLines {
		a := b[line[0]]
		if a != Empty && a == b[line[1]] && a == b[line[2]] {
			return Outcome{Kind: OutcomeWin, Winner: a}
		}
	}
	if b.Full() {
		return Outcome{Kind: OutcomeDraw}
	}
	return Outcome{Kind: OutcomeNone}
}
