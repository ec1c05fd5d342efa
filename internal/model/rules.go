package model

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// forward is the row step of a single pawn advance: +1 for white, -1 for black.
func (c Color) forward() int {
	if c == White {
		return 1
	}
	return -1
}

// IsLegalMove reports whether the piece on from may move to to.
// Paths are not checked for obstruction, the destination may hold a piece of
// either color, and king safety is ignored. An empty source is never legal.
func IsLegalMove(b *Board, from, to Square) bool {
	piece, ok := b.PieceAt(from)
	if !ok {
		return false
	}

	dRow := to.Row - from.Row
	dCol := to.Col - from.Col

	switch piece.Kind {
	case Pawn:
		return isPawnMove(b, piece.Color, from, to, dRow, dCol)
	case Knight:
		return isKnightMove(dRow, dCol)
	case Bishop:
		return isDiagonal(dRow, dCol)
	case Rook:
		return isStraight(dRow, dCol)
	case Queen:
		return isStraight(dRow, dCol) || isDiagonal(dRow, dCol)
	case King:
		return abs(dRow) <= 1 && abs(dCol) <= 1
	default:
		return false
	}
}

func isStraight(dRow, dCol int) bool {
	return dRow == 0 || dCol == 0
}

func isDiagonal(dRow, dCol int) bool {
	return abs(dRow) == abs(dCol)
}

func isKnightMove(dRow, dCol int) bool {
	return (abs(dRow) == 2 && abs(dCol) == 1) || (abs(dRow) == 1 && abs(dCol) == 2)
}

// isPawnMove keeps the double-step rows as they were: white only from row 1,
// black only from row 6, and the sideways step requires an empty target.
func isPawnMove(b *Board, color Color, from, to Square, dRow, dCol int) bool {
	dir := color.forward()
	switch {
	case dRow == dir && dCol == 0:
		return true
	case dRow == 2*dir && from.Row == 1 && color == White:
		return true
	case dRow == -2*dir && from.Row == 6 && color == Black:
		return true
	case dCol != 0 && (dRow == dir || dRow == -dir):
		return b.IsEmpty(to)
	}
	return false
}

// LegalDestinations lists every square, in row-major order, that the piece on
// from may move to. The source itself is included when the predicate allows it.
func LegalDestinations(b *Board, from Square) []Square {
	destinations := []Square{}
	if b.IsEmpty(from) {
		return destinations
	}
	for row := 0; row < boardSize; row++ {
		for col := 0; col < boardSize; col++ {
			to := Sq(row, col)
			if IsLegalMove(b, from, to) {
				destinations = append(destinations, to)
			}
		}
	}
	return destinations
}
