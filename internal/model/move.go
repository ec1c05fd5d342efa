package model

type SimpleMove struct {
	From Square `json:"from"`
	To   Square `json:"to"`
}

// Ply is one applied move. Notation is long algebraic, e.g. "Nb1-c3" or "Ra8xa2".
type Ply struct {
	Piece    Piece  `json:"piece"`
	From     Square `json:"from"`
	To       Square `json:"to"`
	Notation string `json:"notation"`
}

func notation(piece Piece, from, to Square, occupied bool) string {
	sep := "-"
	if occupied {
		sep = "x"
	}
	return piece.Kind.notation() + from.Notation() + sep + to.Notation()
}
