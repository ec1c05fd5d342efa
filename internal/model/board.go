package model

import (
	"encoding/json"
	"fmt"
)

const boardSize = 8

type Kind uint8

const (
	Pawn Kind = iota + 1
	Knight
	Bishop
	Rook
	Queen
	King
)

var kindNames = map[Kind]string{
	Pawn:   "pawn",
	Knight: "knight",
	Bishop: "bishop",
	Rook:   "rook",
	Queen:  "queen",
	King:   "king",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// notation is the SAN letter for the kind; pawns have none.
func (k Kind) notation() string {
	switch k {
	case King:
		return "K"
	case Queen:
		return "Q"
	case Rook:
		return "R"
	case Bishop:
		return "B"
	case Knight:
		return "N"
	case Pawn:
		return ""
	}
	return ""
}

func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

type Color uint8

const (
	White Color = iota + 1
	Black
)

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	}
	return fmt.Sprintf("Color(%d)", uint8(c))
}

func (c Color) Valid() bool {
	return c == White || c == Black
}

func ParseColor(s string) (Color, error) {
	switch s {
	case "white":
		return White, nil
	case "black":
		return Black, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidColor, s)
}

func (c Color) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidColor, uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Piece carries no identity beyond kind and color.
type Piece struct {
	Kind  Kind  `json:"kind"`
	Color Color `json:"color"`
}

func (p Piece) String() string {
	return p.Color.String() + " " + p.Kind.String()
}

type Square struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func Sq(row, col int) Square {
	return Square{Row: row, Col: col}
}

func (s Square) Valid() bool {
	return s.Row >= 0 && s.Row < boardSize && s.Col >= 0 && s.Col < boardSize
}

func (s Square) Validate() error {
	if !s.Valid() {
		return fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, s.Row, s.Col)
	}
	return nil
}

// Notation returns the algebraic name of the square. Row 0 is rank 8.
func (s Square) Notation() string {
	return fmt.Sprintf("%c%d", s.Col+'a', boardSize-s.Row)
}

func (s Square) String() string {
	return fmt.Sprintf("(%d,%d)", s.Row, s.Col)
}

func (s Square) index() int {
	if !s.Valid() {
		panic(fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, s.Row, s.Col))
	}
	return s.Row*boardSize + s.Col
}

type cell struct {
	piece    Piece
	occupied bool
}

// Board is a fixed 8x8 grid stored row-major in 64 slots.
// The zero value is an empty board.
type Board struct {
	cells [boardSize * boardSize]cell
}

var backRank = [boardSize]Kind{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// NewStandardBoard returns the starting layout: black on rows 0-1, white on rows 6-7.
// Row 7 has king and queen swapped relative to row 0 (king on col 3, queen on col 4).
func NewStandardBoard() *Board {
	board := &Board{}
	for col := 0; col < boardSize; col++ {
		board.Place(Sq(0, col), Piece{Kind: backRank[col], Color: Black})
		board.Place(Sq(1, col), Piece{Kind: Pawn, Color: Black})
		board.Place(Sq(6, col), Piece{Kind: Pawn, Color: White})
		board.Place(Sq(7, col), Piece{Kind: backRank[col], Color: White})
	}
	board.Place(Sq(7, 3), Piece{Kind: King, Color: White})
	board.Place(Sq(7, 4), Piece{Kind: Queen, Color: White})
	return board
}

// PieceAt panics with ErrOutOfBounds for squares off the board.
func (b *Board) PieceAt(sq Square) (Piece, bool) {
	c := b.cells[sq.index()]
	return c.piece, c.occupied
}

func (b *Board) IsEmpty(sq Square) bool {
	return !b.cells[sq.index()].occupied
}

func (b *Board) Place(sq Square, p Piece) {
	b.cells[sq.index()] = cell{piece: p, occupied: true}
}

func (b *Board) Clear(sq Square) {
	b.cells[sq.index()] = cell{}
}

// ApplyMove relocates the piece on from to to, overwriting whatever stood there.
// It does not consult IsLegalMove. An empty source leaves the board untouched.
func (b *Board) ApplyMove(from, to Square) {
	piece, ok := b.PieceAt(from)
	if !ok {
		return
	}
	b.Clear(from)
	b.Place(to, piece)
}

func (b *Board) Clone() *Board {
	clone := *b
	return &clone
}

// Equal reports whether both boards hold the same pieces on the same squares.
func (b *Board) Equal(other *Board) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.cells == other.cells
}

func (b *Board) Count() int {
	n := 0
	for _, c := range b.cells {
		if c.occupied {
			n++
		}
	}
	return n
}

// Rows returns a row-major copy of the grid with nil for empty cells.
func (b *Board) Rows() [][]*Piece {
	rows := make([][]*Piece, boardSize)
	for row := 0; row < boardSize; row++ {
		rows[row] = make([]*Piece, boardSize)
		for col := 0; col < boardSize; col++ {
			if p, ok := b.PieceAt(Sq(row, col)); ok {
				rows[row][col] = &p
			}
		}
	}
	return rows
}

func (b *Board) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Rows())
}

func (b *Board) UnmarshalJSON(data []byte) error {
	var rows [][]*Piece
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	if len(rows) != boardSize {
		return fmt.Errorf("%w: %d rows", ErrInvalidBoard, len(rows))
	}
	var board Board
	for row, cols := range rows {
		if len(cols) != boardSize {
			return fmt.Errorf("%w: row %d has %d cells", ErrInvalidBoard, row, len(cols))
		}
		for col, p := range cols {
			if p == nil {
				continue
			}
			if !p.Kind.Valid() || !p.Color.Valid() {
				return fmt.Errorf("%w: bad piece at (%d,%d)", ErrInvalidBoard, row, col)
			}
			board.Place(Sq(row, col), *p)
		}
	}
	*b = board
	return nil
}
