// Package view renders boards for people: the piece glyphs the drag-and-drop
// client draws and a plain-text diagram for logs and the text endpoint.
package view

import (
	"strings"

	"github.com/benbeisheim/dragchess-backend/internal/model"
)

var glyphs = map[model.Piece]string{
	{Kind: model.Pawn, Color: model.Black}:   "♟",
	{Kind: model.Bishop, Color: model.Black}: "♝",
	{Kind: model.Knight, Color: model.Black}: "♞",
	{Kind: model.Rook, Color: model.Black}:   "♜",
	{Kind: model.Queen, Color: model.Black}:  "♛",
	{Kind: model.King, Color: model.Black}:   "♚",
	{Kind: model.Pawn, Color: model.White}:   "♙",
	{Kind: model.Bishop, Color: model.White}: "♗",
	{Kind: model.Knight, Color: model.White}: "♘",
	{Kind: model.Rook, Color: model.White}:   "♖",
	{Kind: model.Queen, Color: model.White}:  "♕",
	{Kind: model.King, Color: model.White}:   "♔",
}

// Glyph returns the display glyph for p, or "" for an unknown kind or color.
func Glyph(p model.Piece) string {
	return glyphs[p]
}

// Render draws b with rank labels on the left and file labels underneath.
// Row 0 is printed first as rank 8; empty cells are dots.
func Render(b *model.Board) string {
	var sb strings.Builder
	for row := 0; row < 8; row++ {
		sq := model.Sq(row, 0)
		sb.WriteString(sq.Notation()[1:])
		for col := 0; col < 8; col++ {
			sb.WriteByte(' ')
			if p, ok := b.PieceAt(model.Sq(row, col)); ok {
				sb.WriteString(Glyph(p))
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("  a b c d e f g h\n")
	return sb.String()
}
