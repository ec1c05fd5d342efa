package model

type PlayerColor string

const (
	PlayerColorWhite PlayerColor = "white"
	PlayerColorBlack PlayerColor = "black"
)

type Player struct {
	ID    string
	Color PlayerColor
}

// ClientPlayer is a seat as seen by clients. Seats are informational: either
// seated player, or any observer, may move any piece.
type ClientPlayer struct {
	ID    string      `json:"id"`
	Color PlayerColor `json:"color"`
}

type Players struct {
	White ClientPlayer `json:"white"`
	Black ClientPlayer `json:"black"`
}

type MatchFoundEvent struct {
	GameID string      `json:"gameId"`
	Color  PlayerColor `json:"color"`
}
