package model

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbeisheim/dragchess-backend/internal/ws"
	"github.com/gofiber/fiber/v2/log"
)

// StateWriter is the part of a websocket connection the game pushes state to.
type StateWriter interface {
	WriteJSON(v interface{}) error
}

// The connections for a specific game
type GameConnections struct {
	connections map[string]StateWriter // playerID -> connection
	mu          sync.RWMutex

	// sendMu orders deliveries; sent is the newest version written so far.
	sendMu sync.Mutex
	sent   uint64
}

func NewGameConnections() *GameConnections {
	return &GameConnections{
		connections: make(map[string]StateWriter),
	}
}

// Game is one isolated board session. mu serialises the legality check and the
// mutation of every move so the pair is atomic.
type Game struct {
	ID          string
	mu          sync.Mutex
	board       *Board
	history     []Ply
	players     Players
	createdAt   time.Time
	updatedAt   time.Time
	version     uint64
	connections *GameConnections
}

type GameState struct {
	ID          string      `json:"id"`
	Version     uint64      `json:"version"`
	Board       [][]*Piece  `json:"board"`
	MoveHistory []Ply       `json:"moveHistory"`
	LastMove    *SimpleMove `json:"lastMove"`
	Players     Players     `json:"players"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Snapshot is the persisted form of a Game.
type Snapshot struct {
	ID        string    `json:"id"`
	Version   uint64    `json:"version"`
	Board     *Board    `json:"board"`
	History   []Ply     `json:"history"`
	Players   Players   `json:"players"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewGame(id string) *Game {
	now := time.Now().UTC()
	return &Game{
		ID:          id,
		board:       NewStandardBoard(),
		history:     make([]Ply, 0),
		createdAt:   now,
		updatedAt:   now,
		connections: NewGameConnections(),
	}
}

func RestoreGame(snap Snapshot) (*Game, error) {
	if snap.ID == "" {
		return nil, fmt.Errorf("restore game: empty id")
	}
	if snap.Board == nil {
		return nil, fmt.Errorf("restore game %s: %w: missing board", snap.ID, ErrInvalidBoard)
	}
	history := make([]Ply, len(snap.History))
	copy(history, snap.History)
	return &Game{
		ID:          snap.ID,
		board:       snap.Board.Clone(),
		history:     history,
		players:     snap.Players,
		createdAt:   snap.CreatedAt,
		updatedAt:   snap.UpdatedAt,
		version:     snap.Version,
		connections: NewGameConnections(),
	}, nil
}

// AddPlayer seats the player: white first, then black. A player who already
// holds a seat gets it back.
func (g *Game) AddPlayer(playerID string) (PlayerColor, error) {
	if playerID == "" {
		return "", ErrMissingPlayerID
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	switch playerID {
	case g.players.White.ID:
		return PlayerColorWhite, nil
	case g.players.Black.ID:
		return PlayerColorBlack, nil
	}

	if g.players.White.ID == "" {
		g.players.White = ClientPlayer{ID: playerID, Color: PlayerColorWhite}
		g.touch()
		return PlayerColorWhite, nil
	}
	if g.players.Black.ID == "" {
		g.players.Black = ClientPlayer{ID: playerID, Color: PlayerColorBlack}
		g.touch()
		return PlayerColorBlack, nil
	}
	return "", ErrGameFull
}

func (g *Game) IsPlayerInGame(playerID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return playerID != "" && (g.players.White.ID == playerID || g.players.Black.ID == playerID)
}

func validateMove(move SimpleMove) error {
	if err := move.From.Validate(); err != nil {
		return fmt.Errorf("from: %w", err)
	}
	if err := move.To.Validate(); err != nil {
		return fmt.Errorf("to: %w", err)
	}
	return nil
}

// CheckMove answers the legality query without touching the board.
func (g *Game) CheckMove(move SimpleMove) (bool, error) {
	if err := validateMove(move); err != nil {
		return false, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	return IsLegalMove(g.board, move.From, move.To), nil
}

func (g *Game) LegalMoves(from Square) ([]Square, error) {
	if err := from.Validate(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	return LegalDestinations(g.board, from), nil
}

// MakeMove applies move if IsLegalMove accepts it and pushes the new state to
// every observer.
func (g *Game) MakeMove(move SimpleMove) (Ply, error) {
	if err := validateMove(move); err != nil {
		return Ply{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	piece, ok := g.board.PieceAt(move.From)
	if !ok {
		return Ply{}, fmt.Errorf("%w: %s", ErrNoPieceAtSource, move.From.Notation())
	}
	if !IsLegalMove(g.board, move.From, move.To) {
		return Ply{}, fmt.Errorf("%w: %s %s to %s", ErrIllegalMove, piece, move.From.Notation(), move.To.Notation())
	}

	ply := Ply{
		Piece:    piece,
		From:     move.From,
		To:       move.To,
		Notation: notation(piece, move.From, move.To, !g.board.IsEmpty(move.To) && move.From != move.To),
	}
	g.board.ApplyMove(move.From, move.To)
	g.history = append(g.history, ply)
	g.touch()

	go g.broadcastState(g.state())
	return ply, nil
}

// Reset puts the standard layout back and clears the history. Seats are kept.
func (g *Game) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.board = NewStandardBoard()
	g.history = make([]Ply, 0)
	g.touch()

	go g.broadcastState(g.state())
}

func (g *Game) GetState() GameState {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.state()
}

// Board returns a copy of the session's board.
func (g *Game) Board() *Board {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.board.Clone()
}

func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	history := make([]Ply, len(g.history))
	copy(history, g.history)
	return Snapshot{
		ID:        g.ID,
		Version:   g.version,
		Board:     g.board.Clone(),
		History:   history,
		Players:   g.players,
		CreatedAt: g.createdAt,
		UpdatedAt: g.updatedAt,
	}
}

// state must be called with g.mu held.
func (g *Game) state() GameState {
	history := make([]Ply, len(g.history))
	copy(history, g.history)

	var lastMove *SimpleMove
	if n := len(history); n > 0 {
		lastMove = &SimpleMove{From: history[n-1].From, To: history[n-1].To}
	}
	return GameState{
		ID:          g.ID,
		Version:     g.version,
		Board:       g.board.Rows(),
		MoveHistory: history,
		LastMove:    lastMove,
		Players:     g.players,
		UpdatedAt:   g.updatedAt,
	}
}

func (g *Game) touch() {
	g.updatedAt = time.Now().UTC()
	g.version++
}

// RegisterConnection adds an observer and sends it the current state. A second
// connection for the same player is rejected with ErrAlreadyConnected.
func (g *Game) RegisterConnection(playerID string, conn StateWriter) error {
	g.connections.mu.Lock()
	if _, exists := g.connections.connections[playerID]; exists {
		g.connections.mu.Unlock()
		return ErrAlreadyConnected
	}
	g.connections.connections[playerID] = conn
	g.connections.mu.Unlock()
	log.Debugf("game %s: registered connection for player %s", g.ID, playerID)

	go g.broadcastState(g.GetState())
	return nil
}

func (g *Game) UnregisterConnection(playerID string) {
	g.connections.mu.Lock()
	defer g.connections.mu.Unlock()

	if _, exists := g.connections.connections[playerID]; exists {
		log.Debugf("game %s: unregistering connection for player %s", g.ID, playerID)
		delete(g.connections.connections, playerID)
	}
}

func (g *Game) ConnectionCount() int {
	g.connections.mu.RLock()
	defer g.connections.mu.RUnlock()
	return len(g.connections.connections)
}

// broadcastState writes state to every observer. Broadcasts run on their own
// goroutines, so a state older than one already delivered is dropped.
func (g *Game) broadcastState(state GameState) {
	g.connections.sendMu.Lock()
	defer g.connections.sendMu.Unlock()

	if state.Version < g.connections.sent {
		log.Debugf("game %s: skipping stale state v%d", g.ID, state.Version)
		return
	}
	g.connections.sent = state.Version

	msg, err := ws.NewMessage(ws.MessageTypeGameState, state)
	if err != nil {
		log.Errorf("game %s: marshal state: %v", g.ID, err)
		return
	}

	// Snapshot connections so writes happen without holding the lock.
	g.connections.mu.RLock()
	activeConnections := make(map[string]StateWriter, len(g.connections.connections))
	for playerID, conn := range g.connections.connections {
		activeConnections[playerID] = conn
	}
	g.connections.mu.RUnlock()

	for playerID, conn := range activeConnections {
		if err := conn.WriteJSON(msg); err != nil {
			log.Warnf("game %s: failed to send state to player %s: %v", g.ID, playerID, err)
			g.connections.mu.Lock()
			if g.connections.connections[playerID] == conn {
				delete(g.connections.connections, playerID)
			}
			g.connections.mu.Unlock()
		}
	}
}
