package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbeisheim/dragchess-backend/internal/model"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

var ErrGameNotFound = errors.New("game not found")

// Persister stores game snapshots. *store.Store satisfies it.
type Persister interface {
	Save(ctx context.Context, snap model.Snapshot) error
	List(ctx context.Context) ([]model.Snapshot, error)
}

type GameManager struct {
	games            map[string]*model.Game
	queue            *model.Queue
	matchingChannels map[string]chan string
	persister        Persister
	mu               sync.RWMutex
}

// NewGameManager returns a manager. persister may be nil to keep sessions in
// memory only. Matchmaking does not run until Run is called.
func NewGameManager(persister Persister) *GameManager {
	return &GameManager{
		games:            make(map[string]*model.Game),
		queue:            model.NewQueue(),
		matchingChannels: make(map[string]chan string),
		persister:        persister,
	}
}

// Restore loads every persisted session. Sessions already in memory win.
func (gm *GameManager) Restore(ctx context.Context) (int, error) {
	if gm.persister == nil {
		return 0, nil
	}
	snaps, err := gm.persister.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore sessions: %w", err)
	}

	gm.mu.Lock()
	defer gm.mu.Unlock()

	restored := 0
	for _, snap := range snaps {
		if _, exists := gm.games[snap.ID]; exists {
			continue
		}
		game, err := model.RestoreGame(snap)
		if err != nil {
			log.Warnf("skipping session %s: %v", snap.ID, err)
			continue
		}
		gm.games[snap.ID] = game
		restored++
	}
	return restored, nil
}

// Run drains the matchmaking queue every interval until ctx is cancelled.
func (gm *GameManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for gm.processMatchmaking(ctx) {
			}
		}
	}
}

// processMatchmaking pairs the two longest-waiting players onto a new board.
// It reports whether a pair was made.
func (gm *GameManager) processMatchmaking(ctx context.Context) bool {
	player1, player2, ok := gm.queue.GetNextPair()
	if !ok {
		return false
	}

	gameID := uuid.New().String()
	game := model.NewGame(gameID)

	p1Color, err := game.AddPlayer(player1.ID)
	if err != nil {
		log.Errorf("matchmaking: seat %s: %v", player1.ID, err)
		return true
	}
	p2Color, err := game.AddPlayer(player2.ID)
	if err != nil {
		log.Errorf("matchmaking: seat %s: %v", player2.ID, err)
		return true
	}

	gm.mu.Lock()
	gm.games[gameID] = game
	sent1 := gm.sendMatchFound(player1.ID, model.MatchFoundEvent{GameID: gameID, Color: p1Color})
	sent2 := gm.sendMatchFound(player2.ID, model.MatchFoundEvent{GameID: gameID, Color: p2Color})
	gm.mu.Unlock()

	if !sent1 || !sent2 {
		log.Warnf("matchmaking: game %s created but not every player was notified", gameID)
	}
	log.Infof("matchmaking: paired %s and %s in game %s", player1.ID, player2.ID, gameID)
	gm.persist(ctx, game)
	return true
}

// sendMatchFound must be called with gm.mu held. The channel is closed and
// forgotten once the event is delivered.
func (gm *GameManager) sendMatchFound(playerID string, event model.MatchFoundEvent) bool {
	ch, ok := gm.matchingChannels[playerID]
	if !ok {
		return false
	}
	select {
	case ch <- mustJSON(event):
		delete(gm.matchingChannels, playerID)
		close(ch)
		return true
	default:
		log.Warnf("matchmaking: channel for player %s is full", playerID)
		return false
	}
}

func (gm *GameManager) RegisterMatchmakingChannel(playerID string, ch chan string) error {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	// Replace any previous registration; its reader sees the close.
	if existingCh, exists := gm.matchingChannels[playerID]; exists {
		delete(gm.matchingChannels, playerID)
		close(existingCh)
	}
	gm.matchingChannels[playerID] = ch
	return nil
}

func (gm *GameManager) UnregisterMatchmakingChannel(playerID string, ch chan string) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	// A replaced channel belongs to a stale socket; the queue entry is the new one's.
	if current, ok := gm.matchingChannels[playerID]; ok && current == ch {
		delete(gm.matchingChannels, playerID)
		gm.queue.Remove(playerID)
	}
}

func mustJSON(v interface{}) string {
	bytes, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(bytes)
}

func (gm *GameManager) CreateGame(ctx context.Context, gameID string) (*model.Game, error) {
	gm.mu.Lock()
	if _, exists := gm.games[gameID]; exists {
		gm.mu.Unlock()
		return nil, fmt.Errorf("game %s already exists", gameID)
	}
	game := model.NewGame(gameID)
	gm.games[gameID] = game
	gm.mu.Unlock()

	gm.persist(ctx, game)
	return game, nil
}

func (gm *GameManager) GetGame(gameID string) (*model.Game, error) {
	gm.mu.RLock()
	defer gm.mu.RUnlock()

	game, exists := gm.games[gameID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	return game, nil
}

func (gm *GameManager) GameCount() int {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	return len(gm.games)
}

func (gm *GameManager) AddPlayerToGame(ctx context.Context, gameID string, playerID string) (model.PlayerColor, error) {
	game, err := gm.GetGame(gameID)
	if err != nil {
		return "", err
	}
	color, err := game.AddPlayer(playerID)
	if err != nil {
		return "", err
	}
	gm.persist(ctx, game)
	return color, nil
}

func (gm *GameManager) JoinMatchmaking(playerID string) error {
	return gm.queue.AddPlayer(model.Player{ID: playerID})
}

func (gm *GameManager) GetGameState(gameID string) (model.GameState, error) {
	game, err := gm.GetGame(gameID)
	if err != nil {
		return model.GameState{}, err
	}
	return game.GetState(), nil
}

func (gm *GameManager) CheckMove(gameID string, move model.SimpleMove) (bool, error) {
	game, err := gm.GetGame(gameID)
	if err != nil {
		return false, err
	}
	return game.CheckMove(move)
}

func (gm *GameManager) LegalMoves(gameID string, from model.Square) ([]model.Square, error) {
	game, err := gm.GetGame(gameID)
	if err != nil {
		return nil, err
	}
	return game.LegalMoves(from)
}

func (gm *GameManager) MakeMove(ctx context.Context, gameID string, playerID string, move model.SimpleMove) (model.Ply, error) {
	game, err := gm.GetGame(gameID)
	if err != nil {
		return model.Ply{}, err
	}
	ply, err := game.MakeMove(move)
	if err != nil {
		return model.Ply{}, err
	}
	log.Debugf("game %s: player %s played %s", gameID, playerID, ply.Notation)
	gm.persist(ctx, game)
	return ply, nil
}

func (gm *GameManager) ResetGame(ctx context.Context, gameID string) error {
	game, err := gm.GetGame(gameID)
	if err != nil {
		return err
	}
	game.Reset()
	gm.persist(ctx, game)
	return nil
}

func (gm *GameManager) RegisterConnection(gameID string, playerID string, conn model.StateWriter) error {
	game, err := gm.GetGame(gameID)
	if err != nil {
		return err
	}
	return game.RegisterConnection(playerID, conn)
}

func (gm *GameManager) UnregisterConnection(gameID string, playerID string) {
	game, err := gm.GetGame(gameID)
	if err != nil {
		return
	}
	game.UnregisterConnection(playerID)
}

// persist failures are logged: the in-memory session stays authoritative.
func (gm *GameManager) persist(ctx context.Context, game *model.Game) {
	if gm.persister == nil {
		return
	}
	if err := gm.persister.Save(ctx, game.Snapshot()); err != nil {
		log.Errorf("persist game %s: %v", game.ID, err)
	}
}
