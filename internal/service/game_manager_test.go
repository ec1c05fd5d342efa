package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/benbeisheim/dragchess-backend/internal/model"
	"github.com/google/go-cmp/cmp"
)

type memoryPersister struct {
	mu    sync.Mutex
	snaps map[string]model.Snapshot
	saves int
	err   error
}

func newMemoryPersister() *memoryPersister {
	return &memoryPersister{snaps: make(map[string]model.Snapshot)}
}

func (p *memoryPersister) Save(_ context.Context, snap model.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.snaps[snap.ID] = snap
	p.saves++
	return nil
}

func (p *memoryPersister) List(context.Context) ([]model.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var snaps []model.Snapshot
	for _, snap := range p.snaps {
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
	return snaps, nil
}

func TestGameManagerMoveLifecycle(t *testing.T) {
	ctx := context.Background()
	persister := newMemoryPersister()
	gm := NewGameManager(persister)

	if _, err := gm.CreateGame(ctx, "g1"); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if _, err := gm.CreateGame(ctx, "g1"); err == nil {
		t.Error("duplicate CreateGame succeeded")
	}

	move := model.SimpleMove{From: model.Sq(7, 6), To: model.Sq(5, 7)}
	legal, err := gm.CheckMove("g1", move)
	if err != nil || !legal {
		t.Fatalf("CheckMove = %v, %v; want true, nil", legal, err)
	}
	ply, err := gm.MakeMove(ctx, "g1", "alice", move)
	if err != nil {
		t.Fatalf("MakeMove: %v", err)
	}
	if ply.Notation != "Ng1-h3" {
		t.Errorf("notation = %q; want Ng1-h3", ply.Notation)
	}

	if _, err := gm.MakeMove(ctx, "g1", "alice", model.SimpleMove{From: model.Sq(7, 0), To: model.Sq(6, 1)}); !errors.Is(err, model.ErrIllegalMove) {
		t.Errorf("illegal MakeMove error = %v; want ErrIllegalMove", err)
	}

	snap, ok := persister.snaps["g1"]
	if !ok {
		t.Fatal("game was not persisted")
	}
	if diff := cmp.Diff([]model.Ply{ply}, snap.History); diff != "" {
		t.Errorf("persisted history mismatch (-want +got):\n%s", diff)
	}
}

func TestGameManagerUnknownGame(t *testing.T) {
	ctx := context.Background()
	gm := NewGameManager(nil)

	checks := map[string]error{}
	_, checks["GetGameState"] = gm.GetGameState("missing")
	_, checks["CheckMove"] = gm.CheckMove("missing", model.SimpleMove{})
	_, checks["LegalMoves"] = gm.LegalMoves("missing", model.Sq(0, 0))
	_, checks["MakeMove"] = gm.MakeMove(ctx, "missing", "alice", model.SimpleMove{})
	_, checks["AddPlayerToGame"] = gm.AddPlayerToGame(ctx, "missing", "alice")
	checks["ResetGame"] = gm.ResetGame(ctx, "missing")
	checks["RegisterConnection"] = gm.RegisterConnection("missing", "alice", nil)

	for name, err := range checks {
		if !errors.Is(err, ErrGameNotFound) {
			t.Errorf("%s error = %v; want ErrGameNotFound", name, err)
		}
	}
}

func TestGameManagerRestore(t *testing.T) {
	ctx := context.Background()
	persister := newMemoryPersister()

	first := NewGameManager(persister)
	if _, err := first.CreateGame(ctx, "g1"); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if _, err := first.AddPlayerToGame(ctx, "g1", "alice"); err != nil {
		t.Fatalf("AddPlayerToGame: %v", err)
	}
	if _, err := first.MakeMove(ctx, "g1", "alice", model.SimpleMove{From: model.Sq(6, 0), To: model.Sq(7, 0)}); err != nil {
		t.Fatalf("MakeMove: %v", err)
	}
	want, err := first.GetGameState("g1")
	if err != nil {
		t.Fatalf("GetGameState: %v", err)
	}

	second := NewGameManager(persister)
	n, err := second.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if n != 1 {
		t.Errorf("restored %d sessions; want 1", n)
	}
	got, err := second.GetGameState("g1")
	if err != nil {
		t.Fatalf("GetGameState after restore: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("restored state mismatch (-want +got):\n%s", diff)
	}
}

func TestGameManagerPersistFailureKeepsMove(t *testing.T) {
	ctx := context.Background()
	persister := newMemoryPersister()
	gm := NewGameManager(persister)
	if _, err := gm.CreateGame(ctx, "g1"); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	persister.err = errors.New("disk full")
	if _, err := gm.MakeMove(ctx, "g1", "alice", model.SimpleMove{From: model.Sq(7, 1), To: model.Sq(5, 0)}); err != nil {
		t.Fatalf("MakeMove: %v", err)
	}
	state, err := gm.GetGameState("g1")
	if err != nil {
		t.Fatalf("GetGameState: %v", err)
	}
	if len(state.MoveHistory) != 1 {
		t.Errorf("history length = %d; want 1", len(state.MoveHistory))
	}
}

func TestMatchmakingPairsPlayers(t *testing.T) {
	ctx := context.Background()
	gm := NewGameManager(nil)

	chans := map[string]chan string{
		"alice": make(chan string, 1),
		"bob":   make(chan string, 1),
	}
	for _, id := range []string{"alice", "bob"} {
		if err := gm.RegisterMatchmakingChannel(id, chans[id]); err != nil {
			t.Fatalf("RegisterMatchmakingChannel(%s): %v", id, err)
		}
		if err := gm.JoinMatchmaking(id); err != nil {
			t.Fatalf("JoinMatchmaking(%s): %v", id, err)
		}
	}
	if err := gm.JoinMatchmaking("alice"); !errors.Is(err, model.ErrAlreadyQueued) {
		t.Errorf("duplicate JoinMatchmaking error = %v; want ErrAlreadyQueued", err)
	}

	if !gm.processMatchmaking(ctx) {
		t.Fatal("processMatchmaking made no pair")
	}
	if gm.processMatchmaking(ctx) {
		t.Fatal("processMatchmaking paired an empty queue")
	}

	events := map[string]model.MatchFoundEvent{}
	for id, ch := range chans {
		raw, ok := <-ch
		if !ok {
			t.Fatalf("channel for %s closed without an event", id)
		}
		var event model.MatchFoundEvent
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		events[id] = event
		if _, open := <-ch; open {
			t.Errorf("channel for %s not closed after delivery", id)
		}
	}

	if events["alice"].GameID != events["bob"].GameID {
		t.Errorf("players placed in different games: %+v", events)
	}
	if events["alice"].Color != model.PlayerColorWhite || events["bob"].Color != model.PlayerColorBlack {
		t.Errorf("colors = %s/%s; want white/black", events["alice"].Color, events["bob"].Color)
	}
	if _, err := gm.GetGame(events["alice"].GameID); err != nil {
		t.Errorf("matched game not registered: %v", err)
	}
}

func TestRegisterMatchmakingChannelReplacesOld(t *testing.T) {
	gm := NewGameManager(nil)
	old := make(chan string, 1)
	if err := gm.RegisterMatchmakingChannel("alice", old); err != nil {
		t.Fatalf("RegisterMatchmakingChannel: %v", err)
	}
	if err := gm.JoinMatchmaking("alice"); err != nil {
		t.Fatalf("JoinMatchmaking: %v", err)
	}
	current := make(chan string, 1)
	if err := gm.RegisterMatchmakingChannel("alice", current); err != nil {
		t.Fatalf("RegisterMatchmakingChannel: %v", err)
	}
	if err := gm.JoinMatchmaking("alice"); !errors.Is(err, model.ErrAlreadyQueued) {
		t.Fatalf("JoinMatchmaking again error = %v; want ErrAlreadyQueued", err)
	}
	if _, open := <-old; open {
		t.Error("replaced channel was not closed")
	}

	// Unregistering with the stale channel must not drop the new one.
	gm.UnregisterMatchmakingChannel("alice", old)
	gm.mu.RLock()
	_, stillRegistered := gm.matchingChannels["alice"]
	gm.mu.RUnlock()
	if !stillRegistered {
		t.Error("current channel removed by stale unregister")
	}
	if n := gm.queue.Size(); n != 1 {
		t.Errorf("queue size after stale unregister = %d; want 1", n)
	}

	gm.UnregisterMatchmakingChannel("alice", current)
	if n := gm.queue.Size(); n != 0 {
		t.Errorf("queue size after unregister = %d; want 0", n)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	gm := NewGameManager(nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		gm.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	for _, id := range []string{"alice", "bob"} {
		if err := gm.JoinMatchmaking(id); err != nil {
			t.Fatalf("JoinMatchmaking(%s): %v", id, err)
		}
	}
	deadline := time.Now().Add(2 * time.Second)
	for gm.GameCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("Run did not pair queued players")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
