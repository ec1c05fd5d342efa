package controller

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/benbeisheim/dragchess-backend/internal/model"
	"github.com/benbeisheim/dragchess-backend/internal/service"
	"github.com/benbeisheim/dragchess-backend/internal/ws"
	"github.com/google/go-cmp/cmp"
)

type recordingConn struct {
	msgs []ws.Message
}

func (rc *recordingConn) WriteJSON(v interface{}) error {
	rc.msgs = append(rc.msgs, v.(ws.Message))
	return nil
}

func TestWebSocketDispatch(t *testing.T) {
	knight := model.Piece{Kind: model.Knight, Color: model.White}

	tests := []struct {
		name      string
		frame     string
		wantType  ws.MessageType
		check     func(t *testing.T, payload json.RawMessage)
		wantBoard func() *model.Board
	}{
		{
			name:     "check legal",
			frame:    `{"type":"check","payload":{"from":{"row":7,"col":1},"to":{"row":5,"col":2}}}`,
			wantType: ws.MessageTypeCheckResult,
			check: func(t *testing.T, payload json.RawMessage) {
				var got checkResultPayload
				if err := json.Unmarshal(payload, &got); err != nil {
					t.Fatalf("decode: %v", err)
				}
				want := checkResultPayload{Move: model.SimpleMove{From: model.Sq(7, 1), To: model.Sq(5, 2)}, Legal: true}
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("checkResult mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name:     "check illegal",
			frame:    `{"type":"check","payload":{"from":{"row":7,"col":1},"to":{"row":6,"col":1}}}`,
			wantType: ws.MessageTypeCheckResult,
			check: func(t *testing.T, payload json.RawMessage) {
				var got checkResultPayload
				if err := json.Unmarshal(payload, &got); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if got.Legal {
					t.Error("knight b1-b2 reported legal")
				}
			},
		},
		{
			name:     "legal moves",
			frame:    `{"type":"legalMoves","payload":{"row":7,"col":1}}`,
			wantType: ws.MessageTypeLegalMoves,
			check: func(t *testing.T, payload json.RawMessage) {
				var got legalMovesPayload
				if err := json.Unmarshal(payload, &got); err != nil {
					t.Fatalf("decode: %v", err)
				}
				want := legalMovesPayload{
					From:         model.Sq(7, 1),
					Destinations: []model.Square{model.Sq(5, 0), model.Sq(5, 2), model.Sq(6, 3)},
				}
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("legalMoves mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name:  "move applies",
			frame: `{"type":"move","payload":{"from":{"row":7,"col":1},"to":{"row":5,"col":2}}}`,
			wantBoard: func() *model.Board {
				b := model.NewStandardBoard()
				b.ApplyMove(model.Sq(7, 1), model.Sq(5, 2))
				return b
			},
		},
		{
			name:     "illegal move",
			frame:    `{"type":"move","payload":{"from":{"row":7,"col":1},"to":{"row":6,"col":1}}}`,
			wantType: ws.MessageTypeError,
			check:    errorContains(model.ErrIllegalMove.Error()),
		},
		{
			name:     "move from empty square",
			frame:    `{"type":"move","payload":{"from":{"row":4,"col":4},"to":{"row":3,"col":4}}}`,
			wantType: ws.MessageTypeError,
			check:    errorContains(model.ErrNoPieceAtSource.Error()),
		},
		{
			name:     "legal moves off board",
			frame:    `{"type":"legalMoves","payload":{"row":8,"col":0}}`,
			wantType: ws.MessageTypeError,
			check:    errorContains(model.ErrOutOfBounds.Error()),
		},
		{
			name:     "unknown type",
			frame:    `{"type":"resign","payload":{}}`,
			wantType: ws.MessageTypeError,
			check:    errorContains("unknown message type: resign"),
		},
		{
			name:     "malformed frame",
			frame:    `{"type":`,
			wantType: ws.MessageTypeError,
			check:    errorContains("parse message"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gs := service.NewGameService(service.NewGameManager(nil))
			gameID, err := gs.CreateGame(context.Background())
			if err != nil {
				t.Fatalf("CreateGame: %v", err)
			}
			wsc := NewWebSocketController(gs)
			conn := &recordingConn{}

			wsc.dispatch(conn, gameID, "alice", []byte(tt.frame))

			if tt.wantType == "" {
				if len(conn.msgs) != 0 {
					t.Errorf("got %d replies; want none", len(conn.msgs))
				}
			} else {
				if len(conn.msgs) != 1 {
					t.Fatalf("got %d replies; want 1", len(conn.msgs))
				}
				if conn.msgs[0].Type != tt.wantType {
					t.Fatalf("reply type = %q (%s); want %q", conn.msgs[0].Type, conn.msgs[0].Payload, tt.wantType)
				}
				tt.check(t, conn.msgs[0].Payload)
			}

			state, err := gs.GetGameState(gameID)
			if err != nil {
				t.Fatalf("GetGameState: %v", err)
			}
			want := model.NewStandardBoard()
			if tt.wantBoard != nil {
				want = tt.wantBoard()
				if p := state.Board[5][2]; p == nil || *p != knight {
					t.Errorf("board[5][2] = %v; want white knight", p)
				}
			}
			if diff := cmp.Diff(want.Rows(), state.Board); diff != "" {
				t.Errorf("board mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWebSocketDispatchUnknownGame(t *testing.T) {
	wsc := NewWebSocketController(service.NewGameService(service.NewGameManager(nil)))
	conn := &recordingConn{}

	wsc.dispatch(conn, "missing", "alice", []byte(`{"type":"check","payload":{"from":{"row":7,"col":1},"to":{"row":5,"col":2}}}`))

	if len(conn.msgs) != 1 || conn.msgs[0].Type != ws.MessageTypeError {
		t.Fatalf("replies = %+v; want one error", conn.msgs)
	}
	errorContains(service.ErrGameNotFound.Error())(t, conn.msgs[0].Payload)
}

func errorContains(want string) func(t *testing.T, payload json.RawMessage) {
	return func(t *testing.T, payload json.RawMessage) {
		t.Helper()
		var got ws.ErrorPayload
		if err := json.Unmarshal(payload, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !strings.Contains(got.Error, want) {
			t.Errorf("error = %q; want it to contain %q", got.Error, want)
		}
	}
}
