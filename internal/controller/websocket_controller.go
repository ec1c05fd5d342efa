package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/benbeisheim/dragchess-backend/internal/model"
	"github.com/benbeisheim/dragchess-backend/internal/service"
	"github.com/benbeisheim/dragchess-backend/internal/ws"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/websocket/v2"
)

type WebSocketController struct {
	gameService *service.GameService
}

func NewWebSocketController(gameService *service.GameService) *WebSocketController {
	return &WebSocketController{
		gameService: gameService,
	}
}

// lockedConn serialises writes: state broadcasts and replies share one socket.
type lockedConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (lc *lockedConn) WriteJSON(v interface{}) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.conn.WriteJSON(v)
}

type legalMovesPayload struct {
	From         model.Square   `json:"from"`
	Destinations []model.Square `json:"destinations"`
}

type checkResultPayload struct {
	Move  model.SimpleMove `json:"move"`
	Legal bool             `json:"legal"`
}

// HandleConnection serves one observer of a game until the socket closes.
func (wsc *WebSocketController) HandleConnection(c *websocket.Conn) {
	gameID := c.Params("gameId")
	playerID, _ := c.Locals("playerID").(string)
	conn := &lockedConn{conn: c}

	if err := wsc.gameService.RegisterConnection(gameID, playerID, conn); err != nil {
		log.Warnf("game %s: rejecting connection for player %s: %v", gameID, playerID, err)
		reason := err.Error()
		if errors.Is(err, model.ErrAlreadyConnected) {
			reason = "Connection already exists"
		}
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
		c.Close()
		return
	}
	defer wsc.gameService.UnregisterConnection(gameID, playerID)

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			log.Debugf("game %s: read from player %s: %v", gameID, playerID, err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		wsc.dispatch(conn, gameID, playerID, message)
	}
}

// dispatch handles one text frame. Failures are reported to the sender as an
// error message and never close the socket.
func (wsc *WebSocketController) dispatch(conn model.StateWriter, gameID, playerID string, message []byte) {
	var msg ws.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		wsc.sendError(conn, fmt.Errorf("parse message: %w", err))
		return
	}
	if err := wsc.handleMessage(conn, gameID, playerID, msg); err != nil {
		log.Debugf("game %s: message from player %s: %v", gameID, playerID, err)
		wsc.sendError(conn, err)
	}
}

func (wsc *WebSocketController) handleMessage(conn model.StateWriter, gameID, playerID string, msg ws.Message) error {
	switch msg.Type {
	case ws.MessageTypeMove:
		var move model.SimpleMove
		if err := json.Unmarshal(msg.Payload, &move); err != nil {
			return err
		}
		// The new state reaches every observer through the game's broadcast.
		_, err := wsc.gameService.HandleMove(context.Background(), gameID, playerID, move)
		return err

	case ws.MessageTypeCheck:
		var move model.SimpleMove
		if err := json.Unmarshal(msg.Payload, &move); err != nil {
			return err
		}
		legal, err := wsc.gameService.CheckMove(gameID, move)
		if err != nil {
			return err
		}
		return wsc.send(conn, ws.MessageTypeCheckResult, checkResultPayload{Move: move, Legal: legal})

	case ws.MessageTypeLegalMoves:
		var from model.Square
		if err := json.Unmarshal(msg.Payload, &from); err != nil {
			return err
		}
		destinations, err := wsc.gameService.LegalMoves(gameID, from)
		if err != nil {
			return err
		}
		return wsc.send(conn, ws.MessageTypeLegalMoves, legalMovesPayload{From: from, Destinations: destinations})

	default:
		return fmt.Errorf("unknown message type: %s", msg.Type)
	}
}

// HandleMatchmaking queues the player and waits for a match or a disconnect.
func (wsc *WebSocketController) HandleMatchmaking(c *websocket.Conn) {
	playerID, _ := c.Locals("playerID").(string)
	conn := &lockedConn{conn: c}

	ch := make(chan string, 1)
	if err := wsc.gameService.RegisterMatchmakingChannel(playerID, ch); err != nil {
		wsc.sendError(conn, err)
		return
	}
	defer wsc.gameService.UnregisterMatchmakingChannel(playerID, ch)

	if err := wsc.gameService.JoinMatchmaking(playerID); err != nil && !errors.Is(err, model.ErrAlreadyQueued) {
		wsc.sendError(conn, err)
		return
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case event, ok := <-ch:
		if !ok {
			return
		}
		if err := conn.WriteJSON(ws.Message{Type: ws.MessageTypeMatchFound, Payload: json.RawMessage(event)}); err != nil {
			log.Warnf("matchmaking: notify player %s: %v", playerID, err)
		}
	case <-closed:
		log.Debugf("matchmaking: player %s left the queue", playerID)
	}
}

func (wsc *WebSocketController) send(conn model.StateWriter, t ws.MessageType, payload interface{}) error {
	msg, err := ws.NewMessage(t, payload)
	if err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

func (wsc *WebSocketController) sendError(conn model.StateWriter, err error) {
	if sendErr := wsc.send(conn, ws.MessageTypeError, ws.ErrorPayload{Error: err.Error()}); sendErr != nil {
		log.Warnf("send error message: %v", sendErr)
	}
}
