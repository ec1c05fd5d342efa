package ws

import (
	"encoding/json"
)

// MessageType represents the different kinds of messages our system can handle
type MessageType string

const (
	MessageTypeMove        MessageType = "move"
	MessageTypeCheck       MessageType = "check"
	MessageTypeCheckResult MessageType = "checkResult"
	MessageTypeLegalMoves  MessageType = "legalMoves"
	MessageTypeGameState   MessageType = "gameState"
	MessageTypeMatchFound  MessageType = "matchFound"
	MessageTypeError       MessageType = "error"
)

// Message represents a WebSocket message in our system
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewMessage marshals payload into a Message of the given type.
func NewMessage(t MessageType, payload interface{}) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Payload: raw}, nil
}

type ErrorPayload struct {
	Error string `json:"error"`
}
