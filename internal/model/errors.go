package model

import "errors"

var (
	ErrOutOfBounds      = errors.New("square out of bounds")
	ErrInvalidKind      = errors.New("invalid piece kind")
	ErrInvalidColor     = errors.New("invalid piece color")
	ErrInvalidBoard     = errors.New("invalid board layout")
	ErrNoPieceAtSource  = errors.New("no piece at source square")
	ErrIllegalMove      = errors.New("illegal move")
	ErrGameFull         = errors.New("game is full")
	ErrMissingPlayerID  = errors.New("player id is required")
	ErrAlreadyQueued    = errors.New("player already in queue")
	ErrAlreadyConnected = errors.New("connection already exists")
)
