package controller

import (
	"errors"

	"github.com/benbeisheim/dragchess-backend/internal/model"
	"github.com/benbeisheim/dragchess-backend/internal/service"
	"github.com/gofiber/fiber/v2"
)

var errBadBody = errors.New("invalid request body")

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadBody):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrGameNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, model.ErrOutOfBounds), errors.Is(err, model.ErrMissingPlayerID):
		return fiber.StatusBadRequest
	case errors.Is(err, model.ErrGameFull), errors.Is(err, model.ErrAlreadyQueued):
		return fiber.StatusConflict
	case errors.Is(err, model.ErrIllegalMove), errors.Is(err, model.ErrNoPieceAtSource):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}
