package controller

import (
	"fmt"

	"github.com/benbeisheim/dragchess-backend/internal/model"
	"github.com/benbeisheim/dragchess-backend/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

type GameController struct {
	gameService *service.GameService
}

func NewGameController(gameService *service.GameService) *GameController {
	return &GameController{gameService: gameService}
}

// Register mounts the game routes on r.
func (gc *GameController) Register(r fiber.Router) {
	r.Post("/matchmaking/join", gc.JoinMatchmaking)
	r.Post("/create", gc.CreateGame)
	r.Post("/join/:gameId", gc.JoinGame)
	r.Get("/:gameId", gc.GetGameState)
	r.Get("/:gameId/legal", gc.LegalMoves)
	r.Get("/:gameId/board", gc.RenderBoard)
	r.Post("/:gameId/check", gc.CheckMove)
	r.Post("/:gameId/move", gc.MakeMove)
	r.Post("/:gameId/reset", gc.ResetGame)
}

func playerID(c *fiber.Ctx) string {
	id, _ := c.Locals("playerID").(string)
	return id
}

func (gc *GameController) CreateGame(c *fiber.Ctx) error {
	gameID, err := gc.gameService.CreateGame(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	log.Infof("player %s created game %s", playerID(c), gameID)
	return c.JSON(fiber.Map{
		"message": "Game created",
		"game_id": gameID,
	})
}

func (gc *GameController) JoinGame(c *fiber.Ctx) error {
	gameID := c.Params("gameId")

	color, err := gc.gameService.JoinGame(c.UserContext(), gameID, playerID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Game joined",
		"color":   color,
	})
}

func (gc *GameController) GetGameState(c *fiber.Ctx) error {
	gameState, err := gc.gameService.GetGameState(c.Params("gameId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(gameState)
}

func (gc *GameController) JoinMatchmaking(c *fiber.Ctx) error {
	if err := gc.gameService.JoinMatchmaking(playerID(c)); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"status": "queued",
	})
}

func (gc *GameController) LegalMoves(c *fiber.Ctx) error {
	from := model.Sq(c.QueryInt("row", -1), c.QueryInt("col", -1))

	destinations, err := gc.gameService.LegalMoves(c.Params("gameId"), from)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"from":         from,
		"destinations": destinations,
	})
}

func parseMove(c *fiber.Ctx) (model.SimpleMove, error) {
	var move model.SimpleMove
	if err := c.BodyParser(&move); err != nil {
		return model.SimpleMove{}, fmt.Errorf("%w: %v", errBadBody, err)
	}
	return move, nil
}

// CheckMove is the legality query; the board is not modified.
func (gc *GameController) CheckMove(c *fiber.Ctx) error {
	move, err := parseMove(c)
	if err != nil {
		return respondError(c, err)
	}

	legal, err := gc.gameService.CheckMove(c.Params("gameId"), move)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"legal": legal,
	})
}

// MakeMove is the command: the move is applied only if it is legal.
func (gc *GameController) MakeMove(c *fiber.Ctx) error {
	move, err := parseMove(c)
	if err != nil {
		return respondError(c, err)
	}

	gameID := c.Params("gameId")
	if _, err := gc.gameService.HandleMove(c.UserContext(), gameID, playerID(c), move); err != nil {
		return respondError(c, err)
	}

	gameState, err := gc.gameService.GetGameState(gameID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(gameState)
}

func (gc *GameController) ResetGame(c *fiber.Ctx) error {
	gameID := c.Params("gameId")
	if err := gc.gameService.ResetGame(c.UserContext(), gameID); err != nil {
		return respondError(c, err)
	}

	gameState, err := gc.gameService.GetGameState(gameID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(gameState)
}

func (gc *GameController) RenderBoard(c *fiber.Ctx) error {
	text, err := gc.gameService.RenderBoard(c.Params("gameId"))
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(text)
}
