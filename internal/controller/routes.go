package controller

import (
	"strings"

	"github.com/benbeisheim/dragchess-backend/internal/middleware"
	"github.com/benbeisheim/dragchess-backend/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
)

// NewApp builds the fiber application with every REST and socket route.
func NewApp(gameService *service.GameService, allowOrigins string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "dragchess",
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, X-Player-ID",
		AllowMethods:     "GET, POST, OPTIONS",
		AllowCredentials: !strings.Contains(allowOrigins, "*"),
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	gameController := NewGameController(gameService)
	wsController := NewWebSocketController(gameService)

	wsRoutes := app.Group("/ws", middleware.EnsurePlayerID(), middleware.WebSocketUpgrade())
	wsRoutes.Get("/game/:gameId", websocket.New(wsController.HandleConnection, websocket.Config{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		Origins:         splitOrigins(allowOrigins),
	}))
	wsRoutes.Get("/matchmaking", websocket.New(wsController.HandleMatchmaking, websocket.Config{
		Origins: splitOrigins(allowOrigins),
	}))

	api := app.Group("/api", middleware.EnsurePlayerID())
	gameController.Register(api.Group("/game"))

	return app
}
