package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbeisheim/dragchess-backend/internal/config"
	"github.com/benbeisheim/dragchess-backend/internal/controller"
	"github.com/benbeisheim/dragchess-backend/internal/service"
	"github.com/benbeisheim/dragchess-backend/internal/store"
	"github.com/gofiber/fiber/v2/log"
)

func main() {
	if err := run(os.Args[1:], os.Getenv); err != nil {
		log.Fatal(err)
	}
}

// run returns instead of exiting so deferred cleanup, including closing the
// store, happens on every path.
func run(args []string, getenv func(string) string) error {
	cfg, err := config.Load(args, getenv)
	if err != nil {
		return err
	}
	log.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var persister service.Persister
	if cfg.DBPath != "" {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()
		persister = st
	}

	gameManager := service.NewGameManager(persister)
	restored, err := gameManager.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if restored > 0 {
		log.Infof("restored %d sessions from %s", restored, cfg.DBPath)
	}
	go gameManager.Run(ctx, cfg.MatchmakingInterval)

	gameService := service.NewGameService(gameManager)
	app := controller.NewApp(gameService, cfg.AllowOrigins)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Errorf("shutdown: %v", err)
		}
	}()

	log.Infof("listening on %s", cfg.Addr)
	if err := app.Listen(cfg.Addr); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}
