// Package config loads server settings from command-line flags, falling back to
// CHESS_* environment variables and then to built-in defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Addr                string
	AllowOrigins        string
	DBPath              string
	LogLevel            log.Level
	MatchmakingInterval time.Duration
}

const (
	envAddr          = "CHESS_ADDR"
	envAllowOrigins  = "CHESS_ALLOW_ORIGINS"
	envDB            = "CHESS_DB"
	envLogLevel      = "CHESS_LOG_LEVEL"
	envMatchInterval = "CHESS_MATCH_INTERVAL"
)

func Default() Config {
	return Config{
		Addr:                ":3000",
		AllowOrigins:        "http://localhost:5173",
		DBPath:              "chess.db",
		LogLevel:            log.LevelInfo,
		MatchmakingInterval: time.Second,
	}
}

// Load parses args (without the program name). getenv is usually os.Getenv.
func Load(args []string, getenv func(string) string) (Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	addr := fs.String("addr", envOr(getenv, envAddr, cfg.Addr), "listen address")
	origins := fs.String("allow-origins", envOr(getenv, envAllowOrigins, cfg.AllowOrigins), "comma separated CORS origins")
	db := fs.String("db", envOr(getenv, envDB, cfg.DBPath), "sqlite database path (empty keeps sessions in memory)")
	level := fs.String("log-level", envOr(getenv, envLogLevel, "info"), "trace, debug, info, warn or error")
	interval := fs.String("match-interval", envOr(getenv, envMatchInterval, cfg.MatchmakingInterval.String()), "matchmaking poll interval")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	lvl, err := parseLevel(*level)
	if err != nil {
		return Config{}, err
	}
	d, err := time.ParseDuration(*interval)
	if err != nil {
		return Config{}, fmt.Errorf("%w: match interval: %v", ErrInvalidConfig, err)
	}
	if d <= 0 {
		return Config{}, fmt.Errorf("%w: match interval must be positive, got %s", ErrInvalidConfig, d)
	}
	if strings.TrimSpace(*addr) == "" {
		return Config{}, fmt.Errorf("%w: empty listen address", ErrInvalidConfig)
	}

	cfg.Addr = *addr
	cfg.AllowOrigins = *origins
	cfg.DBPath = *db
	cfg.LogLevel = lvl
	cfg.MatchmakingInterval = d
	return cfg, nil
}

func envOr(getenv func(string) string, key, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLevel(s string) (log.Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "info":
		return log.LevelInfo, nil
	case "warn":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	}
	return 0, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, s)
}
