package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends accepted in STORAGE_BACKEND.
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type Config struct {
	Port             string        `env:"PORT"               envDefault:"8080"`
	Environment      string        `env:"ENVIRONMENT"        envDefault:"development"`
	RawLogLevel      string        `env:"LOG_LEVEL"          envDefault:"info"`
	StorageBackend   string        `env:"STORAGE_BACKEND"    envDefault:"redis"`
	RedisURL         string        `env:"REDIS_URL"          envDefault:"localhost:6379"`
	SQLitePath       string        `env:"SQLITE_PATH"        envDefault:"./data/affinity.sqlite"`
	DataDir          string        `env:"DATA_DIR"           envDefault:"./data"`
	ProfileTTL       time.Duration `env:"PROFILE_TTL"        envDefault:"0s"`
	LedgerFailClosed bool          `env:"LEDGER_FAIL_CLOSED" envDefault:"false"`
	OTelEndpoint     string        `env:"OTEL_ENDPOINT"`

	LogLevel slog.Level
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.RawLogLevel)

	switch cfg.StorageBackend {
	case BackendRedis, BackendSQLite, BackendMemory:
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
	if cfg.ProfileTTL < 0 {
		return nil, fmt.Errorf("PROFILE_TTL must not be negative")
	}
	return &cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
