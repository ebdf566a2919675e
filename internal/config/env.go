package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Env is the process configuration read from environment variables.
type Env struct {
	DBPath        string        `env:"CONTENTGRAPH_DB_PATH"         envDefault:"contentgraph.db"`
	ConfigDir     string        `env:"CONTENTGRAPH_CONFIG_DIR"      envDefault:"config"`
	RedisAddr     string        `env:"CONTENTGRAPH_REDIS_ADDR"`
	EventCacheTTL time.Duration `env:"CONTENTGRAPH_EVENT_CACHE_TTL" envDefault:"5m"`
	MaxRetries    int           `env:"CONTENTGRAPH_MAX_RETRIES"     envDefault:"3"`
	LogLevel      string        `env:"CONTENTGRAPH_LOG_LEVEL"       envDefault:"info"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadEnv parses Env and validates it.
func LoadEnv() (Env, error) {
	var cfg Env
	if err := ParseEnv(&cfg); err != nil {
		return Env{}, err
	}
	if cfg.MaxRetries < 0 {
		return Env{}, fmt.Errorf("CONTENTGRAPH_MAX_RETRIES must not be negative, got %d", cfg.MaxRetries)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return Env{}, err
	}
	return cfg, nil
}

// SlogLevel returns the configured log level. Unknown levels fall back to Info.
func (e Env) SlogLevel() slog.Level {
	level, err := parseLevel(e.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
