// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Config is the economy server's process configuration. Command-line flags
// override it.
type Config struct {
	DBPath        string        `env:"IDLE_DB_PATH"        envDefault:"data/economy/economy.db"`
	FeedURL       string        `env:"IDLE_FEED_URL"`
	MarketURL     string        `env:"IDLE_MARKET_URL"`
	MarketRefresh time.Duration `env:"IDLE_MARKET_REFRESH" envDefault:"30m"`
	MarketKeep    int           `env:"IDLE_MARKET_KEEP"    envDefault:"48"`
	TuningPath    string        `env:"IDLE_TUNING_PATH"`
	JournalDir    string        `env:"IDLE_JOURNAL_DIR"`
	Verbose       bool          `env:"IDLE_VERBOSE"`
}

// Load parses Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.MarketRefresh <= 0 {
		return Config{}, fmt.Errorf("parse env: IDLE_MARKET_REFRESH must be positive, got %s", cfg.MarketRefresh)
	}
	return cfg, nil
}
