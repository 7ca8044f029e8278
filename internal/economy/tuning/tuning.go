// Package tuning loads the economy tuning file.
package tuning

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rsned/idle-economy-server/internal/economy/market"
	"github.com/rsned/idle-economy-server/internal/economy/profit"
	"github.com/rsned/idle-economy-server/internal/economy/tasks"
	"github.com/rsned/idle-economy-server/internal/economy/valuation"
)

// Tuning holds the economy constants an operator may adjust.
type Tuning struct {
	PricingMode string `yaml:"pricing_mode"`

	MarketTaxRate               float64 `yaml:"market_tax_rate"`
	DrinkDurationSeconds        int     `yaml:"drink_duration_seconds"`
	HouseRoomEfficiencyPerLevel float64 `yaml:"house_room_efficiency_per_level"`

	RewardTables RewardTables `yaml:"reward_tables"`

	TaskTokenHrid string `yaml:"task_token_hrid"`
}

type RewardTables struct {
	MaxDepth  int `yaml:"max_depth"`
	CacheSize int `yaml:"cache_size"`
}

// Default returns the live game's values.
func Default() Tuning {
	s := profit.DefaultSettings()
	return Tuning{
		PricingMode:                 string(market.Hybrid),
		MarketTaxRate:               s.MarketTaxRate,
		DrinkDurationSeconds:        int(s.DrinkDuration / time.Second),
		HouseRoomEfficiencyPerLevel: s.HouseRoomEfficiencyPerLevel,
		RewardTables: RewardTables{
			MaxDepth:  valuation.DefaultMaxDepth,
			CacheSize: 1024,
		},
		TaskTokenHrid: tasks.DefaultTokenHrid,
	}
}

// Load reads path over the defaults. An empty path or a missing file yields
// the defaults.
func Load(path string) (Tuning, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Validate checks ranges.
func (t Tuning) Validate() error {
	if _, err := market.ParseMode(t.PricingMode); err != nil {
		return err
	}
	if t.MarketTaxRate < 0 || t.MarketTaxRate >= 1 {
		return fmt.Errorf("market_tax_rate %v out of [0,1)", t.MarketTaxRate)
	}
	if t.DrinkDurationSeconds <= 0 {
		return fmt.Errorf("drink_duration_seconds must be positive")
	}
	if t.HouseRoomEfficiencyPerLevel < 0 {
		return fmt.Errorf("house_room_efficiency_per_level must not be negative")
	}
	if t.RewardTables.MaxDepth < 0 || t.RewardTables.CacheSize < 0 {
		return fmt.Errorf("reward_tables values must not be negative")
	}
	return nil
}

// Mode is the parsed pricing mode.
func (t Tuning) Mode() market.Mode {
	m, err := market.ParseMode(t.PricingMode)
	if err != nil {
		return market.Hybrid
	}
	return m
}

// ProfitSettings converts to calculator settings.
func (t Tuning) ProfitSettings() profit.Settings {
	return profit.Settings{
		MarketTaxRate:               t.MarketTaxRate,
		DrinkDuration:               time.Duration(t.DrinkDurationSeconds) * time.Second,
		HouseRoomEfficiencyPerLevel: t.HouseRoomEfficiencyPerLevel,
	}
}

// ValuationOptions converts to evaluator options.
func (t Tuning) ValuationOptions() valuation.Options {
	return valuation.Options{
		MaxDepth:  t.RewardTables.MaxDepth,
		CacheSize: t.RewardTables.CacheSize,
	}
}
