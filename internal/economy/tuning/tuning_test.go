package tuning

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rsned/idle-economy-server/internal/economy/market"
	"github.com/rsned/idle-economy-server/internal/economy/profit"
)

func writeTuning(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.yaml")} {
		got, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%q): %v", path, err)
		}
		if got.ProfitSettings() != profit.DefaultSettings() {
			t.Errorf("Load(%q) settings = %+v", path, got.ProfitSettings())
		}
		if got.Mode() != market.Hybrid {
			t.Errorf("Load(%q) mode = %s", path, got.Mode())
		}
	}
}

func TestLoad_Overrides(t *testing.T) {
	path := writeTuning(t, `
pricing_mode: Conservative
market_tax_rate: 0.05
drink_duration_seconds: 600
reward_tables:
  max_depth: 4
`)
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Mode() != market.Conservative {
		t.Errorf("mode = %s", got.Mode())
	}
	s := got.ProfitSettings()
	if s.MarketTaxRate != 0.05 || s.DrinkDuration != 10*time.Minute || s.HouseRoomEfficiencyPerLevel != 0.015 {
		t.Errorf("settings = %+v", s)
	}
	opts := got.ValuationOptions()
	if opts.MaxDepth != 4 || opts.CacheSize != 1024 {
		t.Errorf("valuation options = %+v", opts)
	}
}

func TestLoad_Invalid(t *testing.T) {
	for name, body := range map[string]string{
		"bad yaml":   "pricing_mode: [",
		"bad mode":   "pricing_mode: greedy",
		"tax":        "market_tax_rate: 1.5",
		"drink time": "drink_duration_seconds: 0",
	} {
		if _, err := Load(writeTuning(t, body)); err == nil {
			t.Errorf("%s: Load succeeded", name)
		}
	}
}
