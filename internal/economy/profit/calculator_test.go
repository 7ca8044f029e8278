package profit

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/rsned/idle-economy-server/internal/economy/gamedata"
	"github.com/rsned/idle-economy-server/internal/economy/market"
	"github.com/rsned/idle-economy-server/internal/economy/protocol"
	"github.com/rsned/idle-economy-server/internal/economy/state"
	"github.com/rsned/idle-economy-server/internal/economy/valuation"
	"github.com/rsned/idle-economy-server/pkg/economy"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("..", "testdata", name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return b
}

// bareState is a character with no levels, rooms, buffs or gear.
type bareState struct{ tables *gamedata.Tables }

func (s bareState) Tables() *gamedata.Tables { return s.tables }
func (bareState) SkillLevel(string) int { return 0 }
func (bareState) HouseRoomLevel(string) int { return 0 }
func (bareState) CommunityBuffLevel(string) int { return 0 }
func (bareState) DrinkSlots(string) []string { return nil }
func (bareState) Equipment() []protocol.CharacterItem { return nil }

type env struct {
	tables *gamedata.Tables
	pricer *market.Pricer
	calc   *Calculator
}

func newEnv(t *testing.T, mode market.Mode) env {
	t.Helper()
	tables, err := gamedata.Decode(readFixture(t, "client_data.json"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	snap, err := market.ParseMarketJSON(readFixture(t, "marketplace.json"))
	if err != nil {
		t.Fatalf("parse market: %v", err)
	}
	book := market.NewBook(nil)
	book.Load(snap)
	pricer := market.NewPricer(book, mode)

	cs := bareState{tables: tables}
	eval, err := valuation.New(cs, pricer, valuation.Options{})
	if err != nil {
		t.Fatalf("evaluator: %v", err)
	}
	return env{
		tables: tables,
		pricer: pricer,
		calc:   NewCalculator(cs, pricer, eval, DefaultSettings(), nil),
	}
}

func (e env) action(t *testing.T, hrid string) *gamedata.ActionDetail {
	t.Helper()
	a, ok := e.tables.Action(hrid)
	if !ok {
		t.Fatalf("missing action %s", hrid)
	}
	return a
}

func near(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestGathering_NoModifiers(t *testing.T) {
	e := newEnv(t, market.Hybrid)
	b, err := e.calc.Calculate("/actions/milking/cow")
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	near(t, "actions/hour", b.ActionsPerHour, 600)
	near(t, "base", b.Revenue.Base, 24000)
	near(t, "essences", b.Revenue.Essences, 3600)
	near(t, "rare", b.Revenue.RareDrops, 1170)
	near(t, "revenue", b.Revenue.Total, 28770)
	near(t, "tax", b.Cost.MarketTax, 575.4)
	near(t, "profit", b.ProfitPerHour, 28194.6)
	near(t, "milk/hour", b.RawOutputsPerHour["/items/milk"], 1200)
	if b.HasMissingPrices {
		t.Errorf("unexpected missing prices: %v", b.MissingPrices)
	}
}

func TestGathering_SpeedAndEfficiencyAreIndependent(t *testing.T) {
	e := newEnv(t, market.Hybrid)
	b, err := e.calc.CalculateWithModifiers(e.action(t, "/actions/milking/cow"), Modifiers{Speed: 0.5, Efficiency: 0.2})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	near(t, "actions/hour", b.ActionsPerHour, 900)
	near(t, "completions", b.CompletionsPerHour(), 1080)
	near(t, "base", b.Revenue.Base, 43200)
}

func TestGathering_ProcessingAndQuantity(t *testing.T) {
	e := newEnv(t, market.Hybrid)
	cow := e.action(t, "/actions/milking/cow")

	b, err := e.calc.CalculateWithModifiers(cow, Modifiers{Processing: 0.15})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	near(t, "processing", b.Revenue.Processing, 1800)

	b, err = e.calc.CalculateWithModifiers(cow, Modifiers{GatheringQuantity: 0.2})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	near(t, "bonus", b.Revenue.Bonus, 4800)
	near(t, "milk/hour", b.RawOutputsPerHour["/items/milk"], 1440)
}

func TestGathering_DrinkCost(t *testing.T) {
	e := newEnv(t, market.Hybrid)
	b, err := e.calc.CalculateWithModifiers(e.action(t, "/actions/milking/cow"), Modifiers{Drinks: []string{"/items/efficiency_tea"}})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	near(t, "consumables", b.Cost.Consumables, 3600)

	b, err = e.calc.CalculateWithModifiers(e.action(t, "/actions/milking/cow"), Modifiers{
		Drinks:             []string{"/items/efficiency_tea"},
		DrinkConcentration: 0.1,
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	near(t, "consumables with concentration", b.Cost.Consumables, 3960)
}

func TestProduction(t *testing.T) {
	e := newEnv(t, market.Hybrid)
	cheese := e.action(t, "/actions/cheesesmithing/cheese")

	tests := []struct {
		name      string
		mods      Modifiers
		base      float64
		bonus     float64
		materials float64
	}{
		{"plain", Modifiers{}, 21600, 0, 14400},
		{"gourmet", Modifiers{Gourmet: 0.12}, 21600, 2592, 14400},
		{"artisan", Modifiers{Artisan: 0.1}, 21600, 0, 12960},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b, err := e.calc.CalculateWithModifiers(cheese, tc.mods)
			if err != nil {
				t.Fatalf("Calculate: %v", err)
			}
			near(t, "actions/hour", b.ActionsPerHour, 360)
			near(t, "base", b.Revenue.Base, tc.base)
			near(t, "bonus", b.Revenue.Bonus, tc.bonus)
			near(t, "materials", b.Cost.Materials, tc.materials)
			near(t, "tax", b.Cost.MarketTax, 0.02*(tc.base+tc.bonus))
			near(t, "profit", b.ProfitPerHour, b.Revenue.Total-b.Cost.Total)
		})
	}

	b, _ := e.calc.CalculateWithModifiers(cheese, Modifiers{})
	near(t, "plain profit", b.ProfitPerHour, 6768)
}

func TestProduction_PerActionAndRun(t *testing.T) {
	e := newEnv(t, market.Hybrid)
	b, err := e.calc.CalculateWithModifiers(e.action(t, "/actions/cheesesmithing/cheese"), Modifiers{Efficiency: 0.25})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	// Efficiency scales revenue and cost alike, so per-completion profit
	// matches the unmodified action.
	near(t, "per action", b.PerActionProfit(), 6768.0/360)

	run := b.ForActions(450)
	near(t, "hours", run.Hours, 1)
	near(t, "run profit", run.Profit, b.ProfitPerHour)
}

func TestZeroActionsPerHour(t *testing.T) {
	e := newEnv(t, market.Hybrid)
	stalled := &gamedata.ActionDetail{
		Hrid:      "/actions/milking/stalled",
		Function:  gamedata.FunctionGathering,
		DropTable: []gamedata.DropEntry{{ItemHrid: "/items/milk", DropRate: 1, MinCount: 1, MaxCount: 1}},
	}
	b, err := e.calc.CalculateWithModifiers(stalled, Modifiers{Speed: 1})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if b.ProfitPerHour != 0 || b.Revenue.Total != 0 || b.Cost.Total != 0 {
		t.Errorf("got %+v, want all zero", b)
	}
	if math.IsNaN(b.PerActionProfit()) || math.IsInf(b.PerActionProfit(), 0) {
		t.Errorf("per action profit = %v", b.PerActionProfit())
	}
	if run := b.ForActions(10); run.Hours != 0 {
		t.Errorf("run hours = %v, want 0", run.Hours)
	}
}

func TestMissingPricesFlagged(t *testing.T) {
	e := newEnv(t, market.Hybrid)
	b, err := e.calc.CalculateWithModifiers(e.action(t, "/actions/milking/cow"), Modifiers{Drinks: []string{"/items/stamina_coffee"}})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if !b.HasMissingPrices || len(b.MissingPrices) != 1 || b.MissingPrices[0] != "/items/stamina_coffee" {
		t.Errorf("missing = %v (%v)", b.MissingPrices, b.HasMissingPrices)
	}
	near(t, "base still priced", b.Revenue.Base, 24000)
}

func TestGathering_ProcessingSkippedWithoutProcessedPrice(t *testing.T) {
	tables, err := gamedata.Decode(readFixture(t, "client_data.json"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	snap, err := market.ParseMarketJSON(readFixture(t, "marketplace.json"))
	if err != nil {
		t.Fatalf("parse market: %v", err)
	}
	delete(snap.Quotes, "/items/cheese")
	book := market.NewBook(nil)
	book.Load(snap)
	calc := NewCalculator(bareState{tables: tables}, market.NewPricer(book, market.Hybrid), nil, DefaultSettings(), nil)

	cow, _ := tables.Action("/actions/milking/cow")
	b, err := calc.CalculateWithModifiers(cow, Modifiers{Processing: 0.1})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if b.Revenue.Processing != 0 {
		t.Errorf("processing = %v, want 0 when cheese is unpriced", b.Revenue.Processing)
	}
	near(t, "base", b.Revenue.Base, 24000)

	found := false
	for _, m := range b.MissingPrices {
		if m == "/items/cheese" {
			found = true
		}
	}
	if !b.HasMissingPrices || !found {
		t.Errorf("missing = %v, want /items/cheese flagged", b.MissingPrices)
	}
}

func TestCalculateErrors(t *testing.T) {
	e := newEnv(t, market.Hybrid)
	if _, err := e.calc.Calculate("/actions/nope"); !errors.Is(err, gamedata.ErrUnknownAction) {
		t.Errorf("unknown err = %v", err)
	}
	if _, err := e.calc.Calculate("/actions/combat/fly"); !errors.Is(err, ErrCombatAction) {
		t.Errorf("combat err = %v", err)
	}

	cold := NewCalculator(bareState{tables: e.tables}, market.NewPricer(market.NewBook(nil), market.Hybrid), nil, DefaultSettings(), nil)
	if _, err := cold.Calculate("/actions/milking/cow"); !errors.Is(err, economy.ErrMarketNotLoaded) {
		t.Errorf("cold err = %v", err)
	}
}

func TestDeriveModifiers_FromStore(t *testing.T) {
	s := state.New(nil)
	for _, f := range []string{"client_data.json", "character_data.json"} {
		if err := s.Apply(readFixture(t, f)); err != nil {
			t.Fatalf("apply %s: %v", f, err)
		}
	}
	cow, _ := s.Tables().Action("/actions/milking/cow")

	m := DeriveModifiers(s, cow, DefaultSettings())
	near(t, "efficiency", m.Efficiency, 0.23)
	near(t, "gathering quantity", m.GatheringQuantity, 0.20)
	near(t, "speed", m.Speed, 0.15)
	if len(m.Drinks) != 1 || m.Drinks[0] != "/items/efficiency_tea" {
		t.Errorf("drinks = %v", m.Drinks)
	}

	cheese, _ := s.Tables().Action("/actions/cheesesmithing/cheese")
	m = DeriveModifiers(s, cheese, DefaultSettings())
	near(t, "cheese efficiency", m.Efficiency, 0)
	near(t, "cheese speed", m.Speed, 0)

	if err := s.Apply([]byte(`{"type":"community_buffs_updated","communityBuffs":[{"hrid":"/community_buff_types/production_efficiency","level":3}]}`)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	m = DeriveModifiers(s, cheese, DefaultSettings())
	near(t, "community production efficiency", m.Efficiency, 0.146)
}
