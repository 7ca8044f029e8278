package tasks

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rsned/idle-economy-server/internal/economy/gamedata"
	"github.com/rsned/idle-economy-server/internal/economy/market"
	"github.com/rsned/idle-economy-server/internal/economy/profit"
	"github.com/rsned/idle-economy-server/internal/economy/protocol"
	"github.com/rsned/idle-economy-server/internal/economy/valuation"
	"github.com/rsned/idle-economy-server/pkg/economy"
)

type bareState struct{ tables *gamedata.Tables }

func (s bareState) Tables() *gamedata.Tables { return s.tables }
func (bareState) SkillLevel(string) int { return 0 }
func (bareState) HouseRoomLevel(string) int { return 0 }
func (bareState) CommunityBuffLevel(string) int { return 0 }
func (bareState) DrinkSlots(string) []string { return nil }
func (bareState) Equipment() []protocol.CharacterItem { return nil }

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("..", "testdata", name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return b
}

func newAggregator(t *testing.T, loadMarket bool) (*Aggregator, *market.Book) {
	t.Helper()
	tables, err := gamedata.Decode(readFixture(t, "client_data.json"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	book := market.NewBook(nil)
	if loadMarket {
		snap, err := market.ParseMarketJSON(readFixture(t, "marketplace.json"))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		book.Load(snap)
	}
	pricer := market.NewPricer(book, market.Hybrid)
	cs := bareState{tables: tables}
	eval, err := valuation.New(cs, pricer, valuation.Options{})
	if err != nil {
		t.Fatalf("evaluator: %v", err)
	}
	calc := profit.NewCalculator(cs, pricer, eval, profit.DefaultSettings(), nil)
	return New(cs, calc, eval, book, "", nil), book
}

var milkingTask = economy.TaskDescriptor{
	ID:           7,
	Description:  "Milking - Cow",
	GoalCount:    100,
	CurrentCount: 40,
	CoinReward:   5000,
	TokenReward:  2,
}

func TestCalculate_GatheringTask(t *testing.T) {
	agg, _ := newAggregator(t, true)
	got, err := agg.Calculate(milkingTask)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if got.Status != economy.TaskReady {
		t.Fatalf("status = %s, want ready", got.Status)
	}

	perAction := 28194.6 / 600
	checks := []struct {
		name      string
		got, want float64
	}{
		{"per action", got.PerActionProfit, perAction},
		{"action profit", got.ActionProfit, perAction * 60},
		{"token rate", got.Rewards.TokenUnitRate, 18},
		{"rewards", got.Rewards.Total, 5036},
		{"total", got.TotalProfit, 5036 + perAction*60},
		{"hours", got.Hours, 0.1},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-6 {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if got.RemainingQuantity != 60 {
		t.Errorf("remaining = %d, want 60", got.RemainingQuantity)
	}
	if got.ActionHrid != "/actions/milking/cow" {
		t.Errorf("action = %s", got.ActionHrid)
	}
}

func TestCalculate_OvershotGoal(t *testing.T) {
	agg, _ := newAggregator(t, true)
	task := milkingTask
	task.CurrentCount = 150
	got, err := agg.Calculate(task)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if got.RemainingQuantity != 0 || got.ActionProfit != 0 {
		t.Errorf("remaining=%d action profit=%v, want 0", got.RemainingQuantity, got.ActionProfit)
	}
	if math.Abs(got.TotalProfit-5036) > 1e-6 {
		t.Errorf("total = %v, want rewards only", got.TotalProfit)
	}
}

func TestCalculate_CombatSentinel(t *testing.T) {
	agg, _ := newAggregator(t, true)
	for _, task := range []economy.TaskDescriptor{
		{Description: "Defeat - Fly", GoalCount: 10},
		{ActionHrid: "/actions/combat/fly", Description: "whatever", GoalCount: 10},
	} {
		got, err := agg.Calculate(task)
		if err != nil {
			t.Fatalf("%+v: %v", task, err)
		}
		if got.Status != economy.TaskCombat || got.TotalProfit != 0 {
			t.Errorf("%+v: got %+v, want combat sentinel", task, got)
		}
	}
}

func TestCalculate_Pending(t *testing.T) {
	agg, book := newAggregator(t, false)
	got, err := agg.Calculate(milkingTask)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if got.Status != economy.TaskPending {
		t.Fatalf("status = %s, want pending", got.Status)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := agg.CalculateWhenReady(ctx, milkingTask); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("CalculateWhenReady = %v, want deadline exceeded", err)
	}

	snap, err := market.ParseMarketJSON(readFixture(t, "marketplace.json"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	go book.Load(snap)
	got, err = agg.CalculateWhenReady(context.Background(), milkingTask)
	if err != nil {
		t.Fatalf("CalculateWhenReady: %v", err)
	}
	if got.Status != economy.TaskReady {
		t.Errorf("status = %s after load, want ready", got.Status)
	}
}

func TestResolveTask(t *testing.T) {
	agg, _ := newAggregator(t, true)
	tests := []struct {
		desc    string
		action  string
		combat  bool
		wantErr error
	}{
		{"Cooking - Donut", "/actions/cooking/donut", false, nil},
		{"cheesesmithing -  cheese ", "/actions/cheesesmithing/cheese", false, nil},
		{"Combat - Fly", "", true, nil},
		{"Milking Cow", "", false, ErrUnparsable},
		{"Milking - ", "", false, ErrUnparsable},
		{"Milking - Goat", "", false, gamedata.ErrUnknownAction},
	}
	for _, tc := range tests {
		res, err := agg.ResolveTask(economy.TaskDescriptor{Description: tc.desc})
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("%q: err = %v, want %v", tc.desc, err, tc.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: %v", tc.desc, err)
			continue
		}
		if res.Combat != tc.combat {
			t.Errorf("%q: combat = %v", tc.desc, res.Combat)
		}
		if tc.action != "" && (res.Action == nil || res.Action.Hrid != tc.action) {
			t.Errorf("%q: action = %+v, want %s", tc.desc, res.Action, tc.action)
		}
	}

	if _, err := agg.Calculate(economy.TaskDescriptor{Description: "nonsense"}); !errors.Is(err, ErrUnparsable) {
		t.Errorf("Calculate unparsable err = %v", err)
	}
}
