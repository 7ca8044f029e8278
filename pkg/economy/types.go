// Package economy contains the core types for the idle economy server.
package economy

import (
	"errors"

	"github.com/dustin/go-humanize"
)

// ErrMarketNotLoaded is returned when a price-dependent computation is
// requested before the first market snapshot is available. Callers should
// retry later rather than treat the result as zero.
var ErrMarketNotLoaded = errors.New("Market data not loaded")

// CoinHrid is the in-game currency. It is always worth exactly one coin.
const CoinHrid = "/items/coin"

// ============================================
// MARKET TYPES
// ============================================

// Side selects one side of the order book.
type Side string

const (
	SideAsk Side = "ask"
	SideBid Side = "bid"
)

// Quote is the best ask and bid for an item. A value <= 0 means no price.
type Quote struct {
	Ask float64 `json:"a"`
	Bid float64 `json:"b"`
}

// Listing is one of the character's own orders on the marketplace.
type Listing struct {
	ID               int64  `json:"id"`
	ItemHrid         string `json:"itemHrid"`
	EnhancementLevel int    `json:"enhancementLevel,omitempty"`
	IsSell           bool   `json:"isSell"`
	Price            int64  `json:"price"`
	OrderQuantity    int64  `json:"orderQuantity"`
	FilledQuantity   int64  `json:"filledQuantity"`
	Status           string `json:"status,omitempty"`
}

// Side reports which side of the book the listing rests on.
func (l Listing) Side() Side {
	if l.IsSell {
		return SideAsk
	}
	return SideBid
}

// RemainingQuantity is the unfilled part of the order.
func (l Listing) RemainingQuantity() int64 {
	if l.FilledQuantity >= l.OrderQuantity {
		return 0
	}
	return l.OrderQuantity - l.FilledQuantity
}

// ============================================
// VALUATION TYPES
// ============================================

// RewardValue is the expected value of one reward table.
type RewardValue struct {
	TableHrid     string   `json:"table_hrid"`
	ExpectedValue float64  `json:"expected_value"`
	Partial       bool     `json:"partial"`
	MissingPrices []string `json:"missing_prices,omitempty"`
}

// TokenValue is the coin-equivalent of one redeemable token.
type TokenValue struct {
	TokenHrid     string   `json:"token_hrid"`
	ValuePerToken float64  `json:"value_per_token"`
	BestItemHrid  string   `json:"best_item_hrid,omitempty"`
	MissingPrices []string `json:"missing_prices,omitempty"`
}

// ============================================
// PROFIT TYPES
// ============================================

// Revenue splits hourly income by source.
type Revenue struct {
	Base       float64 `json:"base"`
	Bonus      float64 `json:"bonus"`
	Processing float64 `json:"processing"`
	RareDrops  float64 `json:"rare_drops"`
	Essences   float64 `json:"essences"`
	Total      float64 `json:"total"`
}

// Cost splits hourly spending by source.
type Cost struct {
	Materials   float64 `json:"materials"`
	Consumables float64 `json:"consumables"`
	MarketTax   float64 `json:"market_tax"`
	Total       float64 `json:"total"`
}

// ProfitBreakdown is the steady-state economics of repeating one action.
type ProfitBreakdown struct {
	ActionHrid           string             `json:"action_hrid"`
	ActionName           string             `json:"action_name"`
	Function             string             `json:"function"`
	ActionsPerHour       float64            `json:"actions_per_hour"`
	EfficiencyMultiplier float64            `json:"efficiency_multiplier"`
	Revenue              Revenue            `json:"revenue"`
	Cost                 Cost               `json:"cost"`
	ProfitPerHour        float64            `json:"profit_per_hour"`
	RawOutputsPerHour    map[string]float64 `json:"raw_outputs_per_hour"`
	HasMissingPrices     bool               `json:"has_missing_prices"`
	MissingPrices        []string           `json:"missing_prices,omitempty"`
}

// CompletionsPerHour counts actions including efficiency repeats.
func (b *ProfitBreakdown) CompletionsPerHour() float64 {
	return b.ActionsPerHour * b.EfficiencyMultiplier
}

// PerActionProfit is the profit of one completion, with the efficiency
// multiplier divided back out.
func (b *ProfitBreakdown) PerActionProfit() float64 {
	n := b.CompletionsPerHour()
	if n <= 0 {
		return 0
	}
	return b.ProfitPerHour / n
}

// ForActions scales the hourly figures to a fixed number of completions.
func (b *ProfitBreakdown) ForActions(n float64) RunBreakdown {
	run := RunBreakdown{Actions: n}
	perHour := b.CompletionsPerHour()
	if n <= 0 || perHour <= 0 {
		return run
	}
	run.Hours = n / perHour
	run.Revenue = b.Revenue.Total * run.Hours
	run.Cost = b.Cost.Total * run.Hours
	run.Profit = b.ProfitPerHour * run.Hours
	return run
}

// RunBreakdown is a ProfitBreakdown scaled to a fixed quantity of actions.
type RunBreakdown struct {
	Actions float64 `json:"actions"`
	Hours   float64 `json:"hours"`
	Revenue float64 `json:"revenue"`
	Cost    float64 `json:"cost"`
	Profit  float64 `json:"profit"`
}

// ============================================
// TASK TYPES
// ============================================

// TaskDescriptor identifies a bounded unit of work and its fixed rewards.
type TaskDescriptor struct {
	ID           int64  `json:"id,omitempty"`
	Description  string `json:"description"`
	ActionHrid   string `json:"action_hrid,omitempty"`
	GoalCount    int64  `json:"goal_count"`
	CurrentCount int64  `json:"current_count"`
	CoinReward   int64  `json:"coin_reward"`
	TokenReward  int64  `json:"token_reward"`
}

// TaskStatus distinguishes a computed profit from results the caller should
// not display as a number.
type TaskStatus string

const (
	// TaskReady carries a numeric profit.
	TaskReady TaskStatus = "ready"
	// TaskCombat marks combat tasks, which have no profit estimate.
	TaskCombat TaskStatus = "combat"
	// TaskPending means prices are not loaded yet; retry later.
	TaskPending TaskStatus = "pending"
)

// TaskRewardValue is the coin value of a task's fixed rewards.
type TaskRewardValue struct {
	Coins         float64 `json:"coins"`
	Tokens        float64 `json:"tokens"`
	TokenUnitRate float64 `json:"token_unit_rate"`
	Total         float64 `json:"total"`
}

// TaskProfit is the total profit estimate for finishing a task.
type TaskProfit struct {
	Status            TaskStatus       `json:"status"`
	ActionHrid        string           `json:"action_hrid,omitempty"`
	RemainingQuantity int64            `json:"remaining_quantity"`
	PerActionProfit   float64          `json:"per_action_profit"`
	ActionProfit      float64          `json:"action_profit"`
	Hours             float64          `json:"hours"`
	Rewards           TaskRewardValue  `json:"rewards"`
	TotalProfit       float64          `json:"total_profit"`
	HasMissingPrices  bool             `json:"has_missing_prices"`
	MissingPrices     []string         `json:"missing_prices,omitempty"`
	Breakdown         *ProfitBreakdown `json:"breakdown,omitempty"`
}

// ============================================
// CONSUMPTION TYPES
// ============================================

// ConsumableRate is the estimated usage of one consumable.
type ConsumableRate struct {
	ItemHrid      string  `json:"item_hrid"`
	ObservedCount int     `json:"observed_count"`
	RatePerHour   float64 `json:"rate_per_hour"`
	CostPerHour   float64 `json:"cost_per_hour"`
	PriceMissing  bool    `json:"price_missing,omitempty"`
}

// PlayerCombatSummary is one player's share of a battle snapshot.
type PlayerCombatSummary struct {
	CharacterID           int64              `json:"character_id"`
	Name                  string             `json:"name"`
	Loot                  map[string]int64   `json:"loot,omitempty"`
	Experience            map[string]float64 `json:"experience,omitempty"`
	Consumables           []ConsumableRate   `json:"consumables,omitempty"`
	ConsumableCostPerHour float64            `json:"consumable_cost_per_hour"`
}

// CombatSummary is the derived combat data persisted across sessions.
type CombatSummary struct {
	BattleID       int64                 `json:"battle_id"`
	CharacterID    int64                 `json:"character_id"`
	RecordedAt     string                `json:"recorded_at"`
	ElapsedSeconds float64               `json:"elapsed_seconds"`
	Players        []PlayerCombatSummary `json:"players"`
}

// ============================================
// TOOL REQUEST/RESPONSE TYPES
// ============================================

// ActionProfitRequest is the input for the action_profit tool.
type ActionProfitRequest struct {
	ActionHrid string  `json:"action_hrid"`
	Quantity   float64 `json:"quantity,omitempty"`
}

// ActionProfitResponse is the output for the action_profit tool.
type ActionProfitResponse struct {
	Breakdown *ProfitBreakdown `json:"breakdown,omitempty"`
	Run       *RunBreakdown    `json:"run,omitempty"`
	Display   string           `json:"display,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// RewardTableValueRequest is the input for the reward_table_value tool.
type RewardTableValueRequest struct {
	TableHrid string `json:"table_hrid"`
}

// RewardTableValueResponse is the output for the reward_table_value tool.
type RewardTableValueResponse struct {
	Value   *RewardValue `json:"value,omitempty"`
	Display string       `json:"display,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// TaskProfitRequest is the input for the task_profit tool. When QuestID is
// set the descriptor is read from the session's quest list.
type TaskProfitRequest struct {
	QuestID int64          `json:"quest_id,omitempty"`
	Task    TaskDescriptor `json:"task"`
	// WaitSeconds waits up to this long for the session and market to be
	// ready instead of answering pending right away.
	WaitSeconds float64 `json:"wait_seconds,omitempty"`
}

// TaskProfitResponse is the output for the task_profit tool.
type TaskProfitResponse struct {
	Profit  *TaskProfit `json:"profit,omitempty"`
	Display string      `json:"display,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ConsumptionRatesRequest is the input for the consumption_rates tool.
type ConsumptionRatesRequest struct {
	Entity string `json:"entity,omitempty"`
}

// ConsumptionRatesResponse is the output for the consumption_rates tool.
type ConsumptionRatesResponse struct {
	Entity         string           `json:"entity"`
	ElapsedSeconds float64          `json:"elapsed_seconds"`
	Rates          []ConsumableRate `json:"rates"`
	LastBattle     *CombatSummary   `json:"last_battle,omitempty"`
}

// MyListingsResponse is the output for the my_listings tool.
type MyListingsResponse struct {
	Listings []Listing `json:"listings"`
}

// SessionStatusResponse is the output for the session_status tool.
type SessionStatusResponse struct {
	SessionID        string            `json:"session_id"`
	State            string            `json:"state"`
	CharacterID      int64             `json:"character_id,omitempty"`
	CharacterName    string            `json:"character_name,omitempty"`
	GameVersion      string            `json:"game_version,omitempty"`
	MarketReady      bool              `json:"market_ready"`
	MarketGeneration uint64            `json:"market_generation"`
	DirtyGenerations map[string]uint64 `json:"dirty_generations,omitempty"`
}

// FormatCoins renders a coin amount with thousands separators.
func FormatCoins(v float64) string {
	return humanize.CommafWithDigits(v, 0) + " coins"
}
