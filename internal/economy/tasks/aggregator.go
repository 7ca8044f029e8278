// Package tasks estimates the total profit of finishing a task: its fixed
// coin and token rewards plus the profit of the remaining actions.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/rsned/idle-economy-server/internal/economy/gamedata"
	"github.com/rsned/idle-economy-server/internal/economy/profit"
	"github.com/rsned/idle-economy-server/internal/economy/valuation"
	"github.com/rsned/idle-economy-server/pkg/economy"
)

// ErrUnparsable is returned when a task description names no action.
var ErrUnparsable = errors.New("unparsable task description")

// DefaultTokenHrid is the token tasks pay out.
const DefaultTokenHrid = "/items/task_token"

var combatPrefixes = map[string]bool{"defeat": true, "combat": true}

// TableSource supplies the current static tables.
type TableSource interface {
	Tables() *gamedata.Tables
}

// ActionProfiter computes the breakdown of an action for the character.
type ActionProfiter interface {
	Calculate(actionHrid string) (*economy.ProfitBreakdown, error)
}

// TokenValuer values one token.
type TokenValuer interface {
	TokenValue(tokenHrid string) (economy.TokenValue, error)
}

// Gate reports and awaits market readiness.
type Gate interface {
	IsReady() bool
	Wait(ctx context.Context) error
}

// Resolution is what a task descriptor refers to.
type Resolution struct {
	Action *gamedata.ActionDetail
	Combat bool
}

// Aggregator combines task rewards with action profit. Each call is
// self-contained.
type Aggregator struct {
	tables    TableSource
	actions   ActionProfiter
	tokens    TokenValuer
	gate      Gate
	tokenHrid string
	logger    *slog.Logger
}

// New creates an Aggregator that values tokens as tokenHrid ("" for the
// default task token).
func New(tables TableSource, actions ActionProfiter, tokens TokenValuer, gate Gate, tokenHrid string, logger *slog.Logger) *Aggregator {
	if tokenHrid == "" {
		tokenHrid = DefaultTokenHrid
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		tables:    tables,
		actions:   actions,
		tokens:    tokens,
		gate:      gate,
		tokenHrid: tokenHrid,
		logger:    logger,
	}
}

// ResolveTask finds the action a task refers to. An explicit action hrid
// wins; otherwise the description is parsed as "Skill - Target".
func (a *Aggregator) ResolveTask(task economy.TaskDescriptor) (Resolution, error) {
	tables := a.tables.Tables()

	if task.ActionHrid != "" && tables != nil {
		if action, ok := tables.Action(task.ActionHrid); ok {
			return Resolution{Action: action, Combat: action.IsCombat()}, nil
		}
	}

	skill, target, ok := strings.Cut(task.Description, " - ")
	skill, target = strings.TrimSpace(skill), strings.TrimSpace(target)
	if !ok || skill == "" || target == "" {
		return Resolution{}, fmt.Errorf("%w: %q", ErrUnparsable, task.Description)
	}
	if combatPrefixes[strings.ToLower(skill)] {
		return Resolution{Combat: true}, nil
	}

	if tables == nil {
		return Resolution{}, fmt.Errorf("%w: %q (static data not loaded)", gamedata.ErrUnknownAction, task.Description)
	}
	action, found := tables.FindAction(skill, target)
	if !found {
		return Resolution{}, fmt.Errorf("%w: %q", gamedata.ErrUnknownAction, task.Description)
	}
	return Resolution{Action: action, Combat: action.IsCombat()}, nil
}

// Calculate estimates the profit of finishing task. Combat tasks return
// status TaskCombat and pricing that is not loaded yet returns TaskPending;
// neither is an error. Errors are reserved for tasks that cannot be
// resolved.
func (a *Aggregator) Calculate(task economy.TaskDescriptor) (*economy.TaskProfit, error) {
	res, err := a.ResolveTask(task)
	if err != nil {
		return nil, err
	}
	if res.Combat {
		return &economy.TaskProfit{Status: economy.TaskCombat}, nil
	}

	out := &economy.TaskProfit{
		Status:     economy.TaskReady,
		ActionHrid: res.Action.Hrid,
	}
	if !a.gate.IsReady() {
		out.Status = economy.TaskPending
		return out, nil
	}

	b, err := a.actions.Calculate(res.Action.Hrid)
	if errors.Is(err, economy.ErrMarketNotLoaded) {
		out.Status = economy.TaskPending
		return out, nil
	}
	if errors.Is(err, profit.ErrCombatAction) {
		return &economy.TaskProfit{Status: economy.TaskCombat, ActionHrid: res.Action.Hrid}, nil
	}
	if err != nil {
		return nil, err
	}

	missing := make(map[string]bool)
	for _, m := range b.MissingPrices {
		missing[m] = true
	}

	// Remaining actions
	remaining := task.GoalCount - task.CurrentCount
	if remaining < 0 {
		remaining = 0
	}
	out.Breakdown = b
	out.RemainingQuantity = remaining
	out.PerActionProfit = b.PerActionProfit()
	out.ActionProfit = out.PerActionProfit * float64(remaining)
	out.Hours = b.ForActions(float64(remaining)).Hours

	// Fixed rewards
	out.Rewards.Coins = float64(task.CoinReward)
	out.Rewards.Tokens = float64(task.TokenReward)
	if task.TokenReward > 0 {
		tv, err := a.tokens.TokenValue(a.tokenHrid)
		switch {
		case errors.Is(err, economy.ErrMarketNotLoaded):
			out.Status = economy.TaskPending
			return out, nil
		case errors.Is(err, valuation.ErrNoRedemptions):
			a.logger.Debug("token has no redemption options", "token", a.tokenHrid)
			missing[a.tokenHrid] = true
		case err != nil:
			return nil, fmt.Errorf("valuing %s: %w", a.tokenHrid, err)
		default:
			out.Rewards.TokenUnitRate = tv.ValuePerToken
			for _, m := range tv.MissingPrices {
				missing[m] = true
			}
		}
	}
	out.Rewards.Total = out.Rewards.Coins + out.Rewards.Tokens*out.Rewards.TokenUnitRate

	out.TotalProfit = out.Rewards.Total + out.ActionProfit
	if len(missing) > 0 {
		out.HasMissingPrices = true
		for m := range missing {
			out.MissingPrices = append(out.MissingPrices, m)
		}
		sort.Strings(out.MissingPrices)
	}
	return out, nil
}

// CalculateWhenReady waits for the market before calculating, so the
// result is never TaskPending unless ctx ends first.
func (a *Aggregator) CalculateWhenReady(ctx context.Context, task economy.TaskDescriptor) (*economy.TaskProfit, error) {
	if err := a.gate.Wait(ctx); err != nil {
		return nil, err
	}
	return a.Calculate(task)
}
