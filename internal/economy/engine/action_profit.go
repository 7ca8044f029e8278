package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rsned/idle-economy-server/pkg/economy"
)

// ActionProfit executes the action_profit tool logic.
func (e *Engine) ActionProfit(ctx context.Context, req economy.ActionProfitRequest) (*economy.ActionProfitResponse, error) {
	req.ActionHrid = strings.TrimSpace(req.ActionHrid)
	if req.ActionHrid == "" {
		return nil, fmt.Errorf("%w: action_hrid is required", ErrInvalidRequest)
	}
	if req.Quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrInvalidRequest)
	}

	b, err := e.calc.Calculate(req.ActionHrid)
	if err != nil {
		e.logger.Debug("action profit unavailable", "action", req.ActionHrid, "error", err)
		return &economy.ActionProfitResponse{Error: err.Error()}, nil
	}

	resp := &economy.ActionProfitResponse{
		Breakdown: b,
		Display:   economy.FormatCoins(b.ProfitPerHour) + "/h",
	}
	if req.Quantity > 0 {
		run := b.ForActions(req.Quantity)
		resp.Run = &run
		resp.Display = fmt.Sprintf("%s/h, %s for %.0f actions", economy.FormatCoins(b.ProfitPerHour), economy.FormatCoins(run.Profit), req.Quantity)
	}
	return resp, nil
}

// RewardTableValue executes the reward_table_value tool logic.
func (e *Engine) RewardTableValue(ctx context.Context, req economy.RewardTableValueRequest) (*economy.RewardTableValueResponse, error) {
	req.TableHrid = strings.TrimSpace(req.TableHrid)
	if req.TableHrid == "" {
		return nil, fmt.Errorf("%w: table_hrid is required", ErrInvalidRequest)
	}

	v, err := e.eval.ExpectedValue(req.TableHrid)
	if err != nil {
		return &economy.RewardTableValueResponse{Error: err.Error()}, nil
	}
	display := economy.FormatCoins(v.ExpectedValue)
	if v.Partial {
		display += " (partial)"
	}
	return &economy.RewardTableValueResponse{Value: &v, Display: display}, nil
}
