package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rsned/idle-economy-server/pkg/economy"
)

// MaxTaskWait caps TaskProfitRequest.WaitSeconds.
const MaxTaskWait = time.Minute

// TaskProfit executes the task_profit tool logic. A quest id reads the
// descriptor from the session; otherwise the request's task is used as is.
// With WaitSeconds set it blocks until the session and market are ready or
// the wait runs out, then answers as without waiting.
func (e *Engine) TaskProfit(ctx context.Context, req economy.TaskProfitRequest) (*economy.TaskProfitResponse, error) {
	if req.WaitSeconds < 0 {
		return nil, fmt.Errorf("%w: wait_seconds must not be negative", ErrInvalidRequest)
	}
	var wctx context.Context
	if req.WaitSeconds > 0 {
		wait := min(time.Duration(req.WaitSeconds*float64(time.Second)), MaxTaskWait)
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
		if req.QuestID != 0 {
			if err := e.waitErr(ctx, e.store.WaitReady(wctx)); err != nil {
				return nil, err
			}
		}
	}

	task := req.Task
	if req.QuestID != 0 {
		q, ok := e.store.Quest(req.QuestID)
		if !ok {
			return &economy.TaskProfitResponse{Error: fmt.Sprintf("quest %d not found", req.QuestID)}, nil
		}
		task = q.Descriptor()
	}
	if task.Description == "" && task.ActionHrid == "" {
		return nil, fmt.Errorf("%w: quest_id or task is required", ErrInvalidRequest)
	}

	var (
		p   *economy.TaskProfit
		err error
	)
	if wctx != nil {
		p, err = e.tasks.CalculateWhenReady(wctx, task)
		if werr := e.waitErr(ctx, err); werr != nil {
			return nil, werr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			e.logger.Debug("task wait expired", "task", task.Description)
			p, err = e.tasks.Calculate(task)
		}
	} else {
		p, err = e.tasks.Calculate(task)
	}
	if err != nil {
		return &economy.TaskProfitResponse{Error: err.Error()}, nil
	}
	return &economy.TaskProfitResponse{Profit: p, Display: taskDisplay(p)}, nil
}

// waitErr returns the caller's own context error. An expired wait is not
// an error: the answer is computed from whatever is loaded.
func (e *Engine) waitErr(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// TaskProfits values every quest of the session, in quest order.
func (e *Engine) TaskProfits(ctx context.Context) ([]economy.TaskProfitResponse, error) {
	quests := e.store.Quests()
	out := make([]economy.TaskProfitResponse, 0, len(quests))
	for _, q := range quests {
		resp, err := e.TaskProfit(ctx, economy.TaskProfitRequest{QuestID: q.ID})
		if err != nil {
			// A quest without description or action is not a task
			continue
		}
		out = append(out, *resp)
	}
	return out, nil
}

func taskDisplay(p *economy.TaskProfit) string {
	switch p.Status {
	case economy.TaskCombat:
		return "combat task"
	case economy.TaskPending:
		return economy.ErrMarketNotLoaded.Error()
	}
	s := economy.FormatCoins(p.TotalProfit)
	if p.HasMissingPrices {
		s += " (partial)"
	}
	return s
}
