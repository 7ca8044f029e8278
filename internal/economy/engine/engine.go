// Package engine wires the snapshot store, the market and the calculators
// into the queries the tool server exposes.
package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/rsned/idle-economy-server/internal/economy/consumption"
	"github.com/rsned/idle-economy-server/internal/economy/market"
	"github.com/rsned/idle-economy-server/internal/economy/profit"
	"github.com/rsned/idle-economy-server/internal/economy/state"
	"github.com/rsned/idle-economy-server/internal/economy/tasks"
	"github.com/rsned/idle-economy-server/internal/economy/tuning"
	"github.com/rsned/idle-economy-server/internal/economy/valuation"
)

// ErrInvalidRequest is returned for requests missing required fields.
var ErrInvalidRequest = errors.New("invalid request")

// Deps are the long-lived components an Engine reads.
type Deps struct {
	Store   *state.Store
	Book    *market.Book
	Tracker *consumption.Tracker // optional
	Tuning  tuning.Tuning
	Logger  *slog.Logger
}

// Engine is the query engine for economy operations.
type Engine struct {
	store   *state.Store
	book    *market.Book
	tracker *consumption.Tracker
	pricer  *market.Pricer
	eval    *valuation.Evaluator
	calc    *profit.Calculator
	tasks   *tasks.Aggregator
	logger  *slog.Logger
}

// New creates a new Engine.
func New(d Deps) (*Engine, error) {
	if d.Store == nil || d.Book == nil {
		return nil, fmt.Errorf("engine: store and book are required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	pricer := market.NewPricer(d.Book, d.Tuning.Mode())
	eval, err := valuation.New(d.Store, pricer, d.Tuning.ValuationOptions())
	if err != nil {
		return nil, fmt.Errorf("creating evaluator: %w", err)
	}
	calc := profit.NewCalculator(d.Store, pricer, eval, d.Tuning.ProfitSettings(), d.Logger)

	return &Engine{
		store:   d.Store,
		book:    d.Book,
		tracker: d.Tracker,
		pricer:  pricer,
		eval:    eval,
		calc:    calc,
		tasks:   tasks.New(d.Store, calc, eval, d.Book, d.Tuning.TaskTokenHrid, d.Logger),
		logger:  d.Logger,
	}, nil
}

// Pricer returns the pricing-mode view of the book.
func (e *Engine) Pricer() *market.Pricer { return e.pricer }
