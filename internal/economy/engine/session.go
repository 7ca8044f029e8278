package engine

import (
	"context"

	"github.com/rsned/idle-economy-server/internal/economy/consumption"
	"github.com/rsned/idle-economy-server/pkg/economy"
)

// ConsumptionRates executes the consumption_rates tool logic.
func (e *Engine) ConsumptionRates(ctx context.Context, req economy.ConsumptionRatesRequest) (*economy.ConsumptionRatesResponse, error) {
	// Apply defaults
	if req.Entity == "" {
		req.Entity = consumption.LocalActor
	}

	resp := &economy.ConsumptionRatesResponse{
		Entity: req.Entity,
		Rates:  []economy.ConsumableRate{},
	}
	if e.tracker == nil {
		return resp, nil
	}
	elapsed, rates := e.tracker.Rates(req.Entity)
	resp.ElapsedSeconds = elapsed
	if rates != nil {
		resp.Rates = rates
	}
	resp.LastBattle = e.tracker.LastSummary()
	return resp, nil
}

// MyListings executes the my_listings tool logic.
func (e *Engine) MyListings(ctx context.Context) (*economy.MyListingsResponse, error) {
	live := e.store.Listings()
	out := make([]economy.Listing, 0, len(live))
	for _, l := range live {
		out = append(out, *l)
	}
	return &economy.MyListingsResponse{Listings: out}, nil
}

// SessionStatus executes the session_status tool logic.
func (e *Engine) SessionStatus(ctx context.Context) (*economy.SessionStatusResponse, error) {
	resp := &economy.SessionStatusResponse{
		SessionID:        e.store.SessionID(),
		State:            e.store.Phase().String(),
		MarketReady:      e.book.IsReady(),
		MarketGeneration: e.book.Generation(),
		DirtyGenerations: e.store.DirtyGenerations(),
	}
	if c, ok := e.store.Character(); ok {
		resp.CharacterID = c.ID
		resp.CharacterName = c.Name
	}
	if t := e.store.Tables(); t != nil {
		resp.GameVersion = t.Version
	}
	return resp, nil
}
