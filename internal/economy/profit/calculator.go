// Package profit computes the steady-state hourly economics of repeating a
// gathering or production action.
package profit

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/rsned/idle-economy-server/internal/economy/gamedata"
	"github.com/rsned/idle-economy-server/pkg/economy"
)

// ErrCombatAction is returned for combat encounters, which have no profit
// model.
var ErrCombatAction = errors.New("combat actions have no profit estimate")

// Settings are the economy constants the calculator applies.
type Settings struct {
	MarketTaxRate               float64
	DrinkDuration               time.Duration
	HouseRoomEfficiencyPerLevel float64
}

// DefaultSettings returns the live game's constants.
func DefaultSettings() Settings {
	return Settings{
		MarketTaxRate:               0.02,
		DrinkDuration:               300 * time.Second,
		HouseRoomEfficiencyPerLevel: 0.015,
	}
}

// Prices quotes both sides of a trade.
type Prices interface {
	SellPrice(itemHrid string) (float64, bool)
	BuyPrice(itemHrid string) (float64, bool)
	IsReady() bool
}

// Valuer values items that may have no market, such as openable chests.
type Valuer interface {
	ItemValue(itemHrid string) (float64, []string, error)
}

// Calculator computes ProfitBreakdowns from the live snapshot. It holds no
// mutable state; every call recomputes from scratch.
type Calculator struct {
	state    CharacterState
	prices   Prices
	valuer   Valuer
	settings Settings
	logger   *slog.Logger
}

// NewCalculator creates a calculator.
func NewCalculator(cs CharacterState, prices Prices, valuer Valuer, settings Settings, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{
		state:    cs,
		prices:   prices,
		valuer:   valuer,
		settings: settings,
		logger:   logger,
	}
}

// Action resolves an action hrid against the loaded tables.
func (c *Calculator) Action(actionHrid string) (*gamedata.ActionDetail, error) {
	tables := c.state.Tables()
	if tables == nil {
		return nil, fmt.Errorf("%w: %s (static data not loaded)", gamedata.ErrUnknownAction, actionHrid)
	}
	action, ok := tables.Action(actionHrid)
	if !ok {
		return nil, fmt.Errorf("%w: %s", gamedata.ErrUnknownAction, actionHrid)
	}
	return action, nil
}

// Calculate derives the character's modifiers for actionHrid and computes
// its breakdown.
func (c *Calculator) Calculate(actionHrid string) (*economy.ProfitBreakdown, error) {
	action, err := c.Action(actionHrid)
	if err != nil {
		return nil, err
	}
	mods := DeriveModifiers(c.state, action, c.settings)
	return c.CalculateWithModifiers(action, mods)
}

// CalculateWithModifiers computes the breakdown for explicit modifiers.
func (c *Calculator) CalculateWithModifiers(action *gamedata.ActionDetail, mods Modifiers) (*economy.ProfitBreakdown, error) {
	if action.IsCombat() {
		return nil, fmt.Errorf("%w: %s", ErrCombatAction, action.Hrid)
	}
	if !c.prices.IsReady() {
		return nil, economy.ErrMarketNotLoaded
	}

	b := &economy.ProfitBreakdown{
		ActionHrid:           action.Hrid,
		ActionName:           action.Name,
		Function:             string(action.Function),
		EfficiencyMultiplier: 1 + mods.Efficiency,
		RawOutputsPerHour:    make(map[string]float64),
	}

	secs := action.BaseDuration().Seconds()
	if secs <= 0 {
		return b, nil
	}
	b.ActionsPerHour = 3600 / secs * (1 + mods.Speed)

	r := run{c: c, b: b, missing: make(map[string]bool)}
	switch action.Function {
	case gamedata.FunctionGathering:
		r.gathering(action, mods)
	case gamedata.FunctionProduction:
		r.production(action, mods)
	default:
		return nil, fmt.Errorf("%w: %s has function %q", gamedata.ErrUnknownAction, action.Hrid, action.Function)
	}
	if err := r.bonusDrops(action, mods); err != nil {
		return nil, err
	}
	r.drinks(mods)

	b.Revenue.Total = b.Revenue.Base + b.Revenue.Bonus + b.Revenue.Processing + b.Revenue.RareDrops + b.Revenue.Essences
	if b.Revenue.Total > 0 {
		b.Cost.MarketTax = c.settings.MarketTaxRate * b.Revenue.Total
	}
	b.Cost.Total = b.Cost.Materials + b.Cost.Consumables + b.Cost.MarketTax
	b.ProfitPerHour = b.Revenue.Total - b.Cost.Total

	if len(r.missing) > 0 {
		b.HasMissingPrices = true
		for hrid := range r.missing {
			b.MissingPrices = append(b.MissingPrices, hrid)
		}
		sort.Strings(b.MissingPrices)
		c.logger.Debug("profit has missing prices", "action", action.Hrid, "items", b.MissingPrices)
	}
	return b, nil
}

// run accumulates one calculation.
type run struct {
	c       *Calculator
	b       *economy.ProfitBreakdown
	missing map[string]bool
}

func (r *run) completions() float64 {
	return r.b.ActionsPerHour * r.b.EfficiencyMultiplier
}

// sell is the sell price of itemHrid, or 0 with the item recorded as
// missing. Callers that must not fold an unknown price into a sum use
// sellPrice.
func (r *run) sell(itemHrid string) float64 {
	p, _ := r.sellPrice(itemHrid)
	return p
}

func (r *run) sellPrice(itemHrid string) (float64, bool) {
	p, ok := r.c.prices.SellPrice(itemHrid)
	if !ok {
		r.missing[itemHrid] = true
		return 0, false
	}
	return p, true
}

func (r *run) buy(itemHrid string) float64 {
	p, ok := r.c.prices.BuyPrice(itemHrid)
	if !ok {
		r.missing[itemHrid] = true
		return 0
	}
	return p
}

func (r *run) gathering(action *gamedata.ActionDetail, mods Modifiers) {
	tables := r.c.state.Tables()
	for _, d := range action.DropTable {
		perHour := d.DropRate * d.AverageCount() * r.completions()
		bonusQty := perHour * mods.GatheringQuantity
		price, rawPriced := r.sellPrice(d.ItemHrid)

		r.b.Revenue.Base += perHour * price
		r.b.Revenue.Bonus += bonusQty * price
		r.b.RawOutputsPerHour[d.ItemHrid] += perHour + bonusQty

		if mods.Processing <= 0 || tables == nil {
			continue
		}
		conv, ok := tables.ProcessingFor(d.ItemHrid)
		if !ok {
			continue
		}
		// A conversion is only valued when both sides are priced.
		processed, processedPriced := r.sellPrice(conv.ProcessedItemHrid)
		if !rawPriced || !processedPriced {
			continue
		}
		conversions := (perHour + bonusQty) * mods.Processing / conv.InputCount
		gain := conv.OutputCount*processed - conv.InputCount*price
		r.b.Revenue.Processing += conversions * gain
	}
}

func (r *run) production(action *gamedata.ActionDetail, mods Modifiers) {
	n := r.completions()
	for _, o := range action.OutputItems {
		qty := o.Count * n
		price := r.sell(o.ItemHrid)
		r.b.Revenue.Base += qty * price
		r.b.Revenue.Bonus += qty * mods.Gourmet * price
		r.b.RawOutputsPerHour[o.ItemHrid] += qty * (1 + mods.Gourmet)
	}
	for _, in := range action.InputItems {
		r.b.Cost.Materials += in.Count * (1 - mods.Artisan) * n * r.buy(in.ItemHrid)
	}
	if action.UpgradeItemHrid != "" {
		r.b.Cost.Materials += n * r.buy(action.UpgradeItemHrid)
	}
}

// bonusDrops values essence and rare drops. Rare drops are often openable
// items without a market, so they go through the valuer.
func (r *run) bonusDrops(action *gamedata.ActionDetail, mods Modifiers) error {
	n := r.completions()
	for _, d := range action.EssenceDropTable {
		qty := d.DropRate * (1 + mods.EssenceFind) * d.AverageCount() * n
		r.b.Revenue.Essences += qty * r.sell(d.ItemHrid)
		r.b.RawOutputsPerHour[d.ItemHrid] += qty
	}
	for _, d := range action.RareDropTable {
		qty := d.DropRate * (1 + mods.RareFind) * d.AverageCount() * n
		r.b.RawOutputsPerHour[d.ItemHrid] += qty
		if r.c.valuer == nil {
			r.b.Revenue.RareDrops += qty * r.sell(d.ItemHrid)
			continue
		}
		v, miss, err := r.c.valuer.ItemValue(d.ItemHrid)
		if err != nil {
			return fmt.Errorf("valuing rare drop %s: %w", d.ItemHrid, err)
		}
		for _, m := range miss {
			r.missing[m] = true
		}
		r.b.Revenue.RareDrops += qty * v
	}
	return nil
}

func (r *run) drinks(mods Modifiers) {
	if len(mods.Drinks) == 0 {
		return
	}
	dur := r.c.settings.DrinkDuration.Seconds()
	if dur <= 0 {
		return
	}
	perHour := 3600 / dur * (1 + mods.DrinkConcentration)
	for _, hrid := range mods.Drinks {
		r.b.Cost.Consumables += perHour * r.buy(hrid)
	}
}
