// Package valuation computes the expected coin value of reward tables and of
// tokens redeemable for them.
package valuation

import (
	"errors"
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rsned/idle-economy-server/internal/economy/gamedata"
	"github.com/rsned/idle-economy-server/pkg/economy"
)

var (
	// ErrUnknownTable is returned for reward table hrids absent from the
	// static data.
	ErrUnknownTable = errors.New("unknown reward table")
	// ErrDepthExceeded is returned when nested tables recurse deeper than
	// the configured limit, which only happens with cyclic data.
	ErrDepthExceeded = errors.New("reward table nesting too deep")
	// ErrNoRedemptions is returned for tokens the shop does not accept.
	ErrNoRedemptions = errors.New("no redemption options")
)

// DefaultMaxDepth bounds reward table recursion.
const DefaultMaxDepth = 16

// Prices quotes what an item sells for.
type Prices interface {
	SellPrice(itemHrid string) (float64, bool)
	IsReady() bool
	Generation() uint64
}

// TableSource supplies the current static tables.
type TableSource interface {
	Tables() *gamedata.Tables
}

// Options tune an Evaluator.
type Options struct {
	MaxDepth  int
	CacheSize int
}

type cacheKey struct {
	tables *gamedata.Tables
	gen    uint64
	hrid   string
}

type tableValue struct {
	ev      float64
	missing []string
}

// Evaluator computes expected values. Results are memoized per price
// generation, so it is safe to share across goroutines.
type Evaluator struct {
	tables   TableSource
	prices   Prices
	maxDepth int
	cache    *lru.Cache[cacheKey, tableValue]
}

// New creates an Evaluator.
func New(tables TableSource, prices Prices, opts Options) (*Evaluator, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1024
	}
	cache, err := lru.New[cacheKey, tableValue](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating reward table cache: %w", err)
	}
	return &Evaluator{
		tables:   tables,
		prices:   prices,
		maxDepth: opts.MaxDepth,
		cache:    cache,
	}, nil
}

// ExpectedValue is the weighted average coin value of one opening of a
// reward table. Entries with an unknown price are left out of the sum and
// listed in MissingPrices; the value is then a lower bound.
func (e *Evaluator) ExpectedValue(tableHrid string) (economy.RewardValue, error) {
	t, err := e.current()
	if err != nil {
		return economy.RewardValue{TableHrid: tableHrid}, err
	}
	v, err := e.table(t, e.prices.Generation(), tableHrid, 0)
	if err != nil {
		return economy.RewardValue{TableHrid: tableHrid}, err
	}
	return economy.RewardValue{
		TableHrid:     tableHrid,
		ExpectedValue: v.ev,
		Partial:       len(v.missing) > 0,
		MissingPrices: v.missing,
	}, nil
}

// ItemValue is the coin value of one unit of an item: its sell price, or
// the expected value of its contents when it has no price but can be opened.
func (e *Evaluator) ItemValue(itemHrid string) (float64, []string, error) {
	t, err := e.current()
	if err != nil {
		return 0, nil, err
	}
	v, missing, err := e.item(t, e.prices.Generation(), itemHrid, 0)
	return v, missing, err
}

// TokenValue is what one token is worth when redeemed through its best
// shop option.
func (e *Evaluator) TokenValue(tokenHrid string) (economy.TokenValue, error) {
	out := economy.TokenValue{TokenHrid: tokenHrid}
	t, err := e.current()
	if err != nil {
		return out, err
	}
	options := t.TokenShop(tokenHrid)
	if len(options) == 0 {
		return out, fmt.Errorf("%w: %s", ErrNoRedemptions, tokenHrid)
	}

	gen := e.prices.Generation()
	missing := make(map[string]bool)
	found := false
	for _, opt := range options {
		if opt.Cost <= 0 {
			continue
		}
		v, miss, err := e.item(t, gen, opt.ItemHrid, 0)
		if err != nil {
			return out, err
		}
		for _, m := range miss {
			missing[m] = true
		}
		perToken := v / opt.Cost
		if !found || perToken > out.ValuePerToken {
			out.ValuePerToken = perToken
			out.BestItemHrid = opt.ItemHrid
			found = true
		}
	}
	if !found {
		return out, fmt.Errorf("%w: %s", ErrNoRedemptions, tokenHrid)
	}
	out.MissingPrices = sortedKeys(missing)
	return out, nil
}

func (e *Evaluator) current() (*gamedata.Tables, error) {
	if !e.prices.IsReady() {
		return nil, economy.ErrMarketNotLoaded
	}
	t := e.tables.Tables()
	if t == nil {
		return nil, fmt.Errorf("%w: static data not loaded", ErrUnknownTable)
	}
	return t, nil
}

func (e *Evaluator) table(t *gamedata.Tables, gen uint64, hrid string, depth int) (tableValue, error) {
	if depth > e.maxDepth {
		return tableValue{}, fmt.Errorf("%w: %s at depth %d", ErrDepthExceeded, hrid, depth)
	}
	key := cacheKey{tables: t, gen: gen, hrid: hrid}
	if v, ok := e.cache.Get(key); ok {
		return v, nil
	}

	rt, ok := t.RewardTable(hrid)
	if !ok {
		return tableValue{}, fmt.Errorf("%w: %s", ErrUnknownTable, hrid)
	}
	total := rt.TotalWeight()
	if total <= 0 {
		return tableValue{}, nil
	}

	var ev float64
	missing := make(map[string]bool)
	for _, entry := range rt.Entries {
		w := entry.EntryWeight()
		if w <= 0 {
			continue
		}
		share := w / total

		switch en := entry.(type) {
		case gamedata.NestedTableEntry:
			nested, err := e.table(t, gen, en.TableHrid, depth+1)
			if err != nil {
				return tableValue{}, err
			}
			ev += share * nested.ev
			for _, m := range nested.missing {
				missing[m] = true
			}
		case gamedata.TerminalEntry:
			unit, miss, err := e.item(t, gen, en.ItemHrid, depth+1)
			if err != nil {
				return tableValue{}, err
			}
			ev += share * en.AverageCount() * unit
			for _, m := range miss {
				missing[m] = true
			}
		}
	}

	v := tableValue{ev: ev, missing: sortedKeys(missing)}
	e.cache.Add(key, v)
	return v, nil
}

func (e *Evaluator) item(t *gamedata.Tables, gen uint64, itemHrid string, depth int) (float64, []string, error) {
	if itemHrid == economy.CoinHrid {
		return 1, nil, nil
	}
	if p, ok := e.prices.SellPrice(itemHrid); ok {
		return p, nil, nil
	}
	if t.IsOpenable(itemHrid) {
		v, err := e.table(t, gen, itemHrid, depth)
		if err != nil {
			return 0, nil, err
		}
		return v.ev, v.missing, nil
	}
	return 0, []string{itemHrid}, nil
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
