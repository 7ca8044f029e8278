// Package market is the market-price collaborator: an in-memory book of best
// ask/bid per item, gated on the first successful load.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/rsned/idle-economy-server/internal/economy/protocol"
	"github.com/rsned/idle-economy-server/internal/economy/state"
	"github.com/rsned/idle-economy-server/pkg/economy"
)

// ErrNotLoaded is returned when prices are needed before the first load.
var ErrNotLoaded = economy.ErrMarketNotLoaded

// Snapshot is a full set of quotes, keyed by item hrid then enhancement level.
type Snapshot struct {
	Quotes    map[string]map[int]economy.Quote
	Timestamp time.Time
}

type marketFile struct {
	MarketData map[string]map[string]economy.Quote `json:"marketData"`
	Timestamp  int64                               `json:"timestamp"`
}

// ParseMarketJSON reads the marketplace document format:
// {"marketData": {hrid: {"0": {"a": ask, "b": bid}}}, "timestamp": unix}.
func ParseMarketJSON(raw []byte) (Snapshot, error) {
	var f marketFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return Snapshot{}, fmt.Errorf("parsing market data: %w", err)
	}
	if f.MarketData == nil {
		return Snapshot{}, fmt.Errorf("parsing market data: missing marketData")
	}

	snap := Snapshot{
		Quotes:    make(map[string]map[int]economy.Quote, len(f.MarketData)),
		Timestamp: time.Unix(f.Timestamp, 0).UTC(),
	}
	for hrid, levels := range f.MarketData {
		byLevel := make(map[int]economy.Quote, len(levels))
		for lvl, q := range levels {
			n, err := strconv.Atoi(lvl)
			if err != nil {
				return Snapshot{}, fmt.Errorf("parsing market data: %s: bad level %q", hrid, lvl)
			}
			byLevel[n] = q
		}
		snap.Quotes[hrid] = byLevel
	}
	return snap, nil
}

// MarshalJSON writes the snapshot in the marketplace document format.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	f := marketFile{
		MarketData: make(map[string]map[string]economy.Quote, len(s.Quotes)),
		Timestamp:  s.Timestamp.Unix(),
	}
	for hrid, levels := range s.Quotes {
		m := make(map[string]economy.Quote, len(levels))
		for lvl, q := range levels {
			m[strconv.Itoa(lvl)] = q
		}
		f.MarketData[hrid] = m
	}
	return json.Marshal(f)
}

// Book holds the current quotes. It is safe for concurrent use.
type Book struct {
	logger *slog.Logger

	mu        sync.RWMutex
	quotes    map[string]map[int]economy.Quote
	updatedAt time.Time
	gen       uint64

	ready     chan struct{}
	readyOnce sync.Once
}

// NewBook returns an empty, not yet ready book.
func NewBook(logger *slog.Logger) *Book {
	if logger == nil {
		logger = slog.Default()
	}
	return &Book{
		logger: logger,
		quotes: make(map[string]map[int]economy.Quote),
		ready:  make(chan struct{}),
	}
}

// Load replaces every quote with snap and opens the readiness gate.
func (b *Book) Load(snap Snapshot) {
	quotes := make(map[string]map[int]economy.Quote, len(snap.Quotes))
	for hrid, levels := range snap.Quotes {
		m := make(map[int]economy.Quote, len(levels))
		for lvl, q := range levels {
			m[lvl] = q
		}
		quotes[hrid] = m
	}

	b.mu.Lock()
	b.quotes = quotes
	b.updatedAt = snap.Timestamp
	b.gen++
	gen := b.gen
	b.mu.Unlock()

	b.readyOnce.Do(func() { close(b.ready) })
	b.logger.Info("market loaded", "items", len(quotes), "generation", gen, "as_of", snap.Timestamp)
}

// UpdateQuote sets the top of book for one item level. It does not open the
// readiness gate: a single item is not a market.
func (b *Book) UpdateQuote(itemHrid string, level int, q economy.Quote) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.quotes[itemHrid]
	if m == nil {
		m = make(map[int]economy.Quote)
		b.quotes[itemHrid] = m
	}
	m[level] = q
	b.gen++
}

// Price returns the enhancement level 0 price of an item on one side.
func (b *Book) Price(itemHrid string, side economy.Side) (float64, bool) {
	return b.PriceAt(itemHrid, 0, side)
}

// PriceAt returns the price of an item at an enhancement level. Coins are
// always worth 1. Quotes at or below zero count as missing.
func (b *Book) PriceAt(itemHrid string, level int, side economy.Side) (float64, bool) {
	if itemHrid == economy.CoinHrid {
		return 1, true
	}
	b.mu.RLock()
	q, ok := b.quotes[itemHrid][level]
	b.mu.RUnlock()
	if !ok {
		return 0, false
	}
	v := q.Ask
	if side == economy.SideBid {
		v = q.Bid
	}
	if v <= 0 {
		return 0, false
	}
	return v, true
}

// Ready is closed once the first snapshot has loaded.
func (b *Book) Ready() <-chan struct{} { return b.ready }

// IsReady reports whether the first snapshot has loaded.
func (b *Book) IsReady() bool {
	select {
	case <-b.ready:
		return true
	default:
		return false
	}
}

// Wait blocks until the book is ready or ctx is done.
func (b *Book) Wait(ctx context.Context) error {
	select {
	case <-b.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Generation increases on every change to the quotes.
func (b *Book) Generation() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.gen
}

// UpdatedAt is the timestamp of the last full load.
func (b *Book) UpdatedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updatedAt
}

// Snapshot copies the current quotes.
func (b *Book) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := Snapshot{
		Quotes:    make(map[string]map[int]economy.Quote, len(b.quotes)),
		Timestamp: b.updatedAt,
	}
	for hrid, levels := range b.quotes {
		m := make(map[int]economy.Quote, len(levels))
		for lvl, q := range levels {
			m[lvl] = q
		}
		out.Quotes[hrid] = m
	}
	return out
}

// Attach keeps the book current with order books the session views.
func (b *Book) Attach(store *state.Store) *state.Subscription {
	return store.Subscribe(protocol.TypeMarketItemOrderBooksUpdated, func(ev state.Event) {
		m, ok := ev.Message.(*protocol.MarketItemOrderBooksUpdated)
		if !ok {
			return
		}
		books := m.MarketItemOrderBooks
		for lvl, ob := range books.OrderBooks {
			// The view is the whole book at this level, so an empty side
			// replaces the stale quote with -1 (no price).
			q := economy.Quote{Ask: -1, Bid: -1}
			if len(ob.Asks) > 0 {
				q.Ask = float64(ob.Asks[0].Price)
			}
			if len(ob.Bids) > 0 {
				q.Bid = float64(ob.Bids[0].Price)
			}
			if q.Ask <= 0 && q.Bid <= 0 {
				continue
			}
			b.UpdateQuote(books.ItemHrid, lvl, q)
		}
	})
}
