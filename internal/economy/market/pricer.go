package market

import (
	"fmt"
	"strings"

	"github.com/rsned/idle-economy-server/pkg/economy"
)

// Mode chooses which side of the book prices sales and purchases.
type Mode string

const (
	// Conservative sells into bids and buys from asks.
	Conservative Mode = "conservative"
	// Hybrid sells at the ask and buys at the ask.
	Hybrid Mode = "hybrid"
	// Optimistic sells at the ask and buys at the bid.
	Optimistic Mode = "optimistic"
)

// ParseMode accepts a mode name in any case. Empty means Hybrid.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return Hybrid, nil
	case Conservative, Hybrid, Optimistic:
		return m, nil
	default:
		return "", fmt.Errorf("unknown pricing mode %q", s)
	}
}

func (m Mode) sides() (sell, buy economy.Side) {
	switch m {
	case Conservative:
		return economy.SideBid, economy.SideAsk
	case Optimistic:
		return economy.SideAsk, economy.SideBid
	default:
		return economy.SideAsk, economy.SideAsk
	}
}

// Source is anything that quotes prices with a readiness gate.
type Source interface {
	Price(itemHrid string, side economy.Side) (float64, bool)
	IsReady() bool
	Generation() uint64
}

// Pricer turns a Source into sell and buy prices for one mode.
type Pricer struct {
	src  Source
	mode Mode
	sell economy.Side
	buy  economy.Side
}

// NewPricer binds src to mode.
func NewPricer(src Source, mode Mode) *Pricer {
	sell, buy := mode.sides()
	return &Pricer{src: src, mode: mode, sell: sell, buy: buy}
}

// Mode reports the bound pricing mode.
func (p *Pricer) Mode() Mode { return p.mode }

// SellPrice is what one unit fetches when sold.
func (p *Pricer) SellPrice(itemHrid string) (float64, bool) {
	return p.src.Price(itemHrid, p.sell)
}

// BuyPrice is what one unit costs to acquire.
func (p *Pricer) BuyPrice(itemHrid string) (float64, bool) {
	return p.src.Price(itemHrid, p.buy)
}

// IsReady reports whether the underlying source has loaded.
func (p *Pricer) IsReady() bool { return p.src.IsReady() }

// Generation is the underlying source's change counter.
func (p *Pricer) Generation() uint64 { return p.src.Generation() }
