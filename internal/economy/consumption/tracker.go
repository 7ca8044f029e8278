package consumption

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/rsned/idle-economy-server/internal/economy/protocol"
	"github.com/rsned/idle-economy-server/internal/economy/state"
	"github.com/rsned/idle-economy-server/pkg/economy"
)

//go:generate go tool mockgen -destination=./mocks/kv_mock.go -package=mocks . KV

// KV is the persistence collaborator: namespaced JSON values.
type KV interface {
	// GetJSON decodes the value under key into dst. found is false when
	// there is no value.
	GetJSON(ctx context.Context, key, namespace string, dst any) (found bool, err error)
	SetJSON(ctx context.Context, key, namespace string, value any) error
}

// Where the last combat summary is kept.
const (
	SummaryNamespace = "combat"
	SummaryKey       = "last_summary"
)

// Prices quotes what a consumable costs to buy.
type Prices interface {
	BuyPrice(itemHrid string) (float64, bool)
}

// StoreCategory categorizes items with the store's current static tables.
func StoreCategory(store *state.Store) CategoryFunc {
	return func(itemHrid string) string {
		t := store.Tables()
		if t == nil {
			return ""
		}
		return t.ItemCategory(itemHrid)
	}
}

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	QueueSize    int
	WriteTimeout time.Duration
}

// Tracker feeds the estimator from the store and turns each battle snapshot
// into a CombatSummary. Summaries are persisted by a single writer
// goroutine so listeners never wait on storage.
type Tracker struct {
	cfg    TrackerConfig
	store  *state.Store
	est    *Estimator
	prices Prices
	kv     KV
	logger *slog.Logger

	mu          sync.Mutex
	characterID int64
	last        *economy.CombatSummary

	subs   []*state.Subscription
	sendMu sync.RWMutex
	ch     chan economy.CombatSummary
	wg     sync.WaitGroup
	once   sync.Once
	closed bool
}

// NewTracker creates a tracker. kv and prices may be nil.
func NewTracker(cfg TrackerConfig, store *state.Store, est *Estimator, prices Prices, kv KV, logger *slog.Logger) *Tracker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		cfg:    cfg,
		store:  store,
		est:    est,
		prices: prices,
		kv:     kv,
		logger: logger,
		ch:     make(chan economy.CombatSummary, cfg.QueueSize),
	}
}

// Start subscribes to the store and starts the writer.
func (t *Tracker) Start() {
	if c, ok := t.store.Character(); ok {
		t.characterID = c.ID
	}
	t.subs = append(t.subs,
		t.store.Subscribe(protocol.TypeBattleConsumableAbilityUpdated, t.onConsumable),
		t.store.Subscribe(protocol.TypeNewBattle, t.onBattle),
		t.store.Subscribe(protocol.TypeInitCharacterData, t.onCharacter),
	)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.loop()
	}()
}

// Close unsubscribes and waits for pending writes.
func (t *Tracker) Close() error {
	t.once.Do(func() {
		for _, s := range t.subs {
			s.Unsubscribe()
		}
		t.sendMu.Lock()
		t.closed = true
		close(t.ch)
		t.sendMu.Unlock()
		t.wg.Wait()
	})
	return nil
}

// Restore loads the last persisted summary.
func (t *Tracker) Restore(ctx context.Context) (*economy.CombatSummary, error) {
	if t.kv == nil {
		return nil, nil
	}
	var s economy.CombatSummary
	found, err := t.kv.GetJSON(ctx, SummaryKey, SummaryNamespace, &s)
	if err != nil {
		return nil, fmt.Errorf("restoring combat summary: %w", err)
	}
	if !found {
		return nil, nil
	}
	t.mu.Lock()
	t.last = &s
	t.mu.Unlock()
	return &s, nil
}

// LastSummary returns the most recent summary, if any.
func (t *Tracker) LastSummary() *economy.CombatSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return nil
	}
	s := *t.last
	return &s
}

// Rates estimates hourly use and cost of every consumable seen for entity.
func (t *Tracker) Rates(entity string) (float64, []economy.ConsumableRate) {
	elapsed := t.est.Elapsed(entity).Seconds()
	var rates []economy.ConsumableRate
	for _, item := range t.est.Items(entity) {
		rates = append(rates, t.rate(entity, item, elapsed))
	}
	return elapsed, rates
}

func (t *Tracker) rate(entity, item string, elapsed float64) economy.ConsumableRate {
	r := economy.ConsumableRate{
		ItemHrid:      item,
		ObservedCount: t.est.Count(entity, item),
		RatePerHour:   t.est.EstimateRate(entity, item, elapsed) * 3600,
	}
	if t.prices == nil {
		r.PriceMissing = true
		return r
	}
	if p, ok := t.prices.BuyPrice(item); ok {
		r.CostPerHour = r.RatePerHour * p
	} else {
		r.PriceMissing = true
	}
	return r
}

func (t *Tracker) onConsumable(ev state.Event) {
	m, ok := ev.Message.(*protocol.BattleConsumableAbilityUpdated)
	if !ok || m.Consumable.ItemHrid == "" {
		return
	}
	t.est.RecordConsumption(LocalActor, m.Consumable.ItemHrid)
}

func (t *Tracker) onCharacter(ev state.Event) {
	m, ok := ev.Message.(*protocol.InitCharacterData)
	if !ok {
		return
	}
	t.mu.Lock()
	switched := t.characterID != 0 && t.characterID != m.Character.ID
	t.characterID = m.Character.ID
	if switched {
		t.last = nil
	}
	t.mu.Unlock()

	if switched {
		t.est.ResetAll()
		t.logger.Info("consumption records reset", "character", m.Character.ID)
	}
}

func (t *Tracker) onBattle(ev state.Event) {
	m, ok := ev.Message.(*protocol.NewBattle)
	if !ok {
		return
	}

	t.mu.Lock()
	localID := t.characterID
	t.mu.Unlock()

	summary := economy.CombatSummary{
		BattleID:       m.BattleID,
		CharacterID:    localID,
		RecordedAt:     time.Now().UTC().Format(time.RFC3339),
		ElapsedSeconds: t.est.Elapsed(LocalActor).Seconds(),
	}
	for _, p := range m.Players {
		entity := LocalActor
		if p.Character.ID != localID {
			entity = strconv.FormatInt(p.Character.ID, 10)
		}
		elapsed := t.est.Elapsed(entity).Seconds()

		ps := economy.PlayerCombatSummary{
			CharacterID: p.Character.ID,
			Name:        p.Character.Name,
			Loot:        p.TotalLootMap,
			Experience:  p.TotalExperienceMap,
		}
		for _, c := range p.CombatConsumables {
			r := t.rate(entity, c.ItemHrid, elapsed)
			ps.Consumables = append(ps.Consumables, r)
			ps.ConsumableCostPerHour += r.CostPerHour
		}
		summary.Players = append(summary.Players, ps)
	}

	t.mu.Lock()
	t.last = &summary
	t.mu.Unlock()
	t.enqueue(summary)
}

func (t *Tracker) enqueue(s economy.CombatSummary) {
	if t.kv == nil {
		return
	}
	t.sendMu.RLock()
	defer t.sendMu.RUnlock()
	if t.closed {
		return
	}
	select {
	case t.ch <- s:
	default:
		t.logger.Warn("combat summary queue full, dropping", "battle", s.BattleID)
	}
}

func (t *Tracker) loop() {
	for s := range t.ch {
		if t.kv == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), t.cfg.WriteTimeout)
		err := t.kv.SetJSON(ctx, SummaryKey, SummaryNamespace, s)
		cancel()
		if err != nil {
			t.logger.Warn("persisting combat summary failed", "battle", s.BattleID, "error", err)
		}
	}
}
