// Package consumption estimates how fast consumables are used in combat
// from sparse observed events, anchored by a per-category baseline.
package consumption

import (
	"sort"
	"sync"
	"time"

	"github.com/rsned/idle-economy-server/internal/economy/gamedata"
)

// LocalActor keys the records of the character this session observes.
const LocalActor = "@local"

// Estimator constants. These are fixed; do not tune them.
const (
	BaselineWindowSeconds = 600.0
	ObservedWeight        = 0.9
	BlendedWeight         = 0.1
)

// BaselineCount is the consumption assumed over one baseline window for an
// item category.
func BaselineCount(categoryHrid string) float64 {
	switch categoryHrid {
	case gamedata.CategoryDrink:
		return 2
	case gamedata.CategoryFood:
		return 10
	default:
		return 0
	}
}

// EstimateRate blends the observed rate with a baseline-anchored rate. The
// result is in units per second.
func EstimateRate(observedCount, baselineCount, elapsedSeconds float64) float64 {
	var observed float64
	if elapsedSeconds > 0 {
		observed = observedCount / elapsedSeconds
	}
	blended := (baselineCount + observedCount) / (BaselineWindowSeconds + elapsedSeconds)
	return ObservedWeight*observed + BlendedWeight*blended
}

// CategoryFunc maps an item to its category hrid.
type CategoryFunc func(itemHrid string) string

type record struct {
	start  time.Time
	counts map[string]int
}

// Estimator keeps per-entity consumption counts. It is safe for concurrent
// use.
type Estimator struct {
	category CategoryFunc
	now      func() time.Time

	mu      sync.Mutex
	records map[string]*record
}

// NewEstimator creates an estimator. category may be nil, in which case
// every item gets a zero baseline.
func NewEstimator(category CategoryFunc) *Estimator {
	if category == nil {
		category = func(string) string { return "" }
	}
	return &Estimator{
		category: category,
		now:      time.Now,
		records:  make(map[string]*record),
	}
}

// record returns the entity's record, starting tracking on first use.
// Callers hold e.mu.
func (e *Estimator) record(entity string) *record {
	r, ok := e.records[entity]
	if !ok {
		r = &record{start: e.now(), counts: make(map[string]int)}
		e.records[entity] = r
	}
	return r
}

// RecordConsumption counts one use of itemHrid by entity.
func (e *Estimator) RecordConsumption(entity, itemHrid string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(entity).counts[itemHrid]++
}

// Count is how many uses of itemHrid have been observed for entity.
func (e *Estimator) Count(entity, itemHrid string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.records[entity]; ok {
		return r.counts[itemHrid]
	}
	return 0
}

// Elapsed is the time since tracking of entity began. Asking starts
// tracking if it has not started yet.
func (e *Estimator) Elapsed(entity string) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now().Sub(e.record(entity).start)
}

// Started is when tracking of entity began.
func (e *Estimator) Started(entity string) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.records[entity]
	if !ok {
		return time.Time{}, false
	}
	return r.start, true
}

// EstimateRate estimates uses per second of itemHrid by entity over
// elapsedSeconds.
func (e *Estimator) EstimateRate(entity, itemHrid string, elapsedSeconds float64) float64 {
	e.mu.Lock()
	n := e.record(entity).counts[itemHrid]
	e.mu.Unlock()
	return EstimateRate(float64(n), BaselineCount(e.category(itemHrid)), elapsedSeconds)
}

// Items lists the items observed for entity, sorted.
func (e *Estimator) Items(entity string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.records[entity]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(r.counts))
	for item := range r.counts {
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

// Reset tears down one entity's record. Its next use starts a new window.
func (e *Estimator) Reset(entity string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.records, entity)
}

// ResetAll tears down every record.
func (e *Estimator) ResetAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = make(map[string]*record)
}
