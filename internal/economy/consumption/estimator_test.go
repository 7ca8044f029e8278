package consumption

import (
	"math"
	"testing"
	"time"

	"github.com/rsned/idle-economy-server/internal/economy/gamedata"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestEstimateRate_Formula(t *testing.T) {
	tests := []struct {
		name                     string
		observed, baseline, secs float64
		want                     float64
	}{
		{"no samples yet", 0, 2, 60, 0.1 * (2.0 / 660)},
		{"six drinks in a minute", 6, 2, 60, 0.9*0.1 + 0.1*(8.0/660)},
		{"zero elapsed", 4, 10, 0, 0.1 * (14.0 / 600)},
		{"negative elapsed", 4, 0, -5, 0.1 * (4.0 / 595)},
		{"no baseline", 10, 0, 600, 0.9*(10.0/600) + 0.1*(10.0/1200)},
	}
	for _, tc := range tests {
		got := EstimateRate(tc.observed, tc.baseline, tc.secs)
		if math.Abs(got-tc.want) > 1e-15 {
			t.Errorf("%s: EstimateRate(%v,%v,%v) = %v, want %v", tc.name, tc.observed, tc.baseline, tc.secs, got, tc.want)
		}
	}

	if got := EstimateRate(0, 2, 60); math.Abs(got-0.000303) > 1e-6 {
		t.Errorf("drink, no samples = %v, want ~0.000303", got)
	}
	if got := EstimateRate(6, 2, 60); math.Abs(got-0.09121) > 1e-5 {
		t.Errorf("drink, six samples = %v, want ~0.09121", got)
	}
}

func TestBaselineCount(t *testing.T) {
	for cat, want := range map[string]float64{
		gamedata.CategoryDrink:       2,
		gamedata.CategoryFood:        10,
		"/item_categories/equipment": 0,
		"":                           0,
	} {
		if got := BaselineCount(cat); got != want {
			t.Errorf("BaselineCount(%q) = %v, want %v", cat, got, want)
		}
	}
}

func newTestEstimator() (*Estimator, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	e := NewEstimator(func(item string) string {
		switch item {
		case "/items/tea":
			return gamedata.CategoryDrink
		case "/items/donut":
			return gamedata.CategoryFood
		}
		return ""
	})
	e.now = clock.now
	return e, clock
}

func TestEstimator_RecordAndEstimate(t *testing.T) {
	e, clock := newTestEstimator()

	for i := 0; i < 6; i++ {
		e.RecordConsumption(LocalActor, "/items/tea")
	}
	clock.advance(60 * time.Second)

	if got := e.Count(LocalActor, "/items/tea"); got != 6 {
		t.Fatalf("count = %d, want 6", got)
	}
	elapsed := e.Elapsed(LocalActor).Seconds()
	if elapsed != 60 {
		t.Fatalf("elapsed = %v, want 60", elapsed)
	}
	if got, want := e.EstimateRate(LocalActor, "/items/tea", elapsed), EstimateRate(6, 2, 60); got != want {
		t.Errorf("tea rate = %v, want %v", got, want)
	}
	if got, want := e.EstimateRate(LocalActor, "/items/donut", elapsed), EstimateRate(0, 10, 60); got != want {
		t.Errorf("donut rate = %v, want %v", got, want)
	}
}

func TestEstimator_StartIsStable(t *testing.T) {
	e, clock := newTestEstimator()

	// Asking for elapsed time starts tracking.
	if _, ok := e.Started("42"); ok {
		t.Fatalf("tracking started before use")
	}
	_ = e.Elapsed("42")
	start, ok := e.Started("42")
	if !ok {
		t.Fatalf("tracking not started by Elapsed")
	}

	clock.advance(time.Minute)
	e.RecordConsumption("42", "/items/tea")
	clock.advance(time.Minute)
	e.RecordConsumption("42", "/items/tea")

	if again, _ := e.Started("42"); !again.Equal(start) {
		t.Errorf("start moved from %v to %v", start, again)
	}
	if got := e.Elapsed("42"); got != 2*time.Minute {
		t.Errorf("elapsed = %v, want 2m", got)
	}
}

func TestEstimator_Reset(t *testing.T) {
	e, clock := newTestEstimator()
	e.RecordConsumption(LocalActor, "/items/tea")
	e.RecordConsumption("7", "/items/donut")
	clock.advance(time.Minute)

	e.Reset(LocalActor)
	if got := e.Count(LocalActor, "/items/tea"); got != 0 {
		t.Errorf("count after reset = %d", got)
	}
	if got := e.Elapsed(LocalActor); got != 0 {
		t.Errorf("elapsed after reset = %v, want a fresh window", got)
	}
	if got := e.Count("7", "/items/donut"); got != 1 {
		t.Errorf("other entity touched by reset: %d", got)
	}

	e.ResetAll()
	if items := e.Items("7"); len(items) != 0 {
		t.Errorf("items after ResetAll = %v", items)
	}
}
