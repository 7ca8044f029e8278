package gamedata

import (
	"encoding/json"
	"fmt"
)

// RewardEntry is one weighted outcome of a reward table: either a
// TerminalEntry or a NestedTableEntry.
type RewardEntry interface {
	EntryWeight() float64
	isRewardEntry()
}

// TerminalEntry yields an item in a random count range.
type TerminalEntry struct {
	ItemHrid string
	Weight   float64
	MinCount float64
	MaxCount float64
}

func (e TerminalEntry) EntryWeight() float64 { return e.Weight }
func (TerminalEntry) isRewardEntry()         {}

// AverageCount is the expected midpoint of the count range.
func (e TerminalEntry) AverageCount() float64 {
	return (e.MinCount + e.MaxCount) / 2
}

// NestedTableEntry yields the contents of another reward table.
type NestedTableEntry struct {
	TableHrid string
	Weight    float64
}

func (e NestedTableEntry) EntryWeight() float64 { return e.Weight }
func (NestedTableEntry) isRewardEntry()         {}

// RewardTable is a static, weighted list of possible contents of an openable
// item. Weights need not sum to one.
type RewardTable struct {
	Hrid    string
	Entries []RewardEntry
}

type rewardEntryJSON struct {
	Weight    float64  `json:"weight"`
	ItemHrid  string   `json:"itemHrid,omitempty"`
	TableHrid string   `json:"tableHrid,omitempty"`
	MinCount  *float64 `json:"minCount,omitempty"`
	MaxCount  *float64 `json:"maxCount,omitempty"`
}

type rewardTableJSON struct {
	Hrid    string            `json:"hrid,omitempty"`
	Entries []rewardEntryJSON `json:"entries"`
}

// UnmarshalJSON decodes entries into their tagged variants. An entry with a
// tableHrid is nested; otherwise it must name an item. Counts default to one.
func (rt *RewardTable) UnmarshalJSON(b []byte) error {
	var raw rewardTableJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	rt.Hrid = raw.Hrid
	rt.Entries = make([]RewardEntry, 0, len(raw.Entries))
	for i, e := range raw.Entries {
		switch {
		case e.TableHrid != "":
			rt.Entries = append(rt.Entries, NestedTableEntry{TableHrid: e.TableHrid, Weight: e.Weight})
		case e.ItemHrid != "":
			minCount, maxCount := 1.0, 1.0
			if e.MinCount != nil {
				minCount = *e.MinCount
			}
			if e.MaxCount != nil {
				maxCount = *e.MaxCount
			} else {
				maxCount = minCount
			}
			rt.Entries = append(rt.Entries, TerminalEntry{
				ItemHrid: e.ItemHrid,
				Weight:   e.Weight,
				MinCount: minCount,
				MaxCount: maxCount,
			})
		default:
			return fmt.Errorf("reward table %s entry %d: neither itemHrid nor tableHrid", raw.Hrid, i)
		}
	}
	return nil
}

// MarshalJSON is the inverse of UnmarshalJSON.
func (rt RewardTable) MarshalJSON() ([]byte, error) {
	raw := rewardTableJSON{Hrid: rt.Hrid, Entries: make([]rewardEntryJSON, 0, len(rt.Entries))}
	for _, e := range rt.Entries {
		switch v := e.(type) {
		case TerminalEntry:
			minCount, maxCount := v.MinCount, v.MaxCount
			raw.Entries = append(raw.Entries, rewardEntryJSON{
				Weight: v.Weight, ItemHrid: v.ItemHrid, MinCount: &minCount, MaxCount: &maxCount,
			})
		case NestedTableEntry:
			raw.Entries = append(raw.Entries, rewardEntryJSON{Weight: v.Weight, TableHrid: v.TableHrid})
		}
	}
	return json.Marshal(raw)
}

// TotalWeight sums the non-negative entry weights.
func (rt *RewardTable) TotalWeight() float64 {
	var total float64
	for _, e := range rt.Entries {
		if w := e.EntryWeight(); w > 0 {
			total += w
		}
	}
	return total
}
