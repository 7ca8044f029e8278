package state

import "github.com/rsned/idle-economy-server/pkg/economy"

// MergeListings upserts incoming into existing by listing id. Existing
// entries keep their position, a matching incoming entry replaces them in
// place, and unseen ids are appended in arrival order. Entries with id 0 are
// skipped and counted.
//
// The result is always a new slice. Untouched entries are shared with
// existing, not cloned.
func MergeListings(existing []*economy.Listing, incoming []economy.Listing) ([]*economy.Listing, int) {
	merged := make([]*economy.Listing, len(existing), len(existing)+len(incoming))
	copy(merged, existing)

	index := make(map[int64]int, len(merged))
	for i, l := range merged {
		index[l.ID] = i
	}

	skipped := 0
	for i := range incoming {
		l := incoming[i]
		if l.ID == 0 {
			skipped++
			continue
		}
		if pos, ok := index[l.ID]; ok {
			merged[pos] = &l
			continue
		}
		index[l.ID] = len(merged)
		merged = append(merged, &l)
	}
	return merged, skipped
}
