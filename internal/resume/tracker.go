package resume

import (
	"refinery/internal/batch"
)

// Tracker computes resume state from the batch store.
type Tracker struct {
	store *batch.Store
}

// NewTracker constructs a tracker over the given store.
func NewTracker(store *batch.Store) *Tracker {
	return &Tracker{store: store}
}

// CompletedItems returns the number of fully refined items: the sum of
// cardinalities of every batch present at the final stage location.
func (t *Tracker) CompletedItems() (int, error) {
	return t.store.ItemCount(t.store.Final())
}

// RemainingBatches returns how many additional source batches are required to
// reach targetTotal, floored at zero.
func (t *Tracker) RemainingBatches(targetTotal, batchSize int) (int, error) {
	completed, err := t.CompletedItems()
	if err != nil {
		return 0, err
	}
	missing := targetTotal - completed
	if missing <= 0 {
		return 0, nil
	}
	return (missing + batchSize - 1) / batchSize, nil
}

// LocationCount describes the contents of one storage location.
type LocationCount struct {
	Location batch.Location
	Batches  int
	Items    int
}

// Counts returns per-location batch and item tallies for status reporting:
// origin first, then every stage in order.
func (t *Tracker) Counts() ([]LocationCount, error) {
	locations := []batch.Location{batch.Origin}
	for stage := 1; stage <= t.store.Stages(); stage++ {
		locations = append(locations, batch.Stage(stage))
	}

	counts := make([]LocationCount, 0, len(locations))
	for _, loc := range locations {
		numbers, err := t.store.List(loc)
		if err != nil {
			return nil, err
		}
		items, err := t.store.ItemCount(loc)
		if err != nil {
			return nil, err
		}
		counts = append(counts, LocationCount{Location: loc, Batches: len(numbers), Items: items})
	}
	return counts, nil
}
