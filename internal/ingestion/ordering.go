package ingestion

import (
	"errors"
	"sort"

	"microstructure-lab/internal/domain"
)

// ErrInvalidOrdering is returned when ticks are not strictly increasing in time.
var ErrInvalidOrdering = errors.New("ticks are not in timestamp order")

// SortTicks orders ticks by timestamp ASC, keeping arrival order for ties.
func SortTicks(ticks []domain.Tick) {
	sort.SliceStable(ticks, func(i, j int) bool {
		return ticks[i].Timestamp.Before(ticks[j].Timestamp)
	})
}

// DedupeTicks drops ticks sharing a timestamp with their successor, so the
// last observation per timestamp wins. ticks must be sorted.
func DedupeTicks(ticks []domain.Tick) ([]domain.Tick, int) {
	if len(ticks) < 2 {
		return ticks, 0
	}
	out := ticks[:0:0]
	for i, t := range ticks {
		if i+1 < len(ticks) && ticks[i+1].Timestamp.Equal(t.Timestamp) {
			continue
		}
		out = append(out, t)
	}
	return out, len(ticks) - len(out)
}

// ValidateTickOrdering checks that timestamps are strictly increasing.
// Returns ErrInvalidOrdering if not.
func ValidateTickOrdering(ticks []domain.Tick) error {
	for i := 1; i < len(ticks); i++ {
		if !ticks[i-1].Timestamp.Before(ticks[i].Timestamp) {
			return ErrInvalidOrdering
		}
	}
	return nil
}
