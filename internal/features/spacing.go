package features

import (
	"sort"
	"time"

	"microstructure-lab/internal/domain"
)

// irregularTolerance is the relative deviation from the median interval
// above which a step counts as irregular.
const irregularTolerance = 0.5

// SpacingReport describes the inter-row timestamp spacing of a tick table.
// Windows are row counts, so they only correspond to wall-clock durations
// when spacing is regular.
type SpacingReport struct {
	Rows           int
	MedianInterval time.Duration
	NonMonotonic   int     // steps where timestamp decreases
	IrregularSteps int     // steps deviating from the median by more than 50%
	IrregularFrac  float64 // IrregularSteps / (Rows - 1)
}

// Regular reports whether timestamps are monotonic with at most 1% irregular steps.
func (r SpacingReport) Regular() bool {
	return r.NonMonotonic == 0 && r.IrregularFrac <= 0.01
}

// InspectSpacing computes the spacing report for ticks.
func InspectSpacing(ticks *domain.TickTable) SpacingReport {
	n := 0
	if ticks != nil {
		n = len(ticks.Timestamp)
	}
	rep := SpacingReport{Rows: n}
	if n < 2 {
		return rep
	}

	steps := make([]time.Duration, n-1)
	for i := 1; i < n; i++ {
		d := ticks.Timestamp[i].Sub(ticks.Timestamp[i-1])
		steps[i-1] = d
		if d < 0 {
			rep.NonMonotonic++
		}
	}

	sorted := make([]time.Duration, len(steps))
	copy(sorted, steps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	m := len(sorted)
	if m%2 == 1 {
		rep.MedianInterval = sorted[m/2]
	} else {
		rep.MedianInterval = (sorted[m/2-1] + sorted[m/2]) / 2
	}

	med := float64(rep.MedianInterval)
	for _, d := range steps {
		dev := float64(d) - med
		if dev < 0 {
			dev = -dev
		}
		if dev > irregularTolerance*med {
			rep.IrregularSteps++
		}
	}
	rep.IrregularFrac = float64(rep.IrregularSteps) / float64(len(steps))
	return rep
}
