// Package metrics measures forward mid-price drift after alerts.
package metrics

import (
	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/lookup"
)

// ForwardReturns returns, for every any_alert row of at in ascending order,
// the row index and the forward return horizon rows later. The return is nil
// when the target row is out of range or either mid is undefined or the
// anchor mid is zero.
func ForwardReturns(at *domain.AlertTable, horizon int) ([]int, []*float64, error) {
	if err := domain.ValidateHorizon(horizon); err != nil {
		return nil, nil, err
	}
	if at == nil {
		return nil, nil, nil
	}

	idx := at.AlertIndices()
	out := make([]*float64, len(idx))
	for k, i := range idx {
		r, err := lookup.ForwardReturn(at.Mid, i, horizon)
		if err != nil {
			continue
		}
		out[k] = ptr(r)
	}
	return idx, out, nil
}

// EvaluateOutcomes aggregates forward returns over all alert rows.
//
// AlertCount includes alerts whose horizon row is unavailable; SampleCount
// only those with a measured return. Std is the population std. An empty
// table or an alert set with no valid target gives nil statistics.
func EvaluateOutcomes(at *domain.AlertTable, horizon int) (*domain.OutcomeSummary, error) {
	idx, fwd, err := ForwardReturns(at, horizon)
	if err != nil {
		return nil, err
	}

	s := &domain.OutcomeSummary{Horizon: horizon}
	if at == nil {
		return s, nil
	}

	counts := at.Counts()
	s.TotalRows = at.Len()
	s.AlertCount = len(idx)
	s.SpreadSpikeCount = counts.SpreadSpike
	s.LiquidityGapCount = counts.LiquidityGap
	if s.TotalRows > 0 {
		s.PctAlerts = 100 * float64(s.AlertCount) / float64(s.TotalRows)
	}

	returns := make([]float64, 0, len(fwd))
	for _, r := range fwd {
		if r != nil {
			returns = append(returns, *r)
		}
	}
	summarizeReturns(s, returns)
	return s, nil
}
