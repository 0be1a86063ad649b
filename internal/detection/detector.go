// Package detection flags spread spikes and liquidity gaps from rolling statistics.
package detection

import (
	"microstructure-lab/internal/domain"
)

// DetectAlerts evaluates the threshold rules for every row of rt:
//
//   - spread_spike = spread_z > zThreshold
//   - liquidity_gap = top_depth < depth_med * depthFactor
//   - any_alert = spread_spike OR liquidity_gap
//
// No row is skipped for warm-up. The rolling table is read-only; calling
// again with the same inputs yields an equal table.
func DetectAlerts(rt *domain.RollingTable, zThreshold, depthFactor float64) (*domain.AlertTable, error) {
	th := domain.Thresholds{ZThreshold: zThreshold, DepthFactor: depthFactor}
	if err := th.Validate(); err != nil {
		return nil, err
	}
	if rt == nil || rt.FeatureTable == nil {
		return nil, &domain.SchemaError{Column: "spread_z", Reason: "rolling table is nil"}
	}

	n := rt.Len()
	if len(rt.SpreadZ) != n || len(rt.DepthMed) != n || len(rt.TopDepth) != n {
		return nil, &domain.SchemaError{Column: "spread_z", Reason: "rolling columns do not match table length"}
	}

	at := &domain.AlertTable{
		RollingTable: rt,
		Thresholds:   th,
		SpreadSpike:  make([]bool, n),
		LiquidityGap: make([]bool, n),
		AnyAlert:     make([]bool, n),
	}
	for i := 0; i < n; i++ {
		spike := rt.SpreadZ[i] > zThreshold
		gap := rt.TopDepth[i] < rt.DepthMed[i]*depthFactor
		at.SpreadSpike[i] = spike
		at.LiquidityGap[i] = gap
		at.AnyAlert[i] = spike || gap
	}
	return at, nil
}
