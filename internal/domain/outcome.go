package domain

// BasisPoints converts a fractional return to basis points.
const BasisPoints = 1e4

// OutcomeSummary aggregates forward mid-price returns measured after alerts.
// Statistic pointers are nil when no sample was taken (no data), which is
// distinct from a measured value of zero.
type OutcomeSummary struct {
	Horizon           int
	TotalRows         int
	AlertCount        int
	SpreadSpikeCount  int
	LiquidityGapCount int
	PctAlerts         float64 // 100 * AlertCount / TotalRows, 0 for an empty table
	SampleCount       int

	MeanReturn    *float64 // fraction
	StdReturn     *float64 // population std, fraction
	MeanReturnBps *float64
	StdReturnBps  *float64
	MedianReturn  *float64
	MinReturn     *float64
	MaxReturn     *float64
	HitRate       *float64 // share of samples > 0
}

// NoData reports whether no forward return could be sampled.
func (s *OutcomeSummary) NoData() bool {
	return s == nil || s.SampleCount == 0
}
