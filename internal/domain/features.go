package domain

// FeatureTable is a TickTable extended with the basic derived columns.
// Ticks is shared with the caller and is read-only.
type FeatureTable struct {
	Ticks *TickTable

	Spread          []float64 // ask - bid
	Mid             []float64 // (ask + bid) / 2
	Ret1s           []float64 // fractional mid change vs previous row, 0 on row 0
	VWAP            []float64 // cumulative trade VWAP, mid before the first trade
	ImbalanceTop    []float64 // (bid_vol - ask_vol) / (bid_vol + ask_vol), 0 if both are 0
	AbsImbalanceTop []float64 // |imbalance_top|
	TopDepth        []float64 // bid_vol + ask_vol
}

// Len returns the number of rows.
func (f *FeatureTable) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Mid)
}

// Windows holds the rolling window sizes, in rows.
type Windows struct {
	Spread int // spread mean/std/z-score window
	Vol    int // ret_1s volatility window
	Depth  int // top_depth median window
}

// RollingTable is a FeatureTable extended with rolling statistics.
type RollingTable struct {
	*FeatureTable
	Windows Windows

	SpreadMean []float64
	SpreadStd  []float64
	SpreadZ    []float64
	Vol        []float64
	DepthMed   []float64
}

// ZEpsilon floors the z-score denominator.
const ZEpsilon = 1e-9
