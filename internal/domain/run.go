package domain

import (
	"time"
)

// RunRecord is the persisted summary of one analysis run.
type RunRecord struct {
	RunID      string
	DatasetID  string
	ParamsHash string
	Params     Params

	TotalRows         int
	AlertCount        int
	SpreadSpikeCount  int
	LiquidityGapCount int
	SampleCount       int
	MeanReturn        *float64
	StdReturn         *float64

	CreatedAt time.Time
}

// NewRunRecord builds a run record from a summary.
func NewRunRecord(runID, datasetID, paramsHash string, p Params, s *OutcomeSummary, createdAt time.Time) *RunRecord {
	return &RunRecord{
		RunID:             runID,
		DatasetID:         datasetID,
		ParamsHash:        paramsHash,
		Params:            p,
		TotalRows:         s.TotalRows,
		AlertCount:        s.AlertCount,
		SpreadSpikeCount:  s.SpreadSpikeCount,
		LiquidityGapCount: s.LiquidityGapCount,
		SampleCount:       s.SampleCount,
		MeanReturn:        s.MeanReturn,
		StdReturn:         s.StdReturn,
		CreatedAt:         createdAt,
	}
}

// AlertEvent is one flagged row of a run, with its forward return when sampled.
type AlertEvent struct {
	RunID         string
	RowIndex      int
	Timestamp     time.Time
	Mid           float64
	Spread        float64
	SpreadZ       float64
	TopDepth      float64
	DepthMed      float64
	SpreadSpike   bool
	LiquidityGap  bool
	ForwardReturn *float64 // nil when the horizon row was unavailable
}

// FeatureRow is one row of a RollingTable in row-oriented form.
type FeatureRow struct {
	RowIndex int
	Tick
	Spread          float64
	Mid             float64
	Ret1s           float64
	VWAP            float64
	ImbalanceTop    float64
	AbsImbalanceTop float64
	TopDepth        float64
	SpreadMean      float64
	SpreadStd       float64
	SpreadZ         float64
	Vol             float64
	DepthMed        float64
}

// Row returns row i of the rolling table.
func (r *RollingTable) Row(i int) FeatureRow {
	return FeatureRow{
		RowIndex:        i,
		Tick:            r.Ticks.Row(i),
		Spread:          r.Spread[i],
		Mid:             r.Mid[i],
		Ret1s:           r.Ret1s[i],
		VWAP:            r.VWAP[i],
		ImbalanceTop:    r.ImbalanceTop[i],
		AbsImbalanceTop: r.AbsImbalanceTop[i],
		TopDepth:        r.TopDepth[i],
		SpreadMean:      r.SpreadMean[i],
		SpreadStd:       r.SpreadStd[i],
		SpreadZ:         r.SpreadZ[i],
		Vol:             r.Vol[i],
		DepthMed:        r.DepthMed[i],
	}
}
