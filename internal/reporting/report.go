package reporting

import (
	"time"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/features"
	"microstructure-lab/internal/metrics"
)

// Report represents one analysis report: a run summary, optional sweep
// comparison and the most recent alerts.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	DatasetID   string
	RunID       string
	ParamsHash  string
	Params      domain.Params

	// Data description
	Data DataSection

	// Outcome of the reported run
	Summary *domain.OutcomeSummary

	// Sweep rows, sorted by params (empty for single runs)
	Sweep []SweepRow

	// Most recent alerts, newest last
	RecentAlerts []AlertRow
}

// DataSection describes the analysed tick table.
type DataSection struct {
	Rows           int
	Start          time.Time
	End            time.Time
	MedianInterval time.Duration
	NonMonotonic   int
	IrregularFrac  float64
	Regular        bool
}

// SweepRow is one parameter set of a sweep with its outcome.
type SweepRow struct {
	RunID   string
	Params  domain.Params
	Summary *domain.OutcomeSummary
}

// AlertRow is one flagged row for export.
type AlertRow struct {
	RowIndex      int
	Timestamp     time.Time
	Bid           float64
	Ask           float64
	Mid           float64
	Spread        float64
	SpreadZ       float64
	ImbalanceTop  float64
	TopDepth      float64
	DepthMed      float64
	SpreadSpike   bool
	LiquidityGap  bool
	ForwardReturn *float64
}

// BuildAlertRows extracts every any_alert row of at with its forward return.
func BuildAlertRows(at *domain.AlertTable, horizon int) ([]AlertRow, error) {
	idx, fwd, err := metrics.ForwardReturns(at, horizon)
	if err != nil {
		return nil, err
	}

	rows := make([]AlertRow, len(idx))
	for k, i := range idx {
		rows[k] = AlertRow{
			RowIndex:      i,
			Timestamp:     at.Ticks.Timestamp[i],
			Bid:           at.Ticks.Bid[i],
			Ask:           at.Ticks.Ask[i],
			Mid:           at.Mid[i],
			Spread:        at.Spread[i],
			SpreadZ:       at.SpreadZ[i],
			ImbalanceTop:  at.ImbalanceTop[i],
			TopDepth:      at.TopDepth[i],
			DepthMed:      at.DepthMed[i],
			SpreadSpike:   at.SpreadSpike[i],
			LiquidityGap:  at.LiquidityGap[i],
			ForwardReturn: fwd[k],
		}
	}
	return rows, nil
}

// AlertRowsFromEvents converts stored alert events to export rows.
// Bid and ask are reconstructed from mid and spread.
func AlertRowsFromEvents(events []*domain.AlertEvent) []AlertRow {
	rows := make([]AlertRow, len(events))
	for k, e := range events {
		rows[k] = AlertRow{
			RowIndex:      e.RowIndex,
			Timestamp:     e.Timestamp,
			Bid:           e.Mid - e.Spread/2,
			Ask:           e.Mid + e.Spread/2,
			Mid:           e.Mid,
			Spread:        e.Spread,
			SpreadZ:       e.SpreadZ,
			TopDepth:      e.TopDepth,
			DepthMed:      e.DepthMed,
			SpreadSpike:   e.SpreadSpike,
			LiquidityGap:  e.LiquidityGap,
			ForwardReturn: e.ForwardReturn,
		}
	}
	return rows
}

// Tail returns the last n rows.
func Tail(rows []AlertRow, n int) []AlertRow {
	if n <= 0 || len(rows) <= n {
		return rows
	}
	return rows[len(rows)-n:]
}

// NewDataSection describes ticks using a precomputed spacing report.
func NewDataSection(ticks *domain.TickTable, sp features.SpacingReport) DataSection {
	d := DataSection{
		Rows:           sp.Rows,
		MedianInterval: sp.MedianInterval,
		NonMonotonic:   sp.NonMonotonic,
		IrregularFrac:  sp.IrregularFrac,
		Regular:        sp.Regular(),
	}
	if ticks != nil && len(ticks.Timestamp) > 0 {
		d.Start = ticks.Timestamp[0]
		d.End = ticks.Timestamp[len(ticks.Timestamp)-1]
	}
	return d
}
