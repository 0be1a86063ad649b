package reporting

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Workbook sheet names.
const (
	SheetSummary = "Summary"
	SheetAlerts  = "Alerts"
	SheetSweep   = "Sweep"
)

// WriteXLSX writes the report as an Excel workbook with a summary sheet,
// an alerts sheet and, for sweeps, a sweep sheet.
func WriteXLSX(w io.Writer, r *Report, alerts []AlertRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeSummarySheet(f, r); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetAlerts); err != nil {
		return fmt.Errorf("create sheet %s: %w", SheetAlerts, err)
	}
	if err := writeAlertsSheet(f, alerts, r.Params.SpreadWindow); err != nil {
		return err
	}

	if len(r.Sweep) > 0 {
		if _, err := f.NewSheet(SheetSweep); err != nil {
			return fmt.Errorf("create sheet %s: %w", SheetSweep, err)
		}
		if err := writeSweepSheet(f, r.Sweep); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, r *Report) error {
	p := r.Params
	rows := [][]any{
		{"dataset_id", r.DatasetID},
		{"run_id", r.RunID},
		{"params_hash", r.ParamsHash},
		{"generated_at", formatTime(r.GeneratedAt)},
		{"spread_window", p.SpreadWindow},
		{"vol_window", p.VolWindow},
		{"depth_window", p.DepthWindow},
		{"z_threshold", p.ZThreshold},
		{"depth_factor", p.DepthFactor},
		{"horizon", p.Horizon},
		{"rows", r.Data.Rows},
		{"regular_spacing", r.Data.Regular},
	}
	if s := r.Summary; s != nil {
		rows = append(rows,
			[]any{"n_alerts", s.AlertCount},
			[]any{"n_spread_spike", s.SpreadSpikeCount},
			[]any{"n_liquidity_gap", s.LiquidityGapCount},
			[]any{"pct_alerts", s.PctAlerts},
			[]any{"n_samples", s.SampleCount},
			[]any{"mean_return_frac", optionalCell(s.MeanReturn)},
			[]any{"mean_return_bps", optionalCell(s.MeanReturnBps)},
			[]any{"std_return_frac", optionalCell(s.StdReturn)},
			[]any{"std_return_bps", optionalCell(s.StdReturnBps)},
			[]any{"hit_rate", optionalCell(s.HitRate)},
		)
	}
	return setRows(f, SheetSummary, rows)
}

func writeAlertsSheet(f *excelize.File, alerts []AlertRow, spreadWindow int) error {
	rows := make([][]any, 0, len(alerts)+1)
	rows = append(rows, []any{
		"row", "timestamp", "bid", "ask", "mid", "spread",
		fmt.Sprintf("spread_z_%ds", spreadWindow), "imbalance_top", "top_depth", "depth_med",
		"spread_spike", "liquidity_gap", "forward_return",
	})
	for _, a := range alerts {
		rows = append(rows, []any{
			a.RowIndex, formatTime(a.Timestamp), a.Bid, a.Ask, a.Mid, a.Spread,
			finiteCell(a.SpreadZ), a.ImbalanceTop, a.TopDepth, a.DepthMed,
			a.SpreadSpike, a.LiquidityGap, optionalCell(a.ForwardReturn),
		})
	}
	return setRows(f, SheetAlerts, rows)
}

func writeSweepSheet(f *excelize.File, sweep []SweepRow) error {
	rows := make([][]any, 0, len(sweep)+1)
	rows = append(rows, []any{
		"run_id", "spread_window", "vol_window", "depth_window", "z_threshold", "depth_factor", "horizon",
		"n_alerts", "pct_alerts", "n_samples", "mean_return_bps", "std_return_bps", "hit_rate",
	})
	for _, s := range sweep {
		p, o := s.Params, s.Summary
		rows = append(rows, []any{
			s.RunID, p.SpreadWindow, p.VolWindow, p.DepthWindow, p.ZThreshold, p.DepthFactor, p.Horizon,
			o.AlertCount, o.PctAlerts, o.SampleCount,
			optionalCell(o.MeanReturnBps), optionalCell(o.StdReturnBps), optionalCell(o.HitRate),
		})
	}
	return setRows(f, SheetSweep, rows)
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}

// optionalCell leaves nil statistics blank.
func optionalCell(x *float64) any {
	if x == nil {
		return ""
	}
	return finiteCell(*x)
}

func finiteCell(x float64) any {
	if s := formatFixed(x, returnPlaces); s == "" {
		return ""
	}
	return x
}
