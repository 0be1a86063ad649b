package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Microstructure Alert Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.DatasetID != "" {
		sb.WriteString(fmt.Sprintf("Dataset: %s", r.DatasetID))
		if r.RunID != "" {
			sb.WriteString(fmt.Sprintf(" | Run: %s", r.RunID))
		}
		sb.WriteString("\n\n")
	}

	// Parameters
	p := r.Params
	sb.WriteString("## Parameters\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Spread window (rows) | %d |\n", p.SpreadWindow))
	sb.WriteString(fmt.Sprintf("| Vol window (rows) | %d |\n", p.VolWindow))
	sb.WriteString(fmt.Sprintf("| Depth window (rows) | %d |\n", p.DepthWindow))
	sb.WriteString(fmt.Sprintf("| Z threshold | %g |\n", p.ZThreshold))
	sb.WriteString(fmt.Sprintf("| Depth factor | %g |\n", p.DepthFactor))
	sb.WriteString(fmt.Sprintf("| Horizon (rows) | %d |\n", p.Horizon))
	if r.ParamsHash != "" {
		sb.WriteString(fmt.Sprintf("| Params hash | `%s` |\n", shortHash(r.ParamsHash)))
	}
	sb.WriteString("\n")

	// Data
	d := r.Data
	sb.WriteString("## Data\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Rows | %d |\n", d.Rows))
	if d.Rows > 0 {
		sb.WriteString(fmt.Sprintf("| Start | %s |\n", d.Start.UTC().Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("| End | %s |\n", d.End.UTC().Format(time.RFC3339)))
	}
	sb.WriteString(fmt.Sprintf("| Median interval | %s |\n", d.MedianInterval))
	sb.WriteString(fmt.Sprintf("| Non-monotonic steps | %d |\n", d.NonMonotonic))
	sb.WriteString(fmt.Sprintf("| Irregular steps | %s%% |\n", formatFixed(100*d.IrregularFrac, 2)))
	sb.WriteString("\n")
	if d.Rows > 1 && !d.Regular {
		sb.WriteString("**Warning:** tick spacing is irregular. Windows and horizons are row counts, ")
		sb.WriteString("so they do not correspond to fixed durations.\n\n")
	}

	// Outcome
	sb.WriteString("## Alert Outcome\n\n")
	if s := r.Summary; s != nil {
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Alerts | %d (%s%% of rows) |\n", s.AlertCount, formatFixed(s.PctAlerts, 2)))
		sb.WriteString(fmt.Sprintf("| Spread spikes | %d |\n", s.SpreadSpikeCount))
		sb.WriteString(fmt.Sprintf("| Liquidity gaps | %d |\n", s.LiquidityGapCount))
		sb.WriteString(fmt.Sprintf("| Samples | %d |\n", s.SampleCount))
		sb.WriteString(fmt.Sprintf("| Mean return (bps) | %s |\n", formatOptionalMD(s.MeanReturnBps, 2)))
		sb.WriteString(fmt.Sprintf("| Std return (bps) | %s |\n", formatOptionalMD(s.StdReturnBps, 2)))
		sb.WriteString(fmt.Sprintf("| Median return (bps) | %s |\n", formatOptionalMD(scaled(s.MedianReturn, 1e4), 2)))
		sb.WriteString(fmt.Sprintf("| Min / Max return (bps) | %s / %s |\n",
			formatOptionalMD(scaled(s.MinReturn, 1e4), 2), formatOptionalMD(scaled(s.MaxReturn, 1e4), 2)))
		sb.WriteString(fmt.Sprintf("| Hit rate | %s |\n", formatOptionalMD(s.HitRate, 4)))
		sb.WriteString("\n")
		if s.NoData() {
			sb.WriteString("No forward return could be sampled: no alert has a valid horizon row.\n\n")
		}
	} else {
		sb.WriteString("No outcome available.\n\n")
	}

	// Sweep
	if len(r.Sweep) > 0 {
		sb.WriteString("## Parameter Sweep\n\n")
		sb.WriteString("| Spread W | Vol W | Depth W | Z | Depth factor | Horizon | Alerts | Samples | Mean (bps) | Std (bps) | Hit rate |\n")
		sb.WriteString("|----------|-------|---------|---|--------------|---------|--------|---------|------------|-----------|----------|\n")
		for _, row := range r.Sweep {
			p, s := row.Params, row.Summary
			sb.WriteString(fmt.Sprintf("| %d | %d | %d | %g | %g | %d | %d | %d | %s | %s | %s |\n",
				p.SpreadWindow, p.VolWindow, p.DepthWindow, p.ZThreshold, p.DepthFactor, p.Horizon,
				s.AlertCount, s.SampleCount,
				formatOptionalMD(s.MeanReturnBps, 2), formatOptionalMD(s.StdReturnBps, 2),
				formatOptionalMD(s.HitRate, 4)))
		}
		sb.WriteString("\n")
	}

	// Recent alerts
	sb.WriteString("## Recent Alerts\n\n")
	if len(r.RecentAlerts) > 0 {
		sb.WriteString("| Row | Timestamp | Mid | Spread | Z | Depth | Depth med | Type | Fwd return (bps) |\n")
		sb.WriteString("|-----|-----------|-----|--------|---|-------|-----------|------|------------------|\n")
		for _, a := range r.RecentAlerts {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s | %s | %s | %s |\n",
				a.RowIndex, a.Timestamp.UTC().Format(time.RFC3339),
				formatFixed(a.Mid, 4), formatFixed(a.Spread, 4), formatFixed(a.SpreadZ, 2),
				formatFixed(a.TopDepth, 0), formatFixed(a.DepthMed, 0),
				alertType(a), formatOptionalMD(scaled(a.ForwardReturn, 1e4), 2)))
		}
	} else {
		sb.WriteString("No alerts.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func alertType(a AlertRow) string {
	switch {
	case a.SpreadSpike && a.LiquidityGap:
		return "spike+gap"
	case a.SpreadSpike:
		return "spike"
	case a.LiquidityGap:
		return "gap"
	}
	return ""
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
