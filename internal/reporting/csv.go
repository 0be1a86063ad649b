package reporting

import (
	"fmt"
	"strconv"
	"strings"

	"microstructure-lab/internal/domain"
)

// RenderFeaturesCSV renders every row of a rolling table as CSV.
// Rolling columns carry their window in the header, e.g. spread_mean_60s.
func RenderFeaturesCSV(rt *domain.RollingTable) string {
	var sb strings.Builder
	w := rt.Windows

	// Header
	sb.WriteString("timestamp,bid,ask,bid_vol,ask_vol,trade_price,trade_size,")
	sb.WriteString("spread,mid,ret_1s,vwap,imbalance_top,abs_imbalance_top,top_depth,")
	sb.WriteString(fmt.Sprintf("spread_mean_%ds,spread_std_%ds,spread_z_%ds,vol_%ds,depth_med_%ds\n",
		w.Spread, w.Spread, w.Spread, w.Vol, w.Depth))

	// Rows
	for i := 0; i < rt.Len(); i++ {
		r := rt.Row(i)
		cells := []string{
			formatTime(r.Timestamp),
			formatFixed(r.Bid, pricePlaces),
			formatFixed(r.Ask, pricePlaces),
			formatFixed(r.BidVol, pricePlaces),
			formatFixed(r.AskVol, pricePlaces),
			formatFixed(r.TradePrice, pricePlaces),
			formatFixed(r.TradeSize, pricePlaces),
			formatFixed(r.Spread, pricePlaces),
			formatFixed(r.Mid, pricePlaces),
			formatFixed(r.Ret1s, returnPlaces),
			formatFixed(r.VWAP, pricePlaces),
			formatFixed(r.ImbalanceTop, returnPlaces),
			formatFixed(r.AbsImbalanceTop, returnPlaces),
			formatFixed(r.TopDepth, pricePlaces),
			formatFixed(r.SpreadMean, pricePlaces),
			formatFixed(r.SpreadStd, pricePlaces),
			formatFixed(r.SpreadZ, returnPlaces),
			formatFixed(r.Vol, returnPlaces),
			formatFixed(r.DepthMed, pricePlaces),
		}
		sb.WriteString(strings.Join(cells, ","))
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderAlertsCSV renders alert rows as CSV. spreadWindow names the z-score column.
// A missing forward return is an empty cell.
func RenderAlertsCSV(rows []AlertRow, spreadWindow int) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("timestamp,bid,ask,mid,spread,spread_z_%ds,imbalance_top,top_depth,", spreadWindow))
	sb.WriteString("spread_spike,liquidity_gap,any_alert,forward_return\n")

	// Rows
	for _, r := range rows {
		sb.WriteString(strings.Join([]string{
			formatTime(r.Timestamp),
			formatFixed(r.Bid, pricePlaces),
			formatFixed(r.Ask, pricePlaces),
			formatFixed(r.Mid, pricePlaces),
			formatFixed(r.Spread, pricePlaces),
			formatFixed(r.SpreadZ, returnPlaces),
			formatFixed(r.ImbalanceTop, returnPlaces),
			formatFixed(r.TopDepth, pricePlaces),
			formatBool(r.SpreadSpike),
			formatBool(r.LiquidityGap),
			formatBool(r.SpreadSpike || r.LiquidityGap),
			formatOptional(r.ForwardReturn, returnPlaces),
		}, ","))
		sb.WriteString("\n")
	}

	return sb.String()
}

// summaryHeader lists the alert_summary.csv columns.
const summaryHeader = "total_rows,n_alerts,pct_alerts,mean_return_frac,mean_return_bps,n_samples," +
	"std_return_frac,std_return_bps,n_spread_spike,n_liquidity_gap,horizon"

// RenderSummaryCSV renders an outcome summary as a single-row CSV.
// "No data" statistics are empty cells, never zero.
func RenderSummaryCSV(s *domain.OutcomeSummary) string {
	var sb strings.Builder
	sb.WriteString(summaryHeader)
	sb.WriteString("\n")
	sb.WriteString(summaryCells(s))
	sb.WriteString("\n")
	return sb.String()
}

// RenderSweepCSV renders one summary row per parameter set.
func RenderSweepCSV(rows []SweepRow) string {
	var sb strings.Builder
	sb.WriteString("run_id,spread_window,vol_window,depth_window,z_threshold,depth_factor,")
	sb.WriteString(summaryHeader)
	sb.WriteString("\n")

	for _, r := range rows {
		p := r.Params
		sb.WriteString(strings.Join([]string{
			r.RunID,
			strconv.Itoa(p.SpreadWindow),
			strconv.Itoa(p.VolWindow),
			strconv.Itoa(p.DepthWindow),
			strconv.FormatFloat(p.ZThreshold, 'g', -1, 64),
			strconv.FormatFloat(p.DepthFactor, 'g', -1, 64),
		}, ","))
		sb.WriteString(",")
		sb.WriteString(summaryCells(r.Summary))
		sb.WriteString("\n")
	}

	return sb.String()
}

func summaryCells(s *domain.OutcomeSummary) string {
	return strings.Join([]string{
		strconv.Itoa(s.TotalRows),
		strconv.Itoa(s.AlertCount),
		formatFixed(s.PctAlerts, pctPlaces),
		formatOptional(s.MeanReturn, returnPlaces),
		formatOptional(s.MeanReturnBps, bpsPlaces),
		strconv.Itoa(s.SampleCount),
		formatOptional(s.StdReturn, returnPlaces),
		formatOptional(s.StdReturnBps, bpsPlaces),
		strconv.Itoa(s.SpreadSpikeCount),
		strconv.Itoa(s.LiquidityGapCount),
		strconv.Itoa(s.Horizon),
	}, ",")
}
