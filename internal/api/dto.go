package api

import (
	"math"
	"net/http"
	"time"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/features"
	"microstructure-lab/internal/reporting"
	"microstructure-lab/internal/storage"
)

// AnalyzeRequest overrides the server default parameters. Omitted fields
// keep their defaults.
type AnalyzeRequest struct {
	SpreadWindow *int     `json:"spread_window" validate:"omitempty,gt=0"`
	VolWindow    *int     `json:"vol_window" validate:"omitempty,gt=0"`
	DepthWindow  *int     `json:"depth_window" validate:"omitempty,gt=0"`
	ZThreshold   *float64 `json:"z_threshold"`
	DepthFactor  *float64 `json:"depth_factor" validate:"omitempty,gt=0"`
	Horizon      *int     `json:"horizon" validate:"omitempty,gt=0"`
	RecentAlerts *int     `json:"recent_alerts" validate:"omitempty,gte=0,lte=1000"`
	Persist      bool     `json:"persist"`
}

// Bind implements render.Binder.
func (a *AnalyzeRequest) Bind(r *http.Request) error {
	return nil
}

func (a *AnalyzeRequest) params(defaults domain.Params) domain.Params {
	p := defaults
	if a.SpreadWindow != nil {
		p.SpreadWindow = *a.SpreadWindow
	}
	if a.VolWindow != nil {
		p.VolWindow = *a.VolWindow
	}
	if a.DepthWindow != nil {
		p.DepthWindow = *a.DepthWindow
	}
	if a.ZThreshold != nil {
		p.ZThreshold = *a.ZThreshold
	}
	if a.DepthFactor != nil {
		p.DepthFactor = *a.DepthFactor
	}
	if a.Horizon != nil {
		p.Horizon = *a.Horizon
	}
	return p
}

// AnalyzeResponse is the result of one analysis.
type AnalyzeResponse struct {
	DatasetID     string        `json:"dataset_id"`
	RunID         string        `json:"run_id,omitempty"`
	ParamsHash    string        `json:"params_hash"`
	Params        domain.Params `json:"params"`
	RollingReused bool          `json:"rolling_reused"`
	Data          DataResponse  `json:"data"`
	Summary       SummaryDTO    `json:"summary"`
	RecentAlerts  []AlertDTO    `json:"recent_alerts"`
}

// Render implements render.Renderer.
func (a *AnalyzeResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// DataResponse describes the analysed tick table.
type DataResponse struct {
	Rows             int     `json:"rows"`
	MedianIntervalMs float64 `json:"median_interval_ms"`
	NonMonotonic     int     `json:"non_monotonic"`
	IrregularFrac    float64 `json:"irregular_frac"`
	Regular          bool    `json:"regular"`
}

func newDataResponse(sp features.SpacingReport) DataResponse {
	return DataResponse{
		Rows:             sp.Rows,
		MedianIntervalMs: float64(sp.MedianInterval) / float64(time.Millisecond),
		NonMonotonic:     sp.NonMonotonic,
		IrregularFrac:    sp.IrregularFrac,
		Regular:          sp.Regular(),
	}
}

// SummaryDTO is an OutcomeSummary with JSON names. Null statistics mean no data.
type SummaryDTO struct {
	Horizon           int      `json:"horizon"`
	TotalRows         int      `json:"total_rows"`
	AlertCount        int      `json:"n_alerts"`
	SpreadSpikeCount  int      `json:"n_spread_spike"`
	LiquidityGapCount int      `json:"n_liquidity_gap"`
	PctAlerts         float64  `json:"pct_alerts"`
	SampleCount       int      `json:"n_samples"`
	MeanReturn        *float64 `json:"mean_return_frac"`
	MeanReturnBps     *float64 `json:"mean_return_bps"`
	StdReturn         *float64 `json:"std_return_frac"`
	StdReturnBps      *float64 `json:"std_return_bps"`
	MedianReturn      *float64 `json:"median_return_frac"`
	MinReturn         *float64 `json:"min_return_frac"`
	MaxReturn         *float64 `json:"max_return_frac"`
	HitRate           *float64 `json:"hit_rate"`
}

func newSummaryDTO(s *domain.OutcomeSummary) SummaryDTO {
	if s == nil {
		return SummaryDTO{}
	}
	return SummaryDTO{
		Horizon:           s.Horizon,
		TotalRows:         s.TotalRows,
		AlertCount:        s.AlertCount,
		SpreadSpikeCount:  s.SpreadSpikeCount,
		LiquidityGapCount: s.LiquidityGapCount,
		PctAlerts:         s.PctAlerts,
		SampleCount:       s.SampleCount,
		MeanReturn:        s.MeanReturn,
		MeanReturnBps:     s.MeanReturnBps,
		StdReturn:         s.StdReturn,
		StdReturnBps:      s.StdReturnBps,
		MedianReturn:      s.MedianReturn,
		MinReturn:         s.MinReturn,
		MaxReturn:         s.MaxReturn,
		HitRate:           s.HitRate,
	}
}

// AlertDTO is one flagged row. Non-finite values are null.
type AlertDTO struct {
	RowIndex      int       `json:"row_index"`
	Timestamp     time.Time `json:"timestamp"`
	Bid           *float64  `json:"bid"`
	Ask           *float64  `json:"ask"`
	Mid           *float64  `json:"mid"`
	Spread        *float64  `json:"spread"`
	SpreadZ       *float64  `json:"spread_z"`
	ImbalanceTop  *float64  `json:"imbalance_top"`
	TopDepth      *float64  `json:"top_depth"`
	DepthMed      *float64  `json:"depth_med"`
	SpreadSpike   bool      `json:"spread_spike"`
	LiquidityGap  bool      `json:"liquidity_gap"`
	ForwardReturn *float64  `json:"forward_return"`
}

func newAlertDTOs(rows []reporting.AlertRow) []AlertDTO {
	out := make([]AlertDTO, len(rows))
	for i, a := range rows {
		out[i] = AlertDTO{
			RowIndex:      a.RowIndex,
			Timestamp:     a.Timestamp.UTC(),
			Bid:           finite(a.Bid),
			Ask:           finite(a.Ask),
			Mid:           finite(a.Mid),
			Spread:        finite(a.Spread),
			SpreadZ:       finite(a.SpreadZ),
			ImbalanceTop:  finite(a.ImbalanceTop),
			TopDepth:      finite(a.TopDepth),
			DepthMed:      finite(a.DepthMed),
			SpreadSpike:   a.SpreadSpike,
			LiquidityGap:  a.LiquidityGap,
			ForwardReturn: a.ForwardReturn,
		}
	}
	return out
}

// finite returns nil for NaN and Inf, which encoding/json rejects.
func finite(x float64) *float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return &x
}

// DatasetDTO is one stored tick dataset.
type DatasetDTO struct {
	ID         string    `json:"id"`
	Rows       int       `json:"rows"`
	First      time.Time `json:"first"`
	Last       time.Time `json:"last"`
	CachedSets int       `json:"cached_window_sets"`
}

func newDatasetDTOs(infos []storage.DatasetInfo, cached map[string]int) []DatasetDTO {
	out := make([]DatasetDTO, len(infos))
	for i, d := range infos {
		out[i] = DatasetDTO{
			ID:         d.ID,
			Rows:       d.Rows,
			First:      d.First.UTC(),
			Last:       d.Last.UTC(),
			CachedSets: cached[d.ID],
		}
	}
	return out
}

// RunDTO is one persisted run with its recomputed summary.
type RunDTO struct {
	RunID      string        `json:"run_id"`
	ParamsHash string        `json:"params_hash"`
	Params     domain.Params `json:"params"`
	CreatedAt  time.Time     `json:"created_at"`
	Summary    SummaryDTO    `json:"summary"`
}
