package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/observability"
	"microstructure-lab/internal/synthetic"
)

var fixedTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testTicks generates a series with a liquidity gap over rows 700-709.
func testTicks(t *testing.T) *domain.TickTable {
	t.Helper()
	cfg := synthetic.DefaultConfig()
	cfg.Rows = 900
	ticks := synthetic.Generate(cfg)
	synthetic.InjectLiquidityGap(ticks, 700, 710, 0.05)
	return domain.NewTickTable(ticks)
}

func newTestPipeline() *Pipeline {
	return New().WithLogger(quietLogger()).WithClock(func() time.Time { return fixedTime })
}

func TestRun_EndToEnd(t *testing.T) {
	ticks := testTicks(t)
	params := domain.DefaultParams()

	res, err := newTestPipeline().Run(context.Background(), ticks, params)
	require.NoError(t, err)

	assert.Equal(t, 900, res.Features.Len())
	assert.Equal(t, 900, res.Alerts.Len())
	assert.Equal(t, params, res.Params)
	assert.Len(t, res.ParamsHash, 64)
	assert.True(t, res.Spacing.Regular())
	assert.False(t, res.RollingReused)

	for i := 700; i < 710; i++ {
		assert.True(t, res.Alerts.LiquidityGap[i], "row %d should be a liquidity gap", i)
	}
	assert.GreaterOrEqual(t, res.Summary.LiquidityGapCount, 10)
	assert.Equal(t, res.Alerts.Counts().Any, res.Summary.AlertCount)
}

func TestRun_InvalidParams(t *testing.T) {
	params := domain.DefaultParams()
	params.DepthFactor = 0

	_, err := newTestPipeline().Run(context.Background(), testTicks(t), params)
	assert.True(t, errors.Is(err, domain.ErrInvalidParameter))
}

func TestRun_SchemaError(t *testing.T) {
	ticks := testTicks(t)
	ticks.Bid = nil

	_, err := newTestPipeline().Run(context.Background(), ticks, domain.DefaultParams())
	assert.True(t, errors.Is(err, domain.ErrSchema))
}

func TestRun_ParallelMatchesSerial(t *testing.T) {
	ticks := testTicks(t)
	params := domain.DefaultParams()

	serial, err := newTestPipeline().Run(context.Background(), ticks, params)
	require.NoError(t, err)
	parallel, err := newTestPipeline().WithParallel(true).Run(context.Background(), ticks, params)
	require.NoError(t, err)

	assert.Equal(t, serial.Rolling.SpreadZ, parallel.Rolling.SpreadZ)
	assert.Equal(t, serial.Rolling.DepthMed, parallel.Rolling.DepthMed)
	assert.Equal(t, serial.Alerts.AnyAlert, parallel.Alerts.AnyAlert)
}

func TestRerun_ReusesRollingForThresholdChange(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics("test", reg)
	p := newTestPipeline().WithMetrics(m)
	ctx := context.Background()

	first, err := p.Run(ctx, testTicks(t), domain.DefaultParams())
	require.NoError(t, err)

	loose := domain.DefaultParams()
	loose.ZThreshold = 1.5
	second, err := p.Rerun(ctx, first, loose)
	require.NoError(t, err)

	assert.True(t, second.RollingReused)
	assert.Same(t, first.Rolling, second.Rolling)
	assert.GreaterOrEqual(t, second.Summary.SpreadSpikeCount, first.Summary.SpreadSpikeCount)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RollingCacheHits))

	wider := loose
	wider.SpreadWindow = 120
	third, err := p.Rerun(ctx, second, wider)
	require.NoError(t, err)
	assert.False(t, third.RollingReused)
	assert.Equal(t, 120, third.Rolling.Windows.Spread)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RollingCacheMisses))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.PipelineRunsTotal.WithLabelValues(observability.StatusSuccess)))
}

func TestEvaluate_WindowMismatch(t *testing.T) {
	p := newTestPipeline()
	res, err := p.Run(context.Background(), testTicks(t), domain.DefaultParams())
	require.NoError(t, err)

	other := domain.DefaultParams()
	other.VolWindow = 30
	_, err = p.Evaluate(context.Background(), res.Rolling, res.Spacing, other)
	assert.True(t, errors.Is(err, domain.ErrInvalidParameter))
}

func TestRun_EmptyTable(t *testing.T) {
	res, err := newTestPipeline().Run(context.Background(), domain.NewTickTable(nil), domain.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Summary.TotalRows)
	assert.True(t, res.Summary.NoData())
}

func TestExport_WritesFiles(t *testing.T) {
	p := newTestPipeline().WithXLSX(true)
	res, err := p.Run(context.Background(), testTicks(t), domain.DefaultParams())
	require.NoError(t, err)

	dir := t.TempDir()
	written, err := p.Export(res, dir, ExportMeta{DatasetID: "synthetic", RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, written, 5)

	for _, name := range []string{FeaturesFile, AlertsFile, SummaryFile, ReportFile, XLSXFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	features, err := os.ReadFile(filepath.Join(dir, FeaturesFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(features)), "\n")
	assert.Len(t, lines, 901)
	assert.Contains(t, lines[0], "spread_mean_60s")
	assert.Contains(t, lines[0], "depth_med_600s")

	alerts, err := os.ReadFile(filepath.Join(dir, AlertsFile))
	require.NoError(t, err)
	alertLines := strings.Split(strings.TrimSpace(string(alerts)), "\n")
	assert.Len(t, alertLines, 1+res.Summary.AlertCount)

	report, err := os.ReadFile(filepath.Join(dir, ReportFile))
	require.NoError(t, err)
	assert.Contains(t, string(report), "Generated: 2025-06-01T12:00:00Z")
	assert.Contains(t, string(report), "Dataset: synthetic | Run: run-1")
}

func TestExport_NoXLSXByDefault(t *testing.T) {
	p := newTestPipeline()
	res, err := p.Run(context.Background(), testTicks(t), domain.DefaultParams())
	require.NoError(t, err)

	dir := t.TempDir()
	written, err := p.Export(res, dir, ExportMeta{})
	require.NoError(t, err)
	assert.Len(t, written, 4)
	_, err = os.Stat(filepath.Join(dir, XLSXFile))
	assert.True(t, os.IsNotExist(err))
}
