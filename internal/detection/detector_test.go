package detection

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/features"
)

func buildRolling(t *testing.T, ticks []domain.Tick, w domain.Windows) *domain.RollingTable {
	t.Helper()
	ft, err := features.ComputeBasicFeatures(domain.NewTickTable(ticks))
	require.NoError(t, err)
	rt, err := features.ComputeRollingStats(ft, w.Spread, w.Vol, w.Depth)
	require.NoError(t, err)
	return rt
}

func depthTicks(depths []float64) []domain.Tick {
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	ticks := make([]domain.Tick, len(depths))
	for i, d := range depths {
		ticks[i] = domain.Tick{
			Timestamp: start.Add(time.Duration(i) * time.Second),
			Bid:       100,
			Ask:       100.1,
			BidVol:    d / 2,
			AskVol:    d / 2,
		}
	}
	return ticks
}

func noisyTicks(n int, seed int64) []domain.Tick {
	rng := rand.New(rand.NewSource(seed))
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	ticks := make([]domain.Tick, n)
	mid := 50.0
	for i := range ticks {
		mid += rng.NormFloat64() * 0.02
		s := math.Max(0.01, math.Abs(0.05+rng.NormFloat64()*0.02))
		if rng.Float64() < 0.02 {
			s *= 6
		}
		ticks[i] = domain.Tick{
			Timestamp: start.Add(time.Duration(i) * time.Second),
			Bid:       mid - s/2,
			Ask:       mid + s/2,
			BidVol:    float64(1 + rng.Intn(200)),
			AskVol:    float64(1 + rng.Intn(200)),
		}
	}
	return ticks
}

func TestDetectAlerts_LiquidityGapAfterStableDepth(t *testing.T) {
	depths := make([]float64, 651)
	for i := 0; i < 650; i++ {
		depths[i] = 200
	}
	depths[650] = 50

	rt := buildRolling(t, depthTicks(depths), domain.Windows{Spread: 60, Vol: 10, Depth: 600})
	at, err := DetectAlerts(rt, 3.0, 0.3)
	require.NoError(t, err)

	assert.Equal(t, 200.0, rt.DepthMed[650])
	for i := 0; i < 650; i++ {
		if at.LiquidityGap[i] {
			t.Fatalf("row %d: unexpected liquidity gap", i)
		}
	}
	assert.True(t, at.LiquidityGap[650])
	assert.True(t, at.AnyAlert[650])
	assert.Equal(t, 1, at.Counts().LiquidityGap)
}

func TestDetectAlerts_FirstRowEvaluated(t *testing.T) {
	rt := buildRolling(t, depthTicks([]float64{10, 10}), domain.Windows{Spread: 5, Vol: 5, Depth: 5})
	at, err := DetectAlerts(rt, 3.0, 0.3)
	require.NoError(t, err)
	// depth equals its own median, never below 30% of it
	assert.False(t, at.LiquidityGap[0])
	assert.False(t, at.SpreadSpike[0])

	// factor above 1 flags row 0 against its own median
	at, err = DetectAlerts(rt, 3.0, 1.5)
	require.NoError(t, err)
	assert.True(t, at.LiquidityGap[0])
}

func TestDetectAlerts_InvalidDepthFactor(t *testing.T) {
	rt := buildRolling(t, depthTicks([]float64{1, 2, 3}), domain.Windows{Spread: 2, Vol: 2, Depth: 2})

	for _, f := range []float64{0, -0.3, math.NaN()} {
		at, err := DetectAlerts(rt, 3.0, f)
		assert.Nil(t, at)
		assert.True(t, errors.Is(err, domain.ErrInvalidParameter), "factor %v", f)
	}

	_, err := DetectAlerts(rt, math.NaN(), 0.3)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestDetectAlerts_Idempotent(t *testing.T) {
	rt := buildRolling(t, noisyTicks(2000, 1), domain.Windows{Spread: 60, Vol: 10, Depth: 600})

	a, err := DetectAlerts(rt, 2.5, 0.3)
	require.NoError(t, err)
	b, err := DetectAlerts(rt, 2.5, 0.3)
	require.NoError(t, err)

	assert.Equal(t, a.SpreadSpike, b.SpreadSpike)
	assert.Equal(t, a.LiquidityGap, b.LiquidityGap)
	assert.Equal(t, a.AnyAlert, b.AnyAlert)
}

func TestDetectAlerts_Monotonicity(t *testing.T) {
	rt := buildRolling(t, noisyTicks(3000, 2), domain.Windows{Spread: 60, Vol: 10, Depth: 600})

	prevSpikes := math.MaxInt
	for _, z := range []float64{0, 0.5, 1, 2, 3, 5, 8} {
		at, err := DetectAlerts(rt, z, 0.3)
		require.NoError(t, err)
		c := at.Counts().SpreadSpike
		if c > prevSpikes {
			t.Errorf("z=%v: spike count %d increased from %d", z, c, prevSpikes)
		}
		prevSpikes = c
	}

	prevGaps := -1
	for _, f := range []float64{0.05, 0.1, 0.3, 0.5, 1, 2} {
		at, err := DetectAlerts(rt, 3, f)
		require.NoError(t, err)
		c := at.Counts().LiquidityGap
		if c < prevGaps {
			t.Errorf("factor=%v: gap count %d decreased from %d", f, c, prevGaps)
		}
		prevGaps = c
	}
}

func TestDetectAlerts_AnyAlertIsOr(t *testing.T) {
	rt := buildRolling(t, noisyTicks(500, 3), domain.Windows{Spread: 20, Vol: 10, Depth: 50})
	at, err := DetectAlerts(rt, 1.5, 0.5)
	require.NoError(t, err)

	for i := range at.AnyAlert {
		if at.AnyAlert[i] != (at.SpreadSpike[i] || at.LiquidityGap[i]) {
			t.Fatalf("row %d: any_alert mismatch", i)
		}
	}
	assert.Len(t, at.AlertIndices(), at.Counts().Any)
}

func TestDetectAlerts_EmptyTable(t *testing.T) {
	rt := buildRolling(t, nil, domain.Windows{Spread: 1, Vol: 1, Depth: 1})
	at, err := DetectAlerts(rt, 3, 0.3)
	require.NoError(t, err)
	assert.Empty(t, at.AnyAlert)
	assert.Equal(t, domain.AlertCounts{}, at.Counts())
}
