package rolling

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// naive reference implementations over the min-1-sample window.

func naiveWindow(series []float64, i, w int) []float64 {
	start := i - w + 1
	if start < 0 {
		start = 0
	}
	return series[start : i+1]
}

func naiveMean(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func naiveStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := naiveMean(xs)
	s := 0.0
	for _, x := range xs {
		s += (x - m) * (x - m)
	}
	return math.Sqrt(s / float64(len(xs)-1))
}

func naiveMedian(xs []float64) float64 {
	c := append([]float64(nil), xs...)
	sort.Float64s(c)
	n := len(c)
	if n%2 == 1 {
		return c[n/2]
	}
	return (c[n/2-1] + c[n/2]) / 2
}

func TestMeanStd_PartialWindowPolicy(t *testing.T) {
	series := []float64{1, 2, 3, 4, 5}
	mean, std := MeanStd(series, 3)

	assert.InDeltaSlice(t, []float64{1, 1.5, 2, 3, 4}, mean, 1e-12)
	assert.Equal(t, 0.0, std[0], "single sample std must be 0")
	assert.InDelta(t, math.Sqrt(0.5), std[1], 1e-12)
	assert.InDelta(t, 1.0, std[2], 1e-12)
	assert.InDelta(t, 1.0, std[4], 1e-12)
}

func TestMeanStd_WindowOne(t *testing.T) {
	series := []float64{3, -1, 7}
	mean, std := MeanStd(series, 1)
	assert.Equal(t, series, mean)
	assert.Equal(t, []float64{0, 0, 0}, std)
}

func TestMeanStd_ConstantSeriesNeverNegative(t *testing.T) {
	series := make([]float64, 500)
	for i := range series {
		series[i] = 0.1
	}
	_, std := MeanStd(series, 7)
	for i, s := range std {
		if s < 0 || math.IsNaN(s) {
			t.Fatalf("row %d: std %v must be finite and >= 0", i, s)
		}
		if s > 1e-9 {
			t.Errorf("row %d: expected ~0 std for constant series, got %v", i, s)
		}
	}
}

func TestMeanStd_MatchesNaive(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	series := make([]float64, 2000)
	for i := range series {
		series[i] = 100 + rng.NormFloat64()*5
	}

	for _, w := range []int{1, 2, 10, 60, 3000} {
		mean, std := MeanStd(series, w)
		for i := range series {
			win := naiveWindow(series, i, w)
			require.InDelta(t, naiveMean(win), mean[i], 1e-9, "w=%d row=%d mean", w, i)
			require.InDelta(t, naiveStd(win), std[i], 1e-7, "w=%d row=%d std", w, i)
		}
	}
}

func TestMedian_EvenCountAverages(t *testing.T) {
	out := Median([]float64{4, 2, 8, 6}, 4)
	assert.Equal(t, []float64{4, 3, 4, 5}, out)
}

func TestMedian_MatchesNaive(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	series := make([]float64, 1500)
	for i := range series {
		// small integer range forces many duplicate values
		series[i] = float64(rng.Intn(20))
	}

	for _, w := range []int{1, 2, 3, 5, 16, 600, 5000} {
		got := Median(series, w)
		for i := range series {
			want := naiveMedian(naiveWindow(series, i, w))
			if got[i] != want {
				t.Fatalf("w=%d row=%d: median got %v, want %v", w, i, got[i], want)
			}
		}
	}
}

func TestMedian_EmptySeries(t *testing.T) {
	assert.Empty(t, Median(nil, 5))
	m, s := MeanStd(nil, 5)
	assert.Empty(t, m)
	assert.Empty(t, s)
}

func TestNewWindow_PanicsOnNonPositiveSize(t *testing.T) {
	assert.Panics(t, func() { NewWindow(0) })
	assert.Panics(t, func() { NewMedianWindow(-1) })
}

func finiteOnly(xs []float64) []float64 {
	var out []float64
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}

func TestMeanStd_NaNRecoversAfterEviction(t *testing.T) {
	nan := math.NaN()
	series := []float64{1, nan, 3, 5, 7, nan, nan, 9}
	mean, std := MeanStd(series, 2)

	assert.Equal(t, 1.0, mean[1], "NaN is skipped, window holds only 1")
	assert.Equal(t, 0.0, std[1])
	assert.Equal(t, 3.0, mean[2])
	assert.Equal(t, 4.0, mean[3])
	assert.InDelta(t, math.Sqrt(2), std[3], 1e-12)
	assert.Equal(t, 7.0, mean[5])
	assert.Equal(t, 0.0, mean[6], "no finite values in window")
	assert.Equal(t, 0.0, std[6])
	assert.Equal(t, 9.0, mean[7])
}

func TestMedian_NaNRecoversAfterEviction(t *testing.T) {
	nan := math.NaN()
	series := []float64{4, nan, 2, 8, nan, nan, nan, 6}
	out := Median(series, 3)
	assert.Equal(t, []float64{4, 4, 3, 5, 5, 8, 0, 6}, out)

	w := NewMedianWindow(2)
	w.Push(math.Inf(1))
	assert.Equal(t, 0, w.Len())
	w.Push(3)
	assert.Equal(t, 1, w.Len())
	assert.Equal(t, 3.0, w.Median())
}

func TestRolling_NonFiniteMatchesNaive(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	series := make([]float64, 1200)
	for i := range series {
		switch r := rng.Intn(20); {
		case r == 0:
			series[i] = math.NaN()
		case r == 1:
			series[i] = math.Inf(1 - 2*rng.Intn(2))
		default:
			series[i] = float64(rng.Intn(30))
		}
	}

	for _, w := range []int{1, 3, 10, 64} {
		mean, std := MeanStd(series, w)
		med := Median(series, w)
		for i := range series {
			win := finiteOnly(naiveWindow(series, i, w))
			if len(win) == 0 {
				require.Equal(t, 0.0, mean[i], "w=%d row=%d mean", w, i)
				require.Equal(t, 0.0, med[i], "w=%d row=%d median", w, i)
				continue
			}
			require.InDelta(t, naiveMean(win), mean[i], 1e-9, "w=%d row=%d mean", w, i)
			require.InDelta(t, naiveStd(win), std[i], 1e-7, "w=%d row=%d std", w, i)
			require.Equal(t, naiveMedian(win), med[i], "w=%d row=%d median", w, i)
		}
	}
}
