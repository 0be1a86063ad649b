// Package rolling provides trailing-window aggregators over float64 series.
//
// All aggregators follow the min-1-sample policy: the window ending at row i
// covers rows max(0, i-W+1) through i, so the first W-1 rows are computed over
// the partial window rather than left undefined. Non-finite values occupy
// their slot in the window but are excluded from the statistics, so a NaN
// stops affecting the output once it is evicted.
package rolling

import (
	"math"
)

// Window maintains mean and sample standard deviation over the last Size
// values using sliding Welford updates. Push is O(1).
type Window struct {
	size   int
	buf    []float64 // ring buffer of the values currently in the window
	head   int       // index of the oldest value
	filled int       // slots in use, finite or not
	n      int       // finite values in the window
	mean   float64
	m2     float64
}

// NewWindow returns a Window of the given size. Size must be positive.
func NewWindow(size int) *Window {
	if size <= 0 {
		panic("rolling: window size must be positive")
	}
	return &Window{size: size, buf: make([]float64, size)}
}

// Push adds x, evicting the oldest value once the window is full.
func (w *Window) Push(x float64) {
	if w.filled == w.size {
		if old := w.buf[w.head]; finite(old) {
			w.remove(old)
		}
		w.buf[w.head] = x
		w.head = (w.head + 1) % w.size
	} else {
		w.buf[(w.head+w.filled)%w.size] = x
		w.filled++
	}
	if finite(x) {
		w.add(x)
	}
}

func (w *Window) add(x float64) {
	w.n++
	d := x - w.mean
	w.mean += d / float64(w.n)
	w.m2 += d * (x - w.mean)
}

func (w *Window) remove(x float64) {
	if w.n == 1 {
		w.n, w.mean, w.m2 = 0, 0, 0
		return
	}
	prev := w.mean
	w.mean = prev - (x-prev)/float64(w.n-1)
	w.m2 -= (x - prev) * (x - w.mean)
	w.n--
	if w.m2 < 0 {
		w.m2 = 0
	}
}

// Len returns the number of finite values currently in the window.
func (w *Window) Len() int { return w.n }

// Mean returns the mean of the finite values, 0 when there are none.
func (w *Window) Mean() float64 { return w.mean }

// Std returns the sample standard deviation (n-1 denominator).
// A single-value window has std 0.
func (w *Window) Std() float64 {
	if w.n < 2 {
		return 0
	}
	v := w.m2 / float64(w.n-1)
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	return math.Sqrt(v)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
