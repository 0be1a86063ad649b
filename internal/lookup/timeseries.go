package lookup

import (
	"errors"
	"math"
	"sort"
	"time"
)

// Errors returned by lookup functions.
var (
	ErrOutOfRange   = errors.New("target row out of range")
	ErrUndefinedMid = errors.New("mid undefined or zero")
)

// MidAfter returns the anchor mid at row i and the mid horizon rows later.
// Returns ErrOutOfRange if either row falls outside mid, and ErrUndefinedMid
// if either value is non-finite or the anchor is zero.
func MidAfter(mid []float64, i, horizon int) (now, future float64, err error) {
	j := i + horizon
	if i < 0 || i >= len(mid) || j < 0 || j >= len(mid) {
		return 0, 0, ErrOutOfRange
	}
	now, future = mid[i], mid[j]
	if !finite(now) || !finite(future) || now == 0 {
		return 0, 0, ErrUndefinedMid
	}
	return now, future, nil
}

// ForwardReturn returns (mid[i+horizon] - mid[i]) / mid[i].
func ForwardReturn(mid []float64, i, horizon int) (float64, error) {
	now, future, err := MidAfter(mid, i, horizon)
	if err != nil {
		return 0, err
	}
	return (future - now) / now, nil
}

// IndexAtOrAfter returns the first row whose timestamp is at or after target.
// Timestamps must be non-decreasing. Returns len(ts) if every row is earlier.
func IndexAtOrAfter(ts []time.Time, target time.Time) int {
	return sort.Search(len(ts), func(i int) bool {
		return !ts[i].Before(target)
	})
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
