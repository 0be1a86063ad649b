package reporting

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Decimal places used in exports.
const (
	pricePlaces  = 6
	returnPlaces = 8
	bpsPlaces    = 4
	pctPlaces    = 4
)

// formatFixed renders x with a fixed number of decimal places.
// Non-finite values render as an empty cell.
func formatFixed(x float64, places int32) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return ""
	}
	return decimal.NewFromFloat(x).StringFixed(places)
}

// formatOptional renders a nil statistic as an empty cell.
func formatOptional(x *float64, places int32) string {
	if x == nil {
		return ""
	}
	return formatFixed(*x, places)
}

// formatOptionalMD renders a nil statistic as "n/a" for human-facing output.
func formatOptionalMD(x *float64, places int32) string {
	if x == nil {
		return "n/a"
	}
	return formatFixed(*x, places)
}

func formatBool(b bool) string {
	return strconv.FormatBool(b)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func scaled(x *float64, k float64) *float64 {
	if x == nil {
		return nil
	}
	v := *x * k
	return &v
}
