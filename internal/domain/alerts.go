package domain

// Thresholds holds the anomaly detector parameters.
type Thresholds struct {
	ZThreshold  float64 // spread z-score above which a spike is flagged
	DepthFactor float64 // fraction of rolling median depth below which a gap is flagged
}

// AlertTable is a RollingTable extended with boolean alert columns.
type AlertTable struct {
	*RollingTable
	Thresholds Thresholds

	SpreadSpike  []bool
	LiquidityGap []bool
	AnyAlert     []bool
}

// AlertCounts summarizes alert columns by type.
type AlertCounts struct {
	SpreadSpike  int
	LiquidityGap int
	Any          int
}

// Counts returns the number of true rows per alert column.
func (a *AlertTable) Counts() AlertCounts {
	var c AlertCounts
	if a == nil {
		return c
	}
	for i := range a.AnyAlert {
		if a.SpreadSpike[i] {
			c.SpreadSpike++
		}
		if a.LiquidityGap[i] {
			c.LiquidityGap++
		}
		if a.AnyAlert[i] {
			c.Any++
		}
	}
	return c
}

// AlertIndices returns the row indices flagged any_alert, ascending.
func (a *AlertTable) AlertIndices() []int {
	if a == nil {
		return nil
	}
	var idx []int
	for i, v := range a.AnyAlert {
		if v {
			idx = append(idx, i)
		}
	}
	return idx
}
