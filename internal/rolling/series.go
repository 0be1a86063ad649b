package rolling

// Mean returns the trailing mean of series over windows of w rows.
func Mean(series []float64, w int) []float64 {
	mean, _ := MeanStd(series, w)
	return mean
}

// Std returns the trailing sample standard deviation of series over windows of w rows.
func Std(series []float64, w int) []float64 {
	_, std := MeanStd(series, w)
	return std
}

// MeanStd returns trailing mean and sample std in a single pass.
func MeanStd(series []float64, w int) (mean, std []float64) {
	mean = make([]float64, len(series))
	std = make([]float64, len(series))
	if len(series) == 0 {
		return mean, std
	}
	win := NewWindow(w)
	for i, x := range series {
		win.Push(x)
		mean[i] = win.Mean()
		std[i] = win.Std()
	}
	return mean, std
}

// Median returns the trailing median of series over windows of w rows.
func Median(series []float64, w int) []float64 {
	out := make([]float64, len(series))
	if len(series) == 0 {
		return out
	}
	win := NewMedianWindow(w)
	for i, x := range series {
		win.Push(x)
		out[i] = win.Median()
	}
	return out
}
