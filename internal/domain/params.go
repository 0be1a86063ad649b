package domain

import (
	"math"
)

// Default engine parameters.
const (
	DefaultSpreadWindow = 60
	DefaultVolWindow    = 10
	DefaultDepthWindow  = 600
	DefaultZThreshold   = 3.0
	DefaultDepthFactor  = 0.3
	DefaultHorizon      = 5
)

// Params is the full parameter set of one analysis run.
type Params struct {
	SpreadWindow int     `json:"spread_window" yaml:"spread_window"`
	VolWindow    int     `json:"vol_window" yaml:"vol_window"`
	DepthWindow  int     `json:"depth_window" yaml:"depth_window"`
	ZThreshold   float64 `json:"z_threshold" yaml:"z_threshold"`
	DepthFactor  float64 `json:"depth_factor" yaml:"depth_factor"`
	Horizon      int     `json:"horizon" yaml:"horizon"`
}

// DefaultParams returns the default parameter set.
func DefaultParams() Params {
	return Params{
		SpreadWindow: DefaultSpreadWindow,
		VolWindow:    DefaultVolWindow,
		DepthWindow:  DefaultDepthWindow,
		ZThreshold:   DefaultZThreshold,
		DepthFactor:  DefaultDepthFactor,
		Horizon:      DefaultHorizon,
	}
}

// Windows returns the rolling window part of the parameters.
func (p Params) Windows() Windows {
	return Windows{Spread: p.SpreadWindow, Vol: p.VolWindow, Depth: p.DepthWindow}
}

// Thresholds returns the detector part of the parameters.
func (p Params) Thresholds() Thresholds {
	return Thresholds{ZThreshold: p.ZThreshold, DepthFactor: p.DepthFactor}
}

// Validate returns the first out-of-range parameter as *InvalidParameterError.
func (p Params) Validate() error {
	if err := p.Windows().Validate(); err != nil {
		return err
	}
	if err := p.Thresholds().Validate(); err != nil {
		return err
	}
	return ValidateHorizon(p.Horizon)
}

// Validate checks that every window is a positive row count.
func (w Windows) Validate() error {
	for _, c := range []struct {
		name string
		v    int
	}{
		{"spread_window", w.Spread},
		{"vol_window", w.Vol},
		{"depth_window", w.Depth},
	} {
		if c.v <= 0 {
			return &InvalidParameterError{Name: c.name, Value: c.v, Reason: "window must be a positive row count"}
		}
	}
	return nil
}

// Validate checks detector thresholds.
func (t Thresholds) Validate() error {
	if math.IsNaN(t.ZThreshold) {
		return &InvalidParameterError{Name: "z_threshold", Value: t.ZThreshold, Reason: "must be a number"}
	}
	if math.IsNaN(t.DepthFactor) || t.DepthFactor <= 0 {
		return &InvalidParameterError{Name: "depth_factor", Value: t.DepthFactor, Reason: "must be > 0"}
	}
	return nil
}

// ValidateHorizon checks the forward row offset.
func ValidateHorizon(h int) error {
	if h <= 0 {
		return &InvalidParameterError{Name: "horizon", Value: h, Reason: "horizon must be a positive row offset"}
	}
	return nil
}
