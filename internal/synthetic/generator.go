// Package synthetic generates seeded random-walk tick data for tests and demos.
package synthetic

import (
	"math"
	"math/rand"
	"time"

	"microstructure-lab/internal/domain"
)

// Config controls the generated series.
type Config struct {
	Rows       int
	Start      time.Time
	Interval   time.Duration
	StartPrice float64
	Seed       int64

	StepSigma    float64 // std of the per-row mid step
	SpreadMean   float64
	SpreadSigma  float64
	MinSpread    float64
	VolumeLambda float64 // Poisson mean of each top-of-book volume
	TradeMean    float64 // mean of the exponential trade size
}

// DefaultConfig returns one hour of one-second ticks starting at 100.
func DefaultConfig() Config {
	return Config{
		Rows:         3600,
		Start:        time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC),
		Interval:     time.Second,
		StartPrice:   100,
		Seed:         1,
		StepSigma:    0.02,
		SpreadMean:   0.05,
		SpreadSigma:  0.02,
		MinSpread:    0.01,
		VolumeLambda: 100,
		TradeMean:    50,
	}
}

// Generate produces cfg.Rows ticks. The same config always yields the same ticks.
func Generate(cfg Config) []domain.Tick {
	rng := rand.New(rand.NewSource(cfg.Seed))
	ticks := make([]domain.Tick, cfg.Rows)

	price := cfg.StartPrice
	for i := range ticks {
		price += rng.NormFloat64() * cfg.StepSigma

		spread := math.Max(cfg.MinSpread, math.Abs(cfg.SpreadMean+rng.NormFloat64()*cfg.SpreadSigma))
		bid := price - spread/2
		ask := price + spread/2

		bidVol := math.Max(1, float64(poisson(rng, cfg.VolumeLambda)))
		askVol := math.Max(1, float64(poisson(rng, cfg.VolumeLambda)))

		size := rng.ExpFloat64() * cfg.TradeMean
		tradePrice := ask
		if rng.Float64() < 0.5 {
			tradePrice = bid
		}

		ticks[i] = domain.Tick{
			Timestamp:  cfg.Start.Add(time.Duration(i) * cfg.Interval),
			Bid:        round(bid, 4),
			Ask:        round(ask, 4),
			BidVol:     bidVol,
			AskVol:     askVol,
			TradePrice: round(tradePrice, 4),
			TradeSize:  round(size, 2),
		}
	}
	return ticks
}

// InjectLiquidityGap scales both volumes by factor over rows [from, to).
func InjectLiquidityGap(ticks []domain.Tick, from, to int, factor float64) {
	for i := max(from, 0); i < min(to, len(ticks)); i++ {
		ticks[i].BidVol *= factor
		ticks[i].AskVol *= factor
	}
}

// InjectSpreadSpike widens the spread around mid by widen over rows [from, to).
func InjectSpreadSpike(ticks []domain.Tick, from, to int, widen float64) {
	for i := max(from, 0); i < min(to, len(ticks)); i++ {
		ticks[i].Bid -= widen / 2
		ticks[i].Ask += widen / 2
	}
}

// poisson draws from Poisson(lambda) by Knuth's multiplication method.
func poisson(rng *rand.Rand, lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	l := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		p *= rng.Float64()
		if p <= l {
			return k
		}
		k++
	}
}

func round(x float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(x*scale) / scale
}
