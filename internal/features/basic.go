// Package features derives microstructure columns from a tick table.
package features

import (
	"math"

	"microstructure-lab/internal/domain"
)

// ComputeBasicFeatures derives per-row features from ticks.
//
// Formulas:
//   - spread = ask - bid
//   - mid = (ask + bid) / 2
//   - ret_1s = mid[t] / mid[t-1] - 1, 0 on the first row and wherever non-finite
//   - vwap = cumsum(trade_price * trade_size) / cumsum(trade_size) over rows where
//     both trade cells are finite; mid until the first traded size, then carried
//     forward across rows with no new size
//   - imbalance_top = (bid_vol - ask_vol) / (bid_vol + ask_vol), 0 if the sum is 0
//   - top_depth = bid_vol + ask_vol
//
// The input table is not modified; the result references it read-only.
func ComputeBasicFeatures(ticks *domain.TickTable) (*domain.FeatureTable, error) {
	if err := ticks.Validate(); err != nil {
		return nil, err
	}

	n := ticks.Len()
	ft := &domain.FeatureTable{
		Ticks:           ticks,
		Spread:          make([]float64, n),
		Mid:             make([]float64, n),
		Ret1s:           make([]float64, n),
		VWAP:            make([]float64, n),
		ImbalanceTop:    make([]float64, n),
		AbsImbalanceTop: make([]float64, n),
		TopDepth:        make([]float64, n),
	}

	var cumNotional, cumSize float64
	last := math.NaN()

	for i := 0; i < n; i++ {
		bid, ask := ticks.Bid[i], ticks.Ask[i]
		mid := (ask + bid) / 2
		ft.Spread[i] = ask - bid
		ft.Mid[i] = mid

		if i > 0 {
			if r := mid/ft.Mid[i-1] - 1; finite(r) {
				ft.Ret1s[i] = r
			}
		}

		price, size := ticks.TradePrice[i], ticks.TradeSize[i]
		traded := finite(price) && finite(size) && size != 0
		if traded {
			cumNotional += price * size
			cumSize += size
		}
		switch {
		case cumSize == 0:
			ft.VWAP[i] = mid
		case !traded && !math.IsNaN(last):
			ft.VWAP[i] = last
		default:
			last = cumNotional / cumSize
			ft.VWAP[i] = last
		}

		bv, av := ticks.BidVol[i], ticks.AskVol[i]
		depth := bv + av
		ft.TopDepth[i] = depth
		if depth != 0 {
			imb := (bv - av) / depth
			ft.ImbalanceTop[i] = imb
			ft.AbsImbalanceTop[i] = math.Abs(imb)
		}
	}

	return ft, nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
