package domain

import (
	"time"
)

// Canonical tick column names.
const (
	ColTimestamp  = "timestamp"
	ColBid        = "bid"
	ColAsk        = "ask"
	ColBidVol     = "bid_vol"
	ColAskVol     = "ask_vol"
	ColTradePrice = "trade_price"
	ColTradeSize  = "trade_size"
)

// RequiredTickColumns lists every column a TickTable must carry, in export order.
var RequiredTickColumns = []string{
	ColTimestamp, ColBid, ColAsk, ColBidVol, ColAskVol, ColTradePrice, ColTradeSize,
}

// Tick is a single observed market snapshot (top of book plus last trade).
type Tick struct {
	Timestamp  time.Time
	Bid        float64
	Ask        float64
	BidVol     float64
	AskVol     float64
	TradePrice float64
	TradeSize  float64
}

// TickTable is the columnar input table. Rows are ordered by Timestamp
// (non-decreasing) and the row position is the unit for windows and horizons.
// A TickTable is never mutated once handed to the engine.
type TickTable struct {
	Timestamp  []time.Time
	Bid        []float64
	Ask        []float64
	BidVol     []float64
	AskVol     []float64
	TradePrice []float64
	TradeSize  []float64
}

// NewTickTable builds a columnar table from row-oriented ticks.
func NewTickTable(ticks []Tick) *TickTable {
	n := len(ticks)
	t := &TickTable{
		Timestamp:  make([]time.Time, n),
		Bid:        make([]float64, n),
		Ask:        make([]float64, n),
		BidVol:     make([]float64, n),
		AskVol:     make([]float64, n),
		TradePrice: make([]float64, n),
		TradeSize:  make([]float64, n),
	}
	for i, k := range ticks {
		t.Timestamp[i] = k.Timestamp
		t.Bid[i] = k.Bid
		t.Ask[i] = k.Ask
		t.BidVol[i] = k.BidVol
		t.AskVol[i] = k.AskVol
		t.TradePrice[i] = k.TradePrice
		t.TradeSize[i] = k.TradeSize
	}
	return t
}

// Len returns the number of rows: the longest column present.
func (t *TickTable) Len() int {
	if t == nil {
		return 0
	}
	n := len(t.Timestamp)
	for _, c := range t.floatColumns() {
		if len(c.values) > n {
			n = len(c.values)
		}
	}
	return n
}

// Row returns the tick at row i.
func (t *TickTable) Row(i int) Tick {
	return Tick{
		Timestamp:  t.Timestamp[i],
		Bid:        t.Bid[i],
		Ask:        t.Ask[i],
		BidVol:     t.BidVol[i],
		AskVol:     t.AskVol[i],
		TradePrice: t.TradePrice[i],
		TradeSize:  t.TradeSize[i],
	}
}

// Validate checks that every required column is present and has the table length.
// An entirely empty table is valid.
func (t *TickTable) Validate() error {
	if t == nil {
		return &SchemaError{Column: ColTimestamp, Reason: "tick table is nil"}
	}
	n := t.Len()
	if n == 0 {
		return nil
	}
	if err := checkColumn(ColTimestamp, len(t.Timestamp), t.Timestamp == nil, n); err != nil {
		return err
	}
	for _, c := range t.floatColumns() {
		if err := checkColumn(c.name, len(c.values), c.values == nil, n); err != nil {
			return err
		}
	}
	return nil
}

type namedColumn struct {
	name   string
	values []float64
}

func (t *TickTable) floatColumns() []namedColumn {
	return []namedColumn{
		{ColBid, t.Bid},
		{ColAsk, t.Ask},
		{ColBidVol, t.BidVol},
		{ColAskVol, t.AskVol},
		{ColTradePrice, t.TradePrice},
		{ColTradeSize, t.TradeSize},
	}
}

func checkColumn(name string, got int, missing bool, want int) error {
	if missing {
		return &SchemaError{Column: name, Reason: "required column is missing"}
	}
	if got != want {
		return &SchemaError{Column: name, Reason: "column length mismatch"}
	}
	return nil
}
