package overlay

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/amirphl/financeiq/internal/candle"
	"github.com/amirphl/financeiq/internal/indicator"
)

// Places is the number of decimals shown to clients.
const Places = 4

func round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(Places).InexactFloat64()
}

func roundPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := round(*v)
	return &r
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finitePtr(v *float64) bool {
	return v == nil || isFinite(*v)
}

// finite reports whether every value of o can be presented. Closes near the
// float64 limit pass normalization but overflow in window sums and squares.
func finite(o *indicator.Overlay) bool {
	for _, v := range o.Line {
		if !isFinite(v.Value) {
			return false
		}
	}
	for _, v := range o.PaddedLine {
		if !finitePtr(v.Value) {
			return false
		}
	}
	for _, b := range o.Bands {
		if !isFinite(b.Upper) || !isFinite(b.Middle) || !isFinite(b.Lower) {
			return false
		}
	}
	for _, b := range o.PaddedBands {
		if !finitePtr(b.Upper) || !finitePtr(b.Middle) || !finitePtr(b.Lower) {
			return false
		}
	}
	for _, m := range o.MACD {
		if !isFinite(m.MACD) || !isFinite(m.Signal) || !isFinite(m.Histogram) {
			return false
		}
	}
	for _, l := range o.Levels {
		if !isFinite(l.Price) {
			return false
		}
	}
	return true
}

// present rounds every value of o in place. o must be finite.
func present(o *indicator.Overlay) {
	for i := range o.Line {
		o.Line[i].Value = round(o.Line[i].Value)
	}
	for i := range o.PaddedLine {
		o.PaddedLine[i].Value = roundPtr(o.PaddedLine[i].Value)
	}
	for i := range o.Bands {
		b := &o.Bands[i]
		b.Upper, b.Middle, b.Lower = round(b.Upper), round(b.Middle), round(b.Lower)
	}
	for i := range o.PaddedBands {
		b := &o.PaddedBands[i]
		b.Upper, b.Middle, b.Lower = roundPtr(b.Upper), roundPtr(b.Middle), roundPtr(b.Lower)
	}
	for i := range o.MACD {
		m := &o.MACD[i]
		m.MACD, m.Signal, m.Histogram = round(m.MACD), round(m.Signal), round(m.Histogram)
	}
	for i := range o.Levels {
		o.Levels[i].Price = round(o.Levels[i].Price)
	}
}

// presentCandles returns rounded copies; stored history keeps full precision.
func presentCandles(candles []candle.Candle) []candle.Candle {
	out := make([]candle.Candle, len(candles))
	for i, c := range candles {
		out[i] = candle.Candle{
			Time:   c.Time,
			Open:   round(c.Open),
			High:   round(c.High),
			Low:    round(c.Low),
			Close:  round(c.Close),
			Volume: c.Volume,
		}
	}
	return out
}
