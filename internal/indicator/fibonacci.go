package indicator

import "github.com/amirphl/financeiq/internal/candle"

// FibonacciRatios are the retracement ratios drawn on the chart, from the
// high (0) down to the low (1).
var FibonacciRatios = []float64{0, 0.236, 0.382, 0.5, 0.618, 0.786, 1}

// Level is a horizontal retracement line.
type Level struct {
	Ratio float64 `json:"ratio"`
	Price float64 `json:"price"`
}

// Fibonacci returns retracement levels between the highest and lowest close.
func Fibonacci(series []candle.PricePoint) []Level {
	if len(series) == 0 {
		return []Level{}
	}
	hi, lo := series[0].Close, series[0].Close
	for _, p := range series[1:] {
		hi = max(hi, p.Close)
		lo = min(lo, p.Close)
	}

	levels := make([]Level, len(FibonacciRatios))
	for i, r := range FibonacciRatios {
		levels[i] = Level{Ratio: r, Price: hi - (hi-lo)*r}
	}
	return levels
}
