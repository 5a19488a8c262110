package indicator

import "github.com/amirphl/financeiq/internal/candle"

// EMASMASeeded returns the exponential moving average seeded with the SMA of
// the first period points. The first output is at index period-1, then
//
//	ema[i] = (close[i] - ema[i-1]) * k + ema[i-1],  k = 2 / (period + 1)
//
// MACD is built on this variant.
func EMASMASeeded(series []candle.PricePoint, period int) ([]Value, error) {
	if err := checkPeriod("EMA", period); err != nil {
		return nil, err
	}
	if len(series) < period {
		return []Value{}, nil
	}

	k := 2.0 / float64(period+1)
	result := make([]Value, 0, len(series)-period+1)

	var sum float64
	for i := 0; i < period; i++ {
		sum += series[i].Close
	}
	prev := sum / float64(period)
	result = append(result, Value{Time: series[period-1].Time, Value: prev})

	for i := period; i < len(series); i++ {
		prev = (series[i].Close-prev)*k + prev
		result = append(result, Value{Time: series[i].Time, Value: prev})
	}
	return result, nil
}

// EMANaiveSeeded returns the exponential moving average seeded with the first
// close and recursed from index 1, so it has no warm-up and the same length as
// the input. The chart's quick EMA toggles use it; it differs from
// EMASMASeeded over the first few hundred points.
func EMANaiveSeeded(series []candle.PricePoint, period int) ([]Value, error) {
	if err := checkPeriod("EMA", period); err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return []Value{}, nil
	}

	k := 2.0 / float64(period+1)
	result := make([]Value, len(series))
	result[0] = Value{Time: series[0].Time, Value: series[0].Close}
	for i := 1; i < len(series); i++ {
		result[i] = Value{Time: series[i].Time, Value: series[i].Close*k + result[i-1].Value*(1-k)}
	}
	return result, nil
}
