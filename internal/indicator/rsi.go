package indicator

import "github.com/amirphl/financeiq/internal/candle"

// DefaultRSIPeriod is the conventional Wilder period.
const DefaultRSIPeriod = 14

// RSI returns Wilder's Relative Strength Index. Averages are seeded with the
// simple mean of the first period changes, so the first value sits at index
// period. A zero average loss yields exactly 100.
func RSI(series []candle.PricePoint, period int) ([]Value, error) {
	if err := checkPeriod("RSI", period); err != nil {
		return nil, err
	}
	if len(series) < period+1 {
		return []Value{}, nil
	}

	result := make([]Value, 0, len(series)-period)
	var avgGain, avgLoss float64
	// Calculate initial gains and losses
	for i := 1; i <= period; i++ {
		gain, loss := change(series[i-1].Close, series[i].Close)
		avgGain += gain
		avgLoss += loss
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	result = append(result, Value{Time: series[period].Time, Value: rsiValue(avgGain, avgLoss)})

	// Calculate subsequent RSIs
	p := float64(period)
	for i := period + 1; i < len(series); i++ {
		gain, loss := change(series[i-1].Close, series[i].Close)
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		result = append(result, Value{Time: series[i].Time, Value: rsiValue(avgGain, avgLoss)})
	}
	return result, nil
}

func change(prev, cur float64) (gain, loss float64) {
	d := cur - prev
	if d > 0 {
		return d, 0
	}
	return 0, -d
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
