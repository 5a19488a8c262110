package indicator

import "github.com/amirphl/financeiq/internal/candle"

// SMA returns the simple moving average of close over a trailing window of
// period points. Output starts at index period-1; a series shorter than the
// window yields an empty result.
func SMA(series []candle.PricePoint, period int) ([]Value, error) {
	if err := checkPeriod("SMA", period); err != nil {
		return nil, err
	}
	if len(series) < period {
		return []Value{}, nil
	}

	result := make([]Value, 0, len(series)-period+1)
	var sum float64
	for i, p := range series {
		sum += p.Close
		if i >= period {
			sum -= series[i-period].Close
		}
		if i >= period-1 {
			result = append(result, Value{Time: p.Time, Value: sum / float64(period)})
		}
	}
	return result, nil
}

// SMAPadded is SMA with one entry per input point; entries before index
// period-1 carry a nil value. This is the shape the overlay toggles draw.
func SMAPadded(series []candle.PricePoint, period int) ([]Padded, error) {
	if err := checkPeriod("SMA", period); err != nil {
		return nil, err
	}

	result := make([]Padded, len(series))
	var sum float64
	for i, p := range series {
		result[i].Time = p.Time
		sum += p.Close
		if i >= period {
			sum -= series[i-period].Close
		}
		if i >= period-1 {
			v := sum / float64(period)
			result[i].Value = &v
		}
	}
	return result, nil
}
