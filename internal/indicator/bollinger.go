package indicator

import (
	"fmt"
	"math"

	"github.com/amirphl/financeiq/internal/candle"
)

// DefaultBandWidth is the standard deviation multiplier used by the dashboard.
const DefaultBandWidth = 2.0

// Bollinger returns SMA(period) ± k standard deviations. The deviation uses the
// population variance of the window (divisor period).
func Bollinger(series []candle.PricePoint, period int, k float64) ([]Band, error) {
	if err := checkBollinger(period, k); err != nil {
		return nil, err
	}
	if len(series) < period {
		return []Band{}, nil
	}

	result := make([]Band, 0, len(series)-period+1)
	for i := period - 1; i < len(series); i++ {
		mid, sd := windowStats(series[i-period+1 : i+1])
		result = append(result, Band{
			Time:   series[i].Time,
			Upper:  mid + k*sd,
			Middle: mid,
			Lower:  mid - k*sd,
		})
	}
	return result, nil
}

// BollingerPadded is Bollinger with one entry per input point and nil bands
// during warm-up.
func BollingerPadded(series []candle.PricePoint, period int, k float64) ([]PaddedBand, error) {
	if err := checkBollinger(period, k); err != nil {
		return nil, err
	}

	result := make([]PaddedBand, len(series))
	for i := range series {
		result[i].Time = series[i].Time
		if i < period-1 {
			continue
		}
		mid, sd := windowStats(series[i-period+1 : i+1])
		upper, lower := mid+k*sd, mid-k*sd
		result[i].Upper, result[i].Middle, result[i].Lower = &upper, &mid, &lower
	}
	return result, nil
}

func checkBollinger(period int, k float64) error {
	if err := checkPeriod("Bollinger", period); err != nil {
		return err
	}
	if k < 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		return fmt.Errorf("bollinger multiplier %v must be finite and non-negative: %w", k, ErrInvalidParameter)
	}
	return nil
}

// windowStats returns the mean and population standard deviation.
func windowStats(window []candle.PricePoint) (mean, sd float64) {
	n := float64(len(window))
	for _, p := range window {
		mean += p.Close
	}
	mean /= n

	var variance float64
	for _, p := range window {
		d := p.Close - mean
		variance += d * d
	}
	variance /= n
	return mean, math.Sqrt(variance)
}
