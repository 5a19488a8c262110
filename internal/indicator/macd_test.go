package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMACD_LinearSeries(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	in := series(closes...)

	result, err := MACD(in, DefaultMACDShort, DefaultMACDLong, DefaultMACDSignal)
	require.NoError(t, err)
	require.Len(t, result, 7)
	assert.Equal(t, in[33].Time, result[0].Time)
	for _, p := range result {
		assert.InDelta(t, 7.0, p.MACD, 1e-9)
		assert.InDelta(t, 7.0, p.Signal, 1e-9)
		assert.InDelta(t, 0.0, p.Histogram, 1e-9)
	}
}

func TestMACD_JoinsOnTime(t *testing.T) {
	in := series(alternatingWalk...)
	result, err := MACD(in, 3, 6, 4)
	require.NoError(t, err)
	require.Len(t, result, 22)

	first := result[0]
	assert.Equal(t, in[8].Time, first.Time)
	assert.InDelta(t, -0.637117, first.MACD, 1e-6)
	assert.InDelta(t, 0.128667, first.Signal, 1e-6)
	assert.InDelta(t, -0.765784, first.Histogram, 1e-6)

	last := result[len(result)-1]
	assert.Equal(t, in[29].Time, last.Time)
	assert.InDelta(t, 2.479242, last.MACD, 1e-6)
	assert.InDelta(t, 0.627795, last.Signal, 1e-6)
}

func TestMACD_HistogramIdentity(t *testing.T) {
	in := series(alternatingWalk...)
	for _, p := range [][3]int{{3, 6, 4}, {2, 5, 3}, {5, 10, 5}, {1, 2, 1}} {
		result, err := MACD(in, p[0], p[1], p[2])
		require.NoError(t, err)
		assert.Len(t, result, max(0, len(in)-p[1]-p[2]+2))
		for i, m := range result {
			assert.InDelta(t, m.MACD-m.Signal, m.Histogram, 1e-9)
			if i > 0 {
				assert.Less(t, result[i-1].Time, m.Time)
			}
		}
	}
}

func TestMACD_InsufficientData(t *testing.T) {
	result, err := MACD(series(alternatingWalk[:25]...), 12, 26, 9)
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, result)

	// enough for the line but not for the signal
	result, err = MACD(series(alternatingWalk[:28]...), 12, 26, 9)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestMACD_InvalidParameters(t *testing.T) {
	tests := []struct {
		name                string
		short, long, signal int
	}{
		{"zero signal", 12, 26, 0},
		{"negative short", -1, 26, 9},
		{"long above max", 12, MaxPeriod + 1, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MACD(series(alternatingWalk...), tt.short, tt.long, tt.signal)
			assert.ErrorIs(t, err, ErrInvalidParameter)
			assert.Nil(t, result)
		})
	}
}

func TestMACD_ShortNotBelowLong(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	in := series(closes...)

	// swapped periods mirror the conventional result on a linear series
	result, err := MACD(in, DefaultMACDLong, DefaultMACDShort, DefaultMACDSignal)
	require.NoError(t, err)
	require.Len(t, result, 7)
	assert.Equal(t, in[33].Time, result[0].Time)
	for _, p := range result {
		assert.InDelta(t, -7.0, p.MACD, 1e-9)
		assert.InDelta(t, -7.0, p.Signal, 1e-9)
		assert.InDelta(t, 0.0, p.Histogram, 1e-9)
	}

	equal, err := MACD(in, 12, 12, 9)
	require.NoError(t, err)
	require.Len(t, equal, len(in)-12-9+2)
	for _, p := range equal {
		assert.Equal(t, 0.0, p.MACD)
		assert.Equal(t, 0.0, p.Histogram)
	}
}
