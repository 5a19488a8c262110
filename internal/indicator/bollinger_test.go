package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBollinger(t *testing.T) {
	// window {2, 4, 4, 4, 5, 5, 7, 9}: mean 5, population sd 2
	in := series(2, 4, 4, 4, 5, 5, 7, 9)
	result, err := Bollinger(in, 8, 2)
	require.NoError(t, err)
	require.Len(t, result, 1)

	assert.Equal(t, in[7].Time, result[0].Time)
	assert.InDelta(t, 5.0, result[0].Middle, 1e-9)
	assert.InDelta(t, 9.0, result[0].Upper, 1e-9)
	assert.InDelta(t, 1.0, result[0].Lower, 1e-9)
}

func TestBollinger_ZeroVariance(t *testing.T) {
	result, err := Bollinger(constant(25, 10), 20, DefaultBandWidth)
	require.NoError(t, err)
	require.Len(t, result, 6)
	for _, b := range result {
		assert.False(t, math.IsNaN(b.Upper) || math.IsNaN(b.Lower))
		assert.Equal(t, 10.0, b.Upper)
		assert.Equal(t, 10.0, b.Middle)
		assert.Equal(t, 10.0, b.Lower)
	}
}

func TestBollinger_Ordering(t *testing.T) {
	in := series(alternatingWalk...)
	for _, k := range []float64{0, 1, 2, 3.5} {
		for _, period := range []int{2, 5, 20} {
			result, err := Bollinger(in, period, k)
			require.NoError(t, err)
			require.Len(t, result, len(in)-period+1)
			for _, b := range result {
				assert.GreaterOrEqual(t, b.Upper, b.Middle)
				assert.GreaterOrEqual(t, b.Middle, b.Lower)
			}
		}
	}
}

func TestBollinger_MiddleIsSMA(t *testing.T) {
	in := series(alternatingWalk...)
	bands, err := Bollinger(in, 5, 2)
	require.NoError(t, err)
	sma, err := SMA(in, 5)
	require.NoError(t, err)
	require.Len(t, bands, len(sma))
	for i := range sma {
		assert.InDelta(t, sma[i].Value, bands[i].Middle, 1e-9)
	}
}

func TestBollinger_InsufficientData(t *testing.T) {
	result, err := Bollinger(series(1, 2, 3), 20, 2)
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, result)
}

func TestBollinger_InvalidParameters(t *testing.T) {
	tests := []struct {
		name   string
		period int
		k      float64
	}{
		{"zero period", 0, 2},
		{"negative multiplier", 20, -1},
		{"NaN multiplier", 20, math.NaN()},
		{"infinite multiplier", 20, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Bollinger(series(1, 2, 3), tt.period, tt.k)
			assert.ErrorIs(t, err, ErrInvalidParameter)
			_, err = BollingerPadded(series(1, 2, 3), tt.period, tt.k)
			assert.ErrorIs(t, err, ErrInvalidParameter)
		})
	}
}

func TestBollingerPadded(t *testing.T) {
	in := series(2, 4, 4, 4, 5, 5, 7, 9)
	result, err := BollingerPadded(in, 8, 2)
	require.NoError(t, err)
	require.Len(t, result, len(in))
	for i := 0; i < 7; i++ {
		assert.Nil(t, result[i].Upper)
		assert.Nil(t, result[i].Middle)
		assert.Nil(t, result[i].Lower)
	}
	require.NotNil(t, result[7].Middle)
	assert.InDelta(t, 9.0, *result[7].Upper, 1e-9)
	assert.InDelta(t, 5.0, *result[7].Middle, 1e-9)
	assert.InDelta(t, 1.0, *result[7].Lower, 1e-9)
}
