package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFibonacci(t *testing.T) {
	levels := Fibonacci(series(alternatingWalk...))
	require.Len(t, levels, len(FibonacciRatios))

	expected := []float64{115, 108.156, 103.922, 100.5, 97.078, 92.206, 86}
	for i, want := range expected {
		assert.Equal(t, FibonacciRatios[i], levels[i].Ratio)
		assert.InDelta(t, want, levels[i].Price, 1e-9)
	}
}

func TestFibonacci_FlatAndEmpty(t *testing.T) {
	for _, l := range Fibonacci(constant(5, 42)) {
		assert.Equal(t, 42.0, l.Price)
	}
	empty := Fibonacci(nil)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
