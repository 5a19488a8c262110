// Package indicator computes technical-indicator overlay series from an
// ordered price series.
//
// Every function is pure: it reads its input, never mutates it, and returns a
// freshly allocated series keyed by the input's time identifiers. Inputs must
// already be ascending and duplicate-free (see candle.Normalize); nothing here
// re-sorts or filters.
//
// A period outside [1, MaxPeriod] is a caller error and fails with
// ErrInvalidParameter. Too little history is not an error: the result is an
// empty series (or an all-nil padded series).
package indicator

import (
	"errors"
	"fmt"

	"github.com/amirphl/financeiq/internal/candle"
)

// MaxPeriod is the largest window any indicator accepts.
const MaxPeriod = 500

var (
	ErrInvalidParameter = errors.New("invalid indicator parameter")
	ErrUnknownOverlay   = errors.New("unknown overlay")
)

// Value is one point of a single-line indicator.
type Value struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

// Padded is one point of a series that keeps one entry per input index. Value
// is nil during warm-up.
type Padded struct {
	Time  string   `json:"time"`
	Value *float64 `json:"value"`
}

// Band is one Bollinger point.
type Band struct {
	Time   string  `json:"time"`
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// PaddedBand is a Bollinger point on the padded path; Upper, Middle and Lower
// are all nil or all set.
type PaddedBand struct {
	Time   string   `json:"time"`
	Upper  *float64 `json:"upper"`
	Middle *float64 `json:"middle"`
	Lower  *float64 `json:"lower"`
}

// MACDPoint is one MACD output point.
type MACDPoint struct {
	Time      string  `json:"time"`
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

func checkPeriod(name string, period int) error {
	if period <= 0 || period > MaxPeriod {
		return fmt.Errorf("%s period %d out of range [1, %d]: %w", name, period, MaxPeriod, ErrInvalidParameter)
	}
	return nil
}

// toPoints wraps a value series so it can feed another indicator.
func toPoints(values []Value) []candle.PricePoint {
	points := make([]candle.PricePoint, len(values))
	for i, v := range values {
		points[i] = candle.PricePoint{Time: v.Time, Close: v.Value}
	}
	return points
}
