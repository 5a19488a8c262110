package indicator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/amirphl/financeiq/internal/candle"
)

type Kind string

const (
	KindSMA       Kind = "sma"
	KindEMA       Kind = "ema"
	KindToggleEMA Kind = "xema"
	KindBollinger Kind = "bb"
	KindRSI       Kind = "rsi"
	KindMACD      Kind = "macd"
	KindFibonacci Kind = "fib"
)

// DefaultBollingerPeriod is the window of the "bb" overlay.
const DefaultBollingerPeriod = 20

// Spec names one chart overlay, e.g. "sma50", "xema20", "bb", "rsi14".
type Spec struct {
	ID     string
	Kind   Kind
	Period int
}

// order matters: "xema" must be tried before "ema".
var prefixes = []Kind{KindToggleEMA, KindEMA, KindSMA, KindBollinger, KindRSI, KindMACD, KindFibonacci}

// ParseSpec parses an overlay id as used by the dashboard toggles.
func ParseSpec(id string) (Spec, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, kind := range prefixes {
		rest, ok := strings.CutPrefix(id, string(kind))
		if !ok {
			continue
		}
		spec := Spec{ID: id, Kind: kind}
		switch kind {
		case KindMACD, KindFibonacci:
			if rest != "" {
				return Spec{}, fmt.Errorf("%q: %w", id, ErrUnknownOverlay)
			}
			return spec, nil
		case KindBollinger:
			spec.Period = DefaultBollingerPeriod
		case KindRSI:
			spec.Period = DefaultRSIPeriod
		}
		if rest == "" {
			if spec.Period == 0 {
				return Spec{}, fmt.Errorf("%q needs a period: %w", id, ErrUnknownOverlay)
			}
			return spec, nil
		}
		n, err := strconv.Atoi(rest)
		if err != nil {
			return Spec{}, fmt.Errorf("%q: %w", id, ErrUnknownOverlay)
		}
		if err := checkPeriod(string(kind), n); err != nil {
			return Spec{}, err
		}
		spec.Period = n
		return spec, nil
	}
	return Spec{}, fmt.Errorf("%q: %w", id, ErrUnknownOverlay)
}

// ParseSpecs parses a comma-separated overlay list, skipping empty entries and
// repeated ids.
func ParseSpecs(list string) ([]Spec, error) {
	var specs []Spec
	seen := make(map[string]bool)
	for _, id := range strings.Split(list, ",") {
		if strings.TrimSpace(id) == "" {
			continue
		}
		spec, err := ParseSpec(id)
		if err != nil {
			return nil, err
		}
		if seen[spec.ID] {
			continue
		}
		seen[spec.ID] = true
		specs = append(specs, spec)
	}
	return specs, nil
}

// Overlay is the computed output of one Spec. Exactly one of the series
// fields is populated, depending on Kind and padding.
type Overlay struct {
	ID          string       `json:"id"`
	Kind        Kind         `json:"kind"`
	Line        []Value      `json:"line,omitempty"`
	PaddedLine  []Padded     `json:"paddedLine,omitempty"`
	Bands       []Band       `json:"bands,omitempty"`
	PaddedBands []PaddedBand `json:"paddedBands,omitempty"`
	MACD        []MACDPoint  `json:"macd,omitempty"`
	Levels      []Level      `json:"levels,omitempty"`
}

// ComputeOptions selects between the truncated and the padded shapes for the
// windowed overlays (SMA and Bollinger).
type ComputeOptions struct {
	Padded bool
}

// Compute evaluates spec over series.
func Compute(series []candle.PricePoint, spec Spec, opts ComputeOptions) (Overlay, error) {
	out := Overlay{ID: spec.ID, Kind: spec.Kind}
	var err error
	switch spec.Kind {
	case KindSMA:
		if opts.Padded {
			out.PaddedLine, err = SMAPadded(series, spec.Period)
		} else {
			out.Line, err = SMA(series, spec.Period)
		}
	case KindEMA:
		out.Line, err = EMASMASeeded(series, spec.Period)
	case KindToggleEMA:
		out.Line, err = EMANaiveSeeded(series, spec.Period)
	case KindBollinger:
		if opts.Padded {
			out.PaddedBands, err = BollingerPadded(series, spec.Period, DefaultBandWidth)
		} else {
			out.Bands, err = Bollinger(series, spec.Period, DefaultBandWidth)
		}
	case KindRSI:
		out.Line, err = RSI(series, spec.Period)
	case KindMACD:
		out.MACD, err = MACD(series, DefaultMACDShort, DefaultMACDLong, DefaultMACDSignal)
	case KindFibonacci:
		out.Levels = Fibonacci(series)
	default:
		return Overlay{}, fmt.Errorf("%q: %w", spec.ID, ErrUnknownOverlay)
	}
	if err != nil {
		return Overlay{}, fmt.Errorf("failed to compute %s: %w", spec.ID, err)
	}
	return out, nil
}
