package indicator

import "github.com/amirphl/financeiq/internal/candle"

// Conventional MACD periods.
const (
	DefaultMACDShort  = 12
	DefaultMACDLong   = 26
	DefaultMACDSignal = 9
)

// MACD returns the MACD line (short EMA - long EMA), its signal EMA and the
// histogram. Both EMAs are SMA-seeded and start at different indices, so the
// line is built by joining them on the time key, and the result is the join
// of the line with the signal. Positional alignment would shift values.
func MACD(series []candle.PricePoint, short, long, signal int) ([]MACDPoint, error) {
	for _, p := range []struct {
		name   string
		period int
	}{{"MACD short", short}, {"MACD long", long}, {"MACD signal", signal}} {
		if err := checkPeriod(p.name, p.period); err != nil {
			return nil, err
		}
	}
	// short >= long is allowed; the line is still the join of both EMAs.
	if len(series) < max(short, long) {
		return []MACDPoint{}, nil
	}

	shortEMA, err := EMASMASeeded(series, short)
	if err != nil {
		return nil, err
	}
	longEMA, err := EMASMASeeded(series, long)
	if err != nil {
		return nil, err
	}

	shortByTime := indexByTime(shortEMA)
	line := make([]Value, 0, len(longEMA))
	for _, l := range longEMA {
		if s, ok := shortByTime[l.Time]; ok {
			line = append(line, Value{Time: l.Time, Value: s - l.Value})
		}
	}

	signalEMA, err := EMASMASeeded(toPoints(line), signal)
	if err != nil {
		return nil, err
	}

	lineByTime := indexByTime(line)
	result := make([]MACDPoint, 0, len(signalEMA))
	for _, s := range signalEMA {
		m, ok := lineByTime[s.Time]
		if !ok {
			continue
		}
		result = append(result, MACDPoint{
			Time:      s.Time,
			MACD:      m,
			Signal:    s.Value,
			Histogram: m - s.Value,
		})
	}
	return result, nil
}

func indexByTime(values []Value) map[string]float64 {
	m := make(map[string]float64, len(values))
	for _, v := range values {
		m[v.Time] = v.Value
	}
	return m
}
