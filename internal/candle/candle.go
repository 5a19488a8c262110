// Package candle
package candle

import (
	"errors"
	"math"
	"sort"
	"strings"
)

// PricePoint is the close of one bar keyed by its time identifier.
type PricePoint struct {
	Time  string  `json:"time"`
	Close float64 `json:"close"`
}

type Candle struct {
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// RawCandle is a price_history record as the backend sends it. Any field may be
// null, and older payloads carry the key as "date" instead of "time".
type RawCandle struct {
	Time   string   `json:"time,omitempty"`
	Date   string   `json:"date,omitempty"`
	Open   *float64 `json:"open"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Close  *float64 `json:"close"`
	Volume *float64 `json:"volume"`
}

// Key returns the time identifier of the record, preferring time over date.
func (r RawCandle) Key() string {
	if k := strings.TrimSpace(r.Time); k != "" {
		return k
	}
	return strings.TrimSpace(r.Date)
}

// Validate checks if a candle has valid data
func (c *Candle) Validate() error {
	if c.Time == "" {
		return errors.New("candle time is empty")
	}
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("candle values must be finite")
		}
	}
	if c.High < c.Low {
		return errors.New("candle high cannot be less than low")
	}
	if c.Volume < 0 {
		return errors.New("candle volume cannot be negative")
	}
	return nil
}

// Options tunes Normalize.
type Options struct {
	// DailyKeys truncates timestamps to their YYYY-MM-DD date.
	DailyKeys bool
}

// Report counts what Normalize discarded.
type Report struct {
	Input      int `json:"input"`
	Dropped    int `json:"dropped"`
	Duplicates int `json:"duplicates"`
}

// Normalize converts raw backend records into a validated, time-ascending,
// duplicate-free candle sequence. Records with a missing key, a null or
// non-finite value, or inconsistent prices are dropped. When two records share
// a time key the first one wins.
func Normalize(raw []RawCandle, opts Options) ([]Candle, Report) {
	rep := Report{Input: len(raw)}
	candles := make([]Candle, 0, len(raw))
	for _, r := range raw {
		c, ok := fromRaw(r, opts)
		if !ok {
			rep.Dropped++
			continue
		}
		candles = append(candles, c)
	}

	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Time < candles[j].Time
	})

	out := candles[:0]
	for i, c := range candles {
		if i > 0 && c.Time == out[len(out)-1].Time {
			rep.Duplicates++
			continue
		}
		out = append(out, c)
	}
	return out, rep
}

func fromRaw(r RawCandle, opts Options) (Candle, bool) {
	key := r.Key()
	if opts.DailyKeys && len(key) > 10 {
		key = key[:10]
	}
	if r.Open == nil || r.High == nil || r.Low == nil || r.Close == nil || r.Volume == nil {
		return Candle{}, false
	}
	c := Candle{
		Time:   key,
		Open:   *r.Open,
		High:   *r.High,
		Low:    *r.Low,
		Close:  *r.Close,
		Volume: *r.Volume,
	}
	if err := c.Validate(); err != nil {
		return Candle{}, false
	}
	return c, true
}

// Closes projects candles onto their closing prices.
func Closes(candles []Candle) []PricePoint {
	points := make([]PricePoint, len(candles))
	for i, c := range candles {
		points[i] = PricePoint{Time: c.Time, Close: c.Close}
	}
	return points
}
