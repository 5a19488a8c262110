package candle

// HeikinAshi smooths candles into Heikin-Ashi bars for display. Input must be
// ascending; time keys and volumes are kept.
func HeikinAshi(candles []Candle) []Candle {
	out := make([]Candle, len(candles))
	var prev *Candle
	for i, c := range candles {
		out[i] = NextHeikinAshi(prev, c)
		prev = &out[i]
	}
	return out
}

// NextHeikinAshi derives the bar after prev from the raw candle c. prev is nil
// for the first bar.
func NextHeikinAshi(prev *Candle, c Candle) Candle {
	ha := c
	ha.Close = (c.Open + c.High + c.Low + c.Close) / 4
	if prev == nil {
		ha.Open = (c.Open + c.Close) / 2
	} else {
		ha.Open = (prev.Open + prev.Close) / 2
	}
	ha.High = max(c.High, ha.Open, ha.Close)
	ha.Low = min(c.Low, ha.Open, ha.Close)
	return ha
}
