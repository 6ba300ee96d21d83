package fsrs

import "math"

type fuzzBand struct {
	start, end float64
	factor     float64
}

var fuzzBands = []fuzzBand{
	{2.5, 7.0, 0.15},
	{7.0, 20.0, 0.10},
	{20.0, math.Inf(1), 0.05},
}

func fuzzDelta(ivl float64) float64 {
	delta := 1.0
	for _, b := range fuzzBands {
		delta += b.factor * math.Max(math.Min(ivl, b.end)-b.start, 0)
	}
	return delta
}

// fuzzInterval spreads intervals of 3+ days so cards created together do not stay clustered.
func fuzzInterval(interval, maxIvl int, rnd func() float64) int {
	if float64(interval) < 2.5 || rnd == nil {
		return interval
	}
	ivl := float64(interval)
	delta := fuzzDelta(ivl)

	lo := max(2, int(math.Round(ivl-delta)))
	hi := min(int(math.Round(ivl+delta)), maxIvl)
	lo = min(lo, hi)

	fuzzed := int(math.Floor(rnd()*float64(hi-lo+1))) + lo
	return min(fuzzed, maxIvl)
}
