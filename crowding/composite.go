package crowding

import (
	"sort"

	"github.com/rustyeddy/crowding/indicators"
	"github.com/rustyeddy/crowding/series"
)

// Composite winsorizes each component, averages the components present at
// each date and smooths the result with a trailing SMA. With a positive
// WinsorizeWindow the cutoffs come from the trailing window ending at each
// date, so the composite at t uses no data after t. Absent components
// are skipped, never counted as zero. The output is independent of the
// order of comps.
func (b *Builder) Composite(name string, comps []Component) series.Series {
	if len(comps) == 0 {
		return series.Series{Name: name}
	}
	clipped := make([]series.Series, len(comps))
	for i, c := range comps {
		clipped[i] = indicators.WinsorizeRolling(c.Series, b.opts.WinsorizeLower, b.opts.WinsorizeUpper, b.opts.WinsorizeWindow)
	}
	raw := crossMean(name, clipped)
	if b.opts.SmoothingWindow <= 1 {
		return raw
	}
	return indicators.SMA(raw, b.opts.SmoothingWindow).Renamed(name)
}

func sortedMean(xs []float64) (float64, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	sort.Float64s(xs)
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs)), true
}
