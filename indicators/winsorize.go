package indicators

import (
	"math"
	"sort"

	"github.com/rustyeddy/crowding/series"
)

// Winsorize clamps every present value of s into the [lowerPct, upperPct]
// percentile band computed over all present values. Percentiles are on a
// 0..100 scale.
func Winsorize(s series.Series, lowerPct, upperPct float64) series.Series {
	sorted := s.Floats()
	if len(sorted) == 0 {
		return s
	}
	sort.Float64s(sorted)
	lo, hi := Percentile(sorted, lowerPct), Percentile(sorted, upperPct)
	return s.Map(s.Name, func(x float64) float64 { return clamp(x, lo, hi) })
}

// WinsorizeRolling clamps each value into the band of the trailing window
// ending at its date.
func WinsorizeRolling(s series.Series, lowerPct, upperPct float64, window int) series.Series {
	if window <= 0 {
		return Winsorize(s, lowerPct, upperPct)
	}
	w := NewWindow(window)
	out := make([]series.Value, s.Len())
	var buf []float64
	for i, v := range s.Values {
		w.Update(v)
		if !v.OK {
			continue
		}
		buf = w.Values(buf[:0])
		sort.Float64s(buf)
		out[i] = series.Present(clamp(v.X, Percentile(buf, lowerPct), Percentile(buf, upperPct)))
	}
	return series.Series{Name: s.Name, Dates: s.Dates, Values: out}
}

// Percentile returns the p-th percentile (0..100) of an ascending slice by
// linear interpolation between closest ranks. It returns NaN for an empty
// slice.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}
	h := float64(n-1) * p / 100
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func clamp(x, lo, hi float64) float64 {
	return math.Min(math.Max(x, lo), hi)
}
