package indicators

import (
	"math"
	"sort"

	"github.com/rustyeddy/crowding/series"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stat reduces the present values of one window. ok is false when the
// statistic is undefined for these values.
type Stat func(xs []float64) (value float64, ok bool)

// PairStat reduces aligned pairs of one window.
type PairStat func(xs, ys []float64) (value float64, ok bool)

// Rolling applies fn over each trailing window of s. The result is absent
// where fewer than minObs values are present or fn is undefined.
func Rolling(s series.Series, window, minObs int, fn Stat) series.Series {
	w := NewWindow(window)
	out := make([]series.Value, s.Len())
	var buf []float64
	for i, v := range s.Values {
		w.Update(v)
		if !w.Ready(minObs) {
			continue
		}
		buf = w.Values(buf[:0])
		if x, ok := fn(buf); ok {
			out[i] = series.Present(x)
		}
	}
	return series.Series{Name: s.Name, Dates: s.Dates, Values: out}
}

// RollingPair applies fn over each trailing window of two series sharing a
// date index, using only positions where both are present.
func RollingPair(a, b series.Series, window, minObs int, fn PairStat) series.Series {
	n := a.Len()
	out := make([]series.Value, n)
	xs := make([]float64, 0, window)
	ys := make([]float64, 0, window)
	for i := 0; i < n; i++ {
		xs, ys = xs[:0], ys[:0]
		for j := max(0, i-window+1); j <= i; j++ {
			if a.Values[j].OK && b.Values[j].OK {
				xs = append(xs, a.Values[j].X)
				ys = append(ys, b.Values[j].X)
			}
		}
		if len(xs) < minObs {
			continue
		}
		if x, ok := fn(xs, ys); ok {
			out[i] = series.Present(x)
		}
	}
	return series.Series{Name: a.Name + "~" + b.Name, Dates: a.Dates, Values: out}
}

// RollingStd is the trailing sample standard deviation over a full window.
func RollingStd(s series.Series, window int) series.Series {
	return Rolling(s, window, window, StdDev)
}

// RollingSum is the trailing sum over a full window.
func RollingSum(s series.Series, window int) series.Series {
	return Rolling(s, window, window, Sum)
}

// RollingCompound is the trailing compound return prod(1+r)-1 over a full
// window.
func RollingCompound(s series.Series, window int) series.Series {
	return Rolling(s, window, window, Compound)
}

// RollingCorr is the trailing Pearson correlation over a full window.
func RollingCorr(a, b series.Series, window int) series.Series {
	return RollingPair(a, b, window, window, Correlation)
}

// RollingAutocorr is the trailing lag-1 autocorrelation over a full window.
func RollingAutocorr(s series.Series, window int) series.Series {
	return Rolling(s, window, window, Autocorr)
}

// RollingQuantile is the trailing p-th percentile (0..100) over a full
// window.
func RollingQuantile(s series.Series, window int, p float64) series.Series {
	return Rolling(s, window, window, func(xs []float64) (float64, bool) {
		sorted := append([]float64(nil), xs...)
		sort.Float64s(sorted)
		return Percentile(sorted, p), true
	})
}

// SMA is a trailing simple moving average over the present values of the
// last window positions. It is defined only where s itself is present.
func SMA(s series.Series, window int) series.Series {
	sm := Rolling(s, window, 1, Mean)
	for i, v := range s.Values {
		if !v.OK {
			sm.Values[i] = series.Absent
		}
	}
	return sm
}

// ExpandingQuantile is the p-th percentile of all present values up to and
// including each position. Positions with fewer than minObs values are
// absent.
func ExpandingQuantile(s series.Series, p float64, minObs int) series.Series {
	out := make([]series.Value, s.Len())
	sorted := make([]float64, 0, s.Len())
	for i, v := range s.Values {
		if v.OK {
			k := sort.SearchFloat64s(sorted, v.X)
			sorted = append(sorted, 0)
			copy(sorted[k+1:], sorted[k:])
			sorted[k] = v.X
		}
		if len(sorted) >= max(minObs, 1) {
			out[i] = series.Present(Percentile(sorted, p))
		}
	}
	return series.Series{Name: s.Name, Dates: s.Dates, Values: out}
}

// Mean of xs; undefined for an empty window.
func Mean(xs []float64) (float64, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	return stat.Mean(xs, nil), true
}

// StdDev is the sample standard deviation; undefined below two values.
func StdDev(xs []float64) (float64, bool) {
	if len(xs) < 2 {
		return 0, false
	}
	return stat.StdDev(xs, nil), true
}

// Sum of xs.
func Sum(xs []float64) (float64, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	return floats.Sum(xs), true
}

// Compound returns prod(1+x)-1.
func Compound(xs []float64) (float64, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	g := 1.0
	for _, x := range xs {
		g *= 1 + x
	}
	return g - 1, true
}

// Correlation is Pearson's r; undefined when either side has no variance.
func Correlation(xs, ys []float64) (float64, bool) {
	if len(xs) < 2 || len(xs) != len(ys) {
		return 0, false
	}
	if constant(xs) || constant(ys) {
		return 0, false
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return 0, false
	}
	return r, true
}

// Autocorr is the lag-1 autocorrelation: corr(x[1:], x[:n-1]).
func Autocorr(xs []float64) (float64, bool) {
	if len(xs) < 3 {
		return 0, false
	}
	return Correlation(xs[1:], xs[:len(xs)-1])
}

func constant(xs []float64) bool {
	return floats.Min(xs) == floats.Max(xs)
}
