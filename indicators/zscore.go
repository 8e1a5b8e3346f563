package indicators

import (
	"fmt"

	"github.com/rustyeddy/crowding/series"
	"gonum.org/v1/gonum/stat"
)

// Scored is a normalized series with its provenance.
type Scored struct {
	series.Series

	// Source is the name of the series that was normalized.
	Source string
	// Window is the trailing window length; 0 means full sample.
	Window int
	// Degenerate counts dates whose window had two or more values but zero
	// variance. They are scored 0.
	Degenerate int
	// Warmup counts dates with fewer than two values in the window. They are
	// scored 0 as well.
	Warmup int
}

// Rolling reports whether the score used a trailing window.
func (s Scored) Rolling() bool {
	return s.Window > 0
}

// ZScore normalizes s as (x-mean)/std.
//
// With window 0 one mean and sample std over all present values are used.
// With window > 0 the mean and std at each date come from the trailing
// window ending at that date, minimum one observation. A zero or undefined
// std yields 0 at the affected dates. Absent inputs stay absent.
func ZScore(s series.Series, window int) Scored {
	out := Scored{
		Series: series.Series{
			Name:   zname(s.Name, window),
			Dates:  s.Dates,
			Values: make([]series.Value, s.Len()),
		},
		Source: s.Name,
		Window: window,
	}
	if window <= 0 {
		out.Window = 0
		fullSample(s, &out)
		return out
	}

	w := NewWindow(window)
	var buf []float64
	for i, v := range s.Values {
		w.Update(v)
		if !v.OK {
			continue
		}
		buf = w.Values(buf[:0])
		out.score(i, v.X, buf)
	}
	return out
}

func fullSample(s series.Series, out *Scored) {
	mean, std, state := moments(s.Floats())
	for i, v := range s.Values {
		if v.OK {
			out.set(i, v.X, mean, std, state)
		}
	}
}

func (out *Scored) score(i int, x float64, window []float64) {
	mean, std, state := moments(window)
	out.set(i, x, mean, std, state)
}

func (out *Scored) set(i int, x, mean, std float64, state momentState) {
	switch state {
	case warmup:
		out.Values[i] = series.Present(0)
		out.Warmup++
	case degenerate:
		out.Values[i] = series.Present(0)
		out.Degenerate++
	default:
		out.Values[i] = series.Present((x - mean) / std)
	}
}

type momentState int

const (
	defined momentState = iota
	warmup
	degenerate
)

func moments(xs []float64) (mean, std float64, state momentState) {
	if len(xs) < 2 {
		return 0, 0, warmup
	}
	if constant(xs) {
		return 0, 0, degenerate
	}
	mean, std = stat.MeanStdDev(xs, nil)
	if std == 0 {
		return 0, 0, degenerate
	}
	return mean, std, defined
}

func zname(name string, window int) string {
	if window <= 0 {
		return name + "_z"
	}
	return fmt.Sprintf("%s_z%d", name, window)
}
