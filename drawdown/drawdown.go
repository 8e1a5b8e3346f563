// Package drawdown converts return series into drawdown records, crash
// flags and discrete crash episodes.
package drawdown

import (
	"time"

	"github.com/rustyeddy/crowding/series"
)

// Record is the drawdown path of one return series.
//
// Cumulative is the growth factor prod(1+r) since the first date, Peak its
// running maximum seeded at the first value and Drawdown = Cumulative/Peak-1.
// Drawdown is never positive and is exactly 0 at new peaks.
type Record struct {
	Name       string
	Dates      []time.Time
	Cumulative []float64
	Peak       []float64
	Drawdown   []float64
}

// Len returns the number of dates in the record.
func (r Record) Len() int {
	return len(r.Dates)
}

// Compute runs one forward pass over the present returns of s. Absent
// returns are skipped, so the record covers only dates with a defined
// return.
func Compute(s series.Series) Record {
	n := s.Count()
	rec := Record{
		Name:       s.Name,
		Dates:      make([]time.Time, 0, n),
		Cumulative: make([]float64, 0, n),
		Peak:       make([]float64, 0, n),
		Drawdown:   make([]float64, 0, n),
	}
	cum, peak := 1.0, 0.0
	for i, v := range s.Values {
		if !v.OK {
			continue
		}
		cum *= 1 + v.X
		dd := 0.0
		if len(rec.Dates) == 0 || cum >= peak {
			peak = cum
		} else {
			dd = cum/peak - 1
		}
		rec.Dates = append(rec.Dates, s.Dates[i])
		rec.Cumulative = append(rec.Cumulative, cum)
		rec.Peak = append(rec.Peak, peak)
		rec.Drawdown = append(rec.Drawdown, dd)
	}
	return rec
}

// MaxDrawdown returns the most negative drawdown, or 0 for an empty record.
func MaxDrawdown(r Record) float64 {
	worst := 0.0
	for _, dd := range r.Drawdown {
		if dd < worst {
			worst = dd
		}
	}
	return worst
}

// Series returns the drawdown column as a dated series.
func (r Record) Series() series.Series {
	return series.FromFloats(r.Name+"_drawdown", r.Dates, r.Drawdown)
}
