package drawdown

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/rustyeddy/crowding/indicators"
	"gonum.org/v1/gonum/stat"
)

// ErrInvalidDepth is returned for an episode depth threshold outside (0, 1).
var ErrInvalidDepth = errors.New("episode depth must be in (0, 1)")

// Episode is one crash episode of a Record.
type Episode struct {
	// PeakDate is the last date at a running peak before the breach.
	PeakDate time.Time
	// BreachDate is the first date drawdown reached the depth threshold.
	BreachDate time.Time
	TroughDate time.Time
	// RecoveryDate is the first date drawdown returned to 0. It is zero when
	// the episode is unresolved.
	RecoveryDate time.Time
	Recovered    bool

	// Depth is the drawdown at the trough.
	Depth float64
	// Duration is trading days from peak to trough.
	Duration int
	// RecoveryDays is trading days from trough to recovery; 0 if unresolved.
	RecoveryDays int

	PeakValue   float64
	TroughValue float64
}

// Episodes segments a record into crash episodes. An episode opens on the
// first date drawdown is at or below -depth, stays open until drawdown is
// exactly 0 again and is unresolved if the record ends first. Episodes are
// ordered by peak date and never overlap.
func Episodes(r Record, depth float64) ([]Episode, error) {
	if depth <= 0 || depth >= 1 || math.IsNaN(depth) {
		return nil, ErrInvalidDepth
	}
	var (
		out    []Episode
		open   bool
		peak   int
		trough int
		cur    Episode
	)
	for i, dd := range r.Drawdown {
		if !open {
			if dd == 0 {
				peak = i
				continue
			}
			if dd <= -depth {
				open = true
				trough = i
				cur = Episode{
					PeakDate:   r.Dates[peak],
					BreachDate: r.Dates[i],
					PeakValue:  r.Cumulative[peak],
				}
			}
			continue
		}

		if dd < r.Drawdown[trough] {
			trough = i
		}
		if dd == 0 {
			cur.RecoveryDate = r.Dates[i]
			cur.Recovered = true
			cur.RecoveryDays = i - trough
			out = append(out, finish(cur, r, peak, trough))
			open = false
			peak = i
		}
	}
	if open {
		out = append(out, finish(cur, r, peak, trough))
	}
	return out, nil
}

func finish(ep Episode, r Record, peak, trough int) Episode {
	ep.TroughDate = r.Dates[trough]
	ep.TroughValue = r.Cumulative[trough]
	ep.Depth = r.Drawdown[trough]
	ep.Duration = trough - peak
	return ep
}

// Summary aggregates a list of episodes. With no episodes every mean,
// extreme and percentile is NaN.
type Summary struct {
	Count      int
	Unresolved int

	MeanDepth    float64
	MeanDuration float64
	WorstDepth   float64

	DurationP25 float64
	DurationP50 float64
	DurationP75 float64
	DurationP90 float64
}

// Summarize computes episode statistics. It is pure aggregation.
func Summarize(eps []Episode) Summary {
	s := Summary{Count: len(eps)}
	if len(eps) == 0 {
		nan := math.NaN()
		s.MeanDepth, s.MeanDuration, s.WorstDepth = nan, nan, nan
		s.DurationP25, s.DurationP50, s.DurationP75, s.DurationP90 = nan, nan, nan, nan
		return s
	}

	depths := make([]float64, len(eps))
	durs := make([]float64, len(eps))
	s.WorstDepth = 0
	for i, ep := range eps {
		depths[i] = ep.Depth
		durs[i] = float64(ep.Duration)
		if !ep.Recovered {
			s.Unresolved++
		}
		if ep.Depth < s.WorstDepth {
			s.WorstDepth = ep.Depth
		}
	}
	s.MeanDepth = stat.Mean(depths, nil)
	s.MeanDuration = stat.Mean(durs, nil)

	sort.Float64s(durs)
	s.DurationP25 = indicators.Percentile(durs, 25)
	s.DurationP50 = indicators.Percentile(durs, 50)
	s.DurationP75 = indicators.Percentile(durs, 75)
	s.DurationP90 = indicators.Percentile(durs, 90)
	return s
}
