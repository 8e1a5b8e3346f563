package drawdown

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rustyeddy/crowding/indicators"
	"github.com/rustyeddy/crowding/series"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Method selects how the crash threshold is derived from trailing history.
type Method string

const (
	// Historical compares against the trailing percentile of period returns.
	Historical Method = "historical"
	// StdDev compares against mean + z*std of trailing period returns, z the
	// standard-normal quantile of the percentile.
	StdDev Method = "stddev"
	// VolRelative scales the period return by trailing daily volatility
	// times sqrt(horizon) and compares the score against z.
	VolRelative Method = "volrel"
)

// ParseMethod validates a method name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case Historical, StdDev, VolRelative:
		return m, nil
	}
	return "", fmt.Errorf("unknown crash flag method %q", s)
}

// FlagOptions configures CrashFlags.
type FlagOptions struct {
	Horizon    int     // trading days in the period return
	Percentile float64 // 0..100
	Method     Method
	// MinHistory is the number of trailing observations required before a
	// date can be flagged.
	MinHistory int
	// Lookback bounds the trailing history; 0 means expanding.
	Lookback int
}

// DefaultFlagOptions flags daily returns below the expanding 1st
// percentile.
func DefaultFlagOptions() FlagOptions {
	return FlagOptions{
		Horizon:    1,
		Percentile: 1,
		Method:     Historical,
		MinHistory: 20,
	}
}

// Validate checks option ranges.
func (o FlagOptions) Validate() error {
	if o.Horizon < 1 {
		return fmt.Errorf("crash flag horizon must be >= 1, got %d", o.Horizon)
	}
	if o.Percentile <= 0 || o.Percentile >= 100 {
		return fmt.Errorf("crash flag percentile must be in (0, 100), got %v", o.Percentile)
	}
	if o.MinHistory < 1 {
		return fmt.Errorf("crash flag min history must be >= 1, got %d", o.MinHistory)
	}
	if o.Lookback < 0 {
		return fmt.Errorf("crash flag lookback must be >= 0, got %d", o.Lookback)
	}
	_, err := ParseMethod(string(o.Method))
	return err
}

// Flags is a boolean crash indicator per date.
type Flags struct {
	Name   string
	Dates  []time.Time
	Values []bool
}

// Len returns the number of dates.
func (f Flags) Len() int {
	return len(f.Dates)
}

// Count returns the number of flagged dates.
func (f Flags) Count() int {
	n := 0
	for _, v := range f.Values {
		if v {
			n++
		}
	}
	return n
}

// CrashFlags flags each date whose trailing horizon-day compound return is
// strictly below the threshold derived from the history of such returns up
// to and including that date. Dates with fewer than MinHistory
// observations, or with an absent period return, are false.
func CrashFlags(returns series.Series, opts FlagOptions) (Flags, error) {
	if err := opts.Validate(); err != nil {
		return Flags{}, err
	}
	period := returns
	if opts.Horizon > 1 {
		period = indicators.RollingCompound(returns, opts.Horizon)
	}
	window := opts.Lookback
	if window == 0 {
		window = max(returns.Len(), 1)
	}
	z := distuv.UnitNormal.Quantile(opts.Percentile / 100)

	var score, thr series.Series
	switch opts.Method {
	case Historical:
		score = period
		if opts.Lookback == 0 {
			thr = indicators.ExpandingQuantile(period, opts.Percentile, opts.MinHistory)
		} else {
			thr = indicators.Rolling(period, window, opts.MinHistory, func(xs []float64) (float64, bool) {
				return indicators.Percentile(sortedCopy(xs), opts.Percentile), true
			})
		}
	case StdDev:
		score = period
		thr = indicators.Rolling(period, window, max(opts.MinHistory, 2), func(xs []float64) (float64, bool) {
			mean, std := stat.MeanStdDev(xs, nil)
			return mean + z*std, true
		})
	case VolRelative:
		sigma := indicators.Rolling(returns, window, max(opts.MinHistory, 2), indicators.StdDev)
		scale := math.Sqrt(float64(opts.Horizon))
		vals := make([]series.Value, period.Len())
		for i, p := range period.Values {
			s := sigma.Values[i]
			if p.OK && s.OK && s.X > 0 {
				vals[i] = series.Present(p.X / (s.X * scale))
			}
		}
		score = series.Series{Name: period.Name, Dates: period.Dates, Values: vals}
		thr = constant(score, z)
	}

	out := Flags{Name: returns.Name, Dates: returns.Dates, Values: make([]bool, returns.Len())}
	for i, s := range score.Values {
		t := thr.Values[i]
		out.Values[i] = s.OK && t.OK && s.X < t.X
	}
	return out, nil
}

func constant(like series.Series, x float64) series.Series {
	vals := make([]series.Value, like.Len())
	for i := range vals {
		vals[i] = series.Present(x)
	}
	return series.Series{Name: like.Name, Dates: like.Dates, Values: vals}
}

// sortedCopy returns xs sorted ascending without touching xs.
func sortedCopy(xs []float64) []float64 {
	out := append([]float64(nil), xs...)
	sort.Float64s(out)
	return out
}
