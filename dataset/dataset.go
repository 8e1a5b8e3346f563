// Package dataset assembles the forward-labeled supervised table linking
// crowding to future crashes.
//
// Every feature at date t is built from windows ending at t. Labels and
// forward returns look only at (t, t+H]. Rows without a full forward window
// or with any undefined feature are dropped, never imputed. An undefined
// forward return is kept as NaN.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/crowding/drawdown"
	"github.com/rustyeddy/crowding/indicators"
	"github.com/rustyeddy/crowding/series"
)

// LabelMode selects how the forward crash label is derived.
type LabelMode string

const (
	// LabelAny is the OR of crash flags over (t, t+H].
	LabelAny LabelMode = "any"
	// LabelAt is the crash flag at t+H alone.
	LabelAt LabelMode = "at"
)

// Regime is the stress state at a row's date.
type Regime string

const (
	RegimeLow    Regime = "low"
	RegimeNormal Regime = "normal"
	RegimeHigh   Regime = "high"
)

// Feature column names that do not depend on configuration.
const (
	CrowdingIndex    = "crowding_index"
	Stress           = "stress"
	StressHigh       = "stress_high"
	StressLow        = "stress_low"
	CrowdingXStress  = "crowding_x_stress_high"
	ForwardReturnCol = "forward_return"
)

// ErrMissingColumn is returned when a required table column is absent.
var ErrMissingColumn = errors.New("missing column")

// Options configures Assemble.
type Options struct {
	Horizon int
	Label   LabelMode

	// Target is the factor whose forward return is recorded per row.
	Target string
	// Tracked lists return columns that get trailing std and sum controls
	// over ControlWindow.
	Tracked       []string
	ControlWindow int

	StressColumn string
	// StressWindow is the rolling window of the stress percentile bands.
	StressWindow         int
	HighStressPercentile float64
	LowStressPercentile  float64
}

// DefaultOptions matches the configuration defaults for a 5-day horizon.
func DefaultOptions() Options {
	return Options{
		Horizon:              5,
		Label:                LabelAny,
		Target:               "Mom",
		Tracked:              []string{"Mom", "Mkt-RF"},
		ControlWindow:        20,
		StressColumn:         "VIX",
		StressWindow:         252,
		HighStressPercentile: 75,
		LowStressPercentile:  25,
	}
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if o.Horizon < 1 {
		return fmt.Errorf("horizon must be >= 1, got %d", o.Horizon)
	}
	if o.Label != LabelAny && o.Label != LabelAt {
		return fmt.Errorf("unknown label mode %q", o.Label)
	}
	if o.Target == "" {
		return errors.New("target factor is required")
	}
	if o.ControlWindow < 2 {
		return fmt.Errorf("control window must be >= 2, got %d", o.ControlWindow)
	}
	if o.StressWindow < 1 {
		return fmt.Errorf("stress window must be >= 1, got %d", o.StressWindow)
	}
	if o.LowStressPercentile >= o.HighStressPercentile {
		return fmt.Errorf("low stress percentile %v must be below high %v", o.LowStressPercentile, o.HighStressPercentile)
	}
	return nil
}

// Input bundles the upstream outputs a dataset is assembled from.
type Input struct {
	Table    *series.Table
	Crowding series.Series
	Flags    drawdown.Flags
}

// Row is one supervised observation.
type Row struct {
	Date     time.Time
	Features []float64
	Label    bool
	// ForwardReturn is the target's summed return over (t, t+H], NaN when
	// any of those returns is absent. It is never a feature.
	ForwardReturn float64
	Regime        Regime
}

// Dataset is the supervised table for one horizon.
type Dataset struct {
	Horizon  int
	Label    LabelMode
	Features []string
	Rows     []Row

	// DroppedHorizon counts rows without a full forward window and
	// DroppedMissing rows with an undefined feature.
	DroppedHorizon int
	DroppedMissing int
	// NoForward counts kept rows whose forward return is NaN.
	NoForward int
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// FeatureIndex returns the position of a named feature, or -1.
func (d *Dataset) FeatureIndex(name string) int {
	for i, f := range d.Features {
		if f == name {
			return i
		}
	}
	return -1
}

// Column returns a feature column, or ForwardReturnCol for the forward
// returns.
func (d *Dataset) Column(name string) ([]float64, bool) {
	out := make([]float64, len(d.Rows))
	if name == ForwardReturnCol {
		for i, r := range d.Rows {
			out[i] = r.ForwardReturn
		}
		return out, true
	}
	j := d.FeatureIndex(name)
	if j < 0 {
		return nil, false
	}
	for i, r := range d.Rows {
		out[i] = r.Features[j]
	}
	return out, true
}

// Positives counts rows labeled true.
func (d *Dataset) Positives() int {
	n := 0
	for _, r := range d.Rows {
		if r.Label {
			n++
		}
	}
	return n
}

type column struct {
	name   string
	values []series.Value // aligned to the table dates
}

// Assemble joins the table, crowding index and crash flags on their common
// dates and builds one row per date with a full forward window.
func Assemble(in Input, opts Options) (*Dataset, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if in.Table == nil {
		return nil, errors.New("assemble: nil table")
	}
	target, ok := in.Table.Series(opts.Target)
	if !ok {
		return nil, fmt.Errorf("assemble: %w: target %q", ErrMissingColumn, opts.Target)
	}

	cols, hasStress := features(in, opts)
	ds := &Dataset{Horizon: opts.Horizon, Label: opts.Label}
	for _, c := range cols {
		ds.Features = append(ds.Features, c.name)
	}
	if hasStress {
		ds.Features = append(ds.Features, CrowdingXStress)
	}

	// positions into the table dates
	common, flags := commonIndex(in)
	h := opts.Horizon
	for k, ti := range common {
		if k+h > len(common)-1 {
			ds.DroppedHorizon++
			continue
		}
		row := Row{Date: in.Table.Dates[ti], Regime: RegimeNormal}

		row.Features = make([]float64, 0, len(ds.Features))
		defined := true
		for _, c := range cols {
			v := c.values[ti]
			if !v.OK {
				defined = false
				break
			}
			row.Features = append(row.Features, v.X)
		}
		if !defined {
			ds.DroppedMissing++
			continue
		}

		row.ForwardReturn = math.NaN()
		if fwd, ok := forwardSum(target, common[k+1:k+h+1]); ok {
			row.ForwardReturn = fwd
		} else {
			ds.NoForward++
		}

		switch opts.Label {
		case LabelAny:
			for _, f := range flags[k+1 : k+h+1] {
				row.Label = row.Label || f
			}
		case LabelAt:
			row.Label = flags[k+h]
		}

		if hasStress {
			// columns 0..3 are crowding, stress, high, low
			high, low := row.Features[2], row.Features[3]
			row.Features = append(row.Features, row.Features[0]*high)
			switch {
			case high == 1:
				row.Regime = RegimeHigh
			case low == 1:
				row.Regime = RegimeLow
			}
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

func features(in Input, opts Options) ([]column, bool) {
	t := in.Table
	crowd := make([]series.Value, t.Len())
	idx := in.Crowding.Index()
	for i, d := range t.Dates {
		crowd[i] = in.Crowding.At(idx, d)
	}
	cols := []column{{name: CrowdingIndex, values: crowd}}

	stress, hasStress := t.Series(opts.StressColumn)
	if hasStress {
		hi := indicators.RollingQuantile(stress, opts.StressWindow, opts.HighStressPercentile)
		lo := indicators.RollingQuantile(stress, opts.StressWindow, opts.LowStressPercentile)
		cols = append(cols,
			column{name: Stress, values: stress.Values},
			column{name: StressHigh, values: band(stress, hi, func(x, b float64) bool { return x > b })},
			column{name: StressLow, values: band(stress, lo, func(x, b float64) bool { return x < b })},
		)
	}

	k := opts.ControlWindow
	for _, name := range opts.Tracked {
		s, ok := t.Series(name)
		if !ok {
			continue
		}
		cols = append(cols,
			column{name: fmt.Sprintf("%s_vol_%d", name, k), values: indicators.RollingStd(s, k).Values},
			column{name: fmt.Sprintf("%s_ret_%d", name, k), values: indicators.RollingSum(s, k).Values},
		)
	}
	return cols, hasStress
}

// band is 1 where cmp(stress, bound) holds, 0 where it does not and absent
// where either side is undefined.
func band(stress, bound series.Series, cmp func(x, b float64) bool) []series.Value {
	out := make([]series.Value, stress.Len())
	for i, v := range stress.Values {
		b := bound.Values[i]
		if !v.OK || !b.OK {
			continue
		}
		if cmp(v.X, b.X) {
			out[i] = series.Present(1)
		} else {
			out[i] = series.Present(0)
		}
	}
	return out
}

// commonIndex returns the table positions whose date also carries a
// crowding value slot and a crash flag, with the flag at each position.
func commonIndex(in Input) ([]int, []bool) {
	crowd := make(map[time.Time]struct{}, in.Crowding.Len())
	for _, d := range in.Crowding.Dates {
		crowd[d] = struct{}{}
	}
	flag := make(map[time.Time]bool, in.Flags.Len())
	for i, d := range in.Flags.Dates {
		flag[d] = in.Flags.Values[i]
	}

	var pos []int
	var flags []bool
	for i, d := range in.Table.Dates {
		if _, ok := crowd[d]; !ok {
			continue
		}
		f, ok := flag[d]
		if !ok {
			continue
		}
		pos = append(pos, i)
		flags = append(flags, f)
	}
	return pos, flags
}

func forwardSum(s series.Series, positions []int) (float64, bool) {
	var sum float64
	for _, p := range positions {
		v := s.Values[p]
		if !v.OK {
			return 0, false
		}
		sum += v.X
	}
	return sum, true
}
