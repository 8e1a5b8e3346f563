package crowding

import (
	"github.com/rustyeddy/crowding/indicators"
	"github.com/rustyeddy/crowding/series"
)

// Instrument is one tracked instrument's return and optional volume series.
// An instrument without a volume column has a zero-length Volume.
type Instrument struct {
	Name    string
	Returns series.Series
	Volume  series.Series
}

// HasVolume reports whether a volume series is attached.
func (in Instrument) HasVolume() bool {
	return in.Volume.Len() > 0
}

// FlowAttention builds the flow-attention family. Per instrument:
//
//	<inst>_vol_zscore         volume, z-scored over W1
//	<inst>_runup_zscore       trailing W2 compound return, z-scored over W2
//	<inst>_volatility_zscore  trailing W1 return std, z-scored over W1
//	<inst>_crash_freq         W1 count of days below the expanding crash
//	                          percentile, z-scored over W1
func (b *Builder) FlowAttention(insts []Instrument) []Component {
	o := b.opts
	var out []Component
	for _, in := range insts {
		if in.HasVolume() {
			out = append(out, component(FlowAttention, in.Name+"_vol_zscore",
				indicators.ZScore(in.Volume, o.ShortWindow)))
		}

		runup := indicators.RollingCompound(in.Returns, o.MediumWindow)
		out = append(out, component(FlowAttention, in.Name+"_runup_zscore",
			indicators.ZScore(runup, o.MediumWindow)))

		vol := indicators.RollingStd(in.Returns, o.ShortWindow)
		out = append(out, component(FlowAttention, in.Name+"_volatility_zscore",
			indicators.ZScore(vol, o.ShortWindow)))

		freq := b.crashFrequency(in.Returns)
		out = append(out, component(FlowAttention, in.Name+"_crash_freq",
			indicators.ZScore(freq, o.ShortWindow)))
	}
	return out
}

// crashFrequency counts, over the trailing W1 window, the days whose return
// fell strictly below the expanding CrashFreqPercentile of returns up to
// and including that day.
func (b *Builder) crashFrequency(rets series.Series) series.Series {
	// Two observations before a percentile means anything.
	cut := indicators.ExpandingQuantile(rets, b.opts.CrashFreqPercentile, 2)
	hits := make([]series.Value, rets.Len())
	for i, r := range rets.Values {
		if !r.OK || !cut.Values[i].OK {
			continue
		}
		if r.X < cut.Values[i].X {
			hits[i] = series.Present(1)
		} else {
			hits[i] = series.Present(0)
		}
	}
	return indicators.RollingSum(series.Series{Name: rets.Name, Dates: rets.Dates, Values: hits}, b.opts.ShortWindow)
}
