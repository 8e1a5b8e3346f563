package crowding

import (
	"fmt"

	"github.com/rustyeddy/crowding/indicators"
	"github.com/rustyeddy/crowding/series"
)

// Comovement builds the co-movement family: the cross-sectional mean of
// every W1 rolling pairwise return correlation, z-scored over W2. Higher
// correlation is more crowding. The raw pairwise correlations are returned
// alongside as diagnostics. Fewer than two instruments yield nothing.
func (b *Builder) Comovement(returns []series.Series) ([]Component, []series.Series) {
	if len(returns) < 2 {
		return nil, nil
	}
	pairs := make([]series.Series, 0, len(returns)*(len(returns)-1)/2)
	for i := range returns {
		for j := i + 1; j < len(returns); j++ {
			c := indicators.RollingCorr(returns[i], returns[j], b.opts.ShortWindow)
			c.Name = fmt.Sprintf("corr_%s_%s", returns[i].Name, returns[j].Name)
			pairs = append(pairs, c)
		}
	}
	avg := crossMean("avg_corr", pairs)
	return []Component{
		component(Comovement, "avg_corr", indicators.ZScore(avg, b.opts.MediumWindow)),
	}, pairs
}

// crossMean averages the present values of aligned series at each date.
// Values are summed in ascending order so the result does not depend on
// the order of the inputs.
func crossMean(name string, ss []series.Series) series.Series {
	if len(ss) == 0 {
		return series.Series{Name: name}
	}
	n := ss[0].Len()
	out := make([]series.Value, n)
	buf := make([]float64, 0, len(ss))
	for i := 0; i < n; i++ {
		buf = buf[:0]
		for _, s := range ss {
			if v := s.Values[i]; v.OK {
				buf = append(buf, v.X)
			}
		}
		if x, ok := sortedMean(buf); ok {
			out[i] = series.Present(x)
		}
	}
	return series.Series{Name: name, Dates: ss[0].Dates, Values: out}
}
