package crowding

import (
	"github.com/rustyeddy/crowding/indicators"
	"github.com/rustyeddy/crowding/series"
)

// FactorSide builds the factor-side family from factor returns and the
// stress level. A zero-length stress series contributes nothing.
//
//	<factor>_vol_zscore       trailing W1 std, z-scored over W2
//	<factor>_autocorr_zscore  trailing W1 lag-1 autocorrelation, z-scored over W2
//	stress_zscore             stress level, z-scored over W3
func (b *Builder) FactorSide(factors []series.Series, stress series.Series) []Component {
	o := b.opts
	var out []Component
	for _, f := range factors {
		vol := indicators.RollingStd(f, o.ShortWindow)
		out = append(out, component(FactorSide, f.Name+"_vol_zscore",
			indicators.ZScore(vol, o.MediumWindow)))

		ac := indicators.RollingAutocorr(f, o.ShortWindow)
		out = append(out, component(FactorSide, f.Name+"_autocorr_zscore",
			indicators.ZScore(ac, o.MediumWindow)))
	}
	if stress.Len() > 0 {
		out = append(out, component(FactorSide, "stress_zscore",
			indicators.ZScore(stress, o.LongWindow)))
	}
	return out
}
