package drawdown

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/crowding/series"
	"golang.org/x/sync/errgroup"
)

// Options configures a multi-factor analysis.
type Options struct {
	// Depth is the episode threshold as a positive fraction, e.g. 0.05.
	Depth float64
	Flags FlagOptions
	// DailyHorizon and WeeklyHorizon override Flags.Horizon for the two
	// crash flag series of each factor.
	DailyHorizon  int
	WeeklyHorizon int
}

// DefaultOptions uses 5% episodes and 1st percentile crash flags.
func DefaultOptions() Options {
	return Options{
		Depth:         0.05,
		Flags:         DefaultFlagOptions(),
		DailyHorizon:  1,
		WeeklyHorizon: 5,
	}
}

// Analysis is the full drawdown picture of one factor.
type Analysis struct {
	Factor      string
	Record      Record
	Daily       Flags
	Weekly      Flags
	Episodes    []Episode
	Summary     Summary
	MaxDrawdown float64
}

// Analyzer runs drawdown analyses.
type Analyzer struct {
	opts Options
	log  zerolog.Logger
}

// NewAnalyzer returns an analyzer that logs through log.
func NewAnalyzer(opts Options, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		opts: opts,
		log:  log.With().Str("component", "drawdown").Logger(),
	}
}

// Analyze computes the record, daily and weekly crash flags, episodes,
// summary and max drawdown of one factor.
func (a *Analyzer) Analyze(s series.Series) (Analysis, error) {
	res := Analysis{Factor: s.Name, Record: Compute(s)}

	var err error
	daily := a.opts.Flags
	daily.Horizon = a.opts.DailyHorizon
	if res.Daily, err = CrashFlags(s, daily); err != nil {
		return Analysis{}, fmt.Errorf("%s daily crash flags: %w", s.Name, err)
	}
	weekly := a.opts.Flags
	weekly.Horizon = a.opts.WeeklyHorizon
	if res.Weekly, err = CrashFlags(s, weekly); err != nil {
		return Analysis{}, fmt.Errorf("%s weekly crash flags: %w", s.Name, err)
	}
	if res.Episodes, err = Episodes(res.Record, a.opts.Depth); err != nil {
		return Analysis{}, fmt.Errorf("%s episodes: %w", s.Name, err)
	}
	res.Summary = Summarize(res.Episodes)
	res.MaxDrawdown = MaxDrawdown(res.Record)

	a.log.Info().
		Str("factor", s.Name).
		Int("daily_crashes", res.Daily.Count()).
		Int("weekly_crashes", res.Weekly.Count()).
		Int("episodes", res.Summary.Count).
		Float64("max_drawdown", res.MaxDrawdown).
		Msg("drawdown analysis done")
	return res, nil
}

// AnalyzeFactors runs Analyze for every factor concurrently. Results keep
// the order of factors.
func (a *Analyzer) AnalyzeFactors(ctx context.Context, factors []series.Series) ([]Analysis, error) {
	out := make([]Analysis, len(factors))
	g, ctx := errgroup.WithContext(ctx)
	for i, f := range factors {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := a.Analyze(f)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
