// Package crowding builds crowding proxies from an aligned master table and
// combines them into composite crowding indices.
//
// Three proxy families are supported:
//
//	flow_attention  instrument volume, run-up, volatility and crash frequency
//	comovement      average pairwise correlation across instruments
//	factor_side     factor volatility, factor autocorrelation, stress level
//
// A family without any usable input is excluded from the composite and
// reported as a Warning; it never aborts the build.
package crowding

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/crowding/indicators"
	"github.com/rustyeddy/crowding/series"
	"golang.org/x/sync/errgroup"
)

// Family tags a component with the proxy set it belongs to.
type Family string

const (
	FlowAttention Family = "flow_attention"
	Comovement    Family = "comovement"
	FactorSide    Family = "factor_side"
)

// Families lists the proxy families in build order.
var Families = []Family{FlowAttention, Comovement, FactorSide}

// AllIndex is the name of the all-family composite.
const AllIndex = "crowding_index_all"

// IndexName returns the name of a family's composite.
func IndexName(f Family) string {
	return "crowding_index_" + string(f)
}

// ErrNoComponents is returned when no family produced a usable component.
var ErrNoComponents = errors.New("no active crowding components")

// Component is a named, normalized proxy series tagged with its family.
type Component struct {
	indicators.Scored
	Family Family
}

// Active reports whether the component has at least one present value.
func (c Component) Active() bool {
	return !c.Empty()
}

// WarningKind classifies non-fatal build conditions.
type WarningKind string

const (
	MissingComponent       WarningKind = "missing_component"
	DegenerateDistribution WarningKind = "degenerate_distribution"
)

// Warning is a structured, non-fatal condition raised to the caller.
type Warning struct {
	Kind      WarningKind
	Family    Family
	Component string
	Message   string
}

func (w Warning) String() string {
	if w.Component != "" {
		return fmt.Sprintf("%s [%s/%s]: %s", w.Kind, w.Family, w.Component, w.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", w.Kind, w.Family, w.Message)
}

// Options configures the builder. Window lengths are in trading days.
type Options struct {
	ShortWindow  int // W1
	MediumWindow int // W2
	LongWindow   int // W3

	SmoothingWindow int
	WinsorizeLower  float64
	WinsorizeUpper  float64
	// WinsorizeWindow bounds the cutoff history; 0 uses the full sample.
	WinsorizeWindow int

	// CrashFreqPercentile is the expanding percentile below which a day
	// counts toward an instrument's crash frequency.
	CrashFreqPercentile float64

	ReturnSuffix string
	VolumeSuffix string
	// Instruments restricts the tracked instruments; empty means every
	// column ending in ReturnSuffix.
	Instruments  []string
	Factors      []string
	StressColumn string
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		ShortWindow:         63,
		MediumWindow:        126,
		LongWindow:          252,
		SmoothingWindow:     5,
		WinsorizeLower:      1,
		WinsorizeUpper:      99,
		WinsorizeWindow:     252,
		CrashFreqPercentile: 5,
		ReturnSuffix:        "_ret",
		VolumeSuffix:        "_vol",
		Factors:             []string{"Mkt-RF", "SMB", "HML", "Mom"},
		StressColumn:        "VIX",
	}
}

// Builder computes crowding components and composites.
type Builder struct {
	opts Options
	log  zerolog.Logger
}

// NewBuilder returns a builder that logs through log.
func NewBuilder(opts Options, log zerolog.Logger) *Builder {
	return &Builder{
		opts: opts,
		log:  log.With().Str("component", "crowding").Logger(),
	}
}

// Result holds every crowding output of one build.
type Result struct {
	// Components holds the active components of each included family.
	Components map[Family][]Component
	// Included lists families that contributed to the composite, in build
	// order.
	Included []Family
	// Pairs holds the raw rolling pairwise correlations behind the
	// comovement proxy.
	Pairs []series.Series
	// Composites holds each included family's index followed by the
	// all-family index.
	Composites []series.Series
	Warnings   []Warning
}

// Index returns the all-family composite.
func (r *Result) Index() series.Series {
	s, _ := r.Composite(AllIndex)
	return s
}

// Composite looks up a composite by name.
func (r *Result) Composite(name string) (series.Series, bool) {
	for _, s := range r.Composites {
		if s.Name == name {
			return s, true
		}
	}
	return series.Series{}, false
}

// Build runs the three proxy families concurrently over t and combines the
// active ones.
func (b *Builder) Build(ctx context.Context, t *series.Table) (*Result, error) {
	insts := b.instruments(t)

	var (
		built [3][]Component
		pairs []series.Series
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		built[0] = b.FlowAttention(insts)
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rets := make([]series.Series, 0, len(insts))
		for _, in := range insts {
			rets = append(rets, in.Returns)
		}
		built[1], pairs = b.Comovement(rets)
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stress, _ := t.Series(b.opts.StressColumn)
		built[2] = b.FactorSide(b.factors(t), stress)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build crowding families: %w", err)
	}

	res := &Result{
		Components: make(map[Family][]Component),
		Pairs:      pairs,
	}
	var all []Component
	for i, fam := range Families {
		active := make([]Component, 0, len(built[i]))
		for _, c := range built[i] {
			if c.Active() {
				active = append(active, c)
			}
			if c.Degenerate > 0 {
				res.warn(b.log, Warning{
					Kind:      DegenerateDistribution,
					Family:    fam,
					Component: c.Name,
					Message:   fmt.Sprintf("%d dates with zero variance scored 0", c.Degenerate),
				})
			}
		}
		if len(active) == 0 {
			res.warn(b.log, Warning{
				Kind:    MissingComponent,
				Family:  fam,
				Message: "no valid inputs, family excluded from composite",
			})
			continue
		}
		res.Components[fam] = active
		res.Included = append(res.Included, fam)
		res.Composites = append(res.Composites, b.Composite(IndexName(fam), active))
		all = append(all, active...)

		b.log.Info().
			Str("family", string(fam)).
			Int("components", len(active)).
			Msg("proxy family built")
	}
	if len(all) == 0 {
		return res, ErrNoComponents
	}

	res.Composites = append(res.Composites, b.Composite(AllIndex, all))
	b.log.Info().
		Int("families", len(res.Included)).
		Int("components", len(all)).
		Msg("composite crowding index built")
	return res, nil
}

func (r *Result) warn(log zerolog.Logger, w Warning) {
	r.Warnings = append(r.Warnings, w)
	log.Warn().
		Str("kind", string(w.Kind)).
		Str("family", string(w.Family)).
		Str("series", w.Component).
		Msg(w.Message)
}

func (b *Builder) instruments(t *series.Table) []Instrument {
	names := b.opts.Instruments
	if len(names) == 0 {
		names = t.WithSuffix(b.opts.ReturnSuffix)
	}
	out := make([]Instrument, 0, len(names))
	for _, name := range names {
		ret, ok := t.Series(name + b.opts.ReturnSuffix)
		if !ok {
			b.log.Warn().Str("instrument", name).Msg("instrument has no return column")
			continue
		}
		in := Instrument{Name: name, Returns: ret.Renamed(name)}
		if vol, ok := t.Series(name + b.opts.VolumeSuffix); ok {
			in.Volume = vol.Renamed(name)
		}
		out = append(out, in)
	}
	return out
}

func (b *Builder) factors(t *series.Table) []series.Series {
	out := make([]series.Series, 0, len(b.opts.Factors))
	for _, name := range b.opts.Factors {
		s, ok := t.Series(name)
		if !ok {
			b.log.Debug().Str("factor", name).Msg("factor column missing")
			continue
		}
		out = append(out, s)
	}
	return out
}

func component(fam Family, name string, sc indicators.Scored) Component {
	sc.Name = name
	return Component{Scored: sc, Family: fam}
}
