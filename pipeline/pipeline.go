// Package pipeline runs the crowding, drawdown, dataset and model stages
// over one input table.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/crowding/config"
	"github.com/rustyeddy/crowding/crowding"
	"github.com/rustyeddy/crowding/dataset"
	"github.com/rustyeddy/crowding/drawdown"
	"github.com/rustyeddy/crowding/model"
	"github.com/rustyeddy/crowding/pkg/id"
	"github.com/rustyeddy/crowding/series"
)

// ErrEmptyRange is returned when the configured date range selects no rows.
var ErrEmptyRange = errors.New("date range selects no rows")

// HorizonResult holds the supervised outputs of one forward horizon.
type HorizonResult struct {
	Horizon int
	Dataset *dataset.Dataset
	// Model is nil when the classifier was skipped.
	Model *model.Result
	// Deciles is nil when the decile analysis failed.
	Deciles []model.Decile
}

// Result is everything one run produced.
type Result struct {
	RunID   string
	Created time.Time
	// Source names the input the table came from.
	Source string
	// Start and End are the first and last dates actually used.
	Start time.Time
	End   time.Time
	Rows  int

	Config   *config.Config
	Crowding *crowding.Result
	// Factors keeps the configured factor order.
	Factors  []drawdown.Analysis
	Horizons []HorizonResult
	Warnings []string
}

// Factor looks up the drawdown analysis of one factor.
func (r *Result) Factor(name string) (drawdown.Analysis, bool) {
	for _, a := range r.Factors {
		if a.Factor == name {
			return a, true
		}
	}
	return drawdown.Analysis{}, false
}

// Horizon looks up the supervised outputs of horizon h.
func (r *Result) Horizon(h int) (HorizonResult, bool) {
	for _, hr := range r.Horizons {
		if hr.Horizon == h {
			return hr, true
		}
	}
	return HorizonResult{}, false
}

// Run validates cfg, restricts t to the configured date range and runs every
// stage. Stage failures that only affect one analysis are recorded as
// warnings; anything else aborts the run. Without any active crowding
// component the drawdown analysis still runs and every horizon is skipped.
func Run(ctx context.Context, t *series.Table, cfg *config.Config, log zerolog.Logger) (*Result, error) {
	log = log.With().Str("component", "pipeline").Logger()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	ddOpts, err := DrawdownOptions(cfg)
	if err != nil {
		return nil, err
	}

	start, _ := cfg.Data.StartDate()
	end, _ := cfg.Data.EndDate()
	t = t.Between(start, end)
	if t.Len() == 0 {
		return nil, ErrEmptyRange
	}

	res := &Result{
		RunID:   id.New(),
		Created: time.Now().UTC(),
		Source:  cfg.Data.Input,
		Start:   t.Dates[0],
		End:     t.Dates[t.Len()-1],
		Rows:    t.Len(),
		Config:  cfg,
	}
	log = log.With().Str("run_id", res.RunID).Logger()
	log.Info().
		Str("source", res.Source).
		Time("start", res.Start).
		Time("end", res.End).
		Int("rows", res.Rows).
		Msg("run started")

	cr, err := crowding.NewBuilder(CrowdingOptions(cfg), log).Build(ctx, t)
	noIndex := errors.Is(err, crowding.ErrNoComponents)
	if err != nil && !noIndex {
		return nil, fmt.Errorf("crowding index: %w", err)
	}
	res.Crowding = cr
	for _, w := range cr.Warnings {
		res.Warnings = append(res.Warnings, w.String())
	}

	factors, err := analyzedFactors(t, cfg)
	if err != nil {
		return nil, err
	}
	if res.Factors, err = drawdown.NewAnalyzer(ddOpts, log).AnalyzeFactors(ctx, factors); err != nil {
		return nil, fmt.Errorf("drawdown analysis: %w", err)
	}
	target, _ := res.Factor(cfg.Dataset.Target)

	if noIndex {
		log.Warn().Ints("horizons", cfg.Dataset.Horizons).Msg("no crowding index, horizons skipped")
		res.Warnings = append(res.Warnings, fmt.Sprintf("horizons skipped: %v", crowding.ErrNoComponents))
		log.Info().Int("factors", len(res.Factors)).Msg("run done")
		return res, nil
	}

	for _, h := range cfg.Dataset.Horizons {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hr, warns, err := runHorizon(cfg, h, t, cr.Index(), target.Daily, log)
		if err != nil {
			return nil, fmt.Errorf("horizon %d: %w", h, err)
		}
		res.Horizons = append(res.Horizons, hr)
		res.Warnings = append(res.Warnings, warns...)
	}

	log.Info().
		Int("factors", len(res.Factors)).
		Int("horizons", len(res.Horizons)).
		Int("warnings", len(res.Warnings)).
		Msg("run done")
	return res, nil
}

func runHorizon(cfg *config.Config, h int, t *series.Table, index series.Series, flags drawdown.Flags, log zerolog.Logger) (HorizonResult, []string, error) {
	hr := HorizonResult{Horizon: h}
	var warns []string

	ds, err := dataset.Assemble(dataset.Input{Table: t, Crowding: index, Flags: flags}, DatasetOptions(cfg, h))
	if err != nil {
		return hr, nil, err
	}
	hr.Dataset = ds
	log.Info().
		Int("horizon", h).
		Int("rows", ds.Len()).
		Int("positives", ds.Positives()).
		Int("dropped_horizon", ds.DroppedHorizon).
		Int("dropped_missing", ds.DroppedMissing).
		Int("no_forward", ds.NoForward).
		Msg("dataset assembled")

	m, err := model.NewClassifier(ModelOptions(cfg, h), log).FitClassifier(ds)
	switch {
	case errors.Is(err, model.ErrSingleClass), errors.Is(err, model.ErrTooFewRows):
		msg := fmt.Sprintf("horizon %d: classifier skipped: %v", h, err)
		log.Warn().Int("horizon", h).Err(err).Msg("classifier skipped")
		warns = append(warns, msg)
	case err != nil:
		return hr, nil, err
	default:
		hr.Model = m
	}

	dec, err := model.Deciles(ds, dataset.CrowdingIndex, dataset.ForwardReturnCol, cfg.Model.Buckets)
	switch {
	case errors.Is(err, model.ErrInsufficientBuckets):
		msg := fmt.Sprintf("horizon %d: decile analysis skipped: %v", h, err)
		log.Warn().Int("horizon", h).Err(err).Msg("decile analysis skipped")
		warns = append(warns, msg)
	case err != nil:
		return hr, nil, err
	default:
		hr.Deciles = dec
	}
	return hr, warns, nil
}

// analyzedFactors returns the configured factors present in t, with the
// target appended when it is not configured. A missing target is an error.
func analyzedFactors(t *series.Table, cfg *config.Config) ([]series.Series, error) {
	target := cfg.Dataset.Target
	if !t.Has(target) {
		return nil, fmt.Errorf("%w: target factor %q", dataset.ErrMissingColumn, target)
	}
	var out []series.Series
	seen := false
	for _, name := range cfg.Crowding.Factors {
		s, ok := t.Series(name)
		if !ok {
			continue
		}
		seen = seen || name == target
		out = append(out, s)
	}
	if !seen {
		s, _ := t.Series(target)
		out = append(out, s)
	}
	return out, nil
}
