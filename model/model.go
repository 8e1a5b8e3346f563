// Package model fits the baseline crash classifier and the conditional
// decile analysis over an assembled dataset.
package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/crowding/dataset"
)

var (
	// ErrSingleClass is returned when the fit rows carry only one label.
	ErrSingleClass = errors.New("fit set has a single class")
	// ErrTooFewRows is returned when a split leaves no fit or no holdout rows.
	ErrTooFewRows = errors.New("too few rows to split")
	// ErrInsufficientBuckets is returned when there are fewer rows than
	// requested decile buckets.
	ErrInsufficientBuckets = errors.New("fewer rows than buckets")
)

// ClassWeight selects per-class sample weights.
type ClassWeight string

const (
	Unweighted ClassWeight = "none"
	// Balanced weights class c by n / (2 * n_c).
	Balanced ClassWeight = "balanced"
)

// Options configures FitClassifier.
type Options struct {
	HoldoutFraction float64
	Seed            int64
	Split           SplitMode
	// Embargo rows are removed from the end of a chronological fit block so
	// that no fit label window overlaps the holdout.
	Embargo     int
	ClassWeight ClassWeight
	// Features restricts the fitted columns; empty means all.
	Features []string

	MaxIter   int
	Tolerance float64
	// Ridge is added to the Hessian diagonal, the intercept excluded.
	Ridge float64
}

// DefaultOptions is a 20% chronological holdout with balanced weights.
func DefaultOptions() Options {
	return Options{
		HoldoutFraction: 0.2,
		Seed:            42,
		Split:           Chronological,
		ClassWeight:     Balanced,
		MaxIter:         100,
		Tolerance:       1e-8,
		Ridge:           1e-6,
	}
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if o.HoldoutFraction <= 0 || o.HoldoutFraction >= 1 {
		return fmt.Errorf("holdout fraction must be in (0, 1), got %v", o.HoldoutFraction)
	}
	if o.Split != Chronological && o.Split != Shuffled {
		return fmt.Errorf("unknown split mode %q", o.Split)
	}
	if o.ClassWeight != Unweighted && o.ClassWeight != Balanced {
		return fmt.Errorf("unknown class weight %q", o.ClassWeight)
	}
	if o.Embargo < 0 {
		return fmt.Errorf("embargo must be >= 0, got %d", o.Embargo)
	}
	if o.MaxIter < 1 {
		return fmt.Errorf("max iterations must be >= 1, got %d", o.MaxIter)
	}
	if o.Ridge < 0 {
		return fmt.Errorf("ridge must be >= 0, got %v", o.Ridge)
	}
	return nil
}

// Coefficient is one fitted parameter.
type Coefficient struct {
	Name  string
	Value float64
}

// Intercept is the name of the constant term.
const Intercept = "intercept"

// Confusion is a binary confusion matrix.
type Confusion struct {
	TN, FP, FN, TP int
}

// Total returns the number of classified rows.
func (c Confusion) Total() int {
	return c.TN + c.FP + c.FN + c.TP
}

// Result is a fitted classifier with its evaluation.
type Result struct {
	Horizon int
	// Coefficients starts with the intercept, then one entry per feature.
	Coefficients []Coefficient
	FitAUC       float64
	// HoldoutAUC is NaN when the holdout has a single class.
	HoldoutAUC float64
	Confusion  Confusion
	Split      Split

	Iterations int
	Converged  bool
}

// Features returns the fitted feature names, intercept excluded.
func (r *Result) Features() []string {
	out := make([]string, 0, len(r.Coefficients))
	for _, c := range r.Coefficients[1:] {
		out = append(out, c.Name)
	}
	return out
}

// Probability returns the fitted crash probability for one feature vector
// in Features order.
func (r *Result) Probability(x []float64) float64 {
	eta := r.Coefficients[0].Value
	for j, c := range r.Coefficients[1:] {
		eta += c.Value * x[j]
	}
	return sigmoid(eta)
}

// Classifier fits and evaluates logistic models.
type Classifier struct {
	opts Options
	log  zerolog.Logger
}

// NewClassifier returns a classifier that logs through log.
func NewClassifier(opts Options, log zerolog.Logger) *Classifier {
	return &Classifier{opts: opts, log: log.With().Str("component", "model").Logger()}
}

// FitClassifier splits ds deterministically, fits a logistic regression
// on the fit rows and evaluates it on both sides of the split.
func (c *Classifier) FitClassifier(ds *dataset.Dataset) (*Result, error) {
	o := c.opts
	if err := o.Validate(); err != nil {
		return nil, err
	}
	cols, err := featureColumns(ds, o.Features)
	if err != nil {
		return nil, err
	}
	split, err := MakeSplit(ds.Len(), o)
	if err != nil {
		return nil, err
	}

	xFit, yFit := design(ds, cols, split.Fit)
	if single(yFit) {
		return nil, ErrSingleClass
	}
	fit := irls(xFit, yFit, weights(yFit, o.ClassWeight), o)

	res := &Result{
		Horizon:    ds.Horizon,
		Split:      split,
		Iterations: fit.iterations,
		Converged:  fit.converged,
	}
	res.Coefficients = append(res.Coefficients, Coefficient{Name: Intercept, Value: fit.beta[0]})
	for j, k := range cols {
		res.Coefficients = append(res.Coefficients, Coefficient{Name: ds.Features[k], Value: fit.beta[j+1]})
	}

	res.FitAUC = AUC(predict(xFit, fit.beta), yFit)
	xHold, yHold := design(ds, cols, split.Holdout)
	pHold := predict(xHold, fit.beta)
	res.HoldoutAUC = AUC(pHold, yHold)
	res.Confusion = ConfusionAt(pHold, yHold, 0.5)

	ev := c.log.Info()
	if !fit.converged {
		ev = c.log.Warn()
	}
	ev.Int("horizon", ds.Horizon).
		Str("split", split.String()).
		Int("iterations", fit.iterations).
		Bool("converged", fit.converged).
		Float64("fit_auc", res.FitAUC).
		Float64("holdout_auc", res.HoldoutAUC).
		Msg("classifier fitted")
	return res, nil
}

func featureColumns(ds *dataset.Dataset, names []string) ([]int, error) {
	if len(names) == 0 {
		cols := make([]int, len(ds.Features))
		for i := range cols {
			cols[i] = i
		}
		return cols, nil
	}
	cols := make([]int, 0, len(names))
	for _, n := range names {
		j := ds.FeatureIndex(n)
		if j < 0 {
			return nil, fmt.Errorf("%w: feature %q", dataset.ErrMissingColumn, n)
		}
		cols = append(cols, j)
	}
	return cols, nil
}

// design returns the rows of ds at idx as feature vectors with a leading 1.
func design(ds *dataset.Dataset, cols, idx []int) ([][]float64, []bool) {
	x := make([][]float64, len(idx))
	y := make([]bool, len(idx))
	for i, r := range idx {
		row := ds.Rows[r]
		v := make([]float64, len(cols)+1)
		v[0] = 1
		for j, k := range cols {
			v[j+1] = row.Features[k]
		}
		x[i] = v
		y[i] = row.Label
	}
	return x, y
}

func single(y []bool) bool {
	if len(y) == 0 {
		return true
	}
	for _, v := range y[1:] {
		if v != y[0] {
			return false
		}
	}
	return true
}

func weights(y []bool, cw ClassWeight) []float64 {
	w := make([]float64, len(y))
	pos := 0
	for _, v := range y {
		if v {
			pos++
		}
	}
	n := float64(len(y))
	for i, v := range y {
		switch {
		case cw != Balanced:
			w[i] = 1
		case v:
			w[i] = n / (2 * float64(pos))
		default:
			w[i] = n / (2 * float64(len(y)-pos))
		}
	}
	return w
}

func sigmoid(eta float64) float64 {
	if eta >= 0 {
		return 1 / (1 + math.Exp(-eta))
	}
	e := math.Exp(eta)
	return e / (1 + e)
}
