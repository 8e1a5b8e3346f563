package model

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/crowding/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2012, 1, 2, 0, 0, 0, 0, time.UTC)

// synthetic draws labels from P(y=1) = sigmoid(b0 + b1*x).
func synthetic(n int, b0, b1 float64, seed int64) *dataset.Dataset {
	rng := rand.New(rand.NewSource(seed))
	ds := &dataset.Dataset{Horizon: 5, Label: dataset.LabelAny, Features: []string{dataset.CrowdingIndex}}
	for i := 0; i < n; i++ {
		x := rng.NormFloat64()
		ds.Rows = append(ds.Rows, dataset.Row{
			Date:          base.AddDate(0, 0, i),
			Features:      []float64{x},
			Label:         rng.Float64() < sigmoid(b0+b1*x),
			ForwardReturn: -0.01*x + 0.005*rng.NormFloat64(),
		})
	}
	return ds
}

func TestAUC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		scores []float64
		labels []bool
		want   float64
	}{
		{"perfect", []float64{0.1, 0.2, 0.8, 0.9}, []bool{false, false, true, true}, 1},
		{"inverted", []float64{0.9, 0.8, 0.2, 0.1}, []bool{false, false, true, true}, 0},
		{"all tied", []float64{0.5, 0.5, 0.5, 0.5}, []bool{false, true, false, true}, 0.5},
		{"mixed", []float64{0.1, 0.4, 0.35, 0.8}, []bool{false, false, true, true}, 0.75},
		{"partial tie", []float64{0.3, 0.5, 0.5, 0.9}, []bool{false, true, false, true}, 0.875},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, AUC(tt.scores, tt.labels), 1e-12)
		})
	}

	assert.True(t, math.IsNaN(AUC([]float64{0.1, 0.9}, []bool{true, true})))
	assert.True(t, math.IsNaN(AUC(nil, nil)))
}

func TestConfusionAt(t *testing.T) {
	t.Parallel()

	c := ConfusionAt(
		[]float64{0.9, 0.6, 0.5, 0.2, 0.7},
		[]bool{true, false, true, false, true},
		0.5,
	)
	assert.Equal(t, Confusion{TN: 1, FP: 1, FN: 1, TP: 2}, c)
	assert.Equal(t, 5, c.Total())
}

func TestMakeSplitChronological(t *testing.T) {
	t.Parallel()

	o := DefaultOptions()
	o.Embargo = 5
	sp, err := MakeSplit(100, o)
	require.NoError(t, err)
	assert.Equal(t, 75, len(sp.Fit))
	assert.Equal(t, 0, sp.Fit[0])
	assert.Equal(t, 74, sp.Fit[74])
	assert.Equal(t, 20, len(sp.Holdout))
	assert.Equal(t, 80, sp.Holdout[0])
	assert.Equal(t, "chronological embargo=5 fit=75 holdout=20", sp.String())

	o.Embargo = 200
	_, err = MakeSplit(100, o)
	assert.ErrorIs(t, err, ErrTooFewRows)
}

func TestMakeSplitShuffledIsDeterministic(t *testing.T) {
	t.Parallel()

	o := DefaultOptions()
	o.Split = Shuffled
	a, err := MakeSplit(50, o)
	require.NoError(t, err)
	b, err := MakeSplit(50, o)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a.Holdout, 10)
	assert.Len(t, a.Fit, 40)

	seen := make(map[int]bool)
	for _, i := range append(append([]int(nil), a.Fit...), a.Holdout...) {
		assert.False(t, seen[i], "row %d in both sets", i)
		seen[i] = true
	}
	assert.Len(t, seen, 50)

	o.Seed = 7
	c, err := MakeSplit(50, o)
	require.NoError(t, err)
	assert.NotEqual(t, a.Holdout, c.Holdout)
}

func TestFitClassifierRecoversCoefficients(t *testing.T) {
	t.Parallel()

	o := DefaultOptions()
	o.ClassWeight = Unweighted
	o.Ridge = 0
	ds := synthetic(4000, -1, 2, 1)

	res, err := NewClassifier(o, zerolog.Nop()).FitClassifier(ds)
	require.NoError(t, err)
	assert.True(t, res.Converged)
	require.Len(t, res.Coefficients, 2)
	assert.Equal(t, Intercept, res.Coefficients[0].Name)
	assert.Equal(t, []string{dataset.CrowdingIndex}, res.Features())
	assert.InDelta(t, -1, res.Coefficients[0].Value, 0.25)
	assert.InDelta(t, 2, res.Coefficients[1].Value, 0.3)

	assert.Greater(t, res.FitAUC, 0.75)
	assert.Greater(t, res.HoldoutAUC, 0.75)
	assert.Equal(t, len(res.Split.Holdout), res.Confusion.Total())
	assert.Equal(t, 5, res.Horizon)

	p := res.Probability([]float64{0})
	assert.InDelta(t, sigmoid(res.Coefficients[0].Value), p, 1e-12)
}

func TestFitClassifierIsDeterministic(t *testing.T) {
	t.Parallel()

	o := DefaultOptions()
	o.Split = Shuffled
	ds := synthetic(500, -2, 1, 4)
	c := NewClassifier(o, zerolog.Nop())

	a, err := c.FitClassifier(ds)
	require.NoError(t, err)
	b, err := c.FitClassifier(ds)
	require.NoError(t, err)
	assert.Equal(t, a.Coefficients, b.Coefficients)
	assert.Equal(t, a.Confusion, b.Confusion)
}

func TestFitClassifierBalancedWeights(t *testing.T) {
	t.Parallel()

	ds := synthetic(3000, -3, 1, 5)
	o := DefaultOptions()

	o.ClassWeight = Unweighted
	plain, err := NewClassifier(o, zerolog.Nop()).FitClassifier(ds)
	require.NoError(t, err)

	o.ClassWeight = Balanced
	bal, err := NewClassifier(o, zerolog.Nop()).FitClassifier(ds)
	require.NoError(t, err)

	// balancing a rare positive class pulls the intercept up
	assert.Greater(t, bal.Coefficients[0].Value, plain.Coefficients[0].Value)
	predicted := bal.Confusion.TP + bal.Confusion.FP
	assert.Greater(t, predicted, plain.Confusion.TP+plain.Confusion.FP)
}

func TestFitClassifierSingleClass(t *testing.T) {
	t.Parallel()

	ds := synthetic(100, 0, 1, 2)
	for i := range ds.Rows {
		ds.Rows[i].Label = false
	}
	_, err := NewClassifier(DefaultOptions(), zerolog.Nop()).FitClassifier(ds)
	assert.ErrorIs(t, err, ErrSingleClass)
}

func TestFitClassifierSingleClassHoldout(t *testing.T) {
	t.Parallel()

	ds := synthetic(200, 0, 1, 3)
	// no positives in the chronological holdout
	for i := 150; i < 200; i++ {
		ds.Rows[i].Label = false
	}
	res, err := NewClassifier(DefaultOptions(), zerolog.Nop()).FitClassifier(ds)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(res.HoldoutAUC))
	assert.False(t, math.IsNaN(res.FitAUC))
	assert.Zero(t, res.Confusion.TP+res.Confusion.FN)
}

func TestFitClassifierErrors(t *testing.T) {
	t.Parallel()

	ds := synthetic(100, 0, 1, 2)

	o := DefaultOptions()
	o.Features = []string{"missing"}
	_, err := NewClassifier(o, zerolog.Nop()).FitClassifier(ds)
	assert.ErrorIs(t, err, dataset.ErrMissingColumn)

	bad := []func(*Options){
		func(o *Options) { o.HoldoutFraction = 0 },
		func(o *Options) { o.Split = "kfold" },
		func(o *Options) { o.ClassWeight = "auto" },
		func(o *Options) { o.Embargo = -1 },
		func(o *Options) { o.MaxIter = 0 },
		func(o *Options) { o.Ridge = -1 },
	}
	for i, mut := range bad {
		o := DefaultOptions()
		mut(&o)
		_, err := NewClassifier(o, zerolog.Nop()).FitClassifier(ds)
		assert.Error(t, err, "case %d", i)
	}

	_, err = NewClassifier(DefaultOptions(), zerolog.Nop()).FitClassifier(&dataset.Dataset{})
	assert.ErrorIs(t, err, ErrTooFewRows)
}

func TestDecilesEqualBuckets(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(21))
	ds := &dataset.Dataset{Features: []string{dataset.CrowdingIndex}}
	for i := 0; i < 1003; i++ {
		ds.Rows = append(ds.Rows, dataset.Row{
			Date:          base.AddDate(0, 0, i),
			Features:      []float64{rng.Float64()},
			ForwardReturn: rng.NormFloat64(),
		})
	}

	dec, err := Deciles(ds, dataset.CrowdingIndex, dataset.ForwardReturnCol, 10)
	require.NoError(t, err)
	require.Len(t, dec, 10)

	total := 0
	for i, d := range dec {
		assert.Equal(t, i+1, d.Bucket)
		assert.True(t, d.Count == 100 || d.Count == 101, "bucket %d has %d rows", d.Bucket, d.Count)
		assert.LessOrEqual(t, d.CrowdingMin, d.CrowdingMean)
		assert.LessOrEqual(t, d.CrowdingMean, d.CrowdingMax)
		assert.False(t, math.IsNaN(d.ForwardStd))
		if i > 0 {
			assert.LessOrEqual(t, dec[i-1].CrowdingMax, d.CrowdingMin)
		}
		total += d.Count
	}
	assert.Equal(t, 1003, total)
}

func TestDecilesTiesKeepDateOrder(t *testing.T) {
	t.Parallel()

	ds := &dataset.Dataset{Features: []string{dataset.CrowdingIndex}}
	for i := 0; i < 4; i++ {
		ds.Rows = append(ds.Rows, dataset.Row{
			Date:          base.AddDate(0, 0, i),
			Features:      []float64{1},
			ForwardReturn: float64(i),
		})
	}
	dec, err := Deciles(ds, dataset.CrowdingIndex, dataset.ForwardReturnCol, 2)
	require.NoError(t, err)
	assert.Equal(t, 0.5, dec[0].ForwardMean)
	assert.Equal(t, 2.5, dec[1].ForwardMean)
	assert.InDelta(t, math.Sqrt(0.5), dec[0].ForwardStd, 1e-12)
}

func TestDecilesErrors(t *testing.T) {
	t.Parallel()

	ds := synthetic(9, 0, 1, 1)
	_, err := Deciles(ds, dataset.CrowdingIndex, dataset.ForwardReturnCol, 10)
	assert.ErrorIs(t, err, ErrInsufficientBuckets)

	_, err = Deciles(ds, "nope", dataset.ForwardReturnCol, 3)
	assert.ErrorIs(t, err, dataset.ErrMissingColumn)

	_, err = Deciles(ds, dataset.CrowdingIndex, dataset.ForwardReturnCol, 0)
	assert.Error(t, err)

	one, err := Deciles(ds, dataset.CrowdingIndex, dataset.ForwardReturnCol, 9)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(one[0].ForwardStd))
}

func TestDecilesSkipUndefinedForward(t *testing.T) {
	t.Parallel()

	fwd := []float64{0, math.NaN(), 2, 3, math.NaN(), 5}
	ds := &dataset.Dataset{Features: []string{dataset.CrowdingIndex}}
	for i, f := range fwd {
		ds.Rows = append(ds.Rows, dataset.Row{
			Date:          base.AddDate(0, 0, i),
			Features:      []float64{float64(i + 1)},
			ForwardReturn: f,
		})
	}

	dec, err := Deciles(ds, dataset.CrowdingIndex, dataset.ForwardReturnCol, 2)
	require.NoError(t, err)
	require.Len(t, dec, 2)
	assert.Equal(t, 2, dec[0].Count)
	assert.Equal(t, 1.0, dec[0].ForwardMean)
	assert.Equal(t, 3.0, dec[0].CrowdingMax)
	assert.Equal(t, 4.0, dec[1].ForwardMean)
	assert.Equal(t, 4.0, dec[1].CrowdingMin)

	_, err = Deciles(ds, dataset.CrowdingIndex, dataset.ForwardReturnCol, 5)
	assert.ErrorIs(t, err, ErrInsufficientBuckets)
}
