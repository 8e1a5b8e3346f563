package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustyeddy/crowding/crowding"
	"github.com/rustyeddy/crowding/dataset"
	"github.com/rustyeddy/crowding/drawdown"
	"github.com/rustyeddy/crowding/model"
	"github.com/rustyeddy/crowding/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() *pipeline.Result {
	day := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	return &pipeline.Result{
		RunID:   "01HZX0000000000000000000AB",
		Created: time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
		Source:  "master.csv",
		Start:   day,
		End:     day.AddDate(1, 0, 0),
		Rows:    252,
		Crowding: &crowding.Result{
			Included: []crowding.Family{crowding.Comovement, crowding.FactorSide},
		},
		Factors: []drawdown.Analysis{{
			Factor:      "Mom",
			MaxDrawdown: -0.2345,
			Daily:       drawdown.Flags{Values: []bool{true, false, true}},
			Weekly:      drawdown.Flags{Values: []bool{false, true, false}},
			Summary:     drawdown.Summary{Count: 2, Unresolved: 1, MeanDepth: -0.12, DurationP50: 7},
		}},
		Horizons: []pipeline.HorizonResult{
			{
				Horizon: 5,
				Dataset: &dataset.Dataset{
					Features: []string{dataset.CrowdingIndex},
					Rows: []dataset.Row{
						{Label: true, Features: []float64{0}},
						{Features: []float64{1}},
						{Date: day.AddDate(1, 0, 0), Features: []float64{2}},
					},
				},
				Model: &model.Result{
					Horizon:      5,
					Coefficients: []model.Coefficient{{Name: model.Intercept, Value: -1.5}, {Name: dataset.CrowdingIndex, Value: 0.25}},
					FitAUC:       0.61,
					HoldoutAUC:   math.NaN(),
					Confusion:    model.Confusion{TN: 10, FP: 2, FN: 1, TP: 3},
					Split:        model.Split{Mode: model.Chronological, Embargo: 5, Fit: []int{0, 1}, Holdout: []int{3}},
				},
				Deciles: []model.Decile{{Bucket: 1, Count: 3, CrowdingMean: -1, ForwardMean: 0.002, ForwardStd: math.NaN()}},
			},
			{Horizon: 20, Dataset: &dataset.Dataset{}},
		},
		Warnings: []string{"horizon 20: classifier skipped: fit set has a single class"},
	}
}

func TestOrg(t *testing.T) {
	t.Parallel()

	out, err := Org(fixture())
	require.NoError(t, err)

	assert.Contains(t, out, "* CROWDING RUN: master.csv 2020-01-02..2021-01-02")
	assert.Contains(t, out, ":RUN_ID:      01HZX0000000000000000000AB")
	assert.Contains(t, out, ":FAMILIES:    comovement factor_side")
	assert.Contains(t, out, ":CREATED:     [2024-03-15 Fri 10:30]")
	assert.Contains(t, out, "| Mom | -23.4500 | 2 | 1 | 2 | 1 | -12.0000 | 7.0000 |")
	assert.Contains(t, out, "** Horizon 5")
	assert.Contains(t, out, "- Positives: 1")
	assert.Contains(t, out, "- Holdout AUC: *n/a*")
	assert.Contains(t, out, "- Split:       chronological embargo=5 fit=2 holdout=1")
	assert.Contains(t, out, "| crowding_index | 0.2500 |")
	// sigmoid(-1.5 + 0.25*2)
	assert.Contains(t, out, "- Latest:      p=0.2689 at 2021-01-02")
	assert.Contains(t, out, "| 1 | 3 | -1.0000 | 0.0020 | n/a |")
	assert.Contains(t, out, "** Horizon 20")
	assert.Contains(t, out, "- Classifier skipped")
	assert.Contains(t, out, "** Warnings\n- horizon 20: classifier skipped")
}

func TestWriteOrg(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.org")
	require.NoError(t, WriteOrg(path, fixture()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), ":PROPERTIES:")
}

func TestPrintRun(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, PrintRun(&buf, fixture()))
	out := buf.String()

	assert.Contains(t, out, "Run 01HZX0000000000000000000AB")
	assert.Contains(t, out, "Range:    2020-01-02 .. 2021-01-02 (252 rows)")
	assert.Contains(t, out, "Families: [comovement factor_side]")
	assert.Contains(t, out, "Mom")
	assert.Contains(t, out, "Horizon 5: 3 rows, 1 positives")
	assert.Contains(t, out, "AUC fit=0.6100 holdout=n/a")
	assert.Contains(t, out, "latest p=0.2689 at 2021-01-02")
	assert.Contains(t, out, "Horizon 20: 0 rows, 0 positives\n  classifier skipped")
	assert.Contains(t, out, "1 warnings:")
}

func TestLatestNeedsModelFeatures(t *testing.T) {
	t.Parallel()

	ds := &dataset.Dataset{Features: []string{dataset.Stress}, Rows: []dataset.Row{{Features: []float64{1}}}}
	m := &model.Result{Coefficients: []model.Coefficient{{Name: model.Intercept}, {Name: dataset.CrowdingIndex, Value: 1}}}

	p, _ := latest(m, ds)
	assert.True(t, math.IsNaN(p))
	p, _ = latest(nil, ds)
	assert.True(t, math.IsNaN(p))

	ds.Features = []string{dataset.CrowdingIndex}
	p, _ = latest(m, ds)
	assert.InDelta(t, 1/(1+math.Exp(-1)), p, 1e-12)
}
