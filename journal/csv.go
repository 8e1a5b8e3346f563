// journal/csv.go
package journal

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rustyeddy/crowding/dataset"
	"github.com/rustyeddy/crowding/pipeline"
	"github.com/rustyeddy/crowding/series"
)

// CSVJournal writes each run as a directory of CSV files named after the
// run ID under its root.
type CSVJournal struct {
	root string
}

// NewCSV creates root when missing.
func NewCSV(root string) (*CSVJournal, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create csv dir: %w", err)
	}
	return &CSVJournal{root: root}, nil
}

// Dir returns the directory a run is written to.
func (j *CSVJournal) Dir(runID string) string {
	return filepath.Join(j.root, runID)
}

// SaveRun writes crowding.csv, drawdowns.csv, episodes.csv, one
// dataset_h<H>.csv per horizon, coefficients.csv, model_results.csv and
// deciles.csv.
func (j *CSVJournal) SaveRun(ctx context.Context, res *pipeline.Result) error {
	dir := j.Dir(res.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	steps := []csvStep{
		{"crowding.csv", func(w *csv.Writer) error { return writeCrowding(w, res) }},
		{"drawdowns.csv", func(w *csv.Writer) error { return writeDrawdowns(w, res) }},
		{"episodes.csv", func(w *csv.Writer) error { return writeEpisodes(w, res) }},
		{"coefficients.csv", func(w *csv.Writer) error { return writeCoefficients(w, res) }},
		{"model_results.csv", func(w *csv.Writer) error { return writeModelResults(w, res) }},
		{"deciles.csv", func(w *csv.Writer) error { return writeDeciles(w, res) }},
	}
	for _, hr := range res.Horizons {
		if hr.Dataset == nil {
			continue
		}
		ds := hr.Dataset
		steps = append(steps, csvStep{
			fmt.Sprintf("dataset_h%d.csv", hr.Horizon),
			func(w *csv.Writer) error { return writeDataset(w, ds) },
		})
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeFile(filepath.Join(dir, s.name), s.fn); err != nil {
			return fmt.Errorf("write %s: %w", s.name, err)
		}
	}
	return nil
}

type csvStep struct {
	name string
	fn   func(*csv.Writer) error
}

// Close is a no-op; files are closed as they are written.
func (j *CSVJournal) Close() error {
	return nil
}

func writeFile(path string, fn func(*csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := fn(w); err != nil {
		_ = f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// writeCrowding renders composites, components and pair correlations as
// one wide dated table. A component name already taken by another family
// is written as <family>/<name>.
func writeCrowding(w *csv.Writer, res *pipeline.Result) error {
	cr := res.Crowding
	if cr == nil || len(cr.Composites) == 0 {
		return w.Write([]string{"date"})
	}
	tbl, err := series.NewTable(cr.Composites[0].Dates)
	if err != nil {
		return err
	}
	add := func(s series.Series) error { return tbl.AddColumn(s.Name, s.Values) }
	for _, s := range cr.Composites {
		if err := add(s); err != nil {
			return err
		}
	}
	for _, fam := range cr.Included {
		for _, c := range cr.Components[fam] {
			s := c.Series
			if tbl.Has(s.Name) {
				s = s.Renamed(string(fam) + "/" + s.Name)
			}
			if err := add(s); err != nil {
				return err
			}
		}
	}
	for _, s := range cr.Pairs {
		if err := add(s); err != nil {
			return err
		}
	}
	return writeTable(w, tbl)
}

func writeTable(w *csv.Writer, t *series.Table) error {
	cols := t.Columns()
	if err := w.Write(append([]string{"date"}, cols...)); err != nil {
		return err
	}
	all := make([]series.Series, len(cols))
	for i, c := range cols {
		all[i], _ = t.Series(c)
	}
	rec := make([]string, len(cols)+1)
	for i, d := range t.Dates {
		rec[0] = date(d)
		for k, s := range all {
			rec[k+1] = series.FormatValue(s.Values[i])
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func writeDrawdowns(w *csv.Writer, res *pipeline.Result) error {
	if err := w.Write([]string{"factor", "date", "cumulative", "peak", "drawdown", "daily_flag", "weekly_flag"}); err != nil {
		return err
	}
	for _, a := range res.Factors {
		daily := flagIndex(a.Daily.Dates, a.Daily.Values)
		weekly := flagIndex(a.Weekly.Dates, a.Weekly.Values)
		r := a.Record
		for i, d := range r.Dates {
			key := date(d)
			if err := w.Write([]string{
				a.Factor, key, f(r.Cumulative[i]), f(r.Peak[i]), f(r.Drawdown[i]),
				strconv.Itoa(boolInt(daily[key])), strconv.Itoa(boolInt(weekly[key])),
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeEpisodes(w *csv.Writer, res *pipeline.Result) error {
	if err := w.Write([]string{
		"factor", "peak_date", "breach_date", "trough_date", "recovery_date", "recovered",
		"depth", "duration", "recovery_days", "peak_value", "trough_value",
	}); err != nil {
		return err
	}
	for _, a := range res.Factors {
		for _, ep := range a.Episodes {
			rec := nullDate(ep.RecoveryDate)
			if err := w.Write([]string{
				a.Factor, date(ep.PeakDate), date(ep.BreachDate), date(ep.TroughDate), rec.String,
				strconv.FormatBool(ep.Recovered), f(ep.Depth), strconv.Itoa(ep.Duration),
				strconv.Itoa(ep.RecoveryDays), f(ep.PeakValue), f(ep.TroughValue),
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeDataset(w *csv.Writer, ds *dataset.Dataset) error {
	header := append([]string{"date"}, ds.Features...)
	header = append(header, "label", dataset.ForwardReturnCol, "regime")
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range ds.Rows {
		rec := make([]string, 0, len(header))
		rec = append(rec, date(r.Date))
		for _, x := range r.Features {
			rec = append(rec, f(x))
		}
		rec = append(rec, strconv.Itoa(boolInt(r.Label)), nf(r.ForwardReturn), string(r.Regime))
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func writeCoefficients(w *csv.Writer, res *pipeline.Result) error {
	if err := w.Write([]string{"horizon", "name", "value"}); err != nil {
		return err
	}
	for _, hr := range res.Horizons {
		if hr.Model == nil {
			continue
		}
		for _, c := range hr.Model.Coefficients {
			if err := w.Write([]string{strconv.Itoa(hr.Horizon), c.Name, f(c.Value)}); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeModelResults(w *csv.Writer, res *pipeline.Result) error {
	if err := w.Write([]string{
		"horizon", "fit_auc", "holdout_auc", "tn", "fp", "fn", "tp",
		"split", "fit_rows", "holdout_rows", "iterations", "converged",
	}); err != nil {
		return err
	}
	for _, hr := range res.Horizons {
		m := hr.Model
		if m == nil {
			continue
		}
		c := m.Confusion
		if err := w.Write([]string{
			strconv.Itoa(hr.Horizon), nf(m.FitAUC), nf(m.HoldoutAUC),
			strconv.Itoa(c.TN), strconv.Itoa(c.FP), strconv.Itoa(c.FN), strconv.Itoa(c.TP),
			m.Split.String(), strconv.Itoa(len(m.Split.Fit)), strconv.Itoa(len(m.Split.Holdout)),
			strconv.Itoa(m.Iterations), strconv.FormatBool(m.Converged),
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeDeciles(w *csv.Writer, res *pipeline.Result) error {
	if err := w.Write([]string{
		"horizon", "bucket", "count", "crowding_min", "crowding_mean", "crowding_max", "forward_mean", "forward_std",
	}); err != nil {
		return err
	}
	for _, hr := range res.Horizons {
		for _, d := range hr.Deciles {
			if err := w.Write([]string{
				strconv.Itoa(hr.Horizon), strconv.Itoa(d.Bucket), strconv.Itoa(d.Count),
				f(d.CrowdingMin), f(d.CrowdingMean), f(d.CrowdingMax), f(d.ForwardMean), nf(d.ForwardStd),
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func flagIndex(dates []time.Time, vals []bool) map[string]bool {
	out := make(map[string]bool, len(dates))
	for i, d := range dates {
		out[date(d)] = vals[i]
	}
	return out
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

// nf renders NaN as an empty cell.
func nf(x float64) string {
	return series.FormatValue(series.Value{X: x, OK: !math.IsNaN(x)})
}
