package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/crowding/crowding"
	"github.com/rustyeddy/crowding/dataset"
	"github.com/rustyeddy/crowding/drawdown"
	"github.com/rustyeddy/crowding/model"
	"github.com/rustyeddy/crowding/pipeline"
	"github.com/rustyeddy/crowding/series"
)

// SQLite is the SQLite-backed journal.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and applies Schema.
func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// SaveRun writes every output of res in one transaction.
func (j *SQLite) SaveRun(ctx context.Context, res *pipeline.Result) (err error) {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = saveRunRow(ctx, tx, res); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if err = saveSeries(ctx, tx, res); err != nil {
		return fmt.Errorf("save series: %w", err)
	}
	for _, a := range res.Factors {
		if err = saveFactor(ctx, tx, res.RunID, a); err != nil {
			return fmt.Errorf("save factor %s: %w", a.Factor, err)
		}
	}
	for _, hr := range res.Horizons {
		if err = saveHorizon(ctx, tx, res.RunID, hr); err != nil {
			return fmt.Errorf("save horizon %d: %w", hr.Horizon, err)
		}
	}
	return tx.Commit()
}

func saveRunRow(ctx context.Context, tx *sql.Tx, res *pipeline.Result) error {
	cfg, err := json.Marshal(res.Config)
	if err != nil {
		return err
	}
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warns, err := json.Marshal(warnings)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, created, source, start_date, end_date, row_count, config, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Created.UTC().Format(time.RFC3339Nano), res.Source,
		date(res.Start), date(res.End), res.Rows, string(cfg), string(warns),
	)
	return err
}

type seriesWriter struct {
	stmt  *sql.Stmt
	runID string
	pos   map[Kind]int
}

func (w *seriesWriter) write(ctx context.Context, kind Kind, family string, s series.Series) error {
	pos := w.pos[kind]
	w.pos[kind]++
	for i, d := range s.Dates {
		if _, err := w.stmt.ExecContext(ctx, w.runID, string(kind), s.Name, family, pos, date(d), nullValue(s.Values[i])); err != nil {
			return err
		}
	}
	return nil
}

func (w *seriesWriter) writeFlags(ctx context.Context, kind Kind, f drawdown.Flags) error {
	vals := make([]series.Value, f.Len())
	for i, b := range f.Values {
		vals[i] = series.Present(float64(boolInt(b)))
	}
	return w.write(ctx, kind, "", series.Series{Name: f.Name, Dates: f.Dates, Values: vals})
}

func saveSeries(ctx context.Context, tx *sql.Tx, res *pipeline.Result) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO series_points
		(run_id, kind, name, family, position, date, value)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	w := &seriesWriter{stmt: stmt, runID: res.RunID, pos: make(map[Kind]int)}
	if cr := res.Crowding; cr != nil {
		for _, s := range cr.Composites {
			if err := w.write(ctx, KindComposite, compositeFamily(s.Name), s); err != nil {
				return err
			}
		}
		for _, fam := range cr.Included {
			for _, c := range cr.Components[fam] {
				if err := w.write(ctx, KindComponent, string(fam), c.Series); err != nil {
					return err
				}
			}
		}
		for _, s := range cr.Pairs {
			if err := w.write(ctx, KindPair, string(crowding.Comovement), s); err != nil {
				return err
			}
		}
	}
	for _, a := range res.Factors {
		if err := w.writeFlags(ctx, KindDailyFlag, a.Daily); err != nil {
			return err
		}
		if err := w.writeFlags(ctx, KindWeeklyFlag, a.Weekly); err != nil {
			return err
		}
	}
	return nil
}

func compositeFamily(name string) string {
	for _, fam := range crowding.Families {
		if crowding.IndexName(fam) == name {
			return string(fam)
		}
	}
	return ""
}

func saveFactor(ctx context.Context, tx *sql.Tx, runID string, a drawdown.Analysis) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO drawdowns
		(run_id, factor, date, cumulative, peak, drawdown)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	r := a.Record
	for i, d := range r.Dates {
		if _, err := stmt.ExecContext(ctx, runID, a.Factor, date(d), r.Cumulative[i], r.Peak[i], r.Drawdown[i]); err != nil {
			return err
		}
	}

	for i, ep := range a.Episodes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO episodes
			(run_id, factor, seq, peak_date, breach_date, trough_date, recovery_date,
			 depth, duration, recovery_days, peak_value, trough_value)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, a.Factor, i, date(ep.PeakDate), date(ep.BreachDate), date(ep.TroughDate),
			nullDate(ep.RecoveryDate), ep.Depth, ep.Duration, ep.RecoveryDays,
			ep.PeakValue, ep.TroughValue,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func saveHorizon(ctx context.Context, tx *sql.Tx, runID string, hr pipeline.HorizonResult) error {
	if hr.Dataset != nil {
		if err := saveDataset(ctx, tx, runID, hr.Dataset); err != nil {
			return err
		}
	}
	if hr.Model != nil {
		if err := saveModel(ctx, tx, runID, hr.Model); err != nil {
			return err
		}
	}
	for _, d := range hr.Deciles {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO deciles
			(run_id, horizon, bucket, row_count, crowding_min, crowding_mean, crowding_max, forward_mean, forward_std)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, hr.Horizon, d.Bucket, d.Count, d.CrowdingMin, d.CrowdingMean, d.CrowdingMax,
			d.ForwardMean, nullFloat(d.ForwardStd),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func saveDataset(ctx context.Context, tx *sql.Tx, runID string, ds *dataset.Dataset) error {
	features, err := json.Marshal(ds.Features)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO datasets
		(run_id, horizon, label_mode, features, dropped_horizon, dropped_missing, no_forward)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, ds.Horizon, string(ds.Label), string(features), ds.DroppedHorizon, ds.DroppedMissing, ds.NoForward,
	)
	if err != nil {
		return err
	}

	rowStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dataset_rows
		(run_id, horizon, date, label, forward_return, regime)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer rowStmt.Close()
	featStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dataset_features
		(run_id, horizon, date, position, value)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer featStmt.Close()

	for _, r := range ds.Rows {
		d := date(r.Date)
		if _, err := rowStmt.ExecContext(ctx, runID, ds.Horizon, d, boolInt(r.Label), nullFloat(r.ForwardReturn), string(r.Regime)); err != nil {
			return err
		}
		for k, x := range r.Features {
			if _, err := featStmt.ExecContext(ctx, runID, ds.Horizon, d, k, x); err != nil {
				return err
			}
		}
	}
	return nil
}

func saveModel(ctx context.Context, tx *sql.Tx, runID string, m *model.Result) error {
	fit, err := json.Marshal(orEmpty(m.Split.Fit))
	if err != nil {
		return err
	}
	hold, err := json.Marshal(orEmpty(m.Split.Holdout))
	if err != nil {
		return err
	}
	c := m.Confusion
	_, err = tx.ExecContext(ctx, `
		INSERT INTO model_results
		(run_id, horizon, fit_auc, holdout_auc, tn, fp, fn, tp,
		 split_mode, seed, embargo, fit_rows, holdout_rows, iterations, converged)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, m.Horizon, nullFloat(m.FitAUC), nullFloat(m.HoldoutAUC), c.TN, c.FP, c.FN, c.TP,
		string(m.Split.Mode), m.Split.Seed, m.Split.Embargo, string(fit), string(hold),
		m.Iterations, boolInt(m.Converged),
	)
	if err != nil {
		return err
	}
	for i, co := range m.Coefficients {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO coefficients (run_id, horizon, position, name, value)
			VALUES (?, ?, ?, ?, ?)`,
			runID, m.Horizon, i, co.Name, co.Value,
		); err != nil {
			return err
		}
	}
	return nil
}

func orEmpty(xs []int) []int {
	if xs == nil {
		return []int{}
	}
	return xs
}

// Close closes the database.
func (j *SQLite) Close() error {
	return j.db.Close()
}
