package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/crowding/config"
	"github.com/rustyeddy/crowding/crowding"
	"github.com/rustyeddy/crowding/dataset"
	"github.com/rustyeddy/crowding/drawdown"
	"github.com/rustyeddy/crowding/model"
	"github.com/rustyeddy/crowding/series"
)

// GetRun returns a single run by ID.
func (j *SQLite) GetRun(ctx context.Context, runID string) (RunInfo, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT run_id, created, source, start_date, end_date, row_count, config, warnings
		FROM runs
		WHERE run_id = ?`, runID)
	info, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunInfo{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	return info, err
}

// ListRuns returns every run, oldest first.
func (j *SQLite) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, created, source, start_date, end_date, row_count, config, warnings
		FROM runs
		ORDER BY created ASC, run_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		info, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (RunInfo, error) {
	var (
		info                  RunInfo
		created, start, end   string
		cfgJSON, warningsJSON string
	)
	if err := s.Scan(&info.RunID, &created, &info.Source, &start, &end, &info.Rows, &cfgJSON, &warningsJSON); err != nil {
		return RunInfo{}, err
	}
	var err error
	if info.Created, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return RunInfo{}, fmt.Errorf("stored created time: %w", err)
	}
	if info.Start, err = parseDate(start); err != nil {
		return RunInfo{}, err
	}
	if info.End, err = parseDate(end); err != nil {
		return RunInfo{}, err
	}
	info.Config = config.Default()
	if err := json.Unmarshal([]byte(cfgJSON), info.Config); err != nil {
		return RunInfo{}, fmt.Errorf("stored config: %w", err)
	}
	if err := json.Unmarshal([]byte(warningsJSON), &info.Warnings); err != nil {
		return RunInfo{}, fmt.Errorf("stored warnings: %w", err)
	}
	return info, nil
}

// SeriesNames lists the names stored under kind in write order.
func (j *SQLite) SeriesNames(ctx context.Context, runID string, kind Kind) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT DISTINCT name, position
		FROM series_points
		WHERE run_id = ? AND kind = ?
		ORDER BY position ASC`, runID, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var (
			name string
			pos  int
		)
		if err := rows.Scan(&name, &pos); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// LoadSeries returns one stored series with NULL points as absent values.
// When families share a name, the first one written is returned; use
// LoadComponent to pick one.
func (j *SQLite) LoadSeries(ctx context.Context, runID string, kind Kind, name string) (series.Series, error) {
	return j.loadPoints(ctx, kind, name, `
		SELECT date, value
		FROM series_points
		WHERE run_id = ? AND kind = ? AND name = ?
		  AND position = (
			SELECT MIN(position) FROM series_points
			WHERE run_id = ? AND kind = ? AND name = ?)
		ORDER BY date ASC`, runID, string(kind), name, runID, string(kind), name)
}

// LoadComponent returns one crowding component of a family.
func (j *SQLite) LoadComponent(ctx context.Context, runID string, family crowding.Family, name string) (series.Series, error) {
	return j.loadPoints(ctx, KindComponent, name, `
		SELECT date, value
		FROM series_points
		WHERE run_id = ? AND kind = ? AND family = ? AND name = ?
		ORDER BY date ASC`, runID, string(KindComponent), string(family), name)
}

func (j *SQLite) loadPoints(ctx context.Context, kind Kind, name, query string, args ...any) (series.Series, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return series.Series{}, err
	}
	defer rows.Close()

	out := series.Series{Name: name}
	for rows.Next() {
		var (
			d string
			v sql.NullFloat64
		)
		if err := rows.Scan(&d, &v); err != nil {
			return series.Series{}, err
		}
		t, err := parseDate(d)
		if err != nil {
			return series.Series{}, err
		}
		out.Dates = append(out.Dates, t)
		out.Values = append(out.Values, series.Value{X: v.Float64, OK: v.Valid})
	}
	if err := rows.Err(); err != nil {
		return series.Series{}, err
	}
	if out.Len() == 0 {
		return series.Series{}, fmt.Errorf("%s series %q: %w", kind, name, ErrNotFound)
	}
	return out, nil
}

// LoadFlags returns the daily or weekly crash flags of one factor.
func (j *SQLite) LoadFlags(ctx context.Context, runID string, kind Kind, factor string) (drawdown.Flags, error) {
	if kind != KindDailyFlag && kind != KindWeeklyFlag {
		return drawdown.Flags{}, fmt.Errorf("%q is not a flag kind", kind)
	}
	s, err := j.LoadSeries(ctx, runID, kind, factor)
	if err != nil {
		return drawdown.Flags{}, err
	}
	f := drawdown.Flags{Name: factor, Dates: s.Dates, Values: make([]bool, s.Len())}
	for i, v := range s.Values {
		f.Values[i] = v.OK && v.X != 0
	}
	return f, nil
}

// LoadRecord returns the drawdown record of one factor.
func (j *SQLite) LoadRecord(ctx context.Context, runID, factor string) (drawdown.Record, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT date, cumulative, peak, drawdown
		FROM drawdowns
		WHERE run_id = ? AND factor = ?
		ORDER BY date ASC`, runID, factor)
	if err != nil {
		return drawdown.Record{}, err
	}
	defer rows.Close()

	rec := drawdown.Record{Name: factor}
	for rows.Next() {
		var (
			d             string
			cum, peak, dd float64
		)
		if err := rows.Scan(&d, &cum, &peak, &dd); err != nil {
			return drawdown.Record{}, err
		}
		t, err := parseDate(d)
		if err != nil {
			return drawdown.Record{}, err
		}
		rec.Dates = append(rec.Dates, t)
		rec.Cumulative = append(rec.Cumulative, cum)
		rec.Peak = append(rec.Peak, peak)
		rec.Drawdown = append(rec.Drawdown, dd)
	}
	if err := rows.Err(); err != nil {
		return drawdown.Record{}, err
	}
	if rec.Len() == 0 {
		return drawdown.Record{}, fmt.Errorf("drawdown record %q: %w", factor, ErrNotFound)
	}
	return rec, nil
}

// LoadEpisodes returns the crash episodes of one factor in peak order. A
// factor without episodes yields an empty list.
func (j *SQLite) LoadEpisodes(ctx context.Context, runID, factor string) ([]drawdown.Episode, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT peak_date, breach_date, trough_date, recovery_date,
		       depth, duration, recovery_days, peak_value, trough_value
		FROM episodes
		WHERE run_id = ? AND factor = ?
		ORDER BY seq ASC`, runID, factor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []drawdown.Episode
	for rows.Next() {
		var (
			ep                   drawdown.Episode
			peak, breach, trough string
			recovery             sql.NullString
		)
		if err := rows.Scan(&peak, &breach, &trough, &recovery,
			&ep.Depth, &ep.Duration, &ep.RecoveryDays, &ep.PeakValue, &ep.TroughValue); err != nil {
			return nil, err
		}
		if ep.PeakDate, err = parseDate(peak); err != nil {
			return nil, err
		}
		if ep.BreachDate, err = parseDate(breach); err != nil {
			return nil, err
		}
		if ep.TroughDate, err = parseDate(trough); err != nil {
			return nil, err
		}
		if recovery.Valid {
			if ep.RecoveryDate, err = parseDate(recovery.String); err != nil {
				return nil, err
			}
			ep.Recovered = true
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

// LoadDataset returns the supervised table of one horizon.
func (j *SQLite) LoadDataset(ctx context.Context, runID string, horizon int) (*dataset.Dataset, error) {
	var (
		label, features string
		ds              = &dataset.Dataset{Horizon: horizon}
	)
	err := j.db.QueryRowContext(ctx, `
		SELECT label_mode, features, dropped_horizon, dropped_missing, no_forward
		FROM datasets
		WHERE run_id = ? AND horizon = ?`, runID, horizon).
		Scan(&label, &features, &ds.DroppedHorizon, &ds.DroppedMissing, &ds.NoForward)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset horizon %d: %w", horizon, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	ds.Label = dataset.LabelMode(label)
	if err := json.Unmarshal([]byte(features), &ds.Features); err != nil {
		return nil, fmt.Errorf("stored features: %w", err)
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT r.date, r.label, r.forward_return, r.regime, f.position, f.value
		FROM dataset_rows r
		JOIN dataset_features f
		  ON f.run_id = r.run_id AND f.horizon = r.horizon AND f.date = r.date
		WHERE r.run_id = ? AND r.horizon = ?
		ORDER BY r.date ASC, f.position ASC`, runID, horizon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			d, regime string
			lbl, pos  int
			fwd       sql.NullFloat64
			x         float64
		)
		if err := rows.Scan(&d, &lbl, &fwd, &regime, &pos, &x); err != nil {
			return nil, err
		}
		if pos == 0 {
			t, err := parseDate(d)
			if err != nil {
				return nil, err
			}
			ds.Rows = append(ds.Rows, dataset.Row{
				Date:          t,
				Features:      make([]float64, 0, len(ds.Features)),
				Label:         lbl != 0,
				ForwardReturn: fromNull(fwd),
				Regime:        dataset.Regime(regime),
			})
		}
		last := &ds.Rows[len(ds.Rows)-1]
		last.Features = append(last.Features, x)
	}
	return ds, rows.Err()
}

// LoadModel returns the fitted classifier of one horizon. A skipped
// classifier yields ErrNotFound.
func (j *SQLite) LoadModel(ctx context.Context, runID string, horizon int) (*model.Result, error) {
	var (
		m               = &model.Result{Horizon: horizon}
		fitAUC, holdAUC sql.NullFloat64
		mode            string
		fit, hold       string
		converged       int
	)
	err := j.db.QueryRowContext(ctx, `
		SELECT fit_auc, holdout_auc, tn, fp, fn, tp,
		       split_mode, seed, embargo, fit_rows, holdout_rows, iterations, converged
		FROM model_results
		WHERE run_id = ? AND horizon = ?`, runID, horizon).
		Scan(&fitAUC, &holdAUC, &m.Confusion.TN, &m.Confusion.FP, &m.Confusion.FN, &m.Confusion.TP,
			&mode, &m.Split.Seed, &m.Split.Embargo, &fit, &hold, &m.Iterations, &converged)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("model horizon %d: %w", horizon, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	m.FitAUC, m.HoldoutAUC = fromNull(fitAUC), fromNull(holdAUC)
	m.Split.Mode = model.SplitMode(mode)
	m.Converged = converged != 0
	if err := json.Unmarshal([]byte(fit), &m.Split.Fit); err != nil {
		return nil, fmt.Errorf("stored fit rows: %w", err)
	}
	if err := json.Unmarshal([]byte(hold), &m.Split.Holdout); err != nil {
		return nil, fmt.Errorf("stored holdout rows: %w", err)
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT name, value
		FROM coefficients
		WHERE run_id = ? AND horizon = ?
		ORDER BY position ASC`, runID, horizon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c model.Coefficient
		if err := rows.Scan(&c.Name, &c.Value); err != nil {
			return nil, err
		}
		m.Coefficients = append(m.Coefficients, c)
	}
	return m, rows.Err()
}

// LoadDeciles returns the decile analysis of one horizon.
func (j *SQLite) LoadDeciles(ctx context.Context, runID string, horizon int) ([]model.Decile, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT bucket, row_count, crowding_min, crowding_mean, crowding_max, forward_mean, forward_std
		FROM deciles
		WHERE run_id = ? AND horizon = ?
		ORDER BY bucket ASC`, runID, horizon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Decile
	for rows.Next() {
		var (
			d   model.Decile
			std sql.NullFloat64
		)
		if err := rows.Scan(&d.Bucket, &d.Count, &d.CrowdingMin, &d.CrowdingMean, &d.CrowdingMax, &d.ForwardMean, &std); err != nil {
			return nil, err
		}
		d.ForwardStd = fromNull(std)
		out = append(out, d)
	}
	return out, rows.Err()
}
