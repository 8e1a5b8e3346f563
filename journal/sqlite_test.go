package journal

import (
	"context"
	"database/sql"
	"math"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/crowding/crowding"
	"github.com/rustyeddy/crowding/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "test.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	return j, path
}

// assertSameSeries ignores the payload of absent values.
func assertSameSeries(t *testing.T, want, got series.Series) {
	t.Helper()
	assert.Equal(t, want.Name, got.Name)
	require.Equal(t, want.Dates, got.Dates)
	for i, v := range want.Values {
		assert.Equal(t, v.OK, got.Values[i].OK, "point %d", i)
		if v.OK {
			assert.Equal(t, v.X, got.Values[i].X, "point %d", i)
		}
	}
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table'`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	for _, name := range []string{
		"runs", "series_points", "drawdowns", "episodes", "datasets",
		"dataset_rows", "dataset_features", "coefficients", "model_results", "deciles",
	} {
		assert.True(t, found[name], name)
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	t.Parallel()

	res := runFixture(t)
	j, _ := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, j.SaveRun(ctx, res))

	info, err := j.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, info.RunID)
	assert.True(t, res.Created.Equal(info.Created))
	assert.Equal(t, res.Source, info.Source)
	assert.Equal(t, res.Start, info.Start)
	assert.Equal(t, res.End, info.End)
	assert.Equal(t, res.Rows, info.Rows)
	assert.Equal(t, res.Config, info.Config)
	assert.Equal(t, len(res.Warnings), len(info.Warnings))

	// crowding series, absent points included
	names, err := j.SeriesNames(ctx, res.RunID, KindComposite)
	require.NoError(t, err)
	want := make([]string, len(res.Crowding.Composites))
	for i, s := range res.Crowding.Composites {
		want[i] = s.Name
	}
	assert.Equal(t, want, names)

	idx := res.Crowding.Index()
	got, err := j.LoadSeries(ctx, res.RunID, KindComposite, crowding.AllIndex)
	require.NoError(t, err)
	assertSameSeries(t, idx, got)

	pair := res.Crowding.Pairs[0]
	gotPair, err := j.LoadSeries(ctx, res.RunID, KindPair, pair.Name)
	require.NoError(t, err)
	assertSameSeries(t, pair, gotPair)
	assert.Less(t, gotPair.Count(), gotPair.Len())

	for _, a := range res.Factors {
		rec, err := j.LoadRecord(ctx, res.RunID, a.Factor)
		require.NoError(t, err)
		assert.Equal(t, a.Record, rec)

		daily, err := j.LoadFlags(ctx, res.RunID, KindDailyFlag, a.Factor)
		require.NoError(t, err)
		assert.Equal(t, a.Daily, daily)

		weekly, err := j.LoadFlags(ctx, res.RunID, KindWeeklyFlag, a.Factor)
		require.NoError(t, err)
		assert.Equal(t, a.Weekly, weekly)

		eps, err := j.LoadEpisodes(ctx, res.RunID, a.Factor)
		require.NoError(t, err)
		assert.Equal(t, len(a.Episodes), len(eps))
		if len(a.Episodes) > 0 {
			assert.Equal(t, a.Episodes, eps)
		}
	}

	hr := res.Horizons[0]
	ds, err := j.LoadDataset(ctx, res.RunID, hr.Horizon)
	require.NoError(t, err)
	assert.Equal(t, hr.Dataset, ds)

	require.NotNil(t, hr.Model)
	m, err := j.LoadModel(ctx, res.RunID, hr.Horizon)
	require.NoError(t, err)
	assert.Equal(t, hr.Model.Coefficients, m.Coefficients)
	assert.Equal(t, hr.Model.Split, m.Split)
	assert.Equal(t, hr.Model.Confusion, m.Confusion)
	assert.Equal(t, hr.Model.Iterations, m.Iterations)
	assert.Equal(t, hr.Model.Converged, m.Converged)
	assert.Equal(t, hr.Model.FitAUC, m.FitAUC)

	dec, err := j.LoadDeciles(ctx, res.RunID, hr.Horizon)
	require.NoError(t, err)
	assert.Equal(t, hr.Deciles, dec)

	runs, err := j.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].RunID)
}

func TestSQLiteNotFound(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()

	_, err := j.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = j.LoadSeries(ctx, "missing", KindComposite, crowding.AllIndex)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = j.LoadRecord(ctx, "missing", "Mom")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = j.LoadDataset(ctx, "missing", 5)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = j.LoadModel(ctx, "missing", 5)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = j.LoadFlags(ctx, "missing", KindPair, "Mom")
	assert.Error(t, err)

	eps, err := j.LoadEpisodes(ctx, "missing", "Mom")
	require.NoError(t, err)
	assert.Empty(t, eps)
}

func TestSQLiteDuplicateRunRollsBack(t *testing.T) {
	t.Parallel()

	res := runFixture(t)
	j, path := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, j.SaveRun(ctx, res))
	assert.Error(t, j.SaveRun(ctx, res))

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSQLiteComponentNamesShareAcrossFamilies(t *testing.T) {
	t.Parallel()

	// instrument Mom and factor Mom both yield Mom_vol_zscore
	res := runFixtureWith(t, "Mom_ret", "Mom_vol")
	byFamily := map[crowding.Family]crowding.Component{}
	for _, fam := range []crowding.Family{crowding.FlowAttention, crowding.FactorSide} {
		for _, c := range res.Crowding.Components[fam] {
			if c.Name == "Mom_vol_zscore" {
				byFamily[fam] = c
			}
		}
	}
	require.Len(t, byFamily, 2)

	j, _ := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, j.SaveRun(ctx, res))

	for fam, c := range byFamily {
		got, err := j.LoadComponent(ctx, res.RunID, fam, c.Name)
		require.NoError(t, err, fam)
		assertSameSeries(t, c.Series, got)
	}
	first, err := j.LoadSeries(ctx, res.RunID, KindComponent, "Mom_vol_zscore")
	require.NoError(t, err)
	assertSameSeries(t, byFamily[crowding.FlowAttention].Series, first)

	_, err = j.LoadComponent(ctx, res.RunID, crowding.Comovement, "Mom_vol_zscore")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteUndefinedForwardReturn(t *testing.T) {
	t.Parallel()

	res := runFixture(t)
	ds := res.Horizons[0].Dataset
	ds.Rows[0].ForwardReturn = math.NaN()
	ds.NoForward = 1

	j, _ := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, j.SaveRun(ctx, res))

	got, err := j.LoadDataset(ctx, res.RunID, ds.Horizon)
	require.NoError(t, err)
	assert.Equal(t, 1, got.NoForward)
	require.Equal(t, ds.Len(), got.Len())
	assert.True(t, math.IsNaN(got.Rows[0].ForwardReturn))
	assert.Equal(t, ds.Rows[0].Features, got.Rows[0].Features)
	assert.Equal(t, ds.Rows[1:], got.Rows[1:])
}
