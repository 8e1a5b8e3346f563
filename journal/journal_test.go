package journal

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/crowding/config"
	"github.com/rustyeddy/crowding/pipeline"
	"github.com/rustyeddy/crowding/series"
	"github.com/stretchr/testify/require"
)

// runFixture runs the pipeline over a small synthetic table.
func runFixture(t *testing.T) *pipeline.Result {
	t.Helper()
	return runFixtureWith(t)
}

// runFixtureWith adds extra columns to the fixture table.
func runFixtureWith(t *testing.T, extra ...string) *pipeline.Result {
	t.Helper()

	rng := rand.New(rand.NewSource(3))
	n := 250
	dates := make([]time.Time, n)
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = base.AddDate(0, 0, i)
	}
	tbl, err := series.NewTable(dates)
	require.NoError(t, err)
	cols := []string{"Mkt-RF", "SMB", "HML", "Mom", "AAA_ret", "AAA_vol", "BBB_ret", "BBB_vol", "VIX"}
	for _, c := range append(cols, extra...) {
		scale, offset := 0.01, 0.0
		switch {
		case c == "VIX":
			scale, offset = 3, 20
		case strings.HasSuffix(c, "_vol"):
			scale, offset = 1e5, 1e6
		}
		vals := make([]series.Value, n)
		for i := range vals {
			vals[i] = series.Present(offset + scale*rng.NormFloat64())
		}
		// a gap so some points are stored as NULL
		if c == "AAA_ret" {
			vals[30] = series.Absent
		}
		require.NoError(t, tbl.AddColumn(c, vals))
	}

	cfg := config.Default()
	cfg.Data.Input = "fixture.csv"
	cfg.Crowding.ShortWindow = 10
	cfg.Crowding.MediumWindow = 20
	cfg.Crowding.LongWindow = 30
	cfg.Drawdown.CrashPercentile = 5
	cfg.Drawdown.DepthPct = 2
	cfg.Dataset.Horizons = []int{5}
	cfg.Dataset.ControlWindow = 10
	cfg.Model.Buckets = 4

	res, err := pipeline.Run(context.Background(), tbl, cfg, zerolog.Nop())
	require.NoError(t, err)
	return res
}
