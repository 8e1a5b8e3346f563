// journal/journal.go
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/crowding/config"
	"github.com/rustyeddy/crowding/pipeline"
	"github.com/rustyeddy/crowding/series"
)

// ErrNotFound is returned by loaders when the requested record is absent.
var ErrNotFound = errors.New("not found")

// Kind classifies the dated series stored in series_points.
type Kind string

const (
	KindComposite  Kind = "composite"
	KindComponent  Kind = "component"
	KindPair       Kind = "pair"
	KindDailyFlag  Kind = "daily_flag"
	KindWeeklyFlag Kind = "weekly_flag"
)

// RunInfo is the runs row of one pipeline run.
type RunInfo struct {
	RunID    string
	Created  time.Time
	Source   string
	Start    time.Time
	End      time.Time
	Rows     int
	Config   *config.Config
	Warnings []string
}

// Journal persists pipeline results.
type Journal interface {
	SaveRun(ctx context.Context, res *pipeline.Result) error
	Close() error
}

// Open returns the journal selected by cfg.Type.
func Open(cfg config.JournalConfig) (Journal, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLite(cfg.DBPath)
	case "csv":
		return NewCSV(cfg.CSVDir)
	case "none", "":
		return nop{}, nil
	default:
		return nil, fmt.Errorf("unknown journal type %q", cfg.Type)
	}
}

type nop struct{}

func (nop) SaveRun(context.Context, *pipeline.Result) error { return nil }
func (nop) Close() error                                    { return nil }

// nullFloat maps NaN to NULL.
func nullFloat(x float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: x, Valid: !math.IsNaN(x)}
}

func fromNull(n sql.NullFloat64) float64 {
	if !n.Valid {
		return math.NaN()
	}
	return n.Float64
}

func nullValue(v series.Value) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v.X, Valid: v.OK}
}

func nullDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(series.DateLayout), Valid: true}
}

func date(t time.Time) string {
	return t.Format(series.DateLayout)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(series.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("stored date %q: %w", s, err)
	}
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
