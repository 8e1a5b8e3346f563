package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 63, cfg.Crowding.ShortWindow)
	assert.Equal(t, 126, cfg.Crowding.MediumWindow)
	assert.Equal(t, 252, cfg.Crowding.LongWindow)
	assert.Equal(t, 252, cfg.Crowding.WinsorizeWindow)
	assert.Equal(t, []string{"Mkt-RF", "SMB", "HML", "Mom"}, cfg.Crowding.Factors)
	assert.Equal(t, []int{5, 20}, cfg.Dataset.Horizons)
	assert.Equal(t, []string{"Mom", "Mkt-RF"}, cfg.Dataset.Tracked)
	assert.Equal(t, 1.0, cfg.Drawdown.CrashPercentile)
	assert.Equal(t, 5.0, cfg.Drawdown.DepthPct)
	assert.Equal(t, "historical", cfg.Drawdown.Method)
	assert.Equal(t, -1, cfg.Model.Embargo)
	assert.Equal(t, int64(42), cfg.Model.Seed)
	assert.Equal(t, 1e-8, cfg.Model.Tolerance)
	assert.Equal(t, "sqlite", cfg.Journal.Type)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromFileYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "crowding.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  input: master.csv
  start: "2010-01-01"
crowding:
  short_window: 21
  factors: [Mom]
dataset:
  horizons: [10]
  label: at
model:
  split: shuffled
  embargo: 0
`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "master.csv", cfg.Data.Input)
	assert.Equal(t, 21, cfg.Crowding.ShortWindow)
	// untouched fields keep their defaults
	assert.Equal(t, 126, cfg.Crowding.MediumWindow)
	assert.Equal(t, []string{"Mom"}, cfg.Crowding.Factors)
	assert.Equal(t, []int{10}, cfg.Dataset.Horizons)
	assert.Equal(t, "at", cfg.Dataset.Label)
	assert.Equal(t, "shuffled", cfg.Model.Split)
	assert.Equal(t, 0, cfg.Model.Embargo)

	start, err := cfg.Data.StartDate()
	require.NoError(t, err)
	assert.Equal(t, 2010, start.Year())
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := Default()
	cfg.Crowding.Instruments = []string{"MTUM", "QUAL"}
	cfg.Model.Features = []string{"crowding_index"}
	cfg.Journal.OrgPath = "run.org"

	for _, name := range []string{"c.yaml", "c.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, cfg.SaveToFile(path))
		got, err := LoadFromFile(path)
		require.NoError(t, err, name)
		assert.Equal(t, cfg, got, name)
	}
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mut  func(*Config)
		msg  string
	}{
		{"method", func(c *Config) { c.Drawdown.Method = "rolling" }, "Method must be one of: historical, stddev, volrel"},
		{"label", func(c *Config) { c.Dataset.Label = "maybe" }, "Label must be one of"},
		{"no horizons", func(c *Config) { c.Dataset.Horizons = nil }, "Horizons must be at least 1"},
		{"bad horizon", func(c *Config) { c.Dataset.Horizons = []int{5, 0} }, "Horizons[1] must be at least 1"},
		{"holdout", func(c *Config) { c.Model.HoldoutFraction = 1 }, "HoldoutFraction must be less than 1"},
		{"stress bands", func(c *Config) { c.Dataset.LowStressPercentile = 80 }, "LowStressPercentile must be less than HighStressPercentile"},
		{"windows", func(c *Config) { c.Crowding.ShortWindow = 300 }, "short <= medium <= long"},
		{"winsorize", func(c *Config) { c.Crowding.WinsorizeLower = 99 }, "winsorize_lower"},
		{"winsorize window", func(c *Config) { c.Crowding.WinsorizeWindow = -1 }, "WinsorizeWindow must be at least 0"},
		{"journal", func(c *Config) { c.Journal.DBPath = "" }, "db_path required"},
		{"input", func(c *Config) { c.Data.Input = "" }, "Input is required"},
		{"date", func(c *Config) { c.Data.Start = "01/02/2010" }, "Start must be a date"},
		{"range", func(c *Config) { c.Data.Start, c.Data.End = "2020-01-01", "2019-01-01" }, "data.end"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mut(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("crowding: [unclosed"), 0644))
	_, err = LoadFromFile(bad)
	assert.ErrorContains(t, err, "parse config")

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("model:\n  split: kfold\n"), 0644))
	_, err = LoadFromFile(invalid)
	assert.ErrorContains(t, err, "invalid config")
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FILE", "")

	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("CROWDING_DB="+filepath.Join(dir, "env.db")+"\n"), 0644))
	t.Cleanup(func() { _ = os.Unsetenv("CROWDING_DB") })

	cfg, err := LoadWithEnv("", env)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "stderr", cfg.Log.Output)
	assert.Equal(t, filepath.Join(dir, "env.db"), cfg.Journal.DBPath)

	// a missing .env file is not an error
	_, err = LoadWithEnv("", filepath.Join(dir, "absent.env"))
	require.NoError(t, err)
}
