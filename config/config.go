package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete pipeline configuration
type Config struct {
	Data     DataConfig     `json:"data" yaml:"data"`
	Crowding CrowdingConfig `json:"crowding" yaml:"crowding"`
	Drawdown DrawdownConfig `json:"drawdown" yaml:"drawdown"`
	Dataset  DatasetConfig  `json:"dataset" yaml:"dataset"`
	Model    ModelConfig    `json:"model" yaml:"model"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// DataConfig names the aligned master table and an optional date range
type DataConfig struct {
	Input string `json:"input" yaml:"input" default:"data/processed/master.csv" validate:"required"`
	Start string `json:"start,omitempty" yaml:"start,omitempty" validate:"omitempty,datetime=2006-01-02"`
	End   string `json:"end,omitempty" yaml:"end,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// CrowdingConfig contains proxy and composite parameters. Windows are
// trading days.
type CrowdingConfig struct {
	ShortWindow         int      `json:"short_window" yaml:"short_window" default:"63" validate:"gte=2"`
	MediumWindow        int      `json:"medium_window" yaml:"medium_window" default:"126" validate:"gte=2"`
	LongWindow          int      `json:"long_window" yaml:"long_window" default:"252" validate:"gte=2"`
	SmoothingWindow     int      `json:"smoothing_window" yaml:"smoothing_window" default:"5" validate:"gte=1"`
	WinsorizeLower      float64  `json:"winsorize_lower" yaml:"winsorize_lower" default:"1" validate:"gte=0,lt=100"`
	WinsorizeUpper      float64  `json:"winsorize_upper" yaml:"winsorize_upper" default:"99" validate:"gt=0,lte=100"`
	WinsorizeWindow     int      `json:"winsorize_window" yaml:"winsorize_window" default:"252" validate:"gte=0"`
	CrashFreqPercentile float64  `json:"crash_freq_percentile" yaml:"crash_freq_percentile" default:"5" validate:"gt=0,lt=100"`
	ReturnSuffix        string   `json:"return_suffix" yaml:"return_suffix" default:"_ret" validate:"required"`
	VolumeSuffix        string   `json:"volume_suffix" yaml:"volume_suffix" default:"_vol" validate:"required"`
	Instruments         []string `json:"instruments,omitempty" yaml:"instruments,omitempty"`
	Factors             []string `json:"factors" yaml:"factors" default:"[\"Mkt-RF\",\"SMB\",\"HML\",\"Mom\"]"`
	StressColumn        string   `json:"stress_column" yaml:"stress_column" default:"VIX"`
}

// DrawdownConfig contains crash flag and episode parameters
type DrawdownConfig struct {
	DepthPct        float64 `json:"depth_pct" yaml:"depth_pct" default:"5" validate:"gt=0,lt=100"`
	CrashPercentile float64 `json:"crash_percentile" yaml:"crash_percentile" default:"1" validate:"gt=0,lt=100"`
	Method          string  `json:"method" yaml:"method" default:"historical" validate:"oneof=historical stddev volrel"`
	MinHistory      int     `json:"min_history" yaml:"min_history" default:"20" validate:"gte=1"`
	Lookback        int     `json:"lookback" yaml:"lookback" validate:"gte=0"`
	DailyHorizon    int     `json:"daily_horizon" yaml:"daily_horizon" default:"1" validate:"gte=1"`
	WeeklyHorizon   int     `json:"weekly_horizon" yaml:"weekly_horizon" default:"5" validate:"gte=1"`
}

// DatasetConfig contains supervised table parameters
type DatasetConfig struct {
	Horizons             []int    `json:"horizons" yaml:"horizons" default:"[5,20]" validate:"min=1,dive,gte=1"`
	Label                string   `json:"label" yaml:"label" default:"any" validate:"oneof=any at"`
	Target               string   `json:"target" yaml:"target" default:"Mom" validate:"required"`
	Tracked              []string `json:"tracked" yaml:"tracked" default:"[\"Mom\",\"Mkt-RF\"]"`
	ControlWindow        int      `json:"control_window" yaml:"control_window" default:"20" validate:"gte=2"`
	HighStressPercentile float64  `json:"high_stress_percentile" yaml:"high_stress_percentile" default:"75" validate:"gt=0,lt=100"`
	LowStressPercentile  float64  `json:"low_stress_percentile" yaml:"low_stress_percentile" default:"25" validate:"gt=0,lt=100,ltfield=HighStressPercentile"`
}

// ModelConfig contains classifier and decile parameters
type ModelConfig struct {
	HoldoutFraction float64 `json:"holdout_fraction" yaml:"holdout_fraction" default:"0.2" validate:"gt=0,lt=1"`
	Seed            int64   `json:"seed" yaml:"seed" default:"42"`
	Split           string  `json:"split" yaml:"split" default:"chronological" validate:"oneof=chronological shuffled"`
	// Embargo < 0 means one forward horizon.
	Embargo     int      `json:"embargo" yaml:"embargo" default:"-1"`
	ClassWeight string   `json:"class_weight" yaml:"class_weight" default:"balanced" validate:"oneof=none balanced"`
	Features    []string `json:"features,omitempty" yaml:"features,omitempty"`
	MaxIter     int      `json:"max_iter" yaml:"max_iter" default:"100" validate:"gte=1"`
	Tolerance   float64  `json:"tolerance" yaml:"tolerance" default:"1e-8" validate:"gt=0"`
	Ridge       float64  `json:"ridge" yaml:"ridge" default:"1e-6" validate:"gte=0"`
	Buckets     int      `json:"buckets" yaml:"buckets" default:"10" validate:"gte=1"`
}

// JournalConfig contains result persistence parameters
type JournalConfig struct {
	Type   string `json:"type" yaml:"type" default:"sqlite" validate:"oneof=sqlite csv none"` // "sqlite", "csv" or "none"
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty" default:"results/crowding.db"`
	CSVDir string `json:"csv_dir,omitempty" yaml:"csv_dir,omitempty" default:"results/csv"`
	// OrgPath, when set, receives an Org-mode run report.
	OrgPath string `json:"org_path,omitempty" yaml:"org_path,omitempty"`
}

// LogConfig contains logger parameters
type LogConfig struct {
	Level  string `json:"level" yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Format string `json:"format" yaml:"format" default:"console" validate:"oneof=console json"`
	// Output is "stdout", "stderr" or a file path.
	Output string `json:"output" yaml:"output" default:"stderr" validate:"required"`
}

var validate = validator.New()

// LoadFromFile loads configuration from a file (JSON or YAML based on extension)
func LoadFromFile(path string) (*Config, error) {
	cfg, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadWithEnv loads path (or the defaults when path is empty), then applies
// overrides from the environment and an optional .env file. LOG_LEVEL,
// LOG_FILE and CROWDING_DB are honored.
func LoadWithEnv(path string, envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = parseFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		c.Log.Output = v
	}
	if v := os.Getenv("CROWDING_DB"); v != "" {
		c.Journal.DBPath = v
	}
}

func parseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	// Determine format by extension
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	cr := c.Crowding
	if cr.ShortWindow > cr.MediumWindow || cr.MediumWindow > cr.LongWindow {
		return fmt.Errorf("crowding windows must satisfy short <= medium <= long")
	}
	if cr.WinsorizeLower >= cr.WinsorizeUpper {
		return fmt.Errorf("crowding.winsorize_lower must be below winsorize_upper")
	}
	if c.Journal.Type == "sqlite" && c.Journal.DBPath == "" {
		return fmt.Errorf("journal db_path required for SQLite type")
	}
	if c.Journal.Type == "csv" && c.Journal.CSVDir == "" {
		return fmt.Errorf("journal csv_dir required for CSV type")
	}
	start, err := c.Data.StartDate()
	if err != nil {
		return err
	}
	end, err := c.Data.EndDate()
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return fmt.Errorf("data.end must not be before data.start")
	}
	return nil
}

// StartDate parses Start; the zero time means unbounded.
func (d DataConfig) StartDate() (time.Time, error) {
	return parseDate("data.start", d.Start)
}

// EndDate parses End; the zero time means unbounded.
func (d DataConfig) EndDate() (time.Time, error) {
	return parseDate("data.end", d.End)
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", field, err)
	}
	return t, nil
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "ltfield":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a date like %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		// The default tags are static; a failure is a programming error.
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}
