package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/crowding/config"
	"github.com/rustyeddy/crowding/internal/logger"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "crowding",
	Short: "Factor crowding indices and crash-risk analysis",
	Long: `Crowding builds crowding indices from an aligned daily table of factor
returns, instrument flows and market stress, and relates them to factor
crash risk.

It provides tools for:
  - Building flow, comovement and factor-side crowding proxies
  - Drawdown records, crash flags and crash episodes per factor
  - Supervised datasets over forward horizons
  - A baseline crash classifier and crowding decile analysis
  - Journaling runs to SQLite or CSV and Org-mode reports`,
	SilenceUsage: true,
}

var (
	cfgFile  string
	envFiles []string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext is Execute with a caller context.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); defaults apply when empty")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env", nil, ".env files to load before reading the environment (default .env)")
}

// loadConfig reads --config and the environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(cfgFile, envFiles...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (zerolog.Logger, io.Closer, error) {
	return logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}
