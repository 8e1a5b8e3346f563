package cmd

import (
	"fmt"

	"github.com/rustyeddy/crowding/journal"
	"github.com/rustyeddy/crowding/pipeline"
	"github.com/rustyeddy/crowding/report"
	"github.com/rustyeddy/crowding/series"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full crowding pipeline",
	Long: `Load the aligned master table, build the crowding indices, analyze
factor drawdowns, fit the crash classifier for every horizon and journal
the results.

Example:
  crowding run -c crowding.yaml
  crowding run --input data/processed/master.csv --start 2005-01-01 --journal csv`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	runInput   string
	runStart   string
	runEnd     string
	runJournal string
	runOrg     string
	runQuiet   bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "override data.input")
	runCmd.Flags().StringVar(&runStart, "start", "", "override data.start (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&runEnd, "end", "", "override data.end (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&runJournal, "journal", "", "override journal.type (sqlite, csv, none)")
	runCmd.Flags().StringVar(&runOrg, "org", "", "write an Org-mode report to this path")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "do not print the run summary")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runInput != "" {
		cfg.Data.Input = runInput
	}
	if runStart != "" {
		cfg.Data.Start = runStart
	}
	if runEnd != "" {
		cfg.Data.End = runEnd
	}
	if runJournal != "" {
		cfg.Journal.Type = runJournal
	}
	if runOrg != "" {
		cfg.Journal.OrgPath = runOrg
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, closer, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	tbl, err := series.LoadCSV(cfg.Data.Input)
	if err != nil {
		return fmt.Errorf("load input: %w", err)
	}

	res, err := pipeline.Run(cmd.Context(), tbl, cfg, log)
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	j, err := journal.Open(cfg.Journal)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()
	if err := j.SaveRun(cmd.Context(), res); err != nil {
		return fmt.Errorf("journal run: %w", err)
	}

	if cfg.Journal.OrgPath != "" {
		if err := report.WriteOrg(cfg.Journal.OrgPath, res); err != nil {
			return fmt.Errorf("write org report: %w", err)
		}
	}

	if !runQuiet {
		return report.PrintRun(cmd.OutOrStdout(), res)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.RunID)
	return nil
}
