package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/rustyeddy/crowding/journal"
	"github.com/rustyeddy/crowding/series"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Query journaled runs",
	Long: `Query runs stored in the SQLite journal.

Subcommands:
  list  - List every journaled run
  show  - Show the episodes, datasets and model results of one run

Examples:
  crowding runs list
  crowding runs show <run-id>`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journaled runs",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the model results of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsDBPath string

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)

	runsCmd.PersistentFlags().StringVarP(&runsDBPath, "db", "d", "", "path to SQLite journal DB (default journal.db_path)")
}

func openJournal() (*journal.SQLite, error) {
	path := runsDBPath
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Journal.DBPath
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runRunsList(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.ListRuns(cmd.Context())
	if err != nil {
		return fmt.Errorf("query runs: %w", err)
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tCREATED\tSOURCE\tSTART\tEND\tROWS\tWARNINGS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			r.RunID, r.Created.Format("2006-01-02 15:04"), r.Source,
			r.Start.Format(series.DateLayout), r.End.Format(series.DateLayout), r.Rows, len(r.Warnings))
	}
	return tw.Flush()
}

// journaledFactors lists the configured factors plus the target.
func journaledFactors(info journal.RunInfo) []string {
	out := append([]string(nil), info.Config.Crowding.Factors...)
	for _, f := range out {
		if f == info.Config.Dataset.Target {
			return out
		}
	}
	return append(out, info.Config.Dataset.Target)
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	ctx := cmd.Context()
	info, err := j.GetRun(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (%s, %s .. %s)\n", info.RunID, info.Source,
		info.Start.Format(series.DateLayout), info.End.Format(series.DateLayout))
	for _, f := range journaledFactors(info) {
		eps, err := j.LoadEpisodes(ctx, info.RunID, f)
		if err != nil {
			return fmt.Errorf("load episodes: %w", err)
		}
		if len(eps) > 0 {
			fmt.Fprintf(out, "  factor %s: %d episodes\n", f, len(eps))
		}
	}
	for _, h := range info.Config.Dataset.Horizons {
		ds, err := j.LoadDataset(ctx, info.RunID, h)
		if err != nil {
			fmt.Fprintf(out, "  horizon %d: no dataset (%v)\n", h, err)
			continue
		}
		fmt.Fprintf(out, "  horizon %d: %d rows, %d positives\n", h, ds.Len(), ds.Positives())

		if m, err := j.LoadModel(ctx, info.RunID, h); err != nil {
			fmt.Fprintf(out, "    no model (%v)\n", err)
		} else {
			fmt.Fprintf(out, "    fit AUC %.4f, holdout AUC %.4f, %s\n", m.FitAUC, m.HoldoutAUC, m.Split)
			for _, c := range m.Coefficients {
				fmt.Fprintf(out, "    %-28s %.6f\n", c.Name, c.Value)
			}
		}

		dec, err := j.LoadDeciles(ctx, info.RunID, h)
		if err != nil {
			return fmt.Errorf("load deciles: %w", err)
		}
		for _, d := range dec {
			fmt.Fprintf(out, "    decile %2d  n=%-5d forward mean %.6f\n", d.Bucket, d.Count, d.ForwardMean)
		}
	}
	for _, w := range info.Warnings {
		fmt.Fprintf(out, "  warning: %s\n", w)
	}
	return nil
}
