package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/rustyeddy/crowding/drawdown"
	"github.com/rustyeddy/crowding/pipeline"
	"github.com/rustyeddy/crowding/series"
	"github.com/spf13/cobra"
)

var episodesCmd = &cobra.Command{
	Use:   "episodes [factor...]",
	Short: "List crash episodes of factors in the input table",
	Long: `Compute drawdown records from the input table and list the crash
episodes deeper than drawdown.depth_pct. Without arguments every configured
factor present in the table is listed.

Example:
  crowding episodes Mom HML --depth 10`,
	RunE: runEpisodes,
}

var (
	episodesInput string
	episodesDepth float64
)

func init() {
	rootCmd.AddCommand(episodesCmd)

	episodesCmd.Flags().StringVarP(&episodesInput, "input", "i", "", "override data.input")
	episodesCmd.Flags().Float64Var(&episodesDepth, "depth", 0, "override drawdown.depth_pct")
}

func runEpisodes(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if episodesInput != "" {
		cfg.Data.Input = episodesInput
	}
	if episodesDepth > 0 {
		cfg.Drawdown.DepthPct = episodesDepth
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	opts, err := pipeline.DrawdownOptions(cfg)
	if err != nil {
		return err
	}

	tbl, err := series.LoadCSV(cfg.Data.Input)
	if err != nil {
		return fmt.Errorf("load input: %w", err)
	}
	start, _ := cfg.Data.StartDate()
	end, _ := cfg.Data.EndDate()
	tbl = tbl.Between(start, end)

	names := args
	if len(names) == 0 {
		names = cfg.Crowding.Factors
	}
	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FACTOR\tPEAK\tTROUGH\tRECOVERY\tDEPTH %\tDAYS\tRECOVERY DAYS")
	for _, name := range names {
		s, ok := tbl.Series(name)
		if !ok {
			if len(args) > 0 {
				return fmt.Errorf("factor %q not in %s", name, cfg.Data.Input)
			}
			continue
		}
		eps, err := drawdown.Episodes(drawdown.Compute(s), opts.Depth)
		if err != nil {
			return err
		}
		for _, ep := range eps {
			recovery := "open"
			if ep.Recovered {
				recovery = ep.RecoveryDate.Format(series.DateLayout)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%d\t%d\n",
				name, ep.PeakDate.Format(series.DateLayout), ep.TroughDate.Format(series.DateLayout),
				recovery, ep.Depth*100, ep.Duration, ep.RecoveryDays)
		}
	}
	return tw.Flush()
}
