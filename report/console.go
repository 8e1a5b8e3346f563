package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rustyeddy/crowding/pipeline"
)

// PrintRun writes a console summary of res.
func PrintRun(w io.Writer, res *pipeline.Result) error {
	v := NewRun(res)
	fmt.Fprintf(w, "Run %s\n", v.RunID)
	fmt.Fprintf(w, "  Source:   %s\n", v.Source)
	fmt.Fprintf(w, "  Range:    %s .. %s (%d rows)\n", v.Start.Format("2006-01-02"), v.End.Format("2006-01-02"), v.Rows)
	fmt.Fprintf(w, "  Families: %v\n\n", v.Families)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FACTOR\tMAX DD %\tDAILY\tWEEKLY\tEPISODES\tUNRESOLVED")
	for _, f := range v.Factors {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n",
			f.Factor, num(f.MaxDrawdown*100), f.DailyCrashes, f.WeeklyCrashes, f.Episodes, f.Unresolved)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, h := range v.Horizons {
		fmt.Fprintf(w, "\nHorizon %d: %d rows, %d positives\n", h.Horizon, h.Rows, h.Positives)
		if h.Skipped {
			fmt.Fprintln(w, "  classifier skipped")
		} else {
			fmt.Fprintf(w, "  AUC fit=%s holdout=%s  %s\n", num(h.Model.FitAUC), num(h.Model.HoldoutAUC), h.Model.Split)
			fmt.Fprintf(w, "  latest p=%s at %s\n", num(h.Latest), h.LatestDate.Format("2006-01-02"))
			for _, c := range h.Model.Coefficients {
				fmt.Fprintf(w, "    %-28s %s\n", c.Name, num(c.Value))
			}
		}
		for _, d := range h.Deciles {
			fmt.Fprintf(w, "  decile %2d  n=%-5d crowding=%s forward=%s\n", d.Bucket, d.Count, num(d.CrowdingMean), num(d.ForwardMean))
		}
	}

	if len(v.Warnings) > 0 {
		fmt.Fprintf(w, "\n%d warnings:\n", len(v.Warnings))
		for _, msg := range v.Warnings {
			fmt.Fprintf(w, "  - %s\n", msg)
		}
	}
	return nil
}
