package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the crowding CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "crowding version %s\n", version)
		fmt.Fprintln(cmd.OutOrStdout(), "Factor crowding indices and crash-risk analysis")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
