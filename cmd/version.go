package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/reportsmith/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		if versionShort {
			fmt.Fprintln(cmd.OutOrStdout(), info.Short())
			return nil
		}
		return writeOutput(cmd.OutOrStdout(), versionFlags.OutputFormat, info, func(w *tabwriter.Writer) {
			fmt.Fprintf(w, "Version:\t%s\n", info.Version)
			fmt.Fprintf(w, "Commit:\t%s\n", info.GitCommit)
			if !info.BuildTime.IsZero() {
				fmt.Fprintf(w, "Built:\t%s\n", info.BuildTime.Format(time.RFC3339))
			}
			fmt.Fprintf(w, "Go:\t%s\n", info.GoVersion)
			fmt.Fprintf(w, "Platform:\t%s\n", info.Platform)
		})
	},
}

var (
	versionFlags *StandardFlags
	versionShort bool
)

func init() {
	rootCmd.AddCommand(versionCmd)
	versionFlags = AddStandardFlags(versionCmd, "output")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version string")
}
