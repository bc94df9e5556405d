package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/reportsmith/internal/renderer"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stored templates",
	Long: `List the templates in the templates directory.

Examples:
  reportsmith list
  reportsmith list -o json
  reportsmith list -o yaml`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var listFlags *StandardFlags

func init() {
	rootCmd.AddCommand(listCmd)
	listFlags = AddStandardFlags(listCmd, "output")
}

// listEntry is the serialized form of one template.
type listEntry struct {
	Name        string    `json:"name" yaml:"name"`
	Title       string    `json:"title" yaml:"title"`
	Fingerprint string    `json:"fingerprint" yaml:"fingerprint"`
	ModTime     time.Time `json:"mod_time" yaml:"mod_time"`
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	records, err := a.engine.List()
	if err != nil {
		return err
	}

	if len(records) == 0 && listFlags.OutputFormat == "table" {
		fmt.Fprintln(cmd.OutOrStdout(), "No templates found.")
		return nil
	}

	entries := make([]listEntry, len(records))
	for i, record := range records {
		entries[i] = listEntry{
			Name:        record.Name,
			Title:       renderer.HumanizeName(record.Name),
			Fingerprint: record.Fingerprint,
			ModTime:     record.ModTime,
		}
	}

	return writeOutput(cmd.OutOrStdout(), listFlags.OutputFormat, entries, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "NAME\tTITLE\tFINGERPRINT\tMODIFIED")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Name, e.Title, e.Fingerprint, e.ModTime.Format(time.RFC3339))
		}
	})
}
