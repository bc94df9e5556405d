package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/reportsmith/internal/validation"
)

var admitCmd = &cobra.Command{
	Use:   "admit <file>",
	Short: "Scan a template and store it if accepted",
	Long: `Store a template in the templates directory after both scanners accept it.
A rejected candidate is deleted and the first findings are printed.

Examples:
  reportsmith admit usage-table.jsx
  reportsmith admit draft.jsx --name monthly-usage`,
	Args: cobra.ExactArgs(1),
	RunE: runAdmit,
}

var (
	admitFlags *StandardFlags
	admitName  string
)

func init() {
	rootCmd.AddCommand(admitCmd)
	admitFlags = AddStandardFlags(admitCmd, "output")
	admitCmd.Flags().StringVarP(&admitName, "name", "n", "", "Template name (default: file name without .jsx)")
}

func runAdmit(cmd *cobra.Command, args []string) error {
	name := admitName
	if name == "" {
		derived, err := validation.TemplateNameFromFile(args[0])
		if err != nil {
			return err
		}
		name = derived
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	source, err := readSource(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	record, err := a.engine.Admit(cmd.Context(), name, source)
	if err != nil {
		return err
	}

	if admitFlags.Quiet {
		return nil
	}
	return writeOutput(cmd.OutOrStdout(), admitFlags.OutputFormat, record, func(w *tabwriter.Writer) {
		fmt.Fprintf(w, "ADMITTED\t%s\t%s\n", record.Name, record.Fingerprint)
	})
}
