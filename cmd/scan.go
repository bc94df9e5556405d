package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/reportsmith/internal/gate"
	"github.com/conneroisu/reportsmith/internal/types"
)

var scanCmd = &cobra.Command{
	Use:   "scan <file>",
	Short: "Scan a template without storing it",
	Long: `Run the structural and lexical scanners over a template candidate.
Nothing is stored. The exit code is 1 when either scanner reports a finding.

Examples:
  reportsmith scan report.jsx           # Table of findings
  reportsmith scan report.jsx -o json   # Full finding lists as JSON
  cat report.jsx | reportsmith scan -   # Read from stdin`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

var scanFlags *StandardFlags

func init() {
	rootCmd.AddCommand(scanCmd)
	scanFlags = AddStandardFlags(scanCmd, "output")
}

// scanOutput is the serialized form of a scan.
type scanOutput struct {
	Accepted   bool                `json:"accepted" yaml:"accepted"`
	Report     []types.ReportEntry `json:"report" yaml:"report"`
	Structural types.FindingList   `json:"structural" yaml:"structural"`
	Lexical    types.FindingList   `json:"lexical" yaml:"lexical"`
	ParseError string              `json:"parse_error,omitempty" yaml:"parse_error,omitempty"`
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	source, err := readSource(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	decision := a.engine.Scan(cmd.Context(), source)
	if !scanFlags.Quiet {
		if err := printDecision(cmd, decision, a.engine.ReportLimit()); err != nil {
			return err
		}
	}

	if !decision.Accepted() {
		return &exitError{code: 1}
	}
	return nil
}

func printDecision(cmd *cobra.Command, decision gate.Decision, limit int) error {
	out := scanOutput{
		Accepted:   decision.Accepted(),
		Report:     decision.Report(limit),
		Structural: decision.Structural,
		Lexical:    decision.Lexical,
	}
	if decision.ParseErr != nil {
		out.ParseError = decision.ParseErr.Error()
	}

	return writeOutput(cmd.OutOrStdout(), scanFlags.OutputFormat, out, func(w *tabwriter.Writer) {
		if out.Accepted {
			fmt.Fprintln(w, "ACCEPTED\tno findings")
			return
		}
		fmt.Fprintln(w, "SCANNER\tCATEGORY\tSEVERITY\tEXAMPLES")
		for _, list := range []struct {
			name     string
			findings types.FindingList
		}{{"structural", decision.Structural}, {"lexical", decision.Lexical}} {
			for _, f := range list.findings {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", list.name, f.Category, f.Severity, strings.Join(f.Examples, " | "))
			}
		}
	})
}
