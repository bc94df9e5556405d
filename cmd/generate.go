package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/reportsmith/internal/generate"
)

var generateCmd = &cobra.Command{
	Use:     "generate",
	Aliases: []string{"gen"},
	Short:   "Generate a template from a prompt",
	Long: `Ask the configured generation service for a report template.
The output is scanned before anything is written; a rejected result is
never stored.

Examples:
  reportsmith generate -p "A table of boxes sorted by utilization"
  reportsmith generate -p "Pie chart of box usage" --name usage-pie --model gpt-4o`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

var (
	generateFlags *StandardFlags
	generateReq   generate.Request
)

func init() {
	rootCmd.AddCommand(generateCmd)
	generateFlags = AddStandardFlags(generateCmd, "output")
	generateCmd.Flags().StringVarP(&generateReq.Prompt, "prompt", "p", "", "Description of the report to generate")
	generateCmd.Flags().StringVarP(&generateReq.Name, "name", "n", "", "Template name (default: generated-<id>)")
	generateCmd.Flags().StringVar(&generateReq.Model, "model", "", "Model override")
	generateCmd.Flags().String("endpoint", "", "Generation API base address")
	_ = generateCmd.MarkFlagRequired("prompt")

	bindFlags(generateCmd, map[string]string{"endpoint": "generation.endpoint"}, false)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(generateReq.Prompt) == "" {
		return fmt.Errorf("--prompt cannot be empty")
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	record, err := a.engine.Generate(cmd.Context(), generateReq)
	if err != nil {
		return err
	}

	if generateFlags.Quiet {
		return nil
	}
	return writeOutput(cmd.OutOrStdout(), generateFlags.OutputFormat, record, func(w *tabwriter.Writer) {
		fmt.Fprintf(w, "GENERATED\t%s\t%s\n", record.Name, record.Fingerprint)
	})
}
