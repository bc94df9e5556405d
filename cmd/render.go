package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/conneroisu/reportsmith/internal/types"
)

var renderCmd = &cobra.Command{
	Use:   "render <template>",
	Short: "Render a stored template to an HTML document",
	Long: `Render a stored template with a style table and a data payload.
Without --data or --data-file the configured data source is used.
A failing template still produces an error document; the exit code is 1.

Examples:
  reportsmith render usage-table --style light-01
  reportsmith render usage-table -d payload.yaml --out report.html
  reportsmith render usage-table --data '{"boxes": []}'`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

var (
	renderFlags *StandardFlags
	renderOut   string
)

func init() {
	rootCmd.AddCommand(renderCmd)
	renderFlags = AddStandardFlags(renderCmd, "render")
	renderCmd.Flags().StringVar(&renderOut, "out", "", "Write the document to a file instead of stdout")
}

func runRender(cmd *cobra.Command, args []string) error {
	if err := renderFlags.ValidateFlags(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	var doc string
	var renderErr error
	if renderFlags.HasData() {
		data, err := renderFlags.ParseData(appFs)
		if err != nil {
			return err
		}
		doc, renderErr = a.engine.RenderResult(cmd.Context(), types.RenderContext{
			TemplateName: args[0],
			StyleID:      renderFlags.Style,
			Data:         data,
		})
	} else {
		doc, _, renderErr = a.engine.RenderSession(cmd.Context(), args[0], renderFlags.Style, renderFlags.Session)
	}

	if renderOut != "" {
		if err := afero.WriteFile(appFs, renderOut, []byte(doc), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", renderOut, err)
		}
	} else {
		fmt.Fprint(cmd.OutOrStdout(), doc)
	}

	return renderErr
}
