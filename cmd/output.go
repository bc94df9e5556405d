package cmd

import (
	"encoding/json"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// writeOutput encodes v as JSON or YAML, or calls table for the default
// human-readable form.
func writeOutput(w io.Writer, format string, v interface{}, table func(*tabwriter.Writer)) error {
	switch strings.ToLower(format) {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(v)
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}
}
