// Package scanner provides the two independent static admission scanners
// for JSX component templates.
//
// The structural scanner parses the template (JavaScript plus JSX) into a
// syntax tree and walks every node looking for dangerous constructs. The
// lexical scanner applies an ordered list of textual pattern rules to the
// raw source and works even when the source cannot be parsed. Both are pure
// functions of the source text: scanning identical text twice yields
// identical findings.
package scanner

import (
	"context"

	"github.com/conneroisu/reportsmith/internal/types"
)

// Scanner inspects template source text.
// Implementations must not retain or mutate the input.
type Scanner interface {
	// Name returns a human-readable identifier for logging.
	Name() string

	// Scan inspects source and returns its findings.
	Scan(ctx context.Context, source string) Result
}

// Result is the outcome of a single scanner pass.
type Result struct {
	ScannerName string
	Findings    types.FindingList
	// ParseErr is set when the structural scanner could not build a tree.
	// Whether that produced a finding depends on the fail-open setting.
	ParseErr error
}

// Clean reports whether the pass produced no findings.
func (r Result) Clean() bool {
	return len(r.Findings) == 0
}

const maxSnippetLen = 80

// truncate shortens a snippet to maxSnippetLen runes and collapses whitespace.
func truncate(s string) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || r == ' ' {
			if space {
				continue
			}
			space = true
			r = ' '
		} else {
			space = false
		}
		out = append(out, r)
		if len(out) >= maxSnippetLen {
			return string(out) + "..."
		}
	}
	return string(out)
}
