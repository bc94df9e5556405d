// Package transform rewrites accepted JSX templates into plain script that
// the sandbox can evaluate.
package transform

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/reportsmith/internal/errors"
)

// AcquisitionStatement binds the markup library when a template omits it.
const AcquisitionStatement = `const React = require("react");`

// acquisition matches either the legacy require form or an ES module import.
var acquisition = regexp.MustCompile(
	`(?m)^\s*(?:const|let|var)\s+React\s*=\s*require\(\s*['"]react['"]\s*\)|^\s*import\s+(?:\*\s+as\s+)?React\b`,
)

// HasAcquisition reports whether source already binds React.
func HasAcquisition(source string) bool {
	return acquisition.MatchString(source)
}

// Compiled is an executable script produced from template source.
type Compiled struct {
	Name string
	// Script is CommonJS code using React.createElement and React.Fragment
	Script string
	// DiagnosticName appears in stack traces
	DiagnosticName string
	// InjectedAcquisition is true when the acquisition statement was added
	InjectedAcquisition bool
}

// Transformer compiles JSX templates with esbuild.
type Transformer struct {
	factory  string
	fragment string
	target   api.Target
}

// New creates a transformer emitting ES2015 CommonJS.
func New() *Transformer {
	return &Transformer{
		factory:  "React.createElement",
		fragment: "React.Fragment",
		target:   api.ES2015,
	}
}

// Compile desugars markup into element-construction calls. The stored
// source is never modified; a failure here leaves it untouched.
func (t *Transformer) Compile(ctx context.Context, name, source string) (*Compiled, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCompileError(name, "compilation cancelled", err)
	}

	diagnostic := name + ".jsx"
	injected := !HasAcquisition(source)

	opts := api.TransformOptions{
		Loader:      api.LoaderJSX,
		Format:      api.FormatCommonJS,
		Target:      t.target,
		JSXFactory:  t.factory,
		JSXFragment: t.fragment,
		Sourcefile:  diagnostic,
		LogLevel:    api.LogLevelSilent,
	}
	if injected {
		opts.Banner = AcquisitionStatement
	}

	result := api.Transform(source, opts)
	if len(result.Errors) > 0 {
		return nil, errors.NewCompileError(name, "markup transform failed", diagnostics(result.Errors))
	}

	return &Compiled{
		Name:                name,
		Script:              string(result.Code),
		DiagnosticName:      diagnostic,
		InjectedAcquisition: injected,
	}, nil
}

func diagnostics(msgs []api.Message) error {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			lines = append(lines, fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		lines = append(lines, m.Text)
	}
	return errors.New(strings.Join(lines, "\n"))
}
