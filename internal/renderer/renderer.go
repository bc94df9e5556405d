// Package renderer produces report documents from stored templates.
//
// A render re-reads the template from storage, compiles it, evaluates it in
// a fresh sandbox with the selected presentation object and data payload,
// serializes the resolved tree and wraps it in the document skeleton. Any
// failure along the way, including a Go panic, yields a self-contained error
// document instead, so rendering never fails.
package renderer

import (
	"bytes"
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/conneroisu/reportsmith/internal/errors"
	"github.com/conneroisu/reportsmith/internal/logging"
	"github.com/conneroisu/reportsmith/internal/markup"
	"github.com/conneroisu/reportsmith/internal/sandbox"
	"github.com/conneroisu/reportsmith/internal/transform"
	"github.com/conneroisu/reportsmith/internal/types"
)

// TemplateReader loads stored template source.
type TemplateReader interface {
	Read(name string) (*types.TemplateRecord, error)
}

// StyleResolver maps a style identifier to a presentation object. Unknown
// identifiers resolve to nil.
type StyleResolver interface {
	Resolve(id string) (map[string]interface{}, error)
}

// Config holds document settings.
type Config struct {
	// BaseURL replaces the [!MY_API_SRV] token in rendered markup
	BaseURL    string
	ScriptSrc  string
	Stylesheet string
	// Timeout bounds template execution; zero means no extra bound
	Timeout time.Duration
}

// ReportRenderer renders templates into HTML documents.
type ReportRenderer struct {
	templates   TemplateReader
	styles      StyleResolver
	transformer *transform.Transformer
	executor    *sandbox.Executor
	config      Config
	logger      logging.Logger
}

// NewReportRenderer creates a renderer.
func NewReportRenderer(templates TemplateReader, styles StyleResolver, executor *sandbox.Executor, config Config, logger logging.Logger) *ReportRenderer {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	if executor == nil {
		executor = sandbox.NewExecutor()
	}
	if config.Stylesheet == "" {
		config.Stylesheet = DefaultStylesheet
	}
	return &ReportRenderer{
		templates:   templates,
		styles:      styles,
		transformer: transform.New(),
		executor:    executor,
		config:      config,
		logger:      logger.WithComponent("renderer"),
	}
}

// Render produces a document for rc. It never fails: errors become an
// error document naming the template.
func (r *ReportRenderer) Render(ctx context.Context, rc types.RenderContext) string {
	doc, _ := r.RenderResult(ctx, rc)
	return doc
}

// RenderResult is Render that also reports the failure, if any, so
// transports can pick a status code. The document is always usable.
func (r *ReportRenderer) RenderResult(ctx context.Context, rc types.RenderContext) (string, error) {
	perf := logging.StartOperation(r.logger.With("template", rc.TemplateName, "style", rc.StyleID), "render")

	doc, err := r.render(ctx, rc)
	if err == nil {
		perf.End(ctx)
		return doc, nil
	}

	perf.EndWithError(ctx, err)
	return r.ErrorPage(ctx, rc.TemplateName, err), err
}

func (r *ReportRenderer) render(ctx context.Context, rc types.RenderContext) (doc string, err error) {
	name := rc.TemplateName
	defer func() {
		if p := recover(); p != nil {
			err = errors.NewRenderError(name, fmt.Sprintf("panic during render: %v", p), nil).
				WithContext("stack", string(debug.Stack()))
		}
	}()

	record, err := r.templates.Read(name)
	if err != nil {
		return "", err
	}

	var styles map[string]interface{}
	if r.styles != nil {
		styles, err = r.styles.Resolve(rc.StyleID)
		if err != nil {
			return "", err
		}
	}

	compiled, err := r.transformer.Compile(ctx, name, record.Source)
	if err != nil {
		return "", err
	}

	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	tree, err := r.executor.Run(ctx, compiled, sandbox.Env{Data: rc.Data, Styles: styles})
	if err != nil {
		return "", err
	}

	body, err := markup.RenderString(tree)
	if err != nil {
		return "", errors.NewRenderError(name, "serializing component tree", err)
	}
	body = ReplacePlaceholders(body, r.config.BaseURL)

	var buf bytes.Buffer
	page := Page{
		Title:      HumanizeName(name) + " - Report",
		Stylesheet: r.config.Stylesheet,
		ScriptSrc:  r.config.ScriptSrc,
		Body:       body,
	}
	if err := Document(page).Render(ctx, &buf); err != nil {
		return "", errors.NewRenderError(name, "writing document", err)
	}
	return buf.String(), nil
}

// ErrorPage renders the error document for a failure attributed to name.
// Callers use it for failures outside the render path, such as a data
// payload that could not be fetched.
func (r *ReportRenderer) ErrorPage(ctx context.Context, name string, cause error) string {
	r.logger.Error(ctx, cause, "Error rendering report", "template", name)

	failure := Failure{
		Template: name,
		Message:  errors.Message(cause),
		Trace:    traceOf(cause),
	}
	var buf bytes.Buffer
	if err := ErrorDocument(failure).Render(context.Background(), &buf); err != nil {
		return "<!DOCTYPE html><html><body><h1>Error Rendering Report</h1></body></html>"
	}
	return buf.String()
}

// traceOf prefers the script stack, then a recovered Go stack, then the
// full error chain.
func traceOf(err error) string {
	if trace := sandbox.Trace(err); trace != "" {
		return trace
	}
	var re *errors.ReportError
	if errors.As(err, &re) && re.Context != nil {
		if stack, ok := re.Context["stack"].(string); ok {
			return stack
		}
	}
	return errors.FormatError(err)
}
