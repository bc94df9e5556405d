// Package engine wires the admission gate, storage, registry and renderer
// into the operations exposed by the CLI and HTTP server.
package engine

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/conneroisu/reportsmith/internal/errors"
	"github.com/conneroisu/reportsmith/internal/gate"
	"github.com/conneroisu/reportsmith/internal/generate"
	"github.com/conneroisu/reportsmith/internal/logging"
	"github.com/conneroisu/reportsmith/internal/payload"
	"github.com/conneroisu/reportsmith/internal/registry"
	"github.com/conneroisu/reportsmith/internal/renderer"
	"github.com/conneroisu/reportsmith/internal/sandbox"
	"github.com/conneroisu/reportsmith/internal/scanner"
	"github.com/conneroisu/reportsmith/internal/store"
	"github.com/conneroisu/reportsmith/internal/styles"
	"github.com/conneroisu/reportsmith/internal/types"
	"github.com/conneroisu/reportsmith/internal/validation"
)

// Generator produces template source from a prompt.
type Generator interface {
	Generate(ctx context.Context, req generate.Request) (*generate.Result, error)
}

// Options configures an Engine. Store is required; everything else has a
// usable default.
type Options struct {
	Store     store.TemplateStore
	Styles    styles.Resolver
	Data      payload.Source
	Generator Generator
	Registry  *registry.TemplateRegistry
	Logger    logging.Logger

	Render           renderer.Config
	FailOpen         bool
	ReportLimit      int
	MaxCallStackSize int
}

// Engine is the report pipeline.
type Engine struct {
	store       store.TemplateStore
	data        payload.Source
	generator   Generator
	registry    *registry.TemplateRegistry
	gate        *gate.Gate
	admitter    *gate.Admitter
	renderer    *renderer.ReportRenderer
	admitted    *admissions
	reportLimit int
	logger      logging.Logger
}

// New builds an engine from opts.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.NewConfigError("engine requires a template store")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger{}
	}
	if opts.Registry == nil {
		opts.Registry = registry.NewTemplateRegistry()
	}
	if opts.Data == nil {
		opts.Data = payload.NewStaticSource(nil)
	}
	if opts.ReportLimit <= 0 {
		opts.ReportLimit = gate.DefaultReportLimit
	}

	g := gate.New(
		scanner.NewStructuralScanner(scanner.WithFailOpen(opts.FailOpen)),
		scanner.NewLexicalScanner(),
		logger,
	)

	execOpts := []sandbox.Option{sandbox.WithLogger(logger)}
	if opts.MaxCallStackSize > 0 {
		execOpts = append(execOpts, sandbox.WithMaxCallStackSize(opts.MaxCallStackSize))
	}

	e := &Engine{
		store:       opts.Store,
		data:        opts.Data,
		generator:   opts.Generator,
		registry:    opts.Registry,
		gate:        g,
		admitter:    gate.NewAdmitter(g, opts.Store, logger),
		admitted:    newAdmissions(),
		reportLimit: opts.ReportLimit,
		logger:      logger.WithComponent("engine"),
	}
	e.renderer = renderer.NewReportRenderer(gatedReader{e: e}, opts.Styles, sandbox.NewExecutor(execOpts...), opts.Render, logger)
	return e, nil
}

// Registry returns the template registry events are published on.
func (e *Engine) Registry() *registry.TemplateRegistry { return e.registry }

// ReportLimit is the number of entries shown to callers on rejection.
func (e *Engine) ReportLimit() int { return e.reportLimit }

// Scan runs both scanners without touching storage.
func (e *Engine) Scan(ctx context.Context, source string) gate.Decision {
	return e.gate.Evaluate(ctx, source)
}

// Admit stores source under name if both scanners accept it. A rejected
// candidate is never written, so whatever was stored under name stays, and
// the returned error carries the report.
func (e *Engine) Admit(ctx context.Context, name, source string) (*types.TemplateRecord, error) {
	if err := validation.ValidateTemplateName(name); err != nil {
		return nil, err
	}

	record, decision, err := e.admitter.Admit(ctx, name, source)
	if err != nil {
		if errors.IsScanRejection(err) {
			e.registry.Reject(name, decision.Report(e.reportLimit))
		}
		return nil, err
	}

	e.admitted.accept(record.Name, record.Fingerprint)
	e.registry.Register(record)
	return record, nil
}

// Render produces a report document. It never fails. Stored content the
// gate has not accepted is gated first and, if rejected, deleted without
// running.
func (e *Engine) Render(ctx context.Context, rc types.RenderContext) string {
	return e.renderer.Render(ctx, rc)
}

// RenderResult is Render that also reports the failure, if any.
func (e *Engine) RenderResult(ctx context.Context, rc types.RenderContext) (string, error) {
	return e.renderer.RenderResult(ctx, rc)
}

// RenderSession fetches the payload for session from the data source and
// renders with it. A fetch failure yields an error document.
func (e *Engine) RenderSession(ctx context.Context, name, styleID, session string) (string, interface{}, error) {
	data, err := e.data.Fetch(ctx, session)
	if err != nil {
		e.logger.Warn(ctx, err, "Fetching report data failed", "template", name)
		return e.renderer.ErrorPage(ctx, name, err), nil, err
	}

	doc, err := e.renderer.RenderResult(ctx, types.RenderContext{
		TemplateName: name,
		StyleID:      styleID,
		Data:         data,
	})
	return doc, data, err
}

// Generate asks the generator for a template, scans the raw output before
// anything is stored, then admits it, which scans it again.
func (e *Engine) Generate(ctx context.Context, req generate.Request) (*types.TemplateRecord, error) {
	if e.generator == nil {
		return nil, errors.NewConfigError("no generation service configured")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "generated-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
	}
	if err := validation.ValidateTemplateName(name); err != nil {
		return nil, err
	}

	result, err := e.generator.Generate(ctx, req)
	if err != nil {
		e.logger.Error(ctx, err, "Template generation failed", "template", name)
		return nil, err
	}

	decision := e.gate.Evaluate(ctx, result.Source)
	if !decision.Accepted() {
		report := decision.Report(e.reportLimit)
		details := map[string]interface{}{
			"template":            name,
			"model":               result.Model,
			"structural_findings": len(decision.Structural),
			"lexical_findings":    len(decision.Lexical),
		}
		for i, entry := range report {
			details["finding_"+strconv.Itoa(i+1)] = entry.String()
		}
		logging.LogSecurityEvent(e.logger, ctx, "generated_template_rejected", details)
		e.registry.Reject(name, report)
		return nil, decision.Rejection(name)
	}

	return e.Admit(ctx, name, result.Source)
}

// List returns the stored templates and resynchronizes the registry.
func (e *Engine) List() ([]*types.TemplateRecord, error) {
	records, err := e.store.List()
	if err != nil {
		return nil, err
	}
	e.registry.Sync(records)
	return records, nil
}

// Delete removes a template.
func (e *Engine) Delete(name string) error {
	if err := e.store.Delete(name); err != nil {
		return err
	}
	e.admitted.forget(name)
	e.registry.Remove(name)
	return nil
}

// Rename moves a template to a new name. The content was accepted when it
// was stored and is not rescanned.
func (e *Engine) Rename(from, to string) (*types.TemplateRecord, error) {
	record, err := e.store.Rename(from, to)
	if err != nil {
		return nil, err
	}
	e.admitted.rename(from, record.Name)
	e.registry.Rename(from, record)
	return record, nil
}

// RevalidateAll gates every stored template, deleting those either scanner
// rejects, and returns the rejected names. The registry is resynchronized
// with what remains.
func (e *Engine) RevalidateAll(ctx context.Context) ([]string, error) {
	records, err := e.store.List()
	if err != nil {
		return nil, err
	}

	var rejected []string
	for _, record := range records {
		if _, err := e.Revalidate(ctx, record.Name); err != nil {
			if errors.IsScanRejection(err) {
				rejected = append(rejected, record.Name)
				continue
			}
			return rejected, err
		}
	}

	if _, err := e.List(); err != nil {
		return rejected, err
	}
	return rejected, nil
}

// Revalidate gates a template that reached storage without passing through
// Admit, such as a file dropped into the templates directory. Rejected
// files are deleted.
func (e *Engine) Revalidate(ctx context.Context, name string) (*types.TemplateRecord, error) {
	record, err := e.store.Read(name)
	if err != nil {
		return nil, err
	}

	if err := e.gateStored(ctx, record, "filesystem"); err != nil {
		return nil, err
	}
	return record, nil
}
