package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/conneroisu/reportsmith/internal/config"
	"github.com/conneroisu/reportsmith/internal/engine"
	"github.com/conneroisu/reportsmith/internal/errors"
	"github.com/conneroisu/reportsmith/internal/gate"
	"github.com/conneroisu/reportsmith/internal/generate"
	"github.com/conneroisu/reportsmith/internal/logging"
	"github.com/conneroisu/reportsmith/internal/payload"
	"github.com/conneroisu/reportsmith/internal/renderer"
	"github.com/conneroisu/reportsmith/internal/store"
	"github.com/conneroisu/reportsmith/internal/styles"
)

// appFs backs every file the CLI touches; tests swap in a memory filesystem.
var appFs = afero.NewOsFs()

// exitError carries a process exit code without printing anything more.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// reportError prints err and returns the process exit code for it.
func reportError(w io.Writer, err error) int {
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}

	fmt.Fprintln(w, "Error:", errors.FormatError(err))
	if entries := gate.ReportOf(err); len(entries) > 0 {
		for _, entry := range entries {
			fmt.Fprintln(w, "  -", entry.String())
		}
	}
	return 1
}

// app holds what a command needs after configuration is loaded.
type app struct {
	config *config.Config
	logger logging.Logger
	engine *engine.Engine
}

// newApp loads configuration and builds the engine.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}

	e, err := buildEngine(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &app{config: cfg, logger: logger, engine: e}, nil
}

func newLogger(cfg config.LogConfig, out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.WrapConfig(err, "log level")
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: strings.ToLower(cfg.Format),
		Output: out,
	}), nil
}

// buildEngine wires storage, styles, the data source and the generation
// client from cfg.
func buildEngine(cfg *config.Config, logger logging.Logger) (*engine.Engine, error) {
	templateStore, err := store.NewFileStore(appFs, cfg.Templates.Dir)
	if err != nil {
		return nil, err
	}

	data, err := dataSource(cfg.Data)
	if err != nil {
		return nil, err
	}

	var generator engine.Generator
	if cfg.Generation.Endpoint != "" {
		generator = generate.NewClient(generate.Config{
			Endpoint: cfg.Generation.Endpoint,
			APIKey:   cfg.Generation.APIKey,
			Model:    cfg.Generation.Model,
			Timeout:  cfg.Generation.Timeout,
		}, nil)
	}

	return engine.New(engine.Options{
		Store:     templateStore,
		Styles:    styles.NewFileResolver(appFs, cfg.Styles.Dir),
		Data:      data,
		Generator: generator,
		Logger:    logger,
		Render: renderer.Config{
			BaseURL:   cfg.Render.BaseURL,
			ScriptSrc: cfg.Render.ScriptSrc,
			Timeout:   cfg.Render.Timeout,
		},
		FailOpen:         cfg.Scanner.FailOpen,
		ReportLimit:      cfg.Scanner.ReportLimit,
		MaxCallStackSize: cfg.Render.MaxCallStackSize,
	})
}

// dataSource prefers the upstream API, then a sample file, then the
// built-in sample.
func dataSource(cfg config.DataConfig) (payload.Source, error) {
	switch {
	case cfg.APIURL != "":
		return payload.NewHTTPSource(cfg.APIURL, cfg.APIKey), nil
	case cfg.SampleFile != "":
		return payload.LoadStaticSource(appFs, cfg.SampleFile)
	default:
		return payload.NewStaticSource(nil), nil
	}
}

// readSource reads a template candidate from path, or stdin for "-".
func readSource(in io.Reader, path string) (string, error) {
	if path == "-" {
		raw, err := io.ReadAll(in)
		if err != nil {
			return "", errors.WrapIO(err, "reading stdin")
		}
		return string(raw), nil
	}
	raw, err := afero.ReadFile(appFs, path)
	if err != nil {
		return "", errors.WrapIO(err, "reading "+path)
	}
	return string(raw), nil
}
