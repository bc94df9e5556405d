package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/reportsmith/internal/server"
	"github.com/conneroisu/reportsmith/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the report server",
	Long: `Start the HTTP report server. Stored templates are rescanned at startup
and, unless watching is disabled, files dropped into the templates directory
are scanned as they appear. Rejected files are deleted.

Examples:
  reportsmith serve
  reportsmith serve --port 8080 --host 0.0.0.0
  reportsmith serve --no-watch`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 3000, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().Bool("no-watch", false, "Do not watch the templates directory")
	AddFlagValidation(serveCmd, "port", ValidatePort)

	bindFlags(serveCmd, map[string]string{
		"port": "server.port",
		"host": "server.host",
	}, false)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rejected, err := a.engine.RevalidateAll(ctx)
	if err != nil {
		return err
	}
	a.logger.Info(ctx, "Templates loaded",
		"count", a.engine.Registry().Count(),
		"rejected", len(rejected))

	noWatch, _ := cmd.Flags().GetBool("no-watch")
	if a.config.Templates.Watch && !noWatch {
		fw, err := startWatcher(ctx, a)
		if err != nil {
			return err
		}
		defer fw.Stop()
	}

	return server.New(a.config.Server, a.engine, a.logger).Start(ctx)
}

func startWatcher(ctx context.Context, a *app) (*watcher.FileWatcher, error) {
	fw, err := watcher.NewFileWatcher(a.config.Templates.Debounce, a.logger)
	if err != nil {
		return nil, err
	}
	fw.AddFilter(watcher.TemplateFilter)
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddHandler(a.engine.FileChangeHandler(ctx))

	if err := fw.AddPath(a.config.Templates.Dir); err != nil {
		_ = fw.Stop()
		return nil, err
	}
	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return nil, err
	}
	a.logger.Info(ctx, "Watching templates", "dir", a.config.Templates.Dir)
	return fw, nil
}
