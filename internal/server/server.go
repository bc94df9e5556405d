// Package server exposes the report pipeline over HTTP: report listing and
// rendering, template upload, scan, generation and management, a websocket
// stream of template events and the embedded client script.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/reportsmith/internal/config"
	"github.com/conneroisu/reportsmith/internal/engine"
	"github.com/conneroisu/reportsmith/internal/errors"
	"github.com/conneroisu/reportsmith/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// ReportServer serves rendered reports and template management.
type ReportServer struct {
	config     config.ServerConfig
	engine     *engine.Engine
	logger     logging.Logger
	limiter    *RateLimiter
	hub        *hub
	httpServer *http.Server

	serverMutex sync.Mutex
}

// New creates a report server over e.
func New(cfg config.ServerConfig, e *engine.Engine, logger logging.Logger) *ReportServer {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	logger = logger.WithComponent("server")

	s := &ReportServer{
		config: cfg,
		engine: e,
		logger: logger,
		hub:    newHub(logger),
	}
	if cfg.RateLimit > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimit, burstFor(cfg.RateLimit))
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *ReportServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /js/report.js", s.handleScript)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("GET /api/reports/list", s.handleList)
	mux.HandleFunc("GET /api/reports/render/{template}/{style}", s.handleRenderSession)
	mux.HandleFunc("GET /api/reports/render/{template}/{style}/{session}", s.handleRenderSession)
	mux.HandleFunc("POST /api/reports/render/{template}/{style}", s.handleRenderPayload)

	mux.HandleFunc("POST /api/templates", s.handleUpload)
	mux.HandleFunc("POST /api/templates/scan", s.handleScan)
	mux.HandleFunc("POST /api/templates/generate", s.handleGenerate)
	mux.HandleFunc("DELETE /api/templates/{name}", s.handleDelete)
	mux.HandleFunc("POST /api/templates/{name}/rename", s.handleRename)

	mux.HandleFunc("/", s.handleNotFound)

	var handler http.Handler = mux
	if s.limiter != nil {
		handler = s.rateLimit(handler)
	}
	handler = s.cors(handler)
	return s.requestID(handler)
}

// Start serves until ctx is cancelled or the listener fails.
func (s *ReportServer) Start(ctx context.Context) error {
	events := s.engine.Registry().Watch()
	go s.hub.run(ctx, events)

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Report server listening", "address", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.engine.Registry().UnWatch(events)
		if err != nil && err != http.ErrServerClosed {
			return errors.WrapIO(err, "serving "+server.Addr)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := s.Shutdown(shutdownCtx)
		s.engine.Registry().UnWatch(events)
		return err
	}
}

// Shutdown gracefully stops the HTTP server and closes websocket clients.
func (s *ReportServer) Shutdown(ctx context.Context) error {
	s.hub.closeAll(websocket.StatusGoingAway, "server shutting down")
	if s.limiter != nil {
		s.limiter.Stop()
	}

	s.serverMutex.Lock()
	server := s.httpServer
	s.serverMutex.Unlock()
	if server == nil {
		return nil
	}

	s.logger.Info(ctx, "Shutting down report server")
	if err := server.Shutdown(ctx); err != nil {
		return errors.WrapInternal(err, "shutting down server")
	}
	return nil
}
