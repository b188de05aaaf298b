package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/isdmx/coderun/config"
	"github.com/isdmx/coderun/observability"
	"github.com/isdmx/coderun/sandbox"
)

// Executor is what the server needs from the sandbox.
type Executor interface {
	sandbox.SandboxExecutor
	Languages() []string
}

// Server is the HTTP front end of the execution service.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	executor Executor
	metrics  *observability.Metrics
	mcp      http.Handler
	router   chi.Router
	http     *http.Server
	inflight atomic.Int64
}

// Option defines a functional option for Server
type Option func(*Server)

// WithMCPHandler mounts an MCP handler at /mcp
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) {
		s.mcp = h
	}
}

// New creates a new Server.
func New(cfg *config.Config, logger *zap.Logger, executor Executor, metrics *observability.Metrics, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		executor: executor,
		metrics:  metrics,
		router:   chi.NewRouter(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Post("/", s.handleRun)
	r.Post("/run", s.handleRun)
	r.Get("/languages", s.handleLanguages)
	r.Get("/healthz", s.handleHealth)

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	if s.mcp != nil {
		r.Handle("/mcp", s.mcp)
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the configured port and serves in the background. Bind errors
// are returned; later serve errors are logged.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.HTTPPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting HTTP server", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight
// executions to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	return s.http.Shutdown(ctx)
}
