package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/splitroute/pkg/assets"
	"github.com/vango-dev/splitroute/pkg/live"
	"github.com/vango-dev/splitroute/pkg/metrics"
	"github.com/vango-dev/splitroute/pkg/routes"
)

// Server serves page renders, the API, static files and live sessions.
type Server struct {
	config   Config
	table    *routes.Table
	newShell live.ShellFactory
	scripts  assets.Resolver
	live     *live.Handler
	liveOpts []live.HandlerOption
	metrics  *metrics.Collector
	gatherer prometheus.Gatherer
	tracer   trace.Tracer
	logger   *slog.Logger
	layout   *Layout

	router     chi.Router
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithConfig sets the server settings.
func WithConfig(c Config) Option {
	return func(s *Server) { s.config = c }
}

// WithScripts resolves page chunks to script tags.
func WithScripts(r assets.Resolver) Option {
	return func(s *Server) { s.scripts = r }
}

// WithMetrics records render metrics into c and serves g at /metrics.
func WithMetrics(c *metrics.Collector, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = c
		s.gatherer = g
	}
}

// WithLiveOptions passes options to the live handler.
func WithLiveOptions(opts ...live.HandlerOption) Option {
	return func(s *Server) { s.liveOpts = append(s.liveOpts, opts...) }
}

// WithTracer sets the tracer for page renders.
func WithTracer(t trace.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// WithLayout replaces the default HTML document layout.
func WithLayout(l *Layout) Option {
	return func(s *Server) { s.layout = l }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New creates a server for table. newShell builds the shell of every page
// request and every live session.
func New(table *routes.Table, newShell live.ShellFactory, opts ...Option) *Server {
	s := &Server{
		config:   DefaultConfig(),
		table:    table,
		newShell: newShell,
		tracer:   otel.Tracer("splitroute/server"),
		logger:   slog.Default().With("component", "server"),
		layout:   DefaultLayout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.config = s.config.withDefaults()

	liveOpts := []live.HandlerOption{live.WithMetrics(s.metrics)}
	if s.scripts != nil {
		liveOpts = append(liveOpts, live.WithScripts(s.scripts))
	}
	s.live = live.NewHandler(table, newShell, append(liveOpts, s.liveOpts...)...)

	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.recoverer)

	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Handle(s.config.LivePath, s.live)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NoCache)
		r.Get("/echo/{str}", s.handleEcho)
		r.NotFound(s.handleAPINotFound)
		r.MethodNotAllowed(s.handleAPINotFound)
	})

	if s.config.StaticDir != "" {
		static := &staticHandler{
			fs:     http.Dir(s.config.StaticDir),
			prefix: s.config.StaticPrefix,
			dev:    s.config.Dev,
		}
		r.Handle(s.config.StaticPrefix+"*", static)
	}

	r.Get("/*", s.handlePage)
	r.Head("/*", s.handlePage)
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Live returns the live session handler.
func (s *Server) Live() *live.Handler { return s.live }

// Config returns the effective settings.
func (s *Server) Config() Config { return s.config }

// Run listens on the configured address until ctx is done or the process
// receives SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Address, "ssr", s.config.SSR)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
		return s.Shutdown(context.Background())
	}
}

// Shutdown closes live sessions and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	// Hijacked connections are not tracked by http.Server.
	s.live.Close()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}
	s.logger.Info("server shutdown complete")
	return nil
}
