// Package splitroute wires a complete application: configuration, logging,
// page module storage, the route table, metrics and the HTTP server.
//
// Create an App from a loaded configuration:
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app, err := splitroute.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Close()
//	log.Fatal(app.Run(ctx))
package splitroute

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vango-dev/splitroute/app/pages"
	"github.com/vango-dev/splitroute/internal/config"
	"github.com/vango-dev/splitroute/internal/logging"
	"github.com/vango-dev/splitroute/pkg/analytics"
	"github.com/vango-dev/splitroute/pkg/assets"
	"github.com/vango-dev/splitroute/pkg/head"
	"github.com/vango-dev/splitroute/pkg/live"
	"github.com/vango-dev/splitroute/pkg/loader"
	"github.com/vango-dev/splitroute/pkg/metrics"
	"github.com/vango-dev/splitroute/pkg/routes"
	"github.com/vango-dev/splitroute/pkg/server"
	"github.com/vango-dev/splitroute/pkg/shell"
	"github.com/vango-dev/splitroute/pkg/store"
)

// StaticPrefix is where the static directory and page chunks are served.
const StaticPrefix = "/public/"

// App is the application entry point. It is an http.Handler.
type App struct {
	config   *config.Config
	logger   *slog.Logger
	closeLog func() error

	source   assets.Source
	table    *routes.Table
	registry *prometheus.Registry
	metrics  *metrics.Collector
	server   *server.Server
}

type options struct {
	logger   *slog.Logger
	source   assets.Source
	registry *prometheus.Registry
	tracker  analytics.Tracker
	site     pages.Site
	extra    []routes.Entry
	hooks    []shell.InitHook
}

// Option configures New.
type Option func(*options)

// WithLogger uses logger instead of building one from the configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithSource reads page modules and manifests from src instead of the
// configured directory or bucket.
func WithSource(src assets.Source) Option {
	return func(o *options) { o.source = src }
}

// WithRegistry registers metrics in reg.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithTracker adds a page view tracker next to the log and metrics trackers.
func WithTracker(t analytics.Tracker) Option {
	return func(o *options) { o.tracker = t }
}

// WithAdmin sets the name and email shown in the page footer.
func WithAdmin(name, email string) Option {
	return func(o *options) {
		o.site.AdminName = name
		o.site.AdminEmail = email
	}
}

// WithRoutes adds entries before the catch-all.
func WithRoutes(entries ...routes.Entry) Option {
	return func(o *options) { o.extra = append(o.extra, entries...) }
}

// WithInit runs hook in every shell before its store is created.
func WithInit(hook shell.InitHook) Option {
	return func(o *options) { o.hooks = append(o.hooks, hook) }
}

// New builds the application described by cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{config: cfg, closeLog: func() error { return nil }}
	if err := a.initLogger(o.logger); err != nil {
		return nil, err
	}

	a.registry = o.registry
	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	a.metrics = metrics.New(metrics.WithRegistry(a.registry))

	a.source = o.source
	if a.source == nil {
		a.source = NewSource(cfg)
	}

	loaderOpts := []loader.Option{
		loader.WithObserver(a.metrics),
		loader.WithLogger(a.logger.With("component", "loader")),
	}
	extra := o.extra
	if cfg.Assets.Routes != "" {
		manifest, err := assets.LoadRouteManifest(ctx, a.source, cfg.Assets.Routes)
		if err != nil {
			a.Close()
			return nil, err
		}
		extra = append(extra, manifest.Entries(a.source, loaderOpts...)...)
	}

	site := o.site
	site.Name = cfg.Site.Name
	table, err := routes.New(pages.Entries(site, extra, loaderOpts...)...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.table = table

	scripts := assets.NewPassthroughResolver(StaticPrefix)
	if cfg.Assets.Manifest != "" {
		m, err := assets.LoadManifest(ctx, a.source, cfg.Assets.Manifest)
		if err != nil {
			a.Close()
			return nil, err
		}
		scripts = assets.NewResolver(m, StaticPrefix)
	}

	trackers := []analytics.Tracker{
		analytics.NewLogger(a.logger.With("component", "analytics")),
		analytics.NewCounter(a.registry),
	}
	if o.tracker != nil {
		trackers = append(trackers, o.tracker)
	}

	headSite := head.Site{
		Name:         cfg.Site.Name,
		Tagline:      cfg.Site.Tagline,
		Description:  cfg.Site.Description,
		LinkHost:     cfg.Web.LinkHost,
		FacebookPage: cfg.Site.FacebookPage,
	}
	newShell := func(ctx context.Context, snap store.Snapshot, more ...shell.Option) (*shell.Shell, error) {
		base := []shell.Option{
			shell.WithSnapshot(snap),
			shell.WithSite(headSite),
			shell.WithTracker(analytics.Multi(trackers...)),
			shell.WithMetrics(a.metrics),
			shell.WithLogger(a.logger.With("component", "shell")),
		}
		for _, hook := range o.hooks {
			base = append(base, shell.WithInit(hook))
		}
		return shell.New(ctx, a.table, append(base, more...)...)
	}

	a.server = server.New(a.table, newShell,
		server.WithConfig(server.Config{
			Address:         cfg.Address(),
			Dev:             !cfg.IsProduction(),
			SSR:             cfg.ShouldServerSideRender(),
			Env:             cfg.Env,
			StaticDir:       cfg.ResolvePath(cfg.Web.StaticDir),
			StaticPrefix:    StaticPrefix,
			LoadTimeout:     cfg.LoadTimeout(),
			ProgressSeconds: cfg.Progress.Seconds,
			ShutdownTimeout: cfg.ShutdownTimeout(),
		}),
		server.WithScripts(scripts),
		server.WithMetrics(a.metrics, a.registry),
		server.WithLogger(a.logger.With("component", "server")),
		server.WithLiveOptions(
			live.WithLogger(a.logger.With("component", "live")),
			live.WithConfig(live.Config{
				ReadTimeout:     cfg.LiveReadTimeout(),
				LoadTimeout:     cfg.LoadTimeout(),
				QueueSize:       cfg.Live.QueueSize,
				ProgressSeconds: cfg.Progress.Seconds,
			}),
		),
	)
	return a, nil
}

func (a *App) initLogger(logger *slog.Logger) error {
	if logger != nil {
		a.logger = logger
		return nil
	}
	opts := logging.Options{Level: a.config.Log.Level}
	if a.config.IsProduction() {
		opts.JSON = true
		opts.Path = a.config.ResolvePath(a.config.Log.Path)
	}
	logger, closeLog, err := logging.New(opts)
	if err != nil {
		return err
	}
	a.logger = logger
	a.closeLog = closeLog
	return nil
}

// NewSource returns the page module source the configuration names.
func NewSource(cfg *config.Config) assets.Source {
	if cfg.Assets.Source == config.SourceS3 {
		client := assets.NewS3Client(assets.S3Config{
			Region:   cfg.Assets.Region,
			Endpoint: cfg.Assets.Endpoint,
		})
		return assets.NewS3Source(client, cfg.Assets.Bucket, cfg.Assets.Prefix)
	}
	return assets.DirSource{Root: cfg.ResolvePath(cfg.Assets.Dir)}
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.server.ServeHTTP(w, r)
}

// Run serves until ctx is done or the process is signalled.
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx)
}

// Shutdown stops the server gracefully.
func (a *App) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

// Close releases the log file.
func (a *App) Close() error {
	return a.closeLog()
}

// Table returns the route table.
func (a *App) Table() *routes.Table { return a.table }

// Server returns the HTTP server.
func (a *App) Server() *server.Server { return a.server }

// Config returns the configuration.
func (a *App) Config() *config.Config { return a.config }

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Registry returns the metrics registry.
func (a *App) Registry() *prometheus.Registry { return a.registry }
