// Package metrics exposes Prometheus metrics for page loading, navigation
// and rendering.
//
// A nil *Collector is valid and records nothing, so components can take an
// optional collector without checking.
//
// Metrics collected:
//   - splitroute_page_loads_total: page module fetches by module and result
//   - splitroute_page_load_duration_seconds: page module fetch duration
//   - splitroute_navigations_total: history navigations by outcome
//   - splitroute_loading_sessions: sessions currently waiting on a page module
//   - splitroute_live_sessions: open live sessions
//   - splitroute_page_views_total: page views by page name
//   - splitroute_renders_total: server renders by status code
//   - splitroute_render_duration_seconds: server render duration
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures a Collector.
type Config struct {
	// Namespace is the metrics namespace (default: "splitroute").
	Namespace string

	// ConstLabels are added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets (default: prometheus.DefBuckets).
	Buckets []float64

	// Registry is where metrics are registered
	// (default: prometheus.DefaultRegisterer).
	Registry prometheus.Registerer
}

// Option configures a Collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) { c.Namespace = namespace }
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) { c.ConstLabels = labels }
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) { c.Buckets = buckets }
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) { c.Registry = registry }
}

// Collector holds the metrics.
type Collector struct {
	pageLoads       *prometheus.CounterVec
	pageLoadSeconds *prometheus.HistogramVec
	navigations     *prometheus.CounterVec
	loadingSessions prometheus.Gauge
	liveSessions    prometheus.Gauge
	pageViews       *prometheus.CounterVec
	renders         *prometheus.CounterVec
	renderSeconds   prometheus.Histogram
}

// New registers a collector's metrics.
func New(opts ...Option) *Collector {
	config := Config{
		Namespace: "splitroute",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Collector{
		pageLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "page_loads_total",
			Help:        "Total number of page module fetches",
			ConstLabels: config.ConstLabels,
		}, []string{"module", "result"}),

		pageLoadSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "page_load_duration_seconds",
			Help:        "Page module fetch duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"module"}),

		navigations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "navigations_total",
			Help:        "Total number of history navigations by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),

		loadingSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "loading_sessions",
			Help:        "Number of sessions waiting on a page module",
			ConstLabels: config.ConstLabels,
		}),

		liveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "live_sessions",
			Help:        "Number of open live sessions",
			ConstLabels: config.ConstLabels,
		}),

		pageViews: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "page_views_total",
			Help:        "Total number of page views by page name",
			ConstLabels: config.ConstLabels,
		}, []string{"page"}),

		renders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "renders_total",
			Help:        "Total number of server renders by status code",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		renderSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "render_duration_seconds",
			Help:        "Server render duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),
	}
}

// ObserveLoad records a page module fetch.
func (c *Collector) ObserveLoad(module string, d time.Duration, err error) {
	if c == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	c.pageLoads.WithLabelValues(module, result).Inc()
	c.pageLoadSeconds.WithLabelValues(module).Observe(d.Seconds())
}

// ObserveNavigation records a navigation outcome.
func (c *Collector) ObserveNavigation(outcome string) {
	if c == nil {
		return
	}
	c.navigations.WithLabelValues(outcome).Inc()
}

// LoadingChanged tracks a session entering or leaving the loading state.
func (c *Collector) LoadingChanged(loading bool) {
	if c == nil {
		return
	}
	if loading {
		c.loadingSessions.Inc()
	} else {
		c.loadingSessions.Dec()
	}
}

// SessionOpened records a new live session.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.liveSessions.Inc()
}

// SessionClosed records a closed live session.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.liveSessions.Dec()
}

// ObservePageView records a page view.
func (c *Collector) ObservePageView(page string) {
	if c == nil {
		return
	}
	if page == "" {
		page = "unmatched"
	}
	c.pageViews.WithLabelValues(page).Inc()
}

// ObserveRender records a server render.
func (c *Collector) ObserveRender(status int, d time.Duration) {
	if c == nil {
		return
	}
	c.renders.WithLabelValues(strconv.Itoa(status)).Inc()
	c.renderSeconds.Observe(d.Seconds())
}
