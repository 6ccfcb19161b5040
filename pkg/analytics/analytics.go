// Package analytics defines page-view events and the trackers that receive
// them.
package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PageView is emitted for every completed navigation.
type PageView struct {
	// PageName is the matched route's display name, "" when nothing matched.
	PageName string `json:"pageName,omitempty"`

	// Path is the path and query string.
	Path string `json:"path"`

	// Referrer is the previous path and query, "" on first load.
	Referrer string `json:"referrer,omitempty"`

	Params map[string]string `json:"params,omitempty"`

	// IsFirst marks the view produced by the initial page load. Tools that
	// count the first view on their own skip it.
	IsFirst bool `json:"isFirst"`
}

// Tracker receives page views.
type Tracker interface {
	TrackPageview(ctx context.Context, pv PageView)
}

// TrackerFunc adapts a function to Tracker.
type TrackerFunc func(ctx context.Context, pv PageView)

// TrackPageview implements Tracker.
func (f TrackerFunc) TrackPageview(ctx context.Context, pv PageView) { f(ctx, pv) }

// Nop discards page views.
var Nop Tracker = TrackerFunc(func(context.Context, PageView) {})

// Multi fans page views out to several trackers in order.
func Multi(trackers ...Tracker) Tracker {
	return TrackerFunc(func(ctx context.Context, pv PageView) {
		for _, t := range trackers {
			if t != nil {
				t.TrackPageview(ctx, pv)
			}
		}
	})
}

// Logger logs page views at info level.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a logging tracker. A nil logger uses slog.Default.
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger.With("component", "analytics")}
}

// TrackPageview implements Tracker.
func (l *Logger) TrackPageview(ctx context.Context, pv PageView) {
	attrs := []any{"path", pv.Path, "first", pv.IsFirst}
	if pv.PageName != "" {
		attrs = append(attrs, "page", pv.PageName)
	}
	if pv.Referrer != "" {
		attrs = append(attrs, "referrer", pv.Referrer)
	}
	if len(pv.Params) > 0 {
		params, _ := json.Marshal(pv.Params)
		attrs = append(attrs, "params", string(params))
	}
	l.logger.InfoContext(ctx, "page view", attrs...)
}

// Counter counts page views in Prometheus. The initial view is skipped
// because the server render already counts it.
type Counter struct {
	views *prometheus.CounterVec
}

// NewCounter registers a page view counter on reg.
func NewCounter(reg prometheus.Registerer) *Counter {
	return &Counter{
		views: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "splitroute",
			Name:      "client_page_views_total",
			Help:      "Page views produced by client navigations",
		}, []string{"page"}),
	}
}

// TrackPageview implements Tracker.
func (c *Counter) TrackPageview(_ context.Context, pv PageView) {
	if pv.IsFirst {
		return
	}
	name := pv.PageName
	if name == "" {
		name = "unmatched"
	}
	c.views.WithLabelValues(name).Inc()
}

// Recorder keeps page views in memory.
type Recorder struct {
	mu    sync.Mutex
	views []PageView
}

// TrackPageview implements Tracker.
func (r *Recorder) TrackPageview(_ context.Context, pv PageView) {
	r.mu.Lock()
	r.views = append(r.views, pv)
	r.mu.Unlock()
}

// Views returns a copy of the recorded views.
func (r *Recorder) Views() []PageView {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PageView, len(r.views))
	copy(out, r.views)
	return out
}
