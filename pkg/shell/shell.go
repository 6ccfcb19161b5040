// Package shell is the router shell: the per-client composition root that
// owns the store, follows a history adapter, tracks the loading flag and
// renders head, progress bar and page content.
//
// The same Shell type serves the first HTTP response and every later live
// navigation, so both paths render identical markup for a location.
package shell

import (
	"bytes"
	"context"
	"log/slog"
	"sync"

	"github.com/a-h/templ"
	"go.uber.org/atomic"

	"github.com/vango-dev/splitroute/internal/errors"
	"github.com/vango-dev/splitroute/pkg/analytics"
	"github.com/vango-dev/splitroute/pkg/head"
	"github.com/vango-dev/splitroute/pkg/history"
	"github.com/vango-dev/splitroute/pkg/metrics"
	"github.com/vango-dev/splitroute/pkg/page"
	"github.com/vango-dev/splitroute/pkg/progress"
	"github.com/vango-dev/splitroute/pkg/routes"
	"github.com/vango-dev/splitroute/pkg/store"
)

// InitHook runs once before the store is created.
type InitHook func(ctx context.Context) error

// Option configures a Shell.
type Option func(*Shell)

// WithInit adds an init hook. Hooks run in order.
func WithInit(hook InitHook) Option {
	return func(s *Shell) { s.hooks = append(s.hooks, hook) }
}

// WithSnapshot sets the initial store state.
func WithSnapshot(snap store.Snapshot) Option {
	return func(s *Shell) { s.snapshot = snap }
}

// WithStoreFactory overrides how the store is built from the snapshot.
func WithStoreFactory(fn func(store.Snapshot) *store.Store) Option {
	return func(s *Shell) { s.newStore = fn }
}

// WithTracker sets the page view tracker.
func WithTracker(t analytics.Tracker) Option {
	return func(s *Shell) { s.tracker = t }
}

// WithSite sets the head defaults.
func WithSite(site head.Site) Option {
	return func(s *Shell) { s.site = site }
}

// WithProgress sets the progress bar time constant and options.
func WithProgress(seconds float64, opts ...progress.Option) Option {
	return func(s *Shell) {
		s.progressSeconds = seconds
		s.progressOpts = opts
	}
}

// WithNotFound sets the page rendered when no route has a page.
func WithNotFound(m page.Module) Option {
	return func(s *Shell) { s.notFound = m }
}

// WithFallback sets the page rendered while the matched module is loading.
func WithFallback(m page.Module) Option {
	return func(s *Shell) { s.fallback = m }
}

// WithLoadingObserver is called after every loading flag change.
func WithLoadingObserver(fn func(loading bool)) Option {
	return func(s *Shell) { s.loadingObservers = append(s.loadingObservers, fn) }
}

// WithNavigationObserver is called after the shell follows a navigation.
func WithNavigationObserver(fn func(loc history.Location, action history.Action)) Option {
	return func(s *Shell) { s.navObservers = append(s.navObservers, fn) }
}

// WithMetrics records page views and loading changes.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Shell) { s.metrics = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Shell) { s.logger = logger }
}

// Shell is the router shell for one client.
type Shell struct {
	table            *routes.Table
	hooks            []InitHook
	snapshot         store.Snapshot
	newStore         func(store.Snapshot) *store.Store
	tracker          analytics.Tracker
	site             head.Site
	progressSeconds  float64
	progressOpts     []progress.Option
	notFound         page.Module
	fallback         page.Module
	loadingObservers []func(bool)
	navObservers     []func(history.Location, history.Action)
	metrics          *metrics.Collector
	logger           *slog.Logger

	store    *store.Store
	progress *progress.Indicator
	loading  atomic.Bool

	mu       sync.Mutex
	location history.Location
	started  bool
	nav      *history.Delayed
}

// New seals table, runs the init hooks and then creates the store.
func New(ctx context.Context, table *routes.Table, opts ...Option) (*Shell, error) {
	s := &Shell{
		table:           table,
		newStore:        store.New,
		tracker:         analytics.Nop,
		progressSeconds: progress.DefaultSeconds,
		notFound:        DefaultNotFound,
		fallback:        DefaultFallback,
		logger:          slog.Default().With("component", "shell"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := table.Seal(); err != nil {
		return nil, err
	}
	for _, hook := range s.hooks {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	s.store = s.newStore(s.snapshot)
	s.progress = progress.New(s.progressSeconds, s.progressOpts...)
	return s, nil
}

// Store returns the shell's store.
func (s *Shell) Store() *store.Store { return s.store }

// Table returns the route table.
func (s *Shell) Table() *routes.Table { return s.table }

// Progress returns the progress indicator.
func (s *Shell) Progress() *progress.Indicator { return s.progress }

// Loading reports the loading flag.
func (s *Shell) Loading() bool { return s.loading.Load() }

// Location returns the location being displayed.
func (s *Shell) Location() history.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

// OnLoadingChange sets the loading flag. It is the history adapter's
// loading callback.
func (s *Shell) OnLoadingChange(loading bool) {
	if s.loading.Swap(loading) == loading {
		return
	}
	s.progress.SetDone(!loading)
	s.metrics.LoadingChanged(loading)
	for _, fn := range s.loadingObservers {
		fn(loading)
	}
}

// Attach follows h. Call Start before the first navigation.
func (s *Shell) Attach(h *history.Delayed) (detach func()) {
	s.mu.Lock()
	s.nav = h
	s.mu.Unlock()
	return h.Listen(s.follow)
}

// Start records the bootstrap location and emits the first page view.
// referrer is the document referrer, if any.
func (s *Shell) Start(ctx context.Context, loc history.Location, referrer string) {
	s.mu.Lock()
	s.location = loc
	s.started = true
	s.mu.Unlock()

	s.trackPageview(ctx, loc, referrer, true)
}

// follow runs inside the adapter's listener loop. The Replace it issues for a
// redirect is handled by the adapter once every listener has seen loc, and
// the shell keeps showing the previous location until then.
func (s *Shell) follow(loc history.Location, action history.Action) {
	s.mu.Lock()
	nav := s.nav
	s.mu.Unlock()

	if m, ok := s.table.Match(loc.Path); ok && m.Entry.Redirect != "" && nav != nil {
		if err := nav.Replace(m.Entry.Redirect + loc.Search); err != nil {
			s.logger.Warn("redirect failed", "from", loc.Path, "to", m.Entry.Redirect, "error", err)
		}
		return
	}

	s.mu.Lock()
	prev := s.location
	s.location = loc
	s.mu.Unlock()

	if prev.Path != loc.Path || prev.Search != loc.Search {
		s.trackPageview(context.Background(), loc, prev.PathAndSearch(), false)
	}
	for _, fn := range s.navObservers {
		fn(loc, action)
	}
}

func (s *Shell) trackPageview(ctx context.Context, loc history.Location, referrer string, first bool) {
	pv := analytics.PageView{
		Path:     loc.PathAndSearch(),
		Referrer: referrer,
		IsFirst:  first,
	}
	if m, ok := s.table.Match(loc.Path); ok && m.Entry.Loader != nil {
		pv.PageName = m.Entry.Name
		pv.Params = m.Params
	}
	s.metrics.ObservePageView(pv.PageName)
	s.tracker.TrackPageview(ctx, pv)
}

// Document is one rendered state of the shell.
type Document struct {
	Location history.Location
	Head     head.Resolved

	// Progress is the progress bar markup.
	Progress string

	// Body is the page markup, empty for redirects.
	Body string

	Loading bool
	Status  int

	// Redirect is set when the location matched a redirect entry.
	Redirect string

	// Chunks lists the client chunks the page needs.
	Chunks []string
}

// Render renders the current location.
func (s *Shell) Render(ctx context.Context) (*Document, error) {
	loc := s.Location()
	doc := &Document{Location: loc, Loading: s.Loading(), Status: 200}

	collector := head.NewCollector(s.site)
	collector.Add(head.Entry{
		Title:       head.Title(""),
		Description: s.site.Description,
		PageURL:     s.site.LinkHost + loc.URL(),
	})

	match := page.Match{Path: loc.Path, Search: loc.Search}
	mod := s.notFound
	if m, ok := s.table.Match(loc.Path); ok {
		if m.Entry.Redirect != "" {
			doc.Redirect = m.Entry.Redirect + loc.Search
			doc.Status = 302
			doc.Head = collector.Resolve()
			return doc, nil
		}
		if m.Entry.Loader != nil {
			match.Name = m.Entry.Name
			match.Params = m.Params
			if loaded := m.Entry.Loader.Module(); loaded != nil {
				mod = loaded
			} else {
				mod = s.fallback
			}
		}
	}

	req := page.NewRequest(s.store, match, collector)
	body, err := renderComponent(ctx, mod.Render(req))
	if err != nil {
		if errors.Code(err) != "" {
			return nil, err
		}
		return nil, errors.New("E300").WithDetail("path " + loc.Path).Wrap(err)
	}

	var bar bytes.Buffer
	if err := s.progress.Component().Render(ctx, &bar); err != nil {
		return nil, errors.New("E300").Wrap(err)
	}

	doc.Body = body
	doc.Progress = bar.String()
	doc.Head = collector.Resolve()
	doc.Status = req.Status()
	if c, ok := mod.(page.Chunker); ok {
		doc.Chunks = c.Chunks()
	}
	return doc, nil
}

// Close stops the progress ticker.
func (s *Shell) Close() {
	s.progress.Close()
}

func renderComponent(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
