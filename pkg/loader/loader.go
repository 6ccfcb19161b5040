// Package loader implements deferred page modules.
//
// A Loader wraps a Fetcher that produces a page.Module on first use. The
// first Load starts the fetch; concurrent Loads share it; a successful fetch
// is cached for the life of the process. A failed fetch is not cached and
// the next Load tries again.
//
//	about := loader.New("about", func(ctx context.Context) (page.Module, error) {
//	    return assets.FetchTemplate(ctx, src, "about.html")
//	})
//	if !about.IsReady() {
//	    mod, err := about.Load(ctx)
//	    ...
//	}
package loader

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"

	"github.com/vango-dev/splitroute/internal/errors"
	"github.com/vango-dev/splitroute/pkg/page"
)

// State is the lifecycle state of a Loader.
type State int32

const (
	StateUnrequested State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnrequested:
		return "unrequested"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ErrNoModule is returned when a Fetcher succeeds without a module.
var ErrNoModule = stderrors.New("loader: fetcher returned no module")

// Fetcher produces a page module.
type Fetcher func(ctx context.Context) (page.Module, error)

// Observer receives the outcome of every fetch.
type Observer interface {
	ObserveLoad(name string, d time.Duration, err error)
}

// Option configures a Loader.
type Option func(*Loader)

// WithObserver reports fetch outcomes to o.
func WithObserver(o Observer) Option {
	return func(l *Loader) { l.observer = o }
}

// WithTracer overrides the tracer used for fetch spans.
func WithTracer(t trace.Tracer) Option {
	return func(l *Loader) { l.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// Loader is a deferred page module. It is safe for concurrent use.
type Loader struct {
	name  string
	fetch Fetcher

	state  atomic.Int32
	module atomic.Value
	group  singleflight.Group

	observer Observer
	tracer   trace.Tracer
	logger   *slog.Logger
}

// New creates a loader in the StateUnrequested state.
func New(name string, fetch Fetcher, opts ...Option) *Loader {
	l := &Loader{
		name:   name,
		fetch:  fetch,
		tracer: otel.Tracer("splitroute/loader"),
		logger: slog.Default().With("component", "loader", "module", name),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Ready creates a loader that already holds mod.
func Ready(name string, mod page.Module, opts ...Option) *Loader {
	l := New(name, func(context.Context) (page.Module, error) { return mod, nil }, opts...)
	l.module.Store(holder{mod})
	l.state.Store(int32(StateReady))
	return l
}

type holder struct{ m page.Module }

// Name returns the loader's name.
func (l *Loader) Name() string { return l.name }

// State returns the current state.
func (l *Loader) State() State { return State(l.state.Load()) }

// IsReady reports whether the module is loaded. It never blocks.
func (l *Loader) IsReady() bool { return l.State() == StateReady }

// Module returns the loaded module, or nil before the loader is ready.
func (l *Loader) Module() page.Module {
	if h, ok := l.module.Load().(holder); ok {
		return h.m
	}
	return nil
}

// Load returns the module, fetching it if necessary. Concurrent calls share
// a single fetch. Cancelling ctx abandons the wait but not the fetch, which
// completes in the background and still marks the loader ready.
func (l *Loader) Load(ctx context.Context) (page.Module, error) {
	if mod := l.Module(); mod != nil {
		return mod, nil
	}

	ch := l.group.DoChan("load", func() (any, error) {
		return l.run(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(page.Module), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loader) run(ctx context.Context) (page.Module, error) {
	if mod := l.Module(); mod != nil {
		return mod, nil
	}
	l.state.Store(int32(StateLoading))

	ctx, span := l.tracer.Start(ctx, "loader.fetch",
		trace.WithAttributes(attribute.String("splitroute.module", l.name)))
	defer span.End()

	start := time.Now()
	mod, err := l.fetchSafely(ctx)
	if err == nil && mod == nil {
		err = ErrNoModule
	}
	if l.observer != nil {
		l.observer.ObserveLoad(l.name, time.Since(start), err)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.state.Store(int32(StateFailed))
		if errors.Code(err) == "" {
			err = errors.New("E201").
				WithDetail(fmt.Sprintf("module %q", l.name)).
				Wrap(err)
		}
		return nil, err
	}

	l.module.Store(holder{mod})
	l.state.Store(int32(StateReady))
	l.logger.Debug("module loaded", "duration", time.Since(start))
	return mod, nil
}

func (l *Loader) fetchSafely(ctx context.Context) (mod page.Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loader: fetch panicked: %v", r)
		}
	}()
	return l.fetch(ctx)
}
