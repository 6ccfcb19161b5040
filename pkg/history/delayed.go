package history

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vango-dev/splitroute/internal/logging"
	"github.com/vango-dev/splitroute/pkg/routes"
)

// Navigation outcomes reported to an Observer.
const (
	OutcomeImmediate  = "immediate"
	OutcomeDeferred   = "deferred"
	OutcomeSuperseded = "superseded"
	OutcomeFailed     = "failed"
)

// Dispatcher runs continuations on the session's logical thread.
type Dispatcher interface {
	Dispatch(fn func()) error
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(fn func()) error

// Dispatch implements Dispatcher.
func (f DispatchFunc) Dispatch(fn func()) error { return f(fn) }

// Observer receives navigation outcomes.
type Observer interface {
	ObserveNavigation(outcome string)
}

// DelayedOption configures a Delayed adapter.
type DelayedOption func(*Delayed)

// WithDispatcher sets where load completions are posted. Without one they
// are queued from the goroutine that finished the load.
func WithDispatcher(d Dispatcher) DelayedOption {
	return func(h *Delayed) { h.dispatcher = d }
}

// WithLoadingChange sets the loading flag callback.
func WithLoadingChange(fn func(loading bool)) DelayedOption {
	return func(h *Delayed) { h.onLoadingChange = fn }
}

// WithContext sets the context page loads run under.
func WithContext(ctx context.Context) DelayedOption {
	return func(h *Delayed) { h.ctx = ctx }
}

// WithObserver reports navigation outcomes to o.
func WithObserver(o Observer) DelayedOption {
	return func(h *Delayed) { h.observer = o }
}

// WithDelayedLogger sets the logger.
func WithDelayedLogger(logger *slog.Logger) DelayedOption {
	return func(h *Delayed) { h.logger = logger }
}

// Delayed wraps a Source and notifies its own listeners only once the page
// module for the destination route is loaded. If a newer navigation starts
// while a load is pending, the older navigation is dropped when its load
// finishes.
//
// Source events and load completions are handled one at a time in arrival
// order. A navigation started from inside a listener is handled after every
// listener has seen the current one.
type Delayed struct {
	source Source
	table  *routes.Table

	dispatcher      Dispatcher
	onLoadingChange func(bool)
	ctx             context.Context
	observer        Observer
	logger          *slog.Logger

	listeners listeners
	unlisten  func()
	turns     serial

	mu       sync.Mutex
	seq      uint64
	pending  bool
	closed   bool
	location Location
	wg       sync.WaitGroup
}

// NewDelayed wraps source. The adapter's location starts at the source's
// current location; the first page is rendered by the bootstrap.
func NewDelayed(source Source, table *routes.Table, opts ...DelayedOption) *Delayed {
	h := &Delayed{
		source:          source,
		table:           table,
		onLoadingChange: func(bool) {},
		ctx:             context.Background(),
		logger:          slog.Default().With("component", "history"),
		location:        source.Location(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.unlisten = source.Listen(func(loc Location, action Action) {
		h.turns.run(func() { h.handle(loc, action) })
	})
	return h
}

// Listen registers l. Listeners are notified in registration order.
func (h *Delayed) Listen(l Listener) func() {
	return h.listeners.add(l)
}

// Location returns the last location listeners were notified of.
func (h *Delayed) Location() Location {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.location
}

// Pending reports whether a navigation is waiting for its page module.
func (h *Delayed) Pending() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pending
}

// Push navigates to a new location.
func (h *Delayed) Push(to string) error { return h.source.Push(to) }

// Replace replaces the current location.
func (h *Delayed) Replace(to string) error { return h.source.Replace(to) }

// Go moves through the history stack.
func (h *Delayed) Go(delta int) { h.source.Go(delta) }

// Back is Go(-1).
func (h *Delayed) Back() { h.source.Go(-1) }

// Forward is Go(1).
func (h *Delayed) Forward() { h.source.Go(1) }

// Close detaches from the source and waits for in-flight loads to finish.
// Completions that arrive after Close are discarded.
func (h *Delayed) Close() {
	h.unlisten()
	h.mu.Lock()
	h.seq++
	h.pending = false
	h.closed = true
	h.mu.Unlock()
	h.wg.Wait()
}

func (h *Delayed) handle(loc Location, action Action) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.seq++
	seq := h.seq
	wasPending := h.pending
	h.mu.Unlock()

	m, ok := h.table.Match(loc.Path)
	if !ok || m.Entry.Loader == nil || m.Entry.Loader.IsReady() {
		h.mu.Lock()
		h.pending = false
		h.mu.Unlock()
		if wasPending {
			h.onLoadingChange(false)
		}
		h.observe(OutcomeImmediate)
		h.notify(loc, action)
		return
	}

	h.mu.Lock()
	h.pending = true
	h.mu.Unlock()
	h.onLoadingChange(true)
	h.observe(OutcomeDeferred)

	l := m.Entry.Loader
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		_, err := l.Load(h.ctx)
		done := func() { h.turns.run(func() { h.complete(seq, loc, action, err) }) }
		if h.dispatcher == nil {
			done()
			return
		}
		if derr := h.dispatcher.Dispatch(done); derr != nil {
			logging.LogError(h.logger, "load completion dropped", derr, "path", loc.Path)
		}
	}()
}

func (h *Delayed) complete(seq uint64, loc Location, action Action, err error) {
	h.mu.Lock()
	current := seq == h.seq && h.pending
	if current {
		h.pending = false
	}
	h.mu.Unlock()

	if err != nil {
		logging.LogError(h.logger, "page load failed", err, "path", loc.Path)
		h.observe(OutcomeFailed)
		if current {
			h.onLoadingChange(false)
		}
		return
	}
	if !current {
		h.logger.Debug("navigation superseded", "path", loc.Path)
		h.observe(OutcomeSuperseded)
		return
	}

	h.onLoadingChange(false)
	h.notify(loc, action)
}

func (h *Delayed) notify(loc Location, action Action) {
	h.mu.Lock()
	h.location = loc
	h.mu.Unlock()
	h.listeners.notify(loc, action)
}

func (h *Delayed) observe(outcome string) {
	if h.observer != nil {
		h.observer.ObserveNavigation(outcome)
	}
}

// serial runs queued work one item at a time in FIFO order. Work queued while
// an item runs, including from inside it, starts after that item returns.
type serial struct {
	mu      sync.Mutex
	work    []func()
	running bool
}

func (s *serial) run(fn func()) {
	s.mu.Lock()
	s.work = append(s.work, fn)
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	drained := false
	defer func() {
		if !drained {
			// A panicking item must not wedge the queue.
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}
	}()
	for {
		s.mu.Lock()
		if len(s.work) == 0 {
			s.running = false
			s.mu.Unlock()
			drained = true
			return
		}
		next := s.work[0]
		s.work = s.work[1:]
		s.mu.Unlock()
		next()
	}
}
