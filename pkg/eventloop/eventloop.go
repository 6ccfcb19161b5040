// Package eventloop provides the single logical thread a client session
// runs on.
//
// All state changes for one session (history notifications, loading flag
// changes, renders) are posted to the session's Loop with Dispatch and run
// one at a time in the order they were posted. Work that blocks, such as
// fetching a page module, runs on its own goroutine and dispatches its
// continuation back to the loop.
package eventloop

import (
	"context"
	"log/slog"
	"runtime/debug"

	"go.uber.org/atomic"

	"github.com/vango-dev/splitroute/internal/errors"
)

// DefaultQueueSize is the dispatch queue capacity used when none is given.
const DefaultQueueSize = 256

// Option configures a Loop.
type Option func(*Loop)

// WithQueueSize sets the dispatch queue capacity.
func WithQueueSize(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.queueSize = n
		}
	}
}

// WithLogger sets the logger used for panics and dropped callbacks.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithAfter registers fn to run on the loop after every dispatched callback.
// A live session uses it to flush renders.
func WithAfter(fn func()) Option {
	return func(l *Loop) { l.after = fn }
}

// Loop runs dispatched callbacks sequentially.
type Loop struct {
	queueSize int
	queue     chan func()
	done      chan struct{}
	closed    atomic.Bool
	logger    *slog.Logger
	after     func()
}

// New creates a loop. Call Run to start processing.
func New(opts ...Option) *Loop {
	l := &Loop{
		queueSize: DefaultQueueSize,
		done:      make(chan struct{}),
		logger:    slog.Default().With("component", "eventloop"),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.queue = make(chan func(), l.queueSize)
	return l
}

// Dispatch queues fn to run on the loop. It never blocks. After Close, or
// when the queue is full, fn is discarded and an error is returned.
func (l *Loop) Dispatch(fn func()) error {
	if l.closed.Load() {
		return errors.New("E402").WithDetail("event loop is closed")
	}
	select {
	case l.queue <- fn:
		return nil
	case <-l.done:
		return errors.New("E402").WithDetail("event loop is closed")
	default:
		l.logger.Warn("dispatch queue full, discarding callback")
		return errors.New("E402")
	}
}

// Run processes callbacks until ctx is done or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case fn := <-l.queue:
			l.execute(fn)
		case <-l.done:
			return nil
		case <-ctx.Done():
			l.Close()
			return ctx.Err()
		}
	}
}

// Close stops the loop. Queued callbacks that have not run are discarded.
func (l *Loop) Close() {
	if l.closed.CompareAndSwap(false, true) {
		close(l.done)
	}
}

// Done is closed when the loop stops.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("dispatch panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
	if l.after != nil {
		l.after()
	}
}
