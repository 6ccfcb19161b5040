// Package live serves navigations over a WebSocket after the first HTTP
// render.
//
// The client opens /live, sends a Hello with its current URL and the store
// snapshot the server rendered, and from then on sends Navigate frames. Each
// session owns a Shell, an in-memory history and a Delayed adapter running
// on the session's event loop, so a navigation to a page whose module is
// not loaded yet produces a Loading frame, Progress frames and, once the
// module is ready, a Render frame.
package live

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/splitroute/internal/errors"
	"github.com/vango-dev/splitroute/internal/logging"
	"github.com/vango-dev/splitroute/pkg/assets"
	"github.com/vango-dev/splitroute/pkg/history"
	"github.com/vango-dev/splitroute/pkg/metrics"
	"github.com/vango-dev/splitroute/pkg/page"
	"github.com/vango-dev/splitroute/pkg/progress"
	"github.com/vango-dev/splitroute/pkg/routes"
	"github.com/vango-dev/splitroute/pkg/shell"
	"github.com/vango-dev/splitroute/pkg/store"
)

// Config holds session settings.
type Config struct {
	// ReadTimeout is how long a session may stay silent (pongs count).
	ReadTimeout time.Duration

	// WriteTimeout bounds each write.
	WriteTimeout time.Duration

	// PingInterval is the heartbeat period. Must be below ReadTimeout.
	PingInterval time.Duration

	// HelloTimeout bounds the wait for the first frame.
	HelloTimeout time.Duration

	// LoadTimeout bounds the initial page load.
	LoadTimeout time.Duration

	// QueueSize is the event loop and send queue capacity.
	QueueSize int

	// ProgressSeconds is the progress bar time constant.
	ProgressSeconds float64

	// CheckOrigin validates the Origin header. Nil allows same-host only.
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig returns the default session settings.
func DefaultConfig() Config {
	return Config{
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    10 * time.Second,
		PingInterval:    25 * time.Second,
		HelloTimeout:    10 * time.Second,
		LoadTimeout:     10 * time.Second,
		QueueSize:       256,
		ProgressSeconds: progress.DefaultSeconds,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.ReadTimeout {
		c.PingInterval = c.ReadTimeout * 2 / 5
	}
	if c.HelloTimeout <= 0 {
		c.HelloTimeout = d.HelloTimeout
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = d.LoadTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.ProgressSeconds <= 0 {
		c.ProgressSeconds = d.ProgressSeconds
	}
	return c
}

// ShellFactory builds the shell for a session. The session appends its own
// options after the factory's.
type ShellFactory func(ctx context.Context, snap store.Snapshot, opts ...shell.Option) (*shell.Shell, error)

// Handler upgrades requests to live sessions.
type Handler struct {
	table    *routes.Table
	newShell ShellFactory
	config   Config
	scripts  assets.Resolver
	metrics  *metrics.Collector
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*Session]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithConfig sets session settings.
func WithConfig(c Config) HandlerOption {
	return func(h *Handler) { h.config = c }
}

// WithScripts resolves page chunks to script URLs in render frames.
func WithScripts(r assets.Resolver) HandlerOption {
	return func(h *Handler) { h.scripts = r }
}

// WithMetrics records session and navigation metrics.
func WithMetrics(c *metrics.Collector) HandlerOption {
	return func(h *Handler) { h.metrics = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = logger }
}

// NewHandler creates a live handler.
func NewHandler(table *routes.Table, newShell ShellFactory, opts ...HandlerOption) *Handler {
	h := &Handler{
		table:    table,
		newShell: newShell,
		config:   DefaultConfig(),
		logger:   slog.Default().With("component", "live"),
		sessions: make(map[*Session]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.config = h.config.withDefaults()
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.config.CheckOrigin,
	}
	return h
}

// ServeHTTP implements http.Handler. It blocks for the session's lifetime.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.acquire() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.wg.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(MaxPayloadSize + FrameHeaderSize)

	s := newSession(context.WithoutCancel(r.Context()), conn, h)
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
	h.metrics.SessionOpened()
	defer func() {
		s.Close()
		h.mu.Lock()
		delete(h.sessions, s)
		h.mu.Unlock()
		h.metrics.SessionClosed()
	}()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		_ = s.loop.Run(s.ctx)
	}()
	go s.writeLoop()

	hello, err := h.readHello(conn)
	if err != nil {
		logging.LogError(s.logger, "handshake failed", err)
		s.sendError(err, true)
		return
	}
	if err := s.start(h, hello); err != nil {
		logging.LogError(s.logger, "session start failed", err)
		s.sendError(err, true)
		return
	}
	s.logger.Debug("session started", "path", hello.Path)
	s.readLoop()
}

func (h *Handler) readHello(conn *websocket.Conn) (Hello, error) {
	_ = conn.SetReadDeadline(time.Now().Add(h.config.HelloTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return Hello{}, errors.New("E400").WithDetail("no hello").Wrap(err)
	}
	frame, err := DecodeFrame(msg)
	if err != nil {
		return Hello{}, errors.New("E400").Wrap(err)
	}
	if frame.Type != FrameHello {
		return Hello{}, errors.New("E400").
			WithDetail("first frame must be Hello, got " + frame.Type.String()).
			Wrap(ErrInvalidFrameType)
	}
	var hello Hello
	if err := frame.Decode(&hello); err != nil {
		return Hello{}, err
	}
	return hello, nil
}

// acquire registers a serving goroutine unless the handler is closed.
func (h *Handler) acquire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.wg.Add(1)
	return true
}

// Sessions returns the number of open sessions.
func (h *Handler) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close ends all sessions, rejects new ones and waits for them to finish.
func (h *Handler) Close() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	h.wg.Wait()
}

func pageMatch(loc history.Location, m routes.Match) page.Match {
	return page.Match{
		Path:   loc.Path,
		Search: loc.Search,
		Params: m.Params,
		Name:   m.Entry.Name,
	}
}
