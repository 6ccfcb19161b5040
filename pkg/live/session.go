package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/splitroute/internal/errors"
	"github.com/vango-dev/splitroute/internal/logging"
	"github.com/vango-dev/splitroute/pkg/assets"
	"github.com/vango-dev/splitroute/pkg/eventloop"
	"github.com/vango-dev/splitroute/pkg/history"
	"github.com/vango-dev/splitroute/pkg/metrics"
	"github.com/vango-dev/splitroute/pkg/progress"
	"github.com/vango-dev/splitroute/pkg/routes"
	"github.com/vango-dev/splitroute/pkg/shell"
	"github.com/vango-dev/splitroute/pkg/store"
)

// Session is one live client. Everything that touches the shell runs on
// the session's event loop.
type Session struct {
	ID string

	conn    *websocket.Conn
	config  Config
	table   *routes.Table
	scripts assets.Resolver
	metrics *metrics.Collector
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	loop  *eventloop.Loop
	shell *shell.Shell
	mem   *history.Memory
	hist  *history.Delayed

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	// Loop state.
	dirty      bool
	lastAction history.Action
}

func newSession(parent context.Context, conn *websocket.Conn, h *Handler) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		ID:      uuid.NewString(),
		conn:    conn,
		config:  h.config,
		table:   h.table,
		scripts: h.scripts,
		metrics: h.metrics,
		ctx:     ctx,
		cancel:  cancel,
		out:     make(chan []byte, h.config.QueueSize),
		done:    make(chan struct{}),
	}
	s.logger = h.logger.With("session", s.ID)
	s.loop = eventloop.New(
		eventloop.WithQueueSize(h.config.QueueSize),
		eventloop.WithLogger(s.logger),
		eventloop.WithAfter(s.flush),
	)
	return s
}

// start performs the hello exchange and builds the shell and history.
func (s *Session) start(h *Handler, hello Hello) error {
	snap := make(store.Snapshot, len(hello.State))
	for k, v := range hello.State {
		snap[k] = json.RawMessage(v)
	}

	target := hello.Path
	if target == "" {
		target = "/"
	}
	mem, err := history.NewMemory(target)
	if err != nil {
		return errors.New("E400").WithDetail("hello path").Wrap(err)
	}
	s.mem = mem

	sh, err := h.newShell(s.ctx, snap,
		shell.WithProgress(h.config.ProgressSeconds, progress.WithOnUpdate(s.sendProgress)),
		shell.WithLoadingObserver(s.sendLoading),
		shell.WithNavigationObserver(s.onNavigate),
		shell.WithLogger(s.logger),
	)
	if err != nil {
		return err
	}
	s.shell = sh

	s.hist = history.NewDelayed(mem, s.table,
		history.WithDispatcher(s.loop),
		history.WithLoadingChange(sh.OnLoadingChange),
		history.WithContext(s.ctx),
		history.WithObserver(s.metrics),
		history.WithDelayedLogger(s.logger),
	)
	sh.Attach(s.hist)

	return s.loop.Dispatch(func() { s.bootstrap(hello, len(snap) == 0) })
}

// bootstrap loads the first page and sends the welcome render.
func (s *Session) bootstrap(hello Hello, emptyStore bool) {
	loc := s.mem.Location()
	if m, ok := s.table.Match(loc.Path); ok && m.Entry.Loader != nil {
		ctx, cancel := context.WithTimeout(s.ctx, s.config.LoadTimeout)
		mod, err := m.Entry.Loader.Load(ctx)
		cancel()
		switch {
		case err != nil:
			logging.LogError(s.logger, "initial page load failed", err, "path", loc.Path)
			s.sendError(err, false)
		case emptyStore && mod.HasPreload():
			pm := pageMatch(loc, m)
			if err := mod.Preload(s.ctx, s.shell.Store(), pm); err != nil {
				logging.LogError(s.logger, "preload failed", err, "path", loc.Path)
			}
		}
	}

	s.shell.Start(s.ctx, loc, hello.Referrer)
	doc, err := s.shell.Render(s.ctx)
	if err != nil {
		logging.LogError(s.logger, "render failed", err, "path", loc.Path)
		s.sendError(err, true)
		return
	}
	s.send(FrameWelcome, Welcome{SessionID: s.ID, Render: s.renderFrame(doc, "")})

	if doc.Redirect != "" {
		if err := s.hist.Replace(doc.Redirect); err != nil {
			s.sendError(err, false)
		}
	}
}

func (s *Session) onNavigate(_ history.Location, action history.Action) {
	s.dirty = true
	s.lastAction = action
}

// flush runs after every loop callback and sends a render if the shell
// followed a navigation.
func (s *Session) flush() {
	if !s.dirty {
		return
	}
	s.dirty = false

	doc, err := s.shell.Render(s.ctx)
	if err != nil {
		logging.LogError(s.logger, "render failed", err, "path", s.shell.Location().Path)
		s.sendError(err, false)
		return
	}
	s.send(FrameRender, s.renderFrame(doc, actionName(s.lastAction)))
}

func (s *Session) renderFrame(doc *shell.Document, action string) Render {
	r := Render{
		URL:      doc.Location.URL(),
		Action:   action,
		Title:    doc.Head.FullTitle(),
		Head:     doc.Head.HTML(),
		Body:     doc.Body,
		BodyCls:  doc.Head.BodyClass(),
		Progress: doc.Progress,
		Loading:  doc.Loading,
		Status:   doc.Status,
	}
	if s.scripts != nil && len(doc.Chunks) > 0 {
		r.Scripts = s.scripts.Scripts(doc.Chunks...)
	}
	return r
}

// navigate applies a client request. Runs on the loop.
func (s *Session) navigate(nav Navigate) {
	var err error
	switch nav.Action {
	case ActionPush:
		err = s.hist.Push(nav.To)
	case ActionReplace:
		err = s.hist.Replace(nav.To)
	case ActionGo:
		s.hist.Go(nav.Delta)
	default:
		err = errors.New("E401").WithDetail("action " + nav.Action)
	}
	if err != nil && errors.Code(err) == "" {
		err = errors.New("E403").WithDetail(nav.To).Wrap(err)
	}
	if err != nil {
		s.logger.Warn("navigation rejected", "action", nav.Action, "to", nav.To, "error", err)
		s.sendError(err, false)
	}
}

func (s *Session) sendLoading(loading bool) {
	s.send(FrameLoading, Loading{Loading: loading})
}

func (s *Session) sendProgress(percent float64) {
	s.send(FrameProgress, Progress{Percent: percent})
}

func (s *Session) sendError(err error, fatal bool) {
	code := errors.Code(err)
	if code == "" {
		code = "E502"
	}
	msg := err.Error()
	if e := errors.FromError(err, code); e != nil {
		msg = e.Message
	}
	s.send(FrameError, ErrorMessage{Code: code, Message: msg, Fatal: fatal})
}

// send queues a frame for the write loop. A client that falls a full queue
// behind is disconnected.
func (s *Session) send(ft FrameType, v any) {
	frame, err := NewFrame(ft, v)
	if err != nil {
		s.logger.Error("frame encode error", "type", ft.String(), "error", err)
		return
	}
	select {
	case s.out <- frame.Encode():
	case <-s.done:
	default:
		s.logger.Warn("send queue full, closing session")
		go s.Close()
	}
}

// readLoop reads client frames until the connection fails.
func (s *Session) readLoop() {
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	})
	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "error", err)
			}
			return
		}

		frame, err := DecodeFrame(msg)
		if err != nil {
			s.logger.Error("frame decode error", "error", err)
			s.sendError(errors.New("E400").Wrap(err), false)
			continue
		}
		switch frame.Type {
		case FrameNavigate:
			var nav Navigate
			if err := frame.Decode(&nav); err != nil {
				s.sendError(err, false)
				continue
			}
			if err := s.loop.Dispatch(func() { s.navigate(nav) }); err != nil {
				s.sendError(err, false)
			}
		default:
			s.logger.Warn("unexpected frame type", "type", frame.Type.String())
		}
	}
}

// writeLoop writes queued frames and heartbeats.
func (s *Session) writeLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				s.logger.Debug("write error", "error", err)
				go s.Close()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(s.config.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				go s.Close()
				return
			}
		case <-s.done:
			s.drain()
			return
		}
	}
}

// drain writes frames still queued when the session closes.
func (s *Session) drain() {
	for {
		select {
		case msg := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if s.conn.WriteMessage(websocket.BinaryMessage, msg) != nil {
				return
			}
		default:
			return
		}
	}
}

// Close ends the session. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.loop.Close()
		if s.hist != nil {
			s.hist.Close()
		}
		if s.shell != nil {
			s.shell.Close()
		}
		close(s.done)
		s.wg.Wait()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = s.conn.Close()
	})
}

func actionName(a history.Action) string {
	switch a {
	case history.Push:
		return ActionPush
	case history.Replace:
		return ActionReplace
	default:
		return "pop"
	}
}
