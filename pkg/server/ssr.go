package server

import (
	"bytes"
	"context"
	"html/template"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/splitroute/internal/errors"
	"github.com/vango-dev/splitroute/internal/logging"
	"github.com/vango-dev/splitroute/pkg/analytics"
	"github.com/vango-dev/splitroute/pkg/assets"
	"github.com/vango-dev/splitroute/pkg/history"
	"github.com/vango-dev/splitroute/pkg/loader"
	"github.com/vango-dev/splitroute/pkg/page"
	"github.com/vango-dev/splitroute/pkg/progress"
	"github.com/vango-dev/splitroute/pkg/routepath"
	"github.com/vango-dev/splitroute/pkg/shell"
	"github.com/vango-dev/splitroute/pkg/store"
)

// Layout is the HTML document every page render is placed in.
type Layout struct {
	tmpl *template.Template
}

// LayoutData is what a Layout template executes with.
type LayoutData struct {
	Head      template.HTML
	BodyClass string
	Progress  template.HTML
	Body      template.HTML
	State     template.JS
	Config    template.JS
	Scripts   template.HTML
	LivePath  string
}

// ParseLayout parses a layout template.
func ParseLayout(text string) (*Layout, error) {
	t, err := template.New("layout").Parse(text)
	if err != nil {
		return nil, errors.New("E300").WithDetail("layout").Wrap(err)
	}
	return &Layout{tmpl: t}, nil
}

// DefaultLayout is the built-in document.
var DefaultLayout = mustLayout(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
{{.Head}}
</head>
<body class="{{.BodyClass}}" data-live="{{.LivePath}}">
{{.Progress}}
<div id="container">{{.Body}}</div>
<script>
window.__STORE_STATE__ = {{.State}};
window.__CONFIG__ = {{.Config}};
</script>
{{.Scripts}}</body>
</html>
`)

func mustLayout(text string) *Layout {
	l, err := ParseLayout(text)
	if err != nil {
		panic(err)
	}
	return l
}

func (l *Layout) render(data LayoutData) ([]byte, error) {
	var buf bytes.Buffer
	if err := l.tmpl.Execute(&buf, data); err != nil {
		return nil, errors.New("E300").WithDetail("layout").Wrap(err)
	}
	return buf.Bytes(), nil
}

// clientConfig is exposed to the browser as window.__CONFIG__.
type clientConfig struct {
	Env      string `json:"env,omitempty"`
	SSR      bool   `json:"ssr"`
	LivePath string `json:"livePath"`
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := s.tracer.Start(r.Context(), "server.render",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("http.target", r.URL.Path)),
	)
	defer span.End()

	status, err := s.renderPage(ctx, w, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		status = statusOf(err)
		s.writeError(w, r, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", status))
	s.metrics.ObserveRender(status, time.Since(start))
}

// renderPage writes the page for r and returns the response status.
func (s *Server) renderPage(ctx context.Context, w http.ResponseWriter, r *http.Request) (int, error) {
	res, err := routepath.Canonicalize(r.URL.EscapedPath())
	if err != nil {
		return 0, errors.New("E501").WithDetail(r.URL.Path).Wrap(err)
	}
	search := ""
	if r.URL.RawQuery != "" {
		search = "?" + r.URL.RawQuery
	}
	if res.Changed {
		http.Redirect(w, r, res.Path+search, http.StatusMovedPermanently)
		return http.StatusMovedPermanently, nil
	}

	mem, err := history.NewMemory(res.Path + search)
	if err != nil {
		return 0, errors.New("E501").WithDetail(r.URL.Path).Wrap(err)
	}
	loc := mem.Location()

	// Page views are emitted by the live session of the client.
	sh, err := s.newShell(ctx, nil,
		shell.WithTracker(analytics.Nop),
		shell.WithProgress(s.config.ProgressSeconds, progress.WithoutTicker()),
	)
	if err != nil {
		return 0, err
	}
	defer sh.Close()

	if m, ok := s.table.Match(loc.Path); ok && m.Entry.Loader != nil {
		pm := page.Match{Path: loc.Path, Search: loc.Search, Params: m.Params, Name: m.Entry.Name}
		if err := s.load(ctx, m.Entry.Loader, sh, pm); err != nil {
			return 0, err
		}
	}

	sh.Start(ctx, loc, r.Referer())
	doc, err := sh.Render(ctx)
	if err != nil {
		return 0, err
	}
	if doc.Redirect != "" {
		http.Redirect(w, r, doc.Redirect, http.StatusFound)
		return http.StatusFound, nil
	}

	body, err := s.document(doc, sh.Store())
	if err != nil {
		return 0, err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(doc.Status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(body)
	}
	return doc.Status, nil
}

// load fetches the page module and runs its preload on the fresh store.
func (s *Server) load(ctx context.Context, l *loader.Loader, sh *shell.Shell, m page.Match) error {
	lctx, cancel := context.WithTimeout(ctx, s.config.LoadTimeout)
	defer cancel()

	name := l.Name()
	mod, err := l.Load(lctx)
	if err != nil {
		if errors.Code(err) == "" {
			err = errors.New("E201").WithDetail("module " + name).Wrap(err)
		}
		return err
	}
	if !s.config.SSR || !mod.HasPreload() {
		return nil
	}
	if err := mod.Preload(lctx, sh.Store(), m); err != nil {
		if errors.Code(err) == "" {
			err = errors.New("E203").WithDetail("module " + name).Wrap(err)
		}
		logging.LogError(s.logger, "preload failed", err, "path", m.Path)
		return err
	}
	return nil
}

func (s *Server) document(doc *shell.Document, st *store.Store) ([]byte, error) {
	state, err := store.SerializeForScript(st.Snapshot())
	if err != nil {
		return nil, errors.New("E301").Wrap(err)
	}
	cfg, err := store.SerializeForScript(clientConfig{
		Env:      s.config.Env,
		SSR:      s.config.SSR,
		LivePath: s.config.LivePath,
	})
	if err != nil {
		return nil, errors.New("E300").Wrap(err)
	}

	data := LayoutData{
		Head:      template.HTML(doc.Head.HTML()),
		BodyClass: doc.Head.BodyClass(),
		Progress:  template.HTML(doc.Progress),
		State:     template.JS(state),
		Config:    template.JS(cfg),
		LivePath:  s.config.LivePath,
	}
	if s.config.SSR {
		data.Body = template.HTML(doc.Body)
	}
	if s.scripts != nil && len(doc.Chunks) > 0 {
		data.Scripts = assets.ScriptTags(s.scripts.Scripts(doc.Chunks...))
	}
	return s.layout.render(data)
}
