package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vango-dev/splitroute/pkg/assets"
	"github.com/vango-dev/splitroute/pkg/head"
	"github.com/vango-dev/splitroute/pkg/loader"
	"github.com/vango-dev/splitroute/pkg/metrics"
	"github.com/vango-dev/splitroute/pkg/page"
	"github.com/vango-dev/splitroute/pkg/routes"
	"github.com/vango-dev/splitroute/pkg/shell"
	"github.com/vango-dev/splitroute/pkg/store"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type greetModule struct{}

func (greetModule) Render(req *page.Request) templ.Component {
	var name string
	_, _ = req.Store.Get("name", &name)
	req.Head.Add(head.Entry{Title: head.Title("Hello " + req.Match.Param("name"))})
	return templ.Raw("<p>hi " + templ.EscapeString(name) + "</p>")
}

func (greetModule) HasPreload() bool { return true }

func (greetModule) Preload(_ context.Context, st *store.Store, m page.Match) error {
	return st.Set("name", m.Param("name"))
}

func (greetModule) Chunks() []string { return []string{"greet"} }

func newTestServer(t *testing.T, cfg Config, opts ...Option) *Server {
	t.Helper()
	home := loader.Ready("home", page.Func(func(*page.Request) templ.Component {
		return templ.Raw("<p>home</p>")
	}))
	greet := loader.Ready("greet", greetModule{})
	broken := loader.New("broken", func(context.Context) (page.Module, error) {
		return nil, stderrors.New("chunk missing")
	})
	panics := loader.Ready("panics", page.Func(func(*page.Request) templ.Component {
		panic("boom")
	}))

	table := routes.MustNew(
		routes.Entry{Pattern: "/", Exact: true, Loader: home, Name: "Home"},
		routes.Entry{Pattern: "/greet/:name", Loader: greet, Name: "Greet"},
		routes.Entry{Pattern: "/broken", Loader: broken, Name: "Broken"},
		routes.Entry{Pattern: "/panics", Loader: panics, Name: "Panics"},
		routes.Entry{Pattern: "/gsb", Exact: true, Redirect: "/greet/gsb"},
	)
	factory := func(ctx context.Context, snap store.Snapshot, opts ...shell.Option) (*shell.Shell, error) {
		base := []shell.Option{
			shell.WithSnapshot(snap),
			shell.WithSite(head.Site{Name: "Demo", Tagline: "Fast", LinkHost: "https://demo.test"}),
			shell.WithLogger(quiet),
		}
		return shell.New(ctx, table, append(base, opts...)...)
	}
	opts = append([]Option{WithConfig(cfg), WithLogger(quiet)}, opts...)
	srv := New(table, factory, opts...)
	t.Cleanup(srv.Live().Close)
	return srv
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestRenderPage(t *testing.T) {
	srv := newTestServer(t, Config{SSR: true, Env: "test"},
		WithScripts(assets.NewPassthroughResolver("/public/")))

	rec := get(t, srv, "/greet/ada?x=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"<title>Hello ada – Demo – Fast</title>",
		`<link rel="canonical" href="https://demo.test/greet/ada?x=1">`,
		"<p>hi ada</p>",
		`window.__STORE_STATE__ = {"name":"ada"};`,
		`"livePath":"/live"`,
		`<script defer src="/public/greet.js"></script>`,
		"FakeTopProgressBar",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q\n%s", want, body)
		}
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestRenderWithoutSSR(t *testing.T) {
	srv := newTestServer(t, Config{SSR: false})
	rec := get(t, srv, "/greet/ada")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "<p>hi") {
		t.Error("body rendered with SSR off")
	}
	if !strings.Contains(body, "window.__STORE_STATE__ = {};") {
		t.Errorf("preload ran with SSR off:\n%s", body)
	}
	if !strings.Contains(body, "<title>Hello ada – Demo – Fast</title>") {
		t.Error("head should still be rendered")
	}
}

func TestRenderStatuses(t *testing.T) {
	srv := newTestServer(t, Config{SSR: true})

	tests := []struct {
		target   string
		status   int
		location string
	}{
		{"/", http.StatusOK, ""},
		{"/nowhere", http.StatusNotFound, ""},
		{"/gsb?ref=1", http.StatusFound, "/greet/gsb?ref=1"},
		{"/greet//ada/", http.StatusMovedPermanently, "/greet/ada"},
		{"/a/../greet/ada?q", http.StatusMovedPermanently, "/greet/ada?q"},
		{"/broken", http.StatusInternalServerError, ""},
		{"/panics", http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, srv, tt.target)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if got := rec.Header().Get("Location"); got != tt.location {
				t.Errorf("Location = %q, want %q", got, tt.location)
			}
		})
	}
}

func TestErrorDetailsOnlyInDev(t *testing.T) {
	prod := newTestServer(t, Config{SSR: true})
	if body := get(t, prod, "/broken").Body.String(); strings.Contains(body, "chunk missing") {
		t.Errorf("production error page leaks details:\n%s", body)
	}

	dev := newTestServer(t, Config{SSR: true, Dev: true})
	if body := get(t, dev, "/broken").Body.String(); !strings.Contains(body, "chunk missing") {
		t.Errorf("development error page lacks details:\n%s", body)
	}
}

func TestEcho(t *testing.T) {
	srv := newTestServer(t, Config{})
	rec := get(t, srv, "/api/echo/hello")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"success": true, "messages": []any{}, "data": "hello"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("echo mismatch (-want +got):\n%s", diff)
	}
}

func TestAPINotFound(t *testing.T) {
	srv := newTestServer(t, Config{})
	rec := get(t, srv, "/api/missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var got Response
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("not JSON: %v (%s)", err, rec.Body)
	}
	if got.Success || len(got.Messages) != 1 {
		t.Errorf("response = %+v", got)
	}
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "home.a1b2c3d4.js"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, Config{StaticDir: dir})

	rec := get(t, srv, "/public/app.js")
	if rec.Code != http.StatusOK || rec.Body.String() != "console.log(1)" {
		t.Fatalf("app.js: %d %q", rec.Code, rec.Body)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=3600, must-revalidate" {
		t.Errorf("Cache-Control = %q", cc)
	}
	rec = get(t, srv, "/public/home.a1b2c3d4.js")
	if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "immutable") {
		t.Errorf("fingerprinted Cache-Control = %q", cc)
	}

	for _, target := range []string{"/public/missing.js", "/public/../go.mod", "/public/"} {
		if rec := get(t, srv, target); rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", target, rec.Code)
		}
	}
}

func TestStaticRelPath(t *testing.T) {
	h := &staticHandler{prefix: "/public/"}
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/public/app.js", "app.js", true},
		{"/public/js/app.js", "js/app.js", true},
		{"/public//etc/passwd", "", false},
		{"/public/a/../b.js", "", false},
		{"/public/a\\b.js", "", false},
		{"/public/a\x00.js", "", false},
		{"/other/app.js", "", false},
	}
	for _, tt := range tests {
		got, ok := h.relPath(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("relPath(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.New(metrics.WithRegistry(reg))
	srv := newTestServer(t, Config{SSR: true}, WithMetrics(collector, reg))

	get(t, srv, "/")
	get(t, srv, "/nowhere")

	rec := get(t, srv, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "splitroute_renders_total") {
		t.Errorf("metrics output lacks render counter:\n%s", rec.Body)
	}
	if n := testutil.CollectAndCount(reg, "splitroute_renders_total"); n != 2 {
		t.Errorf("render series = %d, want 2", n)
	}
}

func TestCustomLayout(t *testing.T) {
	layout, err := ParseLayout(`<main>{{.Body}}</main>`)
	if err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, Config{SSR: true}, WithLayout(layout))
	if body := get(t, srv, "/").Body.String(); body != "<main><p>home</p></main>" {
		t.Errorf("body = %q", body)
	}

	if _, err := ParseLayout(`{{.Body`); err == nil {
		t.Error("expected parse error")
	}
}

func TestConfigDefaults(t *testing.T) {
	got := Config{Address: ":1"}.withDefaults()
	want := DefaultConfig()
	want.Address = ":1"
	want.SSR = false
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("withDefaults mismatch (-want +got):\n%s", diff)
	}
}
