// Package page defines the contract between the router shell and page
// modules.
//
// A page module renders the content for a matched route. Modules that need
// data before the first server render implement Preloader; the shell and the
// SSR handler check HasPreload before calling it.
package page

import (
	"context"

	"github.com/a-h/templ"

	"github.com/vango-dev/splitroute/pkg/head"
	"github.com/vango-dev/splitroute/pkg/store"
)

// Match describes the route a page was activated for.
type Match struct {
	// Path is the canonical request path.
	Path string

	// Search is the query string including the leading "?", or "".
	Search string

	// Params holds :param and * captures.
	Params map[string]string

	// Name is the route's analytics display name.
	Name string
}

// Param returns a route parameter by name, or "".
func (m Match) Param(name string) string {
	return m.Params[name]
}

// Request is passed to Module.Render.
type Request struct {
	Store *store.Store
	Match Match
	Head  *head.Collector

	status int
}

// NewRequest creates a request with a 200 status.
func NewRequest(st *store.Store, m Match, h *head.Collector) *Request {
	return &Request{Store: st, Match: m, Head: h, status: 200}
}

// SetStatus sets the HTTP status the server should use for this render.
func (r *Request) SetStatus(code int) {
	r.status = code
}

// Status returns the status set by the page.
func (r *Request) Status() int {
	if r.status == 0 {
		return 200
	}
	return r.status
}

// Module is a loaded page.
type Module interface {
	// Render returns the page content.
	Render(req *Request) templ.Component

	// HasPreload reports whether Preload does anything.
	HasPreload() bool

	// Preload fetches the page's data into the store before rendering.
	Preload(ctx context.Context, st *store.Store, m Match) error
}

// Chunker is implemented by modules that need client script chunks beyond
// the main bundle.
type Chunker interface {
	Chunks() []string
}

// Func adapts a render function into a Module without preload.
type Func func(req *Request) templ.Component

// Render implements Module.
func (f Func) Render(req *Request) templ.Component { return f(req) }

// HasPreload implements Module.
func (Func) HasPreload() bool { return false }

// Preload implements Module.
func (Func) Preload(context.Context, *store.Store, Match) error { return nil }

// PreloadFunc fills the store before rendering.
type PreloadFunc func(ctx context.Context, st *store.Store, m Match) error

// WithPreload pairs a render function with a preload hook.
type WithPreload struct {
	RenderFunc  Func
	PreloadFunc PreloadFunc
}

// Render implements Module.
func (p WithPreload) Render(req *Request) templ.Component { return p.RenderFunc(req) }

// HasPreload implements Module.
func (p WithPreload) HasPreload() bool { return p.PreloadFunc != nil }

// Preload implements Module.
func (p WithPreload) Preload(ctx context.Context, st *store.Store, m Match) error {
	if p.PreloadFunc == nil {
		return nil
	}
	return p.PreloadFunc(ctx, st, m)
}
