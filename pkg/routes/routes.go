// Package routes holds the ordered route table.
//
// Entries are matched in declaration order and the first match wins. A
// pattern is a slash-separated list of segments; a segment is a literal, a
// ":name" parameter, or a trailing "*" wildcard that captures the rest of
// the path. Non-exact entries also match any path below the pattern on a
// segment boundary, so "/about" matches "/about/team" but not "/aboutus".
package routes

import (
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	"github.com/vango-dev/splitroute/internal/errors"
	"github.com/vango-dev/splitroute/pkg/loader"
	"github.com/vango-dev/splitroute/pkg/routepath"
)

var (
	// ErrCatchAllNotLast is returned when entries follow a "*" entry.
	ErrCatchAllNotLast = stderrors.New("routes: catch-all entry must be last")

	// ErrSealed is returned when adding to a sealed table.
	ErrSealed = stderrors.New("routes: table is sealed")

	// ErrInvalidPattern is returned for malformed patterns.
	ErrInvalidPattern = stderrors.New("routes: invalid pattern")
)

// Entry is one route.
type Entry struct {
	// Pattern is the path pattern, e.g. "/users/:id" or "*".
	Pattern string

	// Name is the display name reported in page views.
	Name string

	// Exact requires the whole path to match.
	Exact bool

	// Loader provides the page module. Nil means no page.
	Loader *loader.Loader

	// Redirect, when set, sends matching navigations to this path.
	Redirect string
}

// IsCatchAll reports whether the entry matches every path.
func (e Entry) IsCatchAll() bool {
	return e.Pattern == "*" || e.Pattern == "/*"
}

type segment struct {
	literal  string
	param    string
	wildcard bool
}

type compiled struct {
	entry    Entry
	segments []segment
}

// Match is the result of a successful lookup.
type Match struct {
	Entry  Entry
	Params map[string]string

	// URL is the matched prefix of the path.
	URL string

	// IsExact reports whether the whole path was consumed.
	IsExact bool
}

// Table is an ordered list of entries. Add and Seal are called during
// startup; Match is safe for concurrent use afterwards.
type Table struct {
	mu      sync.RWMutex
	entries []compiled
	sealed  bool
}

// New creates a table from entries in order.
func New(entries ...Entry) (*Table, error) {
	t := &Table{}
	for _, e := range entries {
		if err := t.Add(e); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNew is like New but panics on error.
func MustNew(entries ...Entry) *Table {
	t, err := New(entries...)
	if err != nil {
		panic(err)
	}
	return t
}

// Add appends an entry.
func (t *Table) Add(e Entry) error {
	segs, err := compile(e.Pattern)
	if err != nil {
		return err
	}
	if e.Redirect != "" {
		if _, err := routepath.ValidateNavTarget(e.Redirect); err != nil {
			return fmt.Errorf("routes: redirect %q: %w", e.Redirect, err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sealed {
		return ErrSealed
	}
	t.entries = append(t.entries, compiled{entry: e, segments: segs})
	return nil
}

// Validate checks the table invariants.
func (t *Table) Validate() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i, c := range t.entries {
		if c.entry.IsCatchAll() && i != len(t.entries)-1 {
			return errors.New("E103").
				WithDetail(fmt.Sprintf("entry %d (%q) is followed by %d more", i, c.entry.Pattern, len(t.entries)-1-i)).
				Wrap(ErrCatchAllNotLast)
		}
	}
	return nil
}

// Seal validates the table and rejects further additions.
func (t *Table) Seal() error {
	if err := t.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	t.sealed = true
	t.mu.Unlock()
	return nil
}

// Entries returns the entries in declaration order.
func (t *Table) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	for i, c := range t.entries {
		out[i] = c.entry
	}
	return out
}

// Loaders returns the distinct non-nil loaders in declaration order.
func (t *Table) Loaders() []*loader.Loader {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen := make(map[*loader.Loader]bool)
	var out []*loader.Loader
	for _, c := range t.entries {
		if l := c.entry.Loader; l != nil && !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// Match returns the first entry matching pathname.
func (t *Table) Match(pathname string) (Match, bool) {
	parts := split(pathname)

	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, c := range t.entries {
		if m, ok := c.match(parts); ok {
			return m, true
		}
	}
	return Match{}, false
}

func (c compiled) match(parts []string) (Match, bool) {
	params := make(map[string]string)
	for i, seg := range c.segments {
		if seg.wildcard {
			params["*"] = strings.Join(parts[i:], "/")
			return Match{
				Entry:   c.entry,
				Params:  params,
				URL:     "/" + strings.Join(parts, "/"),
				IsExact: true,
			}, true
		}
		if i >= len(parts) {
			return Match{}, false
		}
		switch {
		case seg.param != "":
			params[seg.param] = parts[i]
		case seg.literal != parts[i]:
			return Match{}, false
		}
	}

	exact := len(parts) == len(c.segments)
	if c.entry.Exact && !exact {
		return Match{}, false
	}
	if len(params) == 0 {
		params = nil
	}
	return Match{
		Entry:   c.entry,
		Params:  params,
		URL:     "/" + strings.Join(parts[:len(c.segments)], "/"),
		IsExact: exact,
	}, true
}

func compile(pattern string) ([]segment, error) {
	if pattern == "*" {
		return []segment{{wildcard: true}}, nil
	}
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("%w: %q must start with /", ErrInvalidPattern, pattern)
	}
	parts := split(pattern)
	segs := make([]segment, 0, len(parts))
	for i, p := range parts {
		switch {
		case p == "*":
			if i != len(parts)-1 {
				return nil, fmt.Errorf("%w: %q has * before the last segment", ErrInvalidPattern, pattern)
			}
			segs = append(segs, segment{wildcard: true})
		case strings.HasPrefix(p, ":"):
			if len(p) == 1 {
				return nil, fmt.Errorf("%w: %q has an unnamed parameter", ErrInvalidPattern, pattern)
			}
			segs = append(segs, segment{param: p[1:]})
		default:
			segs = append(segs, segment{literal: p})
		}
	}
	return segs, nil
}

func split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
