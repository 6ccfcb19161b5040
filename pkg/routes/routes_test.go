package routes

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/a-h/templ"
	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/splitroute/internal/errors"
	"github.com/vango-dev/splitroute/pkg/loader"
	"github.com/vango-dev/splitroute/pkg/page"
)

func testLoader(name string) *loader.Loader {
	return loader.Ready(name, page.Func(func(*page.Request) templ.Component { return templ.NopComponent }))
}

func TestMatch(t *testing.T) {
	table := MustNew(
		Entry{Pattern: "/", Name: "Home", Exact: true},
		Entry{Pattern: "/about", Name: "About"},
		Entry{Pattern: "/users/:id", Name: "User", Exact: true},
		Entry{Pattern: "/files/*", Name: "Files"},
		Entry{Pattern: "*", Name: "NotFound"},
	)

	tests := []struct {
		path   string
		name   string
		params map[string]string
		exact  bool
	}{
		{"/", "Home", nil, true},
		{"", "Home", nil, true},
		{"/about", "About", nil, true},
		{"/about/", "About", nil, true},
		{"/about/team", "About", nil, false},
		{"/aboutus", "NotFound", map[string]string{"*": "aboutus"}, true},
		{"/users/42", "User", map[string]string{"id": "42"}, true},
		{"/users/42/edit", "NotFound", map[string]string{"*": "users/42/edit"}, true},
		{"/files/a/b.txt", "Files", map[string]string{"*": "a/b.txt"}, true},
		{"/files", "Files", map[string]string{"*": ""}, true},
		{"/nope", "NotFound", map[string]string{"*": "nope"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			m, ok := table.Match(tt.path)
			if !ok {
				t.Fatalf("Match(%q) found nothing", tt.path)
			}
			if m.Entry.Name != tt.name {
				t.Errorf("Match(%q) = %q, want %q", tt.path, m.Entry.Name, tt.name)
			}
			if diff := cmp.Diff(tt.params, m.Params); diff != "" {
				t.Errorf("params mismatch (-want +got):\n%s", diff)
			}
			if m.IsExact != tt.exact {
				t.Errorf("IsExact = %v, want %v", m.IsExact, tt.exact)
			}
		})
	}
}

func TestFirstMatchWins(t *testing.T) {
	table := MustNew(
		Entry{Pattern: "/a", Name: "A", Exact: true},
		Entry{Pattern: "/*", Name: "Wildcard"},
	)
	m, ok := table.Match("/a")
	if !ok || m.Entry.Name != "A" {
		t.Errorf("Match(/a) = %q, want A", m.Entry.Name)
	}
	m, _ = table.Match("/a/b")
	if m.Entry.Name != "Wildcard" {
		t.Errorf("Match(/a/b) = %q, want Wildcard", m.Entry.Name)
	}
}

func TestNoMatch(t *testing.T) {
	table := MustNew(Entry{Pattern: "/", Exact: true})
	if _, ok := table.Match("/missing"); ok {
		t.Error("Match(/missing) should find nothing")
	}
}

func TestCatchAllMustBeLast(t *testing.T) {
	table := MustNew(
		Entry{Pattern: "*", Name: "All"},
		Entry{Pattern: "/late", Name: "Late"},
	)
	err := table.Validate()
	if !stderrors.Is(err, ErrCatchAllNotLast) {
		t.Fatalf("Validate() = %v, want ErrCatchAllNotLast", err)
	}
	if errors.Code(err) != "E103" {
		t.Errorf("code = %q, want E103", errors.Code(err))
	}
	if err := table.Seal(); err == nil {
		t.Error("Seal() should fail validation")
	}
}

func TestSeal(t *testing.T) {
	table := MustNew(Entry{Pattern: "/"})
	if err := table.Seal(); err != nil {
		t.Fatal(err)
	}
	if err := table.Add(Entry{Pattern: "/x"}); !stderrors.Is(err, ErrSealed) {
		t.Errorf("Add() after Seal = %v, want ErrSealed", err)
	}
}

func TestInvalidPatterns(t *testing.T) {
	for _, p := range []string{"about", "/a/*/b", "/users/:"} {
		if _, err := New(Entry{Pattern: p}); !stderrors.Is(err, ErrInvalidPattern) {
			t.Errorf("New(%q) = %v, want ErrInvalidPattern", p, err)
		}
	}
	if _, err := New(Entry{Pattern: "/old", Redirect: "https://evil.example"}); err == nil {
		t.Error("absolute redirect targets should be rejected")
	}
}

func TestLoaders(t *testing.T) {
	home := testLoader("home")
	about := testLoader("about")
	table := MustNew(
		Entry{Pattern: "/", Exact: true, Loader: home},
		Entry{Pattern: "/about", Loader: about},
		Entry{Pattern: "/gone", Redirect: "/about"},
		Entry{Pattern: "*", Loader: home},
	)
	got := table.Loaders()
	if len(got) != 2 || got[0] != home || got[1] != about {
		t.Errorf("Loaders() = %v", got)
	}
	if len(table.Entries()) != 4 {
		t.Errorf("Entries() = %d, want 4", len(table.Entries()))
	}
	if _, err := got[0].Load(context.Background()); err != nil {
		t.Error(err)
	}
}
