package pages

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/vango-dev/splitroute/pkg/head"
	"github.com/vango-dev/splitroute/pkg/page"
	"github.com/vango-dev/splitroute/pkg/routes"
	"github.com/vango-dev/splitroute/pkg/store"
)

var site = Site{Name: "Demo <Site>", AdminName: "Ada", AdminEmail: "ada@example.com"}

func TestEntries(t *testing.T) {
	extra := []routes.Entry{{Pattern: "/groups/gsb", Name: "Group"}}
	table, err := routes.New(Entries(site, extra)...)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"/index", "/index"},
		{"/index/more", "/index"},
		{"/groups/gsb", "/groups/gsb"},
		{"/anything/else", "*"},
	}
	for _, tt := range tests {
		m, ok := table.Match(tt.path)
		if !ok || m.Entry.Pattern != tt.want {
			t.Errorf("Match(%q) = %q, %v; want %q", tt.path, m.Entry.Pattern, ok, tt.want)
		}
	}

	if n := len(table.Loaders()); n != 1 {
		t.Errorf("distinct loaders = %d, want 1", n)
	}
}

func TestHomeRender(t *testing.T) {
	req := page.NewRequest(store.New(nil), page.Match{Path: "/"}, head.NewCollector(head.Site{}))
	var buf bytes.Buffer
	if err := Home(site).Render(req).Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"<h1>Hello world</h1>",
		"Demo &lt;Site&gt;",
		"Created by Ada",
		`href="mailto:ada@example.com"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestMainPageWithoutAdmin(t *testing.T) {
	var buf bytes.Buffer
	if err := MainPage(Site{Name: "Demo"}, homeContent()).Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, `<nav class="navbar navbar-light bg-light">`) {
		t.Errorf("output should start with the navbar:\n%s", out)
	}
	if strings.Contains(out, "Created by") || strings.Contains(out, "mailto:") {
		t.Errorf("footer shows empty admin details:\n%s", out)
	}
	if !strings.HasSuffix(out, `<footer class="footer"><div class="container"></div></footer>`) {
		t.Errorf("output should end with the footer:\n%s", out)
	}
}
