package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPageViewJSON(t *testing.T) {
	tests := []struct {
		name string
		pv   PageView
		want string
	}{
		{
			name: "first view",
			pv:   PageView{PageName: "Home", Path: "/", IsFirst: true},
			want: `{"pageName":"Home","path":"/","isFirst":true}`,
		},
		{
			name: "navigation",
			pv: PageView{
				PageName: "User",
				Path:     "/users/42?tab=posts",
				Referrer: "/",
				Params:   map[string]string{"id": "42"},
			},
			want: `{"pageName":"User","path":"/users/42?tab=posts","referrer":"/","params":{"id":"42"},"isFirst":false}`,
		},
		{
			name: "unmatched",
			pv:   PageView{Path: "/nowhere"},
			want: `{"path":"/nowhere","isFirst":false}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.pv)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMultiAndRecorder(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	m := Multi(a, nil, b)
	m.TrackPageview(context.Background(), PageView{Path: "/x"})

	if len(a.Views()) != 1 || len(b.Views()) != 1 {
		t.Errorf("views: a=%d b=%d", len(a.Views()), len(b.Views()))
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	l.TrackPageview(context.Background(), PageView{
		PageName: "About",
		Path:     "/about",
		Referrer: "/",
		Params:   map[string]string{"a": "b"},
	})

	out := buf.String()
	for _, want := range []string{"page view", "path=/about", "page=About", "referrer=/", "component=analytics"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

func TestCounterSkipsFirstView(t *testing.T) {
	c := NewCounter(prometheus.NewRegistry())
	c.TrackPageview(context.Background(), PageView{PageName: "Home", IsFirst: true})
	c.TrackPageview(context.Background(), PageView{PageName: "Home"})
	c.TrackPageview(context.Background(), PageView{})

	if got := testutil.ToFloat64(c.views.WithLabelValues("Home")); got != 1 {
		t.Errorf("Home views = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.views.WithLabelValues("unmatched")); got != 1 {
		t.Errorf("unmatched views = %v, want 1", got)
	}
}
