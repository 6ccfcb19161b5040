package assets

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/splitroute/internal/errors"
	"github.com/vango-dev/splitroute/pkg/loader"
	"github.com/vango-dev/splitroute/pkg/routes"
)

// RouteSpec declares one template-backed or redirect route.
type RouteSpec struct {
	Pattern     string         `yaml:"pattern"`
	Name        string         `yaml:"name"`
	Exact       bool           `yaml:"exact"`
	Template    string         `yaml:"template"`
	Redirect    string         `yaml:"redirect"`
	Title       *string        `yaml:"title"`
	Description string         `yaml:"description"`
	Chunk       string         `yaml:"chunk"`
	Data        map[string]any `yaml:"data"`
}

// RouteManifest is a YAML list of routes:
//
//	routes:
//	  - pattern: /about
//	    name: About
//	    template: about.html
//	    title: About
//	  - pattern: /gsb
//	    exact: true
//	    redirect: /groups/gsb
type RouteManifest struct {
	Routes []RouteSpec `yaml:"routes"`
}

// LoadRouteManifest reads and validates a route manifest from src.
func LoadRouteManifest(ctx context.Context, src Source, name string) (*RouteManifest, error) {
	data, err := src.ReadFile(ctx, name)
	if err != nil {
		return nil, err
	}
	return ParseRouteManifest(data)
}

// ParseRouteManifest decodes a route manifest. Unknown fields are errors.
func ParseRouteManifest(data []byte) (*RouteManifest, error) {
	var m RouteManifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && err != io.EOF {
		return nil, errors.New("E103").WithDetail("route manifest").Wrap(err)
	}
	for i, r := range m.Routes {
		if r.Pattern == "" {
			return nil, errors.New("E103").WithDetail(fmt.Sprintf("route %d has no pattern", i))
		}
		if r.Template != "" && r.Redirect != "" {
			return nil, errors.New("E103").
				WithDetail(fmt.Sprintf("route %q sets both template and redirect", r.Pattern))
		}
	}
	return &m, nil
}

// Entries builds route entries whose loaders fetch templates from src.
// Routes naming the same template share one loader.
func (m *RouteManifest) Entries(src Source, opts ...loader.Option) []routes.Entry {
	loaders := make(map[string]*loader.Loader)
	entries := make([]routes.Entry, 0, len(m.Routes))
	for _, r := range m.Routes {
		e := routes.Entry{
			Pattern:  r.Pattern,
			Name:     r.Name,
			Exact:    r.Exact,
			Redirect: r.Redirect,
		}
		if r.Template != "" {
			l, ok := loaders[r.Template]
			if !ok {
				meta := TemplateMeta{
					Title:       r.Title,
					Description: r.Description,
					Chunk:       r.Chunk,
					Data:        r.Data,
				}
				l = loader.New(r.Template, TemplateFetcher(src, r.Template, meta), opts...)
				loaders[r.Template] = l
			}
			e.Loader = l
		}
		entries = append(entries, e)
	}
	return entries
}
