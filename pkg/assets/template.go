package assets

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"sort"

	"github.com/a-h/templ"

	"github.com/vango-dev/splitroute/internal/errors"
	"github.com/vango-dev/splitroute/pkg/head"
	"github.com/vango-dev/splitroute/pkg/loader"
	"github.com/vango-dev/splitroute/pkg/page"
	"github.com/vango-dev/splitroute/pkg/store"
)

// TemplateMeta is the per-route metadata for a template page.
type TemplateMeta struct {
	Title       *string
	Description string

	// Chunk is the client script chunk the page needs.
	Chunk string

	// Data is copied into the store before the first render.
	Data map[string]any
}

// TemplateData is the value templates execute against.
type TemplateData struct {
	Path   string
	Search string
	Name   string
	Params map[string]string
	Store  *store.Store
}

// TemplateModule is a page backed by an html/template file.
type TemplateModule struct {
	name string
	tmpl *template.Template
	meta TemplateMeta
}

// ParseTemplate parses a page template.
func ParseTemplate(name string, data []byte, meta TemplateMeta) (*TemplateModule, error) {
	m := &TemplateModule{name: name, meta: meta}
	tmpl, err := template.New(name).Funcs(template.FuncMap{
		"storeValue": storeValue,
	}).Parse(string(data))
	if err != nil {
		return nil, errors.New("E202").WithDetail(fmt.Sprintf("template %q", name)).Wrap(err)
	}
	m.tmpl = tmpl
	return m, nil
}

// storeValue decodes a store key for display, returning nil when absent.
func storeValue(st *store.Store, key string) (any, error) {
	if st == nil {
		return nil, nil
	}
	var v any
	if _, err := st.Get(key, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Render implements page.Module.
func (m *TemplateModule) Render(req *page.Request) templ.Component {
	if req.Head != nil {
		req.Head.Add(head.Entry{Title: m.meta.Title, Description: m.meta.Description})
	}
	data := TemplateData{
		Path:   req.Match.Path,
		Search: req.Match.Search,
		Name:   req.Match.Name,
		Params: req.Match.Params,
		Store:  req.Store,
	}
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		if err := m.tmpl.Execute(&buf, data); err != nil {
			return errors.New("E300").WithDetail(fmt.Sprintf("template %q", m.name)).Wrap(err)
		}
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// HasPreload implements page.Module.
func (m *TemplateModule) HasPreload() bool {
	return len(m.meta.Data) > 0
}

// Preload implements page.Module. Keys already in the store are kept.
func (m *TemplateModule) Preload(_ context.Context, st *store.Store, _ page.Match) error {
	keys := make([]string, 0, len(m.meta.Data))
	for k := range m.meta.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if st.Has(k) {
			continue
		}
		if err := st.Set(k, m.meta.Data[k]); err != nil {
			return errors.New("E203").WithDetail(fmt.Sprintf("template %q key %q", m.name, k)).Wrap(err)
		}
	}
	return nil
}

// Chunks implements page.Chunker.
func (m *TemplateModule) Chunks() []string {
	if m.meta.Chunk == "" {
		return nil
	}
	return []string{m.meta.Chunk}
}

// TemplateFetcher returns a fetcher that reads and parses file from src.
func TemplateFetcher(src Source, file string, meta TemplateMeta) loader.Fetcher {
	return func(ctx context.Context) (page.Module, error) {
		data, err := src.ReadFile(ctx, file)
		if err != nil {
			return nil, err
		}
		return ParseTemplate(file, data, meta)
	}
}
