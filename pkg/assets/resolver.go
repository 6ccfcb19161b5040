package assets

import (
	"html/template"
	"strings"
)

// Resolver turns chunk names into the script URLs a page needs.
type Resolver interface {
	// Scripts returns the URLs for chunks in load order.
	Scripts(chunks ...string) []string
}

// manifestResolver wraps a Manifest to implement Resolver.
type manifestResolver struct {
	manifest *Manifest
	prefix   string
}

// NewResolver creates a Resolver from a Manifest with a path prefix such as
// "/public/".
func NewResolver(m *Manifest, prefix string) Resolver {
	return &manifestResolver{
		manifest: m,
		prefix:   prefix,
	}
}

func (r *manifestResolver) Scripts(chunks ...string) []string {
	files := r.manifest.Scripts(chunks...)
	for i, f := range files {
		files[i] = r.prefix + f
	}
	return files
}

// passthrough maps every chunk to "<chunk>.js" (for development without a
// manifest).
type passthrough struct {
	prefix string
}

// NewPassthroughResolver creates a resolver that uses chunk names as file
// names.
func NewPassthroughResolver(prefix string) Resolver {
	return &passthrough{prefix: prefix}
}

func (p *passthrough) Scripts(chunks ...string) []string {
	out := make([]string, 0, len(chunks))
	seen := make(map[string]bool)
	for _, c := range chunks {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, p.prefix+c+".js")
	}
	return out
}

// ScriptTags renders deferred script tags for urls.
func ScriptTags(urls []string) template.HTML {
	var b strings.Builder
	for _, u := range urls {
		b.WriteString(`<script defer src="`)
		b.WriteString(template.HTMLEscapeString(u))
		b.WriteString(`"></script>`)
		b.WriteString("\n")
	}
	return template.HTML(b.String())
}
