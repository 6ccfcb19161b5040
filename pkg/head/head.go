// Package head collects document head overrides from the shell and the
// rendered page and renders the resulting title, meta and link tags.
//
// The shell registers the site defaults first; pages register their own
// entries while rendering. For every field the last registered non-empty
// value wins, so a page's title replaces the default one.
package head

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/a-h/templ"
)

// Site holds the site-wide defaults.
type Site struct {
	Name         string
	Tagline      string
	Description  string
	LinkHost     string
	FacebookPage string
}

// Entry is one set of head overrides. Zero fields leave earlier values alone.
type Entry struct {
	// Title is the page title; nil leaves the title unset, "" renders the
	// bare site title.
	Title *string

	Description     string
	PageURL         string
	ThumbnailURL    string
	ThumbnailAlt    string
	AuthorURL       string
	AuthorName      string
	ProfileUsername string
	IsArticle       bool

	// PreventScrolling adds overflow-hidden to the body classes.
	PreventScrolling bool
}

// Title returns a pointer to s for Entry.Title.
func Title(s string) *string {
	return &s
}

// Collector accumulates entries for one render.
type Collector struct {
	mu      sync.Mutex
	site    Site
	entries []Entry
}

// NewCollector creates an empty collector for site.
func NewCollector(site Site) *Collector {
	return &Collector{site: site}
}

// Add registers an entry. Later entries override earlier ones field by field.
func (c *Collector) Add(e Entry) {
	c.mu.Lock()
	c.entries = append(c.entries, e)
	c.mu.Unlock()
}

// Resolved is the merged head state.
type Resolved struct {
	Site Site
	Entry
}

// Resolve merges all registered entries.
func (c *Collector) Resolve() Resolved {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := Resolved{Site: c.site}
	for _, e := range c.entries {
		if e.Title != nil {
			r.Title = e.Title
		}
		override(&r.Description, e.Description)
		override(&r.PageURL, e.PageURL)
		override(&r.ThumbnailURL, e.ThumbnailURL)
		override(&r.ThumbnailAlt, e.ThumbnailAlt)
		override(&r.AuthorURL, e.AuthorURL)
		override(&r.AuthorName, e.AuthorName)
		override(&r.ProfileUsername, e.ProfileUsername)
		if e.IsArticle {
			r.IsArticle = true
		}
		if e.PreventScrolling {
			r.PreventScrolling = true
		}
	}
	return r
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// FullTitle returns the formatted document title, or "" when no title was set.
func (r Resolved) FullTitle() string {
	if r.Title == nil {
		return ""
	}
	suffix := r.Site.Name + " – " + r.Site.Tagline
	if *r.Title == "" {
		return suffix
	}
	return *r.Title + " – " + suffix
}

// BodyClass returns the classes to put on <body>.
func (r Resolved) BodyClass() string {
	if r.PreventScrolling {
		return "overflow-hidden"
	}
	return ""
}

// Tag is a single rendered head element.
type Tag struct {
	// Element is "title", "meta" or "link".
	Element string

	// Attrs are rendered in order.
	Attrs [][2]string

	// Text is the element content (title only).
	Text string
}

// Tags returns the head elements in render order.
func (r Resolved) Tags() []Tag {
	var tags []Tag
	meta := func(kind, key, content string) {
		tags = append(tags, Tag{Element: "meta", Attrs: [][2]string{{kind, key}, {"content", content}}})
	}
	link := func(rel, href string) {
		tags = append(tags, Tag{Element: "link", Attrs: [][2]string{{"rel", rel}, {"href", href}}})
	}

	if r.PageURL != "" {
		link("canonical", r.PageURL)
		meta("property", "og:url", r.PageURL)
	}
	if title := r.FullTitle(); title != "" {
		tags = append(tags, Tag{Element: "title", Text: title})
		meta("property", "og:title", title)
		meta("property", "twitter:title", title)
	}
	if r.Description != "" {
		meta("name", "description", r.Description)
		meta("property", "og:description", r.Description)
		meta("name", "twitter:description", r.Description)
	}
	if r.ThumbnailURL != "" {
		meta("property", "og:image", r.ThumbnailURL)
		meta("name", "twitter:image:src", r.ThumbnailURL)
	}
	if r.ThumbnailAlt != "" {
		meta("property", "og:image:alt", r.ThumbnailAlt)
	}
	if r.AuthorURL != "" {
		meta("property", "article:author", r.AuthorURL)
		link("author", r.AuthorURL)
	}
	if r.AuthorName != "" {
		meta("property", "author", r.AuthorName)
	}
	if r.IsArticle && r.Site.FacebookPage != "" {
		meta("property", "og:type", "article")
		meta("property", "article:publisher", r.Site.FacebookPage)
	}
	if r.ProfileUsername != "" {
		meta("property", "og:type", "profile")
		meta("property", "profile:username", r.ProfileUsername)
	}
	if !r.IsArticle && r.ProfileUsername == "" {
		meta("property", "og:type", "website")
	}

	card := "summary"
	if r.IsArticle && r.ThumbnailURL != "" {
		card = "summary_large_image"
	}
	meta("name", "twitter:card", card)
	meta("name", "robots", "index, follow")
	meta("property", "og:site_name", r.Site.Name)
	return tags
}

// Component renders the resolved tags.
func (r Resolved) Component() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, r.HTML())
		return err
	})
}

// HTML renders the resolved tags as an HTML fragment.
func (r Resolved) HTML() string {
	var b strings.Builder
	for _, tag := range r.Tags() {
		b.WriteString("<")
		b.WriteString(tag.Element)
		for _, attr := range tag.Attrs {
			b.WriteString(" ")
			b.WriteString(attr[0])
			b.WriteString(`="`)
			b.WriteString(templ.EscapeString(attr[1]))
			b.WriteString(`"`)
		}
		b.WriteString(">")
		if tag.Element == "title" {
			b.WriteString(templ.EscapeString(tag.Text))
			b.WriteString("</title>")
		}
		b.WriteString("\n")
	}
	return b.String()
}
