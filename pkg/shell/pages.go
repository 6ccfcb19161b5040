package shell

import (
	"github.com/a-h/templ"

	"github.com/vango-dev/splitroute/pkg/head"
	"github.com/vango-dev/splitroute/pkg/page"
)

// DefaultNotFound renders a plain 404 page.
var DefaultNotFound page.Module = page.Func(func(req *page.Request) templ.Component {
	req.SetStatus(404)
	if req.Head != nil {
		req.Head.Add(head.Entry{Title: head.Title("Not Found")})
	}
	return templ.Raw(`<main class="NotFound"><h1>Page not found</h1></main>`)
})

// DefaultFallback renders the loading placeholder.
var DefaultFallback page.Module = page.Func(func(*page.Request) templ.Component {
	return templ.Raw(`<main class="LoadingPage"><div class="LoadingIcon" aria-label="Loading"></div></main>`)
})
