package pages

import (
	"github.com/a-h/templ"

	"github.com/vango-dev/splitroute/pkg/page"
)

// Home is the landing page.
func Home(site Site) page.Module {
	return page.Func(func(*page.Request) templ.Component {
		return MainPage(site, homeContent())
	})
}
