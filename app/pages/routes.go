package pages

import (
	"context"

	"github.com/vango-dev/splitroute/pkg/loader"
	"github.com/vango-dev/splitroute/pkg/page"
	"github.com/vango-dev/splitroute/pkg/routes"
)

// HomeName is the analytics name of the landing page.
const HomeName = "HomePage"

// Entries returns the route table entries: "/" (exact) and "/index", then
// extra, then the catch-all. All but extra share one landing page loader,
// which builds the module on first activation like any other page.
func Entries(site Site, extra []routes.Entry, opts ...loader.Option) []routes.Entry {
	home := loader.New("home", func(context.Context) (page.Module, error) {
		return Home(site), nil
	}, opts...)

	entries := []routes.Entry{
		{Pattern: "/", Exact: true, Loader: home, Name: HomeName},
		{Pattern: "/index", Loader: home, Name: HomeName},
	}
	entries = append(entries, extra...)
	return append(entries, routes.Entry{Pattern: "*", Loader: home, Name: HomeName})
}
