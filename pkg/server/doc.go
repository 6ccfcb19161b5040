// Package server is the HTTP front of a splitroute application.
//
// It renders the first response for every page URL on the server (SSR),
// answers redirect entries with 302, exposes the echo API, the Prometheus
// endpoint and the static files under /public/, and mounts the live
// session handler at /live. Routing is done with chi:
//
//	srv := server.New(table, newShell,
//	    server.WithConfig(server.Config{Address: ":60987", SSR: true}),
//	    server.WithMetrics(collector, registry),
//	)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Every page request gets its own Shell. The store the page preloads is
// serialized into window.__STORE_STATE__ so the live session can rebuild
// the same state on connect.
package server
