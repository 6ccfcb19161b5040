// Package errors provides coded, structured errors for splitroute.
//
// Every error raised at a package boundary that an operator might see
// (configuration, page loading, rendering, the live protocol) carries a
// stable code that maps to a registered message and explanation:
//
//	err := errors.New("E201").
//	    WithDetail("fetch home.html: 503 Service Unavailable").
//	    Wrap(cause)
//
//	fmt.Println(err.Format())
//	// ERROR E201: Page module failed to load
//	//
//	//   fetch home.html: 503 Service Unavailable
//
// # Error Categories
//
//   - config: configuration files and environment
//   - load: deferred page module fetches
//   - render: shell and page rendering
//   - protocol: live session frames
//   - http: request handling
//
// Codes are grouped by category: E1xx config, E2xx load, E3xx render,
// E4xx protocol, E5xx http.
package errors
