package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/splitroute/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		var e *errors.Error
		if errors.As(err, &e) {
			fmt.Fprint(os.Stderr, e.Format())
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		dir     string
		noColor bool
	)

	root := &cobra.Command{
		Use:   "splitroute",
		Short: "Server-rendered pages with deferred page loading",
		Long: `splitroute serves a web application whose pages are loaded on demand.

The first request for a page is rendered on the server. Later navigations
run over a live connection: the page module is fetched the first time its
route is visited, and the location only changes once it is ready.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor || os.Getenv("NO_COLOR") != "" {
				errors.SetColor(false)
			}
		},
	}
	root.PersistentFlags().StringVarP(&dir, "dir", "C", ".", "directory containing splitroute.json")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored error output")

	root.AddCommand(
		serveCmd(&dir),
		routesCmd(&dir),
		versionCmd(),
	)
	return root
}
