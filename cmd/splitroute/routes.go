package main

import (
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vango-dev/splitroute"
	"github.com/vango-dev/splitroute/internal/config"
	"github.com/vango-dev/splitroute/pkg/routes"
)

func routesCmd(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the route table",
		Long:  `Print the route table in match order, with the page module behind each entry.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*dir)
			if err != nil {
				return err
			}
			app, err := splitroute.New(cmd.Context(), cfg,
				splitroute.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
			if err != nil {
				return err
			}
			defer app.Close()

			printRoutes(cmd.OutOrStdout(), app.Table().Entries())
			return nil
		},
	}
}

func printRoutes(w io.Writer, entries []routes.Entry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATTERN\tNAME\tEXACT\tMODULE")
	for _, e := range entries {
		module := "-"
		switch {
		case e.Redirect != "":
			module = "→ " + e.Redirect
		case e.Loader != nil:
			module = e.Loader.Name()
		}
		name := e.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%v\t%s\n", e.Pattern, name, e.Exact, module)
	}
	tw.Flush()
}
