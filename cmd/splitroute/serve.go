package main

import (
	"github.com/spf13/cobra"

	"github.com/vango-dev/splitroute"
	"github.com/vango-dev/splitroute/internal/config"
)

func serveCmd(dir *string) *cobra.Command {
	var (
		port  int
		noSSR bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long: `Start the web server.

Configuration is read from splitroute.json and the environment file for
APP_ENV (.env.webdev, .env.webprod or .env.webtest). The server stops
gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*dir)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Web.Port = port
			}
			if noSSR {
				ssr := false
				cfg.SSR = &ssr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			app, err := splitroute.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			app.Logger().Info("starting",
				"env", cfg.Env,
				"version", version,
				"routes", len(app.Table().Entries()))
			return app.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "port to listen on")
	cmd.Flags().BoolVar(&noSSR, "no-ssr", false, "leave page bodies to the client")

	return cmd
}
