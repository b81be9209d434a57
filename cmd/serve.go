package cmd

import (
	"github.com/spf13/cobra"

	"github.com/stencilhq/stencil/internal/config"
	"github.com/stencilhq/stencil/internal/environment"
	"github.com/stencilhq/stencil/internal/server"
)

var (
	serveHost string
	servePort int
)

// serveCmd starts the live preview server.
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the preview server",
	Long: `Start a development server that renders templates over HTTP and
reloads connected browsers when a template source changes.

The server watches every configured template path. On change the
rendering environment is rebuilt so no stale compiled template
survives, then every connected browser is told to reload.

Examples:
  stencil serve
  stencil serve --port 9000
  stencil serve --host 0.0.0.0`,
	RunE: runServeCommand,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "host to bind (overrides config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to bind (overrides config)")
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	// Preview always checks freshness so edits take effect immediately.
	cfg.Engine.AutoReload = true

	log := newLogger()

	factory := func() (*environment.Environment, error) {
		return buildEnvironment(cfg, log)
	}

	srv, err := server.New(cfg.Server.Host, cfg.Server.Port, cfg.Templates.Paths, factory, log)
	if err != nil {
		return err
	}

	return srv.Start(cmd.Context())
}
