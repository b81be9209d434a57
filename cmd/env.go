package cmd

import (
	"github.com/spf13/viper"

	"github.com/stencilhq/stencil/internal/config"
	"github.com/stencilhq/stencil/internal/environment"
	"github.com/stencilhq/stencil/internal/loader"
	"github.com/stencilhq/stencil/internal/logging"
)

// newLogger builds the CLI logger from the configured log level.
func newLogger() logging.Logger {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(viper.GetString("log-level"))
	return logging.NewLogger(cfg).WithComponent("cli")
}

// buildEnvironment assembles a rendering environment from the loaded
// configuration. Every command that touches templates goes through
// here so flags and config produce the same environment everywhere.
func buildEnvironment(cfg *config.Config, log logging.Logger) (*environment.Environment, error) {
	ld := loader.NewFilesystemLoader(cfg.Templates.Paths...)

	return environment.New(ld, environment.Options{
		Debug:           cfg.Engine.Debug,
		AutoReload:      cfg.Engine.AutoReload,
		StrictVariables: cfg.Engine.StrictVariables,
		AutoEscape:      cfg.Engine.AutoEscape,
		Charset:         cfg.Engine.Charset,
		Optimizations:   cfg.Engine.Optimizations,
		Cache:           cfg.CacheTarget(),
		Logger:          log,
	})
}
