// Package cmd provides the command-line interface for stencil with
// configuration management supporting multiple configuration sources.
//
// Configuration System:
//
//	The CLI supports flexible configuration through multiple sources with clear precedence:
//	1. Command-line flags (--config, --port, etc.) - highest priority
//	2. STENCIL_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (STENCIL_SERVER_PORT, etc.)
//	4. Configuration files (.stencil.yml) - lowest priority
//
// Environment Variables:
//
//	STENCIL_CONFIG_FILE: Path to custom configuration file
//	STENCIL_SERVER_PORT: Override server port
//	STENCIL_SERVER_HOST: Override server host
//	STENCIL_ENGINE_AUTO_RELOAD: Enable/disable template freshness checks
//	And more following the STENCIL_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stencil",
	Short: "A template rendering engine with compiled artifact caching",
	Long: `Stencil is a template rendering engine that compiles templates into
cacheable artifacts, with automatic staleness detection and live preview.

Key Features:
  • Compiled template artifacts with content-addressed cache keys
  • Automatic recompilation when sources or extensions change
  • Multi-root template resolution
  • Extensible filters, functions and tests
  • Live preview server with WebSocket-based reload

Quick Start:
  stencil render page.html       Render a template to stdout
  stencil list                   List resolvable templates
  stencil serve                  Start the preview server

Command Aliases (for faster typing):
  render (r), list (l), serve (s)

Documentation: https://github.com/stencilhq/stencil`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .stencil.yml, can also use STENCIL_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig initializes the configuration system with support for
// multiple config sources.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. STENCIL_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .stencil.yml in current directory
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("STENCIL_CONFIG_FILE"); envConfigFile != "" {
		// Supports both relative paths (./custom-config.yml) and absolute paths
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".stencil")
	}

	// Enable automatic environment variable binding with STENCIL_ prefix
	// Examples: STENCIL_SERVER_PORT, STENCIL_ENGINE_AUTO_RELOAD
	viper.SetEnvPrefix("STENCIL")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// If the file doesn't exist Viper falls back to defaults; a missing
	// config file is not an error.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
