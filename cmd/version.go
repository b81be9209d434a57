package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/stencilhq/stencil/internal/version"
)

var (
	versionFormat string
	versionShort  bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for stencil including:

- Semantic version number
- Git commit hash
- Go version used for compilation
- Target platform (OS/architecture)

The engine version participates in every template's cache identity, so
artifacts written by one version are recompiled by the next.

Examples:
  stencil version              # Show version
  stencil version --short      # Show short version only
  stencil version --format json # Output as JSON`,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	switch versionFormat {
	case "json":
		return outputVersionJSON()
	case "text":
		if versionShort {
			fmt.Println(version.GetShortVersion())
			return nil
		}
		return outputVersionText()
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", versionFormat)
	}
}

func outputVersionText() error {
	fmt.Printf("stencil %s", version.GetVersion())

	if commit := version.GetGitCommit(); commit != "unknown" && len(commit) >= 7 {
		fmt.Printf(" (%s)", commit[:7])
	}

	fmt.Println()
	fmt.Printf("  go version: %s\n", runtime.Version())
	fmt.Printf("  platform:   %s\n", version.GetPlatform())
	return nil
}

func outputVersionJSON() error {
	info := struct {
		Version   string `json:"version"`
		GitCommit string `json:"git_commit"`
		GoVersion string `json:"go_version"`
		Platform  string `json:"platform"`
	}{
		Version:   version.GetVersion(),
		GitCommit: version.GetGitCommit(),
		GoVersion: runtime.Version(),
		Platform:  version.GetPlatform(),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}
