package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stencilhq/stencil/internal/config"
)

var (
	renderContextFile string
	renderOutputFile  string
	renderInline      bool
)

// renderCmd renders a single template to stdout or a file.
var renderCmd = &cobra.Command{
	Use:     "render <template>",
	Aliases: []string{"r"},
	Short:   "Render a template",
	Long: `Render a template resolved through the configured template paths.

Variables are read from a YAML context file and made available to the
template alongside registered globals.

Examples:
  stencil render page.html
  stencil render page.html --context data.yml
  stencil render page.html --output out.html
  stencil render --inline 'Hello {{ name }}' --context data.yml`,
	Args: cobra.ExactArgs(1),
	RunE: runRenderCommand,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&renderContextFile, "context", "c", "", "YAML file with template variables")
	renderCmd.Flags().StringVarP(&renderOutputFile, "output", "o", "", "write output to file instead of stdout")
	renderCmd.Flags().BoolVar(&renderInline, "inline", false, "treat the argument as template source, not a name")
}

func runRenderCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := newLogger()
	env, err := buildEnvironment(cfg, log)
	if err != nil {
		return err
	}

	vars, err := loadContextFile(renderContextFile)
	if err != nil {
		return err
	}

	var output string
	if renderInline {
		tmpl, err := env.CreateTemplate(args[0])
		if err != nil {
			return err
		}
		output, err = tmpl.Render(vars)
		if err != nil {
			return err
		}
	} else {
		output, err = env.Render(args[0], vars)
		if err != nil {
			return err
		}
	}

	if renderOutputFile != "" {
		return os.WriteFile(renderOutputFile, []byte(output), 0644)
	}

	fmt.Print(output)
	return nil
}

// loadContextFile parses the YAML context file into template variables.
// An empty path yields an empty context.
func loadContextFile(path string) (map[string]interface{}, error) {
	if path == "" {
		return map[string]interface{}{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading context file: %w", err)
	}

	vars := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &vars); err != nil {
		return nil, fmt.Errorf("parsing context file %s: %w", path, err)
	}
	return vars, nil
}
