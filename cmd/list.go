package cmd

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stencilhq/stencil/internal/config"
)

var (
	listFormat string
	listWithID bool
)

// templateInfo describes one resolvable template for list output.
type templateInfo struct {
	Name     string `json:"name" yaml:"name"`
	Root     string `json:"root" yaml:"root"`
	Identity string `json:"identity,omitempty" yaml:"identity,omitempty"`
}

// listCmd enumerates the templates resolvable through the configured
// template paths.
var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List resolvable templates",
	Long: `List every template reachable through the configured template paths,
in resolution order: when the same name exists under several roots only
the first occurrence is resolvable.

Examples:
  stencil list
  stencil list --format json
  stencil list --identity`,
	RunE: runListCommand,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "text", "Output format (text, json, yaml)")
	listCmd.Flags().BoolVar(&listWithID, "identity", false, "include each template's cache identity")
}

func runListCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	templates, err := collectTemplates(cfg.Templates.Paths)
	if err != nil {
		return err
	}

	if listWithID {
		log := newLogger()
		env, err := buildEnvironment(cfg, log)
		if err != nil {
			return err
		}
		for i := range templates {
			identity, err := env.TemplateCacheKey(templates[i].Name)
			if err != nil {
				return err
			}
			templates[i].Identity = identity
		}
	}

	switch listFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(templates)
	case "yaml":
		return yaml.NewEncoder(os.Stdout).Encode(templates)
	case "text":
		for _, t := range templates {
			if t.Identity != "" {
				fmt.Printf("%s\t%s\t%s\n", t.Name, t.Root, t.Identity)
			} else {
				fmt.Printf("%s\t%s\n", t.Name, t.Root)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json, yaml)", listFormat)
	}
}

// collectTemplates walks the roots in order and records each template
// name the first time it is seen, matching loader resolution order.
func collectTemplates(roots []string) ([]templateInfo, error) {
	seen := map[string]bool{}
	var templates []templateInfo

	for _, root := range roots {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			name := filepath.ToSlash(rel)
			if !seen[name] {
				seen[name] = true
				templates = append(templates, templateInfo{Name: name, Root: root})
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates, nil
}
