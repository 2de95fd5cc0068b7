package cmd

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/drivetest/packages/core/config"
	"github.com/abdul-hamid-achik/drivetest/packages/core/descriptor"
	"github.com/abdul-hamid-achik/drivetest/packages/core/discovery"
	"github.com/abdul-hamid-achik/drivetest/packages/core/handler"
	"github.com/spf13/cobra"
)

var listValueFlags []string

var listCmd = &cobra.Command{
	Use:   "list [file|directory|manifest...]",
	Short: "List the tests a run would execute",
	Long: `List the tests found in files, directories and manifests without
running them. Tests disabled by a manifest are listed with their reason.

Examples:
  drivetest list tests/
  drivetest list tests/manifest.ini --value os=linux`,
	RunE: listCommand,
}

func init() {
	listCmd.Flags().StringArrayVar(&listValueFlags, "value", nil, "Manifest condition value as key=value (repeatable)")
}

func listCommand(cmd *cobra.Command, args []string) error {
	paths, err := commandPaths(args)
	if err != nil {
		return err
	}

	values, err := parseValues(listValueFlags)
	if err != nil {
		return err
	}

	registry := handler.DefaultRegistry()
	opts := []discovery.Option{
		discovery.WithMatcher(registry.Matches),
		discovery.WithLogger(logger.Named("discovery")),
	}
	if values != nil {
		opts = append(opts, discovery.WithManifestValues(values))
	}
	d := discovery.New(opts...)

	out := cmd.OutOrStdout()
	for _, path := range paths {
		found, err := d.Discover(path)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "\n%s:\n", path)
		for _, t := range found.Tests {
			kind := "unknown"
			if h, ok := registry.Lookup(t.Path); ok {
				kind = string(h.Kind())
			}
			fmt.Fprintf(out, "  - %s [%s]", t.Path, kind)
			if t.Expected != descriptor.ExpectPass {
				fmt.Fprintf(out, " (expected: %s)", t.Expected)
			}
			fmt.Fprintln(out)
			if len(t.Tags) > 0 {
				fmt.Fprintf(out, "    tags: %s\n", strings.Join(t.Tags, ", "))
			}
		}
		for _, s := range found.Skipped {
			fmt.Fprintf(out, "  - %s (disabled: %s)\n", s.Path, s.Reason)
		}
	}

	return nil
}

// commandPaths returns args, or the tests of the config file when no
// paths were given.
func commandPaths(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, err
	}
	if len(cfg.Tests) == 0 {
		return nil, fmt.Errorf("no tests given: pass paths or set \"tests\" in the config file")
	}
	return cfg.Tests, nil
}
