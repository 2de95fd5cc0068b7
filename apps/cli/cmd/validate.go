package cmd

import (
	"fmt"
	"os"

	"github.com/abdul-hamid-achik/drivetest/packages/core/config"
	"github.com/abdul-hamid-achik/drivetest/packages/core/discovery"
	"github.com/abdul-hamid-achik/drivetest/packages/core/failure"
	"github.com/abdul-hamid-achik/drivetest/packages/core/handler"
	"github.com/abdul-hamid-achik/drivetest/packages/core/testvars"
	"github.com/abdul-hamid-achik/drivetest/packages/driver"
	"github.com/spf13/cobra"
)

var (
	validateTestvarsFlag []string
	validateSchemaFlag   string
)

var validateCmd = &cobra.Command{
	Use:   "validate [file|directory|manifest...]",
	Short: "Validate manifests, testvars and configuration",
	Long: `Check manifests, test paths, testvars files and the config file without
running any test or contacting the driver.

Examples:
  drivetest validate tests/manifest.ini
  drivetest validate tests/ --testvars vars.json --testvars-schema vars.schema.json`,
	RunE: validateCommand,
}

func init() {
	validateCmd.Flags().StringArrayVar(&validateTestvarsFlag, "testvars", nil, "JSON file of test variables to check (repeatable)")
	validateCmd.Flags().StringVar(&validateSchemaFlag, "testvars-schema", "", "JSON schema the testvars files must satisfy")
}

func validateCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return err
	}
	if cfg.Tests, err = commandPaths(args); err != nil {
		return err
	}
	if len(validateTestvarsFlag) > 0 {
		cfg.TestVars = validateTestvarsFlag
	}
	if validateSchemaFlag != "" {
		cfg.TestVarsSchema = validateSchemaFlag
	}

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	hasErrors := false
	report := func(what string, err error) {
		if err != nil {
			fmt.Fprintf(errOut, "Error in %s: %v\n", what, err)
			hasErrors = true
			return
		}
		fmt.Fprintf(out, "Valid: %s\n", what)
	}

	report("driver address "+cfg.Driver, driver.ValidateAddress(cfg.Driver))

	registry := handler.DefaultRegistry()
	opts := []discovery.Option{discovery.WithMatcher(registry.Matches)}
	if cfg.ManifestValues != nil {
		opts = append(opts, discovery.WithManifestValues(cfg.ManifestValues))
	}
	d := discovery.New(opts...)
	for _, path := range cfg.Tests {
		found, err := d.Discover(path)
		if err == nil {
			err = checkFound(found)
		}
		report(path, err)
	}

	if len(cfg.TestVars) > 0 {
		var varOpts []testvars.Option
		if cfg.TestVarsSchema != "" {
			varOpts = append(varOpts, testvars.WithSchema(cfg.TestVarsSchema))
		}
		for _, path := range cfg.TestVars {
			_, err := testvars.Load([]string{path}, varOpts...)
			report(path, err)
		}
	}

	if hasErrors {
		return fmt.Errorf("validation failed")
	}
	return nil
}

// checkFound reports tests that a run would fail to execute.
func checkFound(found *discovery.Result) error {
	if len(found.Tests) == 0 && len(found.Skipped) == 0 {
		return fmt.Errorf("no tests found")
	}
	for _, t := range found.Tests {
		if _, err := os.Stat(t.Path); err != nil {
			return failure.NotFoundf(t.Path, "test file")
		}
	}
	return nil
}
