package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/drivetest/packages/core/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new drivetest project",
	Long: `Initialize a new drivetest project in the current directory.

This creates:
  - drivetest.config.json  - Configuration file
  - tests/manifest.yaml    - Manifest listing the example tests
  - tests/test_example.py  - Example standard test
  - tests/test_example.js  - Example script test

Examples:
  drivetest init
  drivetest init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

type scaffoldTest struct {
	Path     string   `yaml:"path,omitempty"`
	Expected string   `yaml:"expected,omitempty"`
	Disabled string   `yaml:"disabled,omitempty"`
	SkipIf   []string `yaml:"skip-if,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
}

type scaffoldManifest struct {
	Defaults scaffoldTest   `yaml:"defaults"`
	Tests    []scaffoldTest `yaml:"tests"`
}

const exampleStandardTest = `import json
import os
import sys
import urllib.request

# DRIVETEST_DRIVER_URL, DRIVETEST_SESSION_ID and DRIVETEST_TESTVARS are set by drivetest.
driver = os.environ["DRIVETEST_DRIVER_URL"]
session = os.environ.get("DRIVETEST_SESSION_ID", "")

with open(os.environ["DRIVETEST_TESTVARS"]) as f:
    testvars = json.load(f)

with urllib.request.urlopen(driver + "/status") as resp:
    status = json.load(resp)

if not status["value"]["ready"]:
    print("driver is not ready", file=sys.stderr)
    sys.exit(1)
`

const exampleScriptTest = `SCRIPT_TIMEOUT = 10000;

var testvars = arguments[0] || {};
var result = {passed: 0, failed: 0, failures: []};

function ok(cond, name, message) {
  if (cond) {
    result.passed++;
  } else {
    result.failed++;
    result.failures.push({name: name, message: message});
  }
}

ok(typeof navigator !== "undefined", "navigator", "navigator is not defined");

return result;
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	testsDir := filepath.Join(cwd, "tests")
	configFile := filepath.Join(cwd, "drivetest.config.json")
	manifestFile := filepath.Join(testsDir, "manifest.yaml")
	standardFile := filepath.Join(testsDir, "test_example.py")
	scriptFile := filepath.Join(testsDir, "test_example.js")

	if !forceInit {
		for _, f := range []string{configFile, manifestFile, standardFile, scriptFile} {
			if _, err := os.Stat(f); err == nil {
				return fmt.Errorf("file already exists: %s (use --force to overwrite)", f)
			}
		}
	}

	if err := os.MkdirAll(testsDir, 0755); err != nil {
		return fmt.Errorf("failed to create tests directory: %w", err)
	}

	cfg := config.DefaultConfig()
	cfg.Tests = []string{"tests/manifest.yaml"}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	m := scaffoldManifest{
		Defaults: scaffoldTest{Tags: []string{"example"}},
		Tests: []scaffoldTest{
			{Path: "test_example.py", Tags: []string{"smoke"}},
			{Path: "test_example.js", SkipIf: []string{`os == "windows"`}},
		},
	}
	manifestYAML, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	files := []struct {
		path    string
		content []byte
	}{
		{manifestFile, manifestYAML},
		{standardFile, []byte(exampleStandardTest)},
		{scriptFile, []byte(exampleScriptTest)},
	}
	for _, f := range files {
		if err := os.WriteFile(f.path, f.content, 0644); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Base(f.path), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", f.path)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\ndrivetest project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Start a driver on %s and run 'drivetest run' to execute the example tests.\n", cfg.Driver)

	return nil
}
