package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/abdul-hamid-achik/drivetest/packages/core/runner"
)

// Config represents the drivetest configuration
type Config struct {
	Driver         string         `json:"driver,omitempty"`         // driver address
	DriverTimeout  int            `json:"driverTimeout,omitempty"`  // milliseconds
	StartupTimeout int            `json:"startupTimeout,omitempty"` // milliseconds
	RateLimit      float64        `json:"rateLimit,omitempty"`      // driver requests per second
	Capabilities   map[string]any `json:"capabilities,omitempty"`
	Tests          []string       `json:"tests,omitempty"`
	TestVars       []string       `json:"testvars,omitempty"`
	TestVarsSchema string         `json:"testvarsSchema,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Timeout        int            `json:"timeout,omitempty"` // milliseconds, per test
	Interpreter    string         `json:"interpreter,omitempty"`
	Shuffle        *bool          `json:"shuffle,omitempty"`
	ShuffleSeed    int64          `json:"shuffleSeed,omitempty"`
	Repeat         int            `json:"repeat,omitempty"`
	TotalChunks    int            `json:"totalChunks,omitempty"`
	ThisChunk      int            `json:"thisChunk,omitempty"`
	ManifestValues map[string]any `json:"manifestValues,omitempty"` // values for skip-if/run-if
	Reporters      []string       `json:"reporters,omitempty"`      // Output reporters
	OutputFile     string         `json:"outputFile,omitempty"`
	MetricsFile    string         `json:"metricsFile,omitempty"`
	History        string         `json:"history,omitempty"` // e.g. sqlite:./runs.db
	Notify         []string       `json:"notify,omitempty"`
	NotifyOn       string         `json:"notifyOn,omitempty"`
	LogLevel       string         `json:"logLevel,omitempty"`
	Verbose        *bool          `json:"verbose,omitempty"`
	NoColor        *bool          `json:"noColor,omitempty"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetShuffle returns the shuffle setting, defaulting to false
func (c *Config) GetShuffle() bool {
	return getBool(c.Shuffle, false)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".drivetest.config.json",
	"drivetest.config.json",
	".drivetestrc",
	".drivetestrc.json",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	// relative paths in a config file are relative to the file
	base := filepath.Dir(path)
	config.Tests = resolvePaths(base, config.Tests)
	config.TestVars = resolvePaths(base, config.TestVars)
	if config.TestVarsSchema != "" {
		config.TestVarsSchema = resolvePath(base, config.TestVarsSchema)
	}

	return config, nil
}

func resolvePaths(base string, paths []string) []string {
	if len(paths) == 0 {
		return paths
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = resolvePath(base, p)
	}
	return out
}

func resolvePath(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.Driver != "" {
		result.Driver = other.Driver
	}
	if other.DriverTimeout > 0 {
		result.DriverTimeout = other.DriverTimeout
	}
	if other.StartupTimeout > 0 {
		result.StartupTimeout = other.StartupTimeout
	}
	if other.RateLimit > 0 {
		result.RateLimit = other.RateLimit
	}
	if other.TestVarsSchema != "" {
		result.TestVarsSchema = other.TestVarsSchema
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.Interpreter != "" {
		result.Interpreter = other.Interpreter
	}
	if other.ShuffleSeed != 0 {
		result.ShuffleSeed = other.ShuffleSeed
	}
	if other.Repeat > 0 {
		result.Repeat = other.Repeat
	}
	if other.TotalChunks > 0 {
		result.TotalChunks = other.TotalChunks
		result.ThisChunk = other.ThisChunk
	}
	if other.OutputFile != "" {
		result.OutputFile = other.OutputFile
	}
	if other.MetricsFile != "" {
		result.MetricsFile = other.MetricsFile
	}
	if other.History != "" {
		result.History = other.History
	}
	if other.NotifyOn != "" {
		result.NotifyOn = other.NotifyOn
	}
	if other.LogLevel != "" {
		result.LogLevel = other.LogLevel
	}

	// Boolean flags - only override if explicitly set in other config
	if other.Shuffle != nil {
		result.Shuffle = other.Shuffle
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	// Lists replace rather than append
	if len(other.Tests) > 0 {
		result.Tests = other.Tests
	}
	if len(other.TestVars) > 0 {
		result.TestVars = other.TestVars
	}
	if len(other.Tags) > 0 {
		result.Tags = other.Tags
	}
	if len(other.Reporters) > 0 {
		result.Reporters = other.Reporters
	}
	if len(other.Notify) > 0 {
		result.Notify = other.Notify
	}

	result.Capabilities = mergeMaps(c.Capabilities, other.Capabilities)
	result.ManifestValues = mergeMaps(c.ManifestValues, other.ManifestValues)

	return &result
}

func mergeMaps(base, over map[string]any) map[string]any {
	if len(over) == 0 {
		return base
	}
	out := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// SaveConfig saves the configuration to a file
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// RunnerConfig translates the file configuration into runner settings.
func (c *Config) RunnerConfig() *runner.Config {
	return &runner.Config{
		Tests:          c.Tests,
		TestVars:       c.TestVars,
		TestVarsSchema: c.TestVarsSchema,
		Tags:           c.Tags,
		Shuffle:        c.GetShuffle(),
		ShuffleSeed:    c.ShuffleSeed,
		TotalChunks:    c.TotalChunks,
		ThisChunk:      c.ThisChunk,
		Repeat:         c.Repeat,
		Timeout:        time.Duration(c.Timeout) * time.Millisecond,
		ManifestValues: c.ManifestValues,
		Interpreter:    c.Interpreter,
	}
}
