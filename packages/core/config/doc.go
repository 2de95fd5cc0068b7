// Package config handles configuration loading and management for drivetest.
//
// It provides functionality for:
//   - Loading configuration from .drivetest.config.json or .drivetestrc files
//   - Default configuration values
//   - Merging file values with command line overrides
//   - Translating the file configuration into a runner.Config
package config
