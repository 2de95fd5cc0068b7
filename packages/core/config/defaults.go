package config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Driver:         "http://127.0.0.1:4444",
		DriverTimeout:  60000,  // 1 minute
		StartupTimeout: 30000,  // 30 seconds
		Timeout:        300000, // 5 minutes
		Interpreter:    "python3",
		Repeat:         1,
		Reporters:      []string{"console"},
		NotifyOn:       "failure",
		LogLevel:       "warn",
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.Driver == defaults.Driver &&
		c.DriverTimeout == defaults.DriverTimeout &&
		c.StartupTimeout == defaults.StartupTimeout &&
		c.Timeout == defaults.Timeout &&
		c.Interpreter == defaults.Interpreter &&
		c.Repeat == defaults.Repeat &&
		c.NotifyOn == defaults.NotifyOn &&
		c.LogLevel == defaults.LogLevel &&
		len(c.Tests) == 0 &&
		len(c.TestVars) == 0 &&
		len(c.Tags) == 0 &&
		c.Shuffle == nil &&
		c.TotalChunks == 0 &&
		c.OutputFile == "" &&
		c.MetricsFile == "" &&
		c.History == ""
}
