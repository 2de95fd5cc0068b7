package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/abdul-hamid-achik/drivetest/packages/core/harness"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag   string
	logLevelFlag string

	// logger is replaced before any command runs
	logger = hclog.NewNullLogger()
)

var rootCmd = &cobra.Command{
	Use:   "drivetest",
	Short: "Crash-aware test harness for remote browser drivers.",
	Long: `drivetest discovers test files, runs them one after another against a
remote browser driver session and stops as soon as the driver crashes.

Tests come from files, directories or manifests (.ini, .toml, .yaml).
The exit code is 0 when every test passed, 10 when any test failed or
the driver crashed, and 1 when the run itself could not complete.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(cmd.ErrOrStderr(), logLevelFlag)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return "exit status " + strconv.Itoa(e.code)
}

// Execute runs the root command and exits the process.
func Execute(v, bt string) {
	version = v
	buildTime = bt

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(os.Stderr, err))
}

func exitCode(stderr io.Writer, err error) int {
	if err == nil {
		return harness.ExitSuccess
	}
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return harness.ExitError
}

func newLogger(w io.Writer, level string) (hclog.Logger, error) {
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		return nil, fmt.Errorf("invalid log level %q (valid: trace, debug, info, warn, error)", level)
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "drivetest",
		Level:  lvl,
		Output: w,
	}), nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", getEnvString("DRIVETEST_CONFIG", ""), "Path to config file (env: DRIVETEST_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", getEnvString("DRIVETEST_LOG_LEVEL", "warn"), "Log level: trace, debug, info, warn, error (env: DRIVETEST_LOG_LEVEL)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(historyCmd)
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
