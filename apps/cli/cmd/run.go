package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/drivetest/packages/core/config"
	"github.com/abdul-hamid-achik/drivetest/packages/core/harness"
	"github.com/abdul-hamid-achik/drivetest/packages/core/runner"
	"github.com/abdul-hamid-achik/drivetest/packages/driver"
	"github.com/abdul-hamid-achik/drivetest/packages/export/metrics"
	"github.com/abdul-hamid-achik/drivetest/packages/history"
	"github.com/abdul-hamid-achik/drivetest/packages/notify"
	"github.com/abdul-hamid-achik/drivetest/packages/output"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [file|directory|manifest...]",
	Short: "Run tests against a remote driver",
	Long: `Run test files, directories of tests or manifests against a remote
browser driver. Paths default to "tests" from the config file.

Examples:
  drivetest run tests/
  drivetest run manifest.ini --testvars vars.json
  drivetest run tests/manifest.yaml --tags smoke --driver http://127.0.0.1:4444
  drivetest run tests/ --repeat 5 --shuffle
  drivetest run tests/ --total-chunks 4 --this-chunk 2 -o junit --output-file report.xml
  drivetest run tests/ --no-driver --interpreter python3 --watch`,
	RunE: runCommand,
}

const (
	// readyInterval is how often the driver status is polled at startup
	readyInterval = 250 * time.Millisecond

	// closeTimeout bounds ending the driver session after a run
	closeTimeout = 10 * time.Second
)

var (
	driverFlag         string
	driverTimeoutFlag  string
	startupTimeoutFlag string
	rateLimitFlag      float64
	noDriverFlag       bool
	testvarsFlag       []string
	testvarsSchemaFlag string
	tagsFlag           string
	timeoutFlag        string
	interpreterFlag    string
	shuffleFlag        bool
	shuffleSeedFlag    int64
	repeatFlag         int
	totalChunksFlag    int
	thisChunkFlag      int
	valueFlags         []string
	verboseFlag        bool
	noColorFlag        bool
	outputFlag         string
	outputFileFlag     string
	watchFlag          bool

	// Metrics and history flags
	metricsFileFlag string
	historyFlag     string

	// Notification flags
	notifyFlag       string
	notifyOnFlag     string
	slackWebhookFlag string
	slackChannelFlag string
	teamsWebhookFlag string
)

func init() {
	// Driver flags
	runCmd.Flags().StringVar(&driverFlag, "driver", getEnvString("DRIVETEST_DRIVER", ""), "Driver address (default http://127.0.0.1:4444) (env: DRIVETEST_DRIVER)")
	runCmd.Flags().StringVar(&driverTimeoutFlag, "driver-timeout", getEnvString("DRIVETEST_DRIVER_TIMEOUT", ""), "Timeout of a single driver request, e.g. 60s (env: DRIVETEST_DRIVER_TIMEOUT)")
	runCmd.Flags().StringVar(&startupTimeoutFlag, "startup-timeout", getEnvString("DRIVETEST_STARTUP_TIMEOUT", ""), "How long to wait for the driver to become ready (env: DRIVETEST_STARTUP_TIMEOUT)")
	runCmd.Flags().Float64Var(&rateLimitFlag, "rate-limit", 0, "Maximum driver requests per second (0 = unlimited)")
	runCmd.Flags().BoolVar(&noDriverFlag, "no-driver", getEnvBool("DRIVETEST_NO_DRIVER", false), "Run without a driver session; crash detection is disabled (env: DRIVETEST_NO_DRIVER)")

	// Test selection flags
	runCmd.Flags().StringArrayVar(&testvarsFlag, "testvars", nil, "JSON file of test variables (repeatable, later files win)")
	runCmd.Flags().StringVar(&testvarsSchemaFlag, "testvars-schema", "", "JSON schema every testvars file must satisfy")
	runCmd.Flags().StringVarP(&tagsFlag, "tags", "t", getEnvString("DRIVETEST_TAGS", ""), "Run only manifest tests with one of the tags (comma-separated) (env: DRIVETEST_TAGS)")
	runCmd.Flags().StringArrayVar(&valueFlags, "value", nil, "Manifest condition value as key=value (repeatable)")
	runCmd.Flags().BoolVar(&shuffleFlag, "shuffle", false, "Run tests in random order")
	runCmd.Flags().Int64Var(&shuffleSeedFlag, "shuffle-seed", 0, "Seed for --shuffle (implies --shuffle)")
	runCmd.Flags().IntVar(&repeatFlag, "repeat", getEnvInt("DRIVETEST_REPEAT", 0), "Run the test set this many times (env: DRIVETEST_REPEAT)")
	runCmd.Flags().IntVar(&totalChunksFlag, "total-chunks", 0, "Split the tests into this many chunks")
	runCmd.Flags().IntVar(&thisChunkFlag, "this-chunk", 0, "Run only this chunk (1-based)")

	// Execution flags
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("DRIVETEST_TIMEOUT", ""), "Per-test timeout, e.g. 5m (env: DRIVETEST_TIMEOUT)")
	runCmd.Flags().StringVar(&interpreterFlag, "interpreter", getEnvString("DRIVETEST_INTERPRETER", ""), "Interpreter for standard tests (default python3) (env: DRIVETEST_INTERPRETER)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch test files for changes and re-run tests")

	// Output flags
	runCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", getEnvBool("DRIVETEST_VERBOSE", false), "Verbose output (env: DRIVETEST_VERBOSE)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("DRIVETEST_NO_COLOR", false), "Disable colored output (env: DRIVETEST_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("DRIVETEST_OUTPUT", ""), "Output formats, comma-separated: console, json, junit, tap (env: DRIVETEST_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("DRIVETEST_OUTPUT_FILE", ""), "Write non-console output to file (default: stdout) (env: DRIVETEST_OUTPUT_FILE)")

	// Metrics and history flags
	runCmd.Flags().StringVar(&metricsFileFlag, "metrics-file", getEnvString("DRIVETEST_METRICS_FILE", ""), "Write Prometheus metrics to a textfile (env: DRIVETEST_METRICS_FILE)")
	runCmd.Flags().StringVar(&historyFlag, "history", getEnvString("DRIVETEST_HISTORY", ""), "Record runs in a history database, e.g. sqlite:./runs.db (env: DRIVETEST_HISTORY)")

	// Notification flags
	runCmd.Flags().StringVar(&notifyFlag, "notify", getEnvString("DRIVETEST_NOTIFY", ""), "Notification service: slack, teams (env: DRIVETEST_NOTIFY)")
	runCmd.Flags().StringVar(&notifyOnFlag, "notify-on", getEnvString("DRIVETEST_NOTIFY_ON", ""), "When to notify: always, failure, success, recovery (env: DRIVETEST_NOTIFY_ON)")
	runCmd.Flags().StringVar(&slackWebhookFlag, "slack-webhook", getEnvString("SLACK_WEBHOOK", ""), "Slack webhook URL (env: SLACK_WEBHOOK)")
	runCmd.Flags().StringVar(&slackChannelFlag, "slack-channel", getEnvString("SLACK_CHANNEL", ""), "Slack channel override (env: SLACK_CHANNEL)")
	runCmd.Flags().StringVar(&teamsWebhookFlag, "teams-webhook", getEnvString("TEAMS_WEBHOOK", ""), "Microsoft Teams webhook URL (env: TEAMS_WEBHOOK)")
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd, args)
	if err != nil {
		return err
	}

	notifier, err := buildNotifier(cfg)
	if err != nil {
		return err
	}

	s := &runSession{
		out:      cmd.OutOrStdout(),
		errOut:   cmd.ErrOrStderr(),
		cfg:      cfg,
		noDriver: noDriverFlag,
		notifier: notifier,
	}

	code := s.run(cmd.Context())
	if watchFlag {
		code, err = s.watch(cmd.Context(), code)
		if err != nil {
			return err
		}
	}

	if code != harness.ExitSuccess {
		return &exitError{code: code}
	}
	return nil
}

// loadRunConfig merges the config file with the flags that were given.
func loadRunConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, err
	}

	flagConfig, err := configFromFlags(cmd, args)
	if err != nil {
		return nil, err
	}

	cfg := fileConfig.Merge(flagConfig)
	if len(cfg.Tests) == 0 {
		return nil, fmt.Errorf("no tests given: pass paths or set \"tests\" in the config file")
	}
	return cfg, nil
}

func configFromFlags(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := &config.Config{
		Driver:         driverFlag,
		RateLimit:      rateLimitFlag,
		Tests:          args,
		TestVars:       testvarsFlag,
		TestVarsSchema: testvarsSchemaFlag,
		Tags:           splitList(tagsFlag),
		Interpreter:    interpreterFlag,
		ShuffleSeed:    shuffleSeedFlag,
		Repeat:         repeatFlag,
		TotalChunks:    totalChunksFlag,
		ThisChunk:      thisChunkFlag,
		Reporters:      splitList(outputFlag),
		OutputFile:     outputFileFlag,
		MetricsFile:    metricsFileFlag,
		History:        historyFlag,
		Notify:         splitList(notifyFlag),
		NotifyOn:       notifyOnFlag,
		Shuffle:        boolFlag(cmd, "shuffle", shuffleFlag || shuffleSeedFlag != 0),
		Verbose:        boolFlag(cmd, "verbose", verboseFlag),
		NoColor:        boolFlag(cmd, "no-color", noColorFlag),
	}

	durations := []struct {
		name  string
		value string
		dest  *int
	}{
		{"driver-timeout", driverTimeoutFlag, &cfg.DriverTimeout},
		{"startup-timeout", startupTimeoutFlag, &cfg.StartupTimeout},
		{"timeout", timeoutFlag, &cfg.Timeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("invalid --%s value %q: %w (use format like 30s, 1m, 500ms)", d.name, d.value, err)
		}
		*d.dest = int(parsed / time.Millisecond)
	}

	values, err := parseValues(valueFlags)
	if err != nil {
		return nil, err
	}
	cfg.ManifestValues = values

	return cfg, nil
}

// boolFlag returns nil when the flag was left alone so the config file wins.
func boolFlag(cmd *cobra.Command, name string, value bool) *bool {
	if value || cmd.Flags().Changed(name) {
		return config.BoolPtr(value)
	}
	return nil
}

// parseValues turns key=value pairs into manifest condition values. true and
// false become booleans, integers become int64.
func parseValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --value %q (expected key=value)", pair)
		}
		raw = strings.TrimSpace(raw)
		if b, err := strconv.ParseBool(raw); err == nil {
			values[key] = b
		} else if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			values[key] = n
		} else {
			values[key] = raw
		}
	}
	return values, nil
}

func buildNotifier(cfg *config.Config) (*notify.Manager, error) {
	if len(cfg.Notify) == 0 {
		return nil, nil
	}

	notifyOn, err := notify.ParseNotifyOn(cfg.NotifyOn)
	if err != nil {
		return nil, err
	}

	manager := notify.NewManager(notifyOn)
	for _, service := range cfg.Notify {
		switch strings.ToLower(service) {
		case "slack":
			if slackWebhookFlag == "" {
				return nil, fmt.Errorf("--slack-webhook is required when using --notify slack")
			}
			var slackOpts []notify.SlackOption
			if slackChannelFlag != "" {
				slackOpts = append(slackOpts, notify.WithSlackChannel(slackChannelFlag))
			}
			manager.AddNotifier(notify.NewSlackNotifier(slackWebhookFlag, slackOpts...))
		case "teams":
			if teamsWebhookFlag == "" {
				return nil, fmt.Errorf("--teams-webhook is required when using --notify teams")
			}
			manager.AddNotifier(notify.NewTeamsNotifier(teamsWebhookFlag))
		default:
			return nil, fmt.Errorf("unknown notification service %q (valid: slack, teams)", service)
		}
	}
	return manager, nil
}

// runSession performs runs with one merged configuration.
type runSession struct {
	out      io.Writer
	errOut   io.Writer
	cfg      *config.Config
	noDriver bool
	notifier *notify.Manager
}

// run executes the tests once, reports the result and returns the exit code.
func (s *runSession) run(ctx context.Context) int {
	formatter, closeOutput, err := s.formatter()
	if err != nil {
		fmt.Fprintf(s.errOut, "Error: %v\n", err)
		return harness.ExitError
	}
	defer closeOutput()

	formatter.FormatHeader(version)

	var opts []runner.Option
	if !s.noDriver {
		client, err := s.connect(ctx)
		if err != nil {
			formatter.FormatError(err)
			s.flush(formatter, 0)
			return harness.ExitError
		}
		defer closeSession(client)
		opts = append(opts, runner.WithDriver(client))
	}

	h := harness.New(
		harness.WithArgs(s.cfg.RunnerConfig()),
		harness.WithLogger(logger),
		harness.WithRunnerFactory(harness.DefaultRunnerFactory(logger, opts...)),
	)
	code := harness.Main(ctx, h)

	if err := h.Err(); err != nil {
		formatter.FormatError(err)
		s.flush(formatter, 0)
		return code
	}

	r, ok := h.Runner().(*runner.Runner)
	if !ok {
		return code
	}
	res := r.Result()
	formatter.FormatResult(res)
	s.flush(formatter, res.Duration)
	s.export(ctx, res)

	return code
}

func (s *runSession) connect(ctx context.Context) (*driver.Client, error) {
	if err := driver.ValidateAddress(s.cfg.Driver); err != nil {
		return nil, err
	}

	opts := []driver.ClientOption{
		driver.WithCapabilities(s.cfg.Capabilities),
		driver.WithLogger(logger.Named("driver")),
	}
	if s.cfg.DriverTimeout > 0 {
		opts = append(opts, driver.WithTimeout(milliseconds(s.cfg.DriverTimeout)))
	}
	if s.cfg.RateLimit > 0 {
		opts = append(opts, driver.WithRateLimit(s.cfg.RateLimit, 1))
	}
	client := driver.NewClient(s.cfg.Driver, opts...)

	startup := milliseconds(s.cfg.StartupTimeout)
	if startup <= 0 {
		startup = driver.DefaultTimeout
	}
	if err := client.WaitForReady(ctx, startup, readyInterval); err != nil {
		return nil, err
	}
	if _, err := client.StartSession(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func closeSession(client *driver.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := client.Close(ctx); err != nil {
		logger.Warn("failed to end driver session", "session", client.SessionID(), "error", err)
	}
}

// formatter builds the configured reporters. Console output always goes to
// the command's output; the others go to the output file when one is set.
func (s *runSession) formatter() (output.Formatter, func(), error) {
	reporters := s.cfg.Reporters
	if len(reporters) == 0 {
		reporters = []string{"console"}
	}

	var file *os.File
	closeOutput := func() {
		if file != nil {
			file.Close()
		}
	}

	var formatters multiFormatter
	for _, name := range reporters {
		name = strings.ToLower(name)
		w := s.out
		if name != "console" && s.cfg.OutputFile != "" {
			if file == nil {
				f, err := os.Create(s.cfg.OutputFile)
				if err != nil {
					closeOutput()
					return nil, nil, fmt.Errorf("cannot create output file: %w", err)
				}
				file = f
			}
			w = file
		}
		f, err := output.New(name, w, s.cfg.GetVerbose(), s.cfg.GetNoColor())
		if err != nil {
			closeOutput()
			return nil, nil, err
		}
		formatters = append(formatters, f)
	}
	return formatters, closeOutput, nil
}

func (s *runSession) flush(f output.Formatter, d time.Duration) {
	if flushable, ok := f.(output.Flushable); ok {
		if err := flushable.Flush(d); err != nil {
			fmt.Fprintf(s.errOut, "warning: error writing output: %v\n", err)
		}
	}
}

// export writes metrics, records history and sends notifications for a
// completed run. Failures are reported as warnings.
func (s *runSession) export(ctx context.Context, res *runner.RunResult) {
	if s.cfg.MetricsFile != "" {
		if err := metrics.ExportRun(s.cfg.MetricsFile, res); err != nil {
			fmt.Fprintf(s.errOut, "warning: failed to write metrics: %v\n", err)
		}
	}

	var previous *history.Run
	if s.cfg.History != "" {
		store, err := history.Open(s.cfg.History)
		if err != nil {
			fmt.Fprintf(s.errOut, "warning: failed to open history: %v\n", err)
		} else {
			previous, err = store.Last(ctx)
			if err != nil {
				logger.Warn("failed to read last run", "error", err)
			}
			if err := store.Record(ctx, res); err != nil {
				fmt.Fprintf(s.errOut, "warning: failed to record run: %v\n", err)
			}
			store.Close()
		}
	}

	if s.notifier == nil {
		return
	}
	if previous != nil {
		s.notifier.SetLastSuccess(previous.Unsuccessful() == 0)
	}
	if err := s.notifier.Notify(ctx, notify.Summarize(res, s.cfg.Driver)); err != nil {
		fmt.Fprintf(s.errOut, "warning: failed to send notification: %v\n", err)
	}
}

func milliseconds(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// multiFormatter fans out to several formatters.
type multiFormatter []output.Formatter

func (m multiFormatter) FormatHeader(version string) {
	for _, f := range m {
		f.FormatHeader(version)
	}
}

func (m multiFormatter) FormatResult(res *runner.RunResult) {
	for _, f := range m {
		f.FormatResult(res)
	}
}

func (m multiFormatter) FormatError(err error) {
	for _, f := range m {
		f.FormatError(err)
	}
}

func (m multiFormatter) Flush(totalDuration time.Duration) error {
	var errs []error
	for _, f := range m {
		if flushable, ok := f.(output.Flushable); ok {
			errs = append(errs, flushable.Flush(totalDuration))
		}
	}
	return errors.Join(errs...)
}
