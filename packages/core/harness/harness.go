// Package harness wires argument parsing, the runner and exit codes together.
package harness

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/abdul-hamid-achik/drivetest/packages/core/config"
	"github.com/abdul-hamid-achik/drivetest/packages/core/runner"
	"github.com/hashicorp/go-hclog"
)

// TestRunner is the part of runner.Runner the harness needs.
type TestRunner interface {
	Run(ctx context.Context) error
	Counts() (failed, crashed int)
}

// ArgParser produces the runner configuration when none was supplied.
type ArgParser func() (*runner.Config, error)

// RunnerFactory builds the runner for one run.
type RunnerFactory func(ctx context.Context, cfg *runner.Config) (TestRunner, error)

type Harness struct {
	args      *runner.Config
	parseArgs ArgParser
	factory   RunnerFactory
	logger    hclog.Logger
	last      TestRunner
	err       error
}

type Option func(*Harness)

// WithArgs supplies the configuration; ParseArgs is then never called.
func WithArgs(cfg *runner.Config) Option {
	return func(h *Harness) {
		h.args = cfg
	}
}

func WithArgParser(fn ArgParser) Option {
	return func(h *Harness) {
		h.parseArgs = fn
	}
}

func WithRunnerFactory(fn RunnerFactory) Option {
	return func(h *Harness) {
		h.factory = fn
	}
}

func WithLogger(l hclog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

func New(opts ...Option) *Harness {
	h := &Harness{
		parseArgs: ParseConfigFile,
		logger:    hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.factory == nil {
		h.factory = DefaultRunnerFactory(h.logger)
	}
	return h
}

// ParseConfigFile reads the runner configuration from the config file in the
// working directory.
func ParseConfigFile() (*runner.Config, error) {
	cfg, err := config.LoadConfig("")
	if err != nil {
		return nil, err
	}
	return cfg.RunnerConfig(), nil
}

// DefaultRunnerFactory builds a runner.Runner with opts and no driver beyond
// what opts supply.
func DefaultRunnerFactory(logger hclog.Logger, opts ...runner.Option) RunnerFactory {
	return func(ctx context.Context, cfg *runner.Config) (TestRunner, error) {
		all := append([]runner.Option{runner.WithLogger(logger.Named("runner"))}, opts...)
		r, err := runner.New(cfg, all...)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// ParseArgs returns the configuration, parsing it if it was not supplied.
func (h *Harness) ParseArgs() (*runner.Config, error) {
	if h.args != nil {
		return h.args, nil
	}
	cfg, err := h.parseArgs()
	if err != nil {
		return nil, fmt.Errorf("failed to parse arguments: %w", err)
	}
	h.args = cfg
	return cfg, nil
}

// Run executes one run and returns the number of failed plus crashed tests.
func (h *Harness) Run(ctx context.Context) (int, error) {
	cfg, err := h.ParseArgs()
	if err != nil {
		return 0, err
	}

	r, err := h.factory(ctx, cfg)
	if err != nil {
		return 0, err
	}
	h.last = r

	if err := r.Run(ctx); err != nil {
		return 0, err
	}

	failed, crashed := r.Counts()
	h.logger.Debug("run complete", "failed", failed, "crashed", crashed)
	return failed + crashed, nil
}

// Runner returns the runner of the last Run, or nil.
func (h *Harness) Runner() TestRunner {
	return h.last
}

// Err returns the error that ended the last Main, or nil.
func (h *Harness) Err() error {
	return h.err
}

// Main runs h and returns the process exit code. A panic during the run is
// logged and reported as ExitError.
func Main(ctx context.Context, h *Harness) (code int) {
	defer func() {
		if p := recover(); p != nil {
			h.logger.Error("run panicked", "panic", p, "stack", string(debug.Stack()))
			h.err = fmt.Errorf("run panicked: %v", p)
			code = ExitError
		}
	}()

	n, err := h.Run(ctx)
	h.err = err
	if err != nil {
		h.logger.Error("run failed", "error", err)
	}
	return ExitCode(n, err)
}
