package runner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"time"

	"github.com/abdul-hamid-achik/drivetest/packages/core/descriptor"
	"github.com/abdul-hamid-achik/drivetest/packages/core/discovery"
	"github.com/abdul-hamid-achik/drivetest/packages/core/failure"
	"github.com/abdul-hamid-achik/drivetest/packages/core/handler"
	"github.com/abdul-hamid-achik/drivetest/packages/core/result"
	"github.com/abdul-hamid-achik/drivetest/packages/core/testvars"
	"github.com/abdul-hamid-achik/drivetest/packages/driver"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

const (
	// DefaultTimeout is the per-test timeout when none is configured
	DefaultTimeout = 5 * time.Minute
)

type Config struct {
	Tests          []string
	TestVars       []string
	TestVarsSchema string
	Tags           []string
	Shuffle        bool
	ShuffleSeed    int64
	TotalChunks    int
	ThisChunk      int
	Repeat         int
	Timeout        time.Duration
	ManifestValues map[string]any
	Interpreter    string
}

// Runner holds the state of one run. Crashed is only changed by RecordCrash.
type Runner struct {
	Tests           []descriptor.Test
	ManifestSkipped []descriptor.SkippedTest
	Crashed         int
	Failed          int
	TestVars        map[string]any

	config     *Config
	driver     driver.Driver
	registry   *handler.Registry
	discoverer *discovery.Discoverer
	logger     hclog.Logger

	runTest func(ctx context.Context, t descriptor.Test) error

	id          string
	shuffleSeed int64
	executed    int
	records     []result.Record
	startedAt   time.Time
	finishedAt  time.Time
}

type Option func(*Runner)

// WithDriver sets the driver tests run against and crashes are checked on.
func WithDriver(d driver.Driver) Option {
	return func(r *Runner) {
		r.driver = d
	}
}

func WithRegistry(reg *handler.Registry) Option {
	return func(r *Runner) {
		r.registry = reg
	}
}

func WithLogger(l hclog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a runner for cfg. Testvars are loaded here so that
// configuration errors surface before anything runs.
func New(cfg *Config, opts ...Option) (*Runner, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	r := &Runner{
		config: cfg,
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if cfg.TotalChunks > 0 && (cfg.ThisChunk < 1 || cfg.ThisChunk > cfg.TotalChunks) {
		return nil, fmt.Errorf("chunk %d is out of range 1..%d", cfg.ThisChunk, cfg.TotalChunks)
	}

	var varOpts []testvars.Option
	if cfg.TestVarsSchema != "" {
		varOpts = append(varOpts, testvars.WithSchema(cfg.TestVarsSchema))
	}
	vars, err := testvars.Load(cfg.TestVars, varOpts...)
	if err != nil {
		return nil, err
	}
	r.TestVars = vars

	if r.registry == nil {
		r.registry = handler.DefaultRegistry()
	}

	discOpts := []discovery.Option{
		discovery.WithMatcher(r.registry.Matches),
		discovery.WithLogger(r.logger.Named("discovery")),
	}
	if cfg.ManifestValues != nil {
		discOpts = append(discOpts, discovery.WithManifestValues(cfg.ManifestValues))
	}
	r.discoverer = discovery.New(discOpts...)
	r.runTest = r.RunTest

	return r, nil
}

// Registry returns the handlers tests are dispatched to.
func (r *Runner) Registry() *handler.Registry {
	return r.registry
}

// AddTest discovers the tests at path and appends them to the test set.
func (r *Runner) AddTest(path string) error {
	found, err := r.discoverer.Discover(path)
	if err != nil {
		return err
	}
	r.Tests = append(r.Tests, found.Tests...)
	r.ManifestSkipped = append(r.ManifestSkipped, found.Skipped...)
	return nil
}

// Run adds the configured tests and executes them. It returns an error only
// when the run could not complete; failed and crashed tests are counted.
func (r *Runner) Run(ctx context.Context) error {
	r.id = uuid.NewString()
	r.startedAt = time.Now()
	defer func() { r.finishedAt = time.Now() }()

	for _, path := range r.config.Tests {
		if err := r.AddTest(path); err != nil {
			return err
		}
	}

	tests := r.selectTests()
	r.logger.Info("starting run", "id", r.id, "tests", len(tests), "skipped", len(r.ManifestSkipped))

	for _, s := range r.ManifestSkipped {
		r.records = append(r.records, result.Record{
			Test:    descriptor.Test{Path: s.Path, Expected: s.Expected, Manifest: s.Manifest},
			Outcome: result.OutcomeSkip,
			Message: s.Reason,
			Started: time.Now(),
		})
	}

	repeat := r.config.Repeat
	if repeat < 1 {
		repeat = 1
	}
	for i := 0; i < repeat; i++ {
		crashed := r.Crashed
		if err := r.RunTestSet(ctx, tests); err != nil {
			return err
		}
		if r.Crashed > crashed {
			break
		}
	}

	r.logger.Info("run finished", "id", r.id, "failed", r.Failed, "crashed", r.Crashed)
	return nil
}

// RunTestSet runs tests in order and checks for a crash after each one,
// including the last. A crash ends the set.
func (r *Runner) RunTestSet(ctx context.Context, tests []descriptor.Test) error {
	for _, t := range tests {
		if err := r.runTest(ctx, t); err != nil {
			return err
		}
		if r.RecordCrash() {
			r.logger.Error("driver crashed, skipping remaining tests", "after", t.Path)
			return nil
		}
	}
	return nil
}

// RecordCrash checks the driver once and counts a crash if one happened.
func (r *Runner) RecordCrash() bool {
	if r.driver == nil {
		return false
	}
	if !r.driver.CheckForCrash() {
		return false
	}
	r.Crashed++
	return true
}

// RunTest executes one test with the handler registered for its kind.
// A missing test file is an error; existing files no handler claims are
// skipped without a record.
func (r *Runner) RunTest(ctx context.Context, t descriptor.Test) error {
	if _, err := os.Stat(t.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return failure.NotFoundf(t.Path, "test file")
		}
		return fmt.Errorf("failed to stat %s: %w", t.Path, err)
	}

	h, ok := r.registry.Lookup(t.Path)
	if !ok {
		r.logger.Debug("no handler for test, omitting", "test", t.Path)
		return nil
	}

	log := r.logger.Named(string(h.Kind()))
	env := &handler.Env{
		Driver:      r.driver,
		TestVars:    r.TestVars,
		Logger:      log,
		Timeout:     r.timeout(),
		Interpreter: r.config.Interpreter,
	}

	c := result.New(r.driver, result.WithLogger(log))
	c.StartTest(t)
	err := h.Run(ctx, env, t, c)
	c.StopTest(t)

	r.executed++
	r.records = append(r.records, c.Records()...)
	r.Failed += c.FailedCount()

	if err != nil {
		if c.Crashed() {
			log.Debug("test error after driver crash", "test", t.Path, "error", err)
			return nil
		}
		return fmt.Errorf("failed to run %s: %w", t.Name(), err)
	}
	return nil
}

func (r *Runner) timeout() time.Duration {
	if r.config.Timeout > 0 {
		return r.config.Timeout
	}
	return DefaultTimeout
}

func (r *Runner) selectTests() []descriptor.Test {
	tests := make([]descriptor.Test, 0, len(r.Tests))
	for _, t := range r.Tests {
		if len(r.config.Tags) > 0 && !t.HasAnyTag(r.config.Tags) {
			continue
		}
		tests = append(tests, t)
	}

	if r.config.Shuffle {
		r.shuffleSeed = r.config.ShuffleSeed
		if r.shuffleSeed == 0 {
			r.shuffleSeed = time.Now().UnixNano()
		}
		r.logger.Info("shuffling tests", "seed", r.shuffleSeed)
		rnd := rand.New(rand.NewSource(r.shuffleSeed))
		rnd.Shuffle(len(tests), func(i, j int) {
			tests[i], tests[j] = tests[j], tests[i]
		})
	}

	if r.config.TotalChunks > 0 {
		tests = chunk(tests, r.config.TotalChunks, r.config.ThisChunk)
	}
	return tests
}

// chunk returns the this-th (1-based) of total contiguous, near-equal slices.
func chunk(tests []descriptor.Test, total, this int) []descriptor.Test {
	start := len(tests) * (this - 1) / total
	end := len(tests) * this / total
	return tests[start:end]
}

// Counts returns the failure and crash totals.
func (r *Runner) Counts() (failed, crashed int) {
	return r.Failed, r.Crashed
}
