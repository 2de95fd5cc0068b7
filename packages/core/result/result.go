// Package result collects per-test outcomes and detects driver crashes when a
// test stops.
package result

import (
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/drivetest/packages/core/descriptor"
	"github.com/abdul-hamid-achik/drivetest/packages/core/failure"
	"github.com/abdul-hamid-achik/drivetest/packages/driver"
	"github.com/hashicorp/go-hclog"
)

// Outcome is the final state of one recorded result.
type Outcome string

const (
	OutcomePass              Outcome = "pass"
	OutcomeFail              Outcome = "fail"
	OutcomeError             Outcome = "error"
	OutcomeSkip              Outcome = "skip"
	OutcomeExpectedFailure   Outcome = "expected-fail"
	OutcomeUnexpectedSuccess Outcome = "unexpected-pass"
	OutcomeCrash             Outcome = "crash"
)

// Failed reports whether the outcome counts toward the failure total.
// Crashes are counted separately.
func (o Outcome) Failed() bool {
	return o == OutcomeFail || o == OutcomeError || o == OutcomeUnexpectedSuccess
}

// Record is one result for one test. A test can produce more than one record,
// e.g. a failure followed by a crash error.
type Record struct {
	Test     descriptor.Test
	Outcome  Outcome
	Message  string
	Started  time.Time
	Duration time.Duration
}

// Name returns the test's base file name.
func (r Record) Name() string {
	return r.Test.Name()
}

type state int

const (
	notStarted state = iota
	running
	stopped
)

// Collector records results for the tests run inside it and checks the
// driver for a crash after each one. It never closes the checker.
type Collector struct {
	checker driver.CrashChecker
	logger  hclog.Logger

	state      state
	current    descriptor.Test
	started    time.Time
	testsRun   int
	shouldStop bool
	crashed    bool

	records []Record
}

type Option func(*Collector)

func WithLogger(l hclog.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a collector. checker may be nil, in which case no crash is ever
// detected.
func New(checker driver.CrashChecker, opts ...Option) *Collector {
	c := &Collector{
		checker: checker,
		logger:  hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartTest marks t as running. It is accepted even after ShouldStop.
func (c *Collector) StartTest(t descriptor.Test) {
	c.state = running
	c.current = t
	c.started = time.Now()
	c.testsRun++
}

// StopTest ends the running test and performs its crash check. Calling it
// when no test is running does nothing.
func (c *Collector) StopTest(t descriptor.Test) {
	if c.state != running {
		return
	}
	c.state = stopped

	if c.checker == nil || !c.checker.CheckForCrash() {
		return
	}

	c.logger.Error("driver crashed", "test", t.Path)
	c.crashed = true
	c.shouldStop = true
	c.records = append(c.records, Record{
		Test:    t,
		Outcome: OutcomeCrash,
		Message: failure.New(failure.Crashed, t.Path, "driver crashed while running %s", t.Name()).Error(),
		Started: c.started,
	})
}

func (c *Collector) AddSuccess(t descriptor.Test) {
	if t.ExpectsFailure() {
		c.add(t, OutcomeUnexpectedSuccess, "test was expected to fail but passed")
		return
	}
	c.add(t, OutcomePass, "")
}

func (c *Collector) AddFailure(t descriptor.Test, msg string) {
	if t.ExpectsFailure() {
		c.add(t, OutcomeExpectedFailure, msg)
		return
	}
	c.add(t, OutcomeFail, msg)
}

// AddError records an error raised by the test itself, as opposed to a
// failed check. Errors on expected-fail tests are still errors.
func (c *Collector) AddError(t descriptor.Test, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	c.add(t, OutcomeError, msg)
}

func (c *Collector) AddSkip(t descriptor.Test, reason string) {
	c.add(t, OutcomeSkip, reason)
}

func (c *Collector) add(t descriptor.Test, outcome Outcome, msg string) {
	started := c.started
	if started.IsZero() {
		started = time.Now()
	}
	c.records = append(c.records, Record{
		Test:     t,
		Outcome:  outcome,
		Message:  msg,
		Started:  started,
		Duration: time.Since(started),
	})
}

// ShouldStop reports whether a crash was detected. It is never reset.
func (c *Collector) ShouldStop() bool {
	return c.shouldStop
}

// Crashed reports whether StopTest saw a crash.
func (c *Collector) Crashed() bool {
	return c.crashed
}

func (c *Collector) TestsRun() int {
	return c.testsRun
}

// Records returns a copy of the recorded results in order.
func (c *Collector) Records() []Record {
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Errors returns the error and crash records.
func (c *Collector) Errors() []Record {
	return c.filter(func(o Outcome) bool { return o == OutcomeError || o == OutcomeCrash })
}

// Failures returns the failed-check records, including unexpected successes.
func (c *Collector) Failures() []Record {
	return c.filter(func(o Outcome) bool { return o == OutcomeFail || o == OutcomeUnexpectedSuccess })
}

// FailedCount is the number of records counted as failed.
func (c *Collector) FailedCount() int {
	return len(c.filter(Outcome.Failed))
}

func (c *Collector) filter(keep func(Outcome) bool) []Record {
	var out []Record
	for _, r := range c.records {
		if keep(r.Outcome) {
			out = append(out, r)
		}
	}
	return out
}

// Summary formats the collector's counts on one line.
func (c *Collector) Summary() string {
	return fmt.Sprintf("%d run, %d failed, %d errors", c.testsRun, len(c.Failures()), len(c.Errors()))
}
