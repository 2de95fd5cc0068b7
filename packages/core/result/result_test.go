package result

import (
	"errors"
	"testing"

	"github.com/abdul-hamid-achik/drivetest/packages/core/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	crashed bool
	calls   int
}

func (f *fakeChecker) CheckForCrash() bool {
	f.calls++
	return f.crashed
}

func testDescriptor(name string, expected descriptor.Expectation) descriptor.Test {
	return descriptor.Test{Path: "/tests/" + name, Expected: expected}
}

func TestCollector_NoCrash(t *testing.T) {
	checker := &fakeChecker{}
	c := New(checker)
	test := testDescriptor("test_a.py", descriptor.ExpectPass)

	c.StartTest(test)
	c.AddSuccess(test)
	c.StopTest(test)

	assert.Equal(t, 1, checker.calls)
	assert.False(t, c.ShouldStop())
	assert.False(t, c.Crashed())
	assert.Empty(t, c.Errors())
	assert.Equal(t, 1, c.TestsRun())

	records := c.Records()
	require.Len(t, records, 1)
	assert.Equal(t, OutcomePass, records[0].Outcome)
	assert.Equal(t, "test_a.py", records[0].Name())
}

func TestCollector_CrashOnStop(t *testing.T) {
	checker := &fakeChecker{crashed: true}
	c := New(checker)
	test := testDescriptor("test_a.py", descriptor.ExpectPass)

	c.StartTest(test)
	c.AddFailure(test, "assertion failed")
	c.StopTest(test)

	assert.True(t, c.ShouldStop())
	assert.True(t, c.Crashed())
	assert.Equal(t, 1, checker.calls)

	errs := c.Errors()
	require.Len(t, errs, 1, "exactly one extra error record")
	assert.Equal(t, OutcomeCrash, errs[0].Outcome)
	assert.Contains(t, errs[0].Message, "crashed")
	assert.Len(t, c.Failures(), 1)
}

func TestCollector_StopWithoutStart(t *testing.T) {
	checker := &fakeChecker{crashed: true}
	c := New(checker)
	test := testDescriptor("test_a.py", descriptor.ExpectPass)

	c.StopTest(test)
	assert.Equal(t, 0, checker.calls)
	assert.False(t, c.ShouldStop())

	c.StartTest(test)
	c.StopTest(test)
	c.StopTest(test)
	assert.Equal(t, 1, checker.calls, "check runs once per started test")
	assert.Len(t, c.Errors(), 1)
}

func TestCollector_ShouldStopIsSticky(t *testing.T) {
	checker := &fakeChecker{crashed: true}
	c := New(checker)
	first := testDescriptor("test_a.py", descriptor.ExpectPass)
	second := testDescriptor("test_b.py", descriptor.ExpectPass)

	c.StartTest(first)
	c.StopTest(first)
	require.True(t, c.ShouldStop())

	checker.crashed = false
	c.StartTest(second)
	c.AddSuccess(second)
	c.StopTest(second)

	assert.True(t, c.ShouldStop())
	assert.Equal(t, 2, c.TestsRun())
}

func TestCollector_NilChecker(t *testing.T) {
	c := New(nil)
	test := testDescriptor("test_a.js", descriptor.ExpectPass)

	c.StartTest(test)
	c.AddSuccess(test)
	c.StopTest(test)

	assert.False(t, c.ShouldStop())
}

func TestCollector_ExpectedFailures(t *testing.T) {
	tests := []struct {
		name     string
		expected descriptor.Expectation
		record   func(c *Collector, test descriptor.Test)
		outcome  Outcome
		failed   int
	}{
		{
			name:     "failure on expected fail",
			expected: descriptor.ExpectFail,
			record:   func(c *Collector, test descriptor.Test) { c.AddFailure(test, "boom") },
			outcome:  OutcomeExpectedFailure,
			failed:   0,
		},
		{
			name:     "success on expected fail",
			expected: descriptor.ExpectFail,
			record:   func(c *Collector, test descriptor.Test) { c.AddSuccess(test) },
			outcome:  OutcomeUnexpectedSuccess,
			failed:   1,
		},
		{
			name:     "failure on expected pass",
			expected: descriptor.ExpectPass,
			record:   func(c *Collector, test descriptor.Test) { c.AddFailure(test, "boom") },
			outcome:  OutcomeFail,
			failed:   1,
		},
		{
			name:     "error on expected fail",
			expected: descriptor.ExpectFail,
			record:   func(c *Collector, test descriptor.Test) { c.AddError(test, errors.New("exec failed")) },
			outcome:  OutcomeError,
			failed:   1,
		},
		{
			name:     "skip",
			expected: descriptor.ExpectPass,
			record:   func(c *Collector, test descriptor.Test) { c.AddSkip(test, "disabled") },
			outcome:  OutcomeSkip,
			failed:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&fakeChecker{})
			test := testDescriptor("test_a.py", tt.expected)

			c.StartTest(test)
			tt.record(c, test)
			c.StopTest(test)

			records := c.Records()
			require.Len(t, records, 1)
			assert.Equal(t, tt.outcome, records[0].Outcome)
			assert.Equal(t, tt.failed, c.FailedCount())
		})
	}
}
