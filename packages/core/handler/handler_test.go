package handler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/drivetest/packages/core/descriptor"
	"github.com/abdul-hamid-achik/drivetest/packages/core/result"
	"github.com/abdul-hamid-achik/drivetest/packages/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	result   *driver.ScriptResult
	err      error
	requests []*driver.ScriptRequest
}

func (f *fakeDriver) CheckForCrash() bool { return false }
func (f *fakeDriver) SessionID() string { return "session-1" }
func (f *fakeDriver) Address() string { return "http://127.0.0.1:4444" }

func (f *fakeDriver) Close(ctx context.Context) error { return nil }

func (f *fakeDriver) ExecuteScript(ctx context.Context, req *driver.ScriptRequest) (*driver.ScriptResult, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func writeFile(t *testing.T, dir, name, content string) descriptor.Test {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return descriptor.Test{Path: path, Expected: descriptor.ExpectPass}
}

func runOne(t *testing.T, h Handler, env *Env, test descriptor.Test) (*result.Collector, error) {
	t.Helper()
	c := result.New(nil)
	c.StartTest(test)
	err := h.Run(context.Background(), env, test, c)
	c.StopTest(test)
	return c, err
}

func TestRegistry_Lookup(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		path string
		kind Kind
		ok   bool
	}{
		{"/tests/test_a.py", KindStandard, true},
		{"/tests/test_login.js", KindScript, true},
		{"/tests/testScript.js", KindScript, true},
		{"/tests/helper.py", "", false},
		{"/tests/test_a.txt", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			h, ok := r.Lookup(tt.path)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.kind, h.Kind())
			}
			assert.Equal(t, tt.ok, r.Matches(filepath.Base(tt.path)))
		})
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(NewScript())
	assert.Equal(t, []Kind{KindScript}, r.Kinds())

	_, ok := r.Lookup("test_a.py")
	assert.False(t, ok, "kind without a handler is not claimed")

	r.Register(NewStandard())
	r.Register(NewScript())
	assert.Equal(t, []Kind{KindScript, KindStandard}, r.Kinds())
}

func TestParseDirectives(t *testing.T) {
	src := "SCRIPT_TIMEOUT = 5000;\nSCRIPT_CONTEXT = \"chrome\";\n\nreturn {passed: 1};\n"
	d := ParseDirectives(src)
	assert.Equal(t, 5*time.Second, d.Timeout)
	assert.Equal(t, "chrome", d.Context)

	assert.Equal(t, Directives{}, ParseDirectives("return {passed: 1};"))
}

func TestScript_Run(t *testing.T) {
	dir := t.TempDir()
	test := writeFile(t, dir, "test_a.js", "SCRIPT_TIMEOUT = 1500;\nreturn {passed: 1};\n")

	drv := &fakeDriver{result: &driver.ScriptResult{Passed: 1}}
	env := &Env{Driver: drv, TestVars: map[string]any{"wifi": "x"}, Timeout: time.Minute}

	c, err := runOne(t, NewScript(), env, test)
	require.NoError(t, err)

	records := c.Records()
	require.Len(t, records, 1)
	assert.Equal(t, result.OutcomePass, records[0].Outcome)

	require.Len(t, drv.requests, 1)
	assert.Equal(t, 1500*time.Millisecond, drv.requests[0].Timeout)
	assert.Equal(t, []any{map[string]any{"wifi": "x"}}, drv.requests[0].Args)
}

func TestScript_RunFailures(t *testing.T) {
	dir := t.TempDir()
	test := writeFile(t, dir, "test_a.js", "return {};")

	drv := &fakeDriver{result: &driver.ScriptResult{
		Failed:   1,
		Failures: []driver.ScriptFailure{{Name: "title", Message: "mismatch"}},
	}}

	c, err := runOne(t, NewScript(), &Env{Driver: drv}, test)
	require.NoError(t, err)

	failures := c.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "title: mismatch", failures[0].Message)
}

func TestScript_RunErrors(t *testing.T) {
	dir := t.TempDir()
	test := writeFile(t, dir, "test_a.js", "throw new Error();")

	t.Run("remote error is recorded", func(t *testing.T) {
		drv := &fakeDriver{err: &driver.RemoteError{Code: "javascript error", Message: "boom"}}
		c, err := runOne(t, NewScript(), &Env{Driver: drv}, test)
		require.NoError(t, err)
		require.Len(t, c.Errors(), 1)
		assert.Contains(t, c.Errors()[0].Message, "boom")
	})

	t.Run("transport error is returned", func(t *testing.T) {
		drv := &fakeDriver{err: errors.New("connection refused")}
		_, err := runOne(t, NewScript(), &Env{Driver: drv}, test)
		assert.Error(t, err)
	})

	t.Run("no driver", func(t *testing.T) {
		c, err := runOne(t, NewScript(), &Env{}, test)
		require.NoError(t, err)
		assert.Len(t, c.Errors(), 1)
	})

	t.Run("missing file", func(t *testing.T) {
		missing := descriptor.Test{Path: filepath.Join(dir, "test_missing.js")}
		c, err := runOne(t, NewScript(), &Env{Driver: &fakeDriver{}}, missing)
		require.NoError(t, err)
		require.Len(t, c.Errors(), 1)
		assert.Contains(t, c.Errors()[0].Message, "does not exist")
	})
}

func TestStandard_Run(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		outcome result.Outcome
		message string
	}{
		{
			name:    "passing",
			content: "exit 0\n",
			outcome: result.OutcomePass,
		},
		{
			name:    "failing",
			content: "echo 'assertion failed'\nexit 3\n",
			outcome: result.OutcomeFail,
			message: "exit status 3\nassertion failed",
		},
		{
			name:    "reads environment",
			content: "grep -q ssid \"$DRIVETEST_TESTVARS\" || exit 1\n[ \"$DRIVETEST_SESSION_ID\" = session-1 ] || exit 2\n",
			outcome: result.OutcomePass,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			test := writeFile(t, dir, "test_case.py", tt.content)
			env := &Env{
				Driver:      &fakeDriver{},
				TestVars:    map[string]any{"wifi": map[string]any{"ssid": "lab"}},
				Interpreter: "sh",
			}

			c, err := runOne(t, NewStandard(), env, test)
			require.NoError(t, err)

			records := c.Records()
			require.Len(t, records, 1)
			assert.Equal(t, tt.outcome, records[0].Outcome)
			if tt.message != "" {
				assert.Equal(t, tt.message, records[0].Message)
			}
		})
	}
}

func TestStandard_RunErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing interpreter", func(t *testing.T) {
		test := writeFile(t, dir, "test_a.py", "pass\n")
		c, err := runOne(t, NewStandard(), &Env{Interpreter: "drivetest-no-such-interpreter"}, test)
		require.NoError(t, err)
		assert.Len(t, c.Errors(), 1)
	})

	t.Run("timeout", func(t *testing.T) {
		test := writeFile(t, dir, "test_b.py", "sleep 5\n")
		c, err := runOne(t, NewStandard(), &Env{Interpreter: "sh", Timeout: 100 * time.Millisecond}, test)
		require.NoError(t, err)
		require.Len(t, c.Errors(), 1)
		assert.Contains(t, c.Errors()[0].Message, "timed out")
	})

	t.Run("missing file", func(t *testing.T) {
		test := descriptor.Test{Path: filepath.Join(dir, "test_missing.py")}
		c, err := runOne(t, NewStandard(), &Env{Interpreter: "sh"}, test)
		require.NoError(t, err)
		require.Len(t, c.Errors(), 1)
		assert.Contains(t, c.Errors()[0].Message, "does not exist")
	})
}

func TestTail(t *testing.T) {
	assert.Equal(t, "c\nd", tail("a\nb\nc\nd\n", 2))
	assert.Equal(t, "a", tail("a", 5))
}
