package driver

import (
	"context"
	"time"
)

// CrashChecker is the capability used to detect that the driver process died.
// CheckForCrash must be safe to call repeatedly, including after the process
// is gone, and reports true instead of failing in that case.
type CrashChecker interface {
	CheckForCrash() bool
}

// Driver is a connected automation driver session.
type Driver interface {
	CrashChecker
	ExecuteScript(ctx context.Context, req *ScriptRequest) (*ScriptResult, error)
	SessionID() string
	Address() string
	Close(ctx context.Context) error
}

// ScriptRequest is a script to run inside the driver.
type ScriptRequest struct {
	Name    string
	Script  string
	Args    []any
	Context string
	Timeout time.Duration
}

// ScriptFailure is one failed check reported by a script.
type ScriptFailure struct {
	Name    string
	Message string
}

// ScriptResult is what a test script reports back.
type ScriptResult struct {
	Passed   int
	Failed   int
	Todo     int
	Failures []ScriptFailure
	Duration time.Duration
}

// OK reports whether the script ran without failures.
func (r *ScriptResult) OK() bool {
	return r.Failed == 0 && len(r.Failures) == 0
}
