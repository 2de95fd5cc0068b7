package driver

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Response is a decoded driver reply. Driver replies wrap their payload in a
// top-level "value" member.
type Response struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Value returns the "value" member of the reply, or a path below it.
func (r *Response) Value(path string) gjson.Result {
	if path == "" {
		return gjson.GetBytes(r.Body, "value")
	}
	return gjson.GetBytes(r.Body, "value."+path)
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Err returns the error reported by the driver, if any.
func (r *Response) Err() error {
	code := r.Value("error").String()
	if code == "" && r.IsSuccess() {
		return nil
	}
	if code == "" {
		code = fmt.Sprintf("http %d", r.StatusCode)
	}
	return &RemoteError{
		Code:       code,
		Message:    r.Value("message").String(),
		Stacktrace: r.Value("stacktrace").String(),
		StatusCode: r.StatusCode,
	}
}

// RemoteError is an error reported by the driver itself, such as a script
// throwing. It is distinct from a transport failure.
type RemoteError struct {
	Code       string
	Message    string
	Stacktrace string
	StatusCode int
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

func parseScriptResult(resp *Response) *ScriptResult {
	value := resp.Value("")
	result := &ScriptResult{
		Passed:   int(value.Get("passed").Int()),
		Failed:   int(value.Get("failed").Int()),
		Todo:     int(value.Get("todo").Int()),
		Duration: resp.Duration,
	}
	value.Get("failures").ForEach(func(_, f gjson.Result) bool {
		failure := ScriptFailure{
			Name:    f.Get("name").String(),
			Message: f.Get("message").String(),
		}
		if !f.IsObject() {
			failure.Message = f.String()
		}
		result.Failures = append(result.Failures, failure)
		return true
	})
	if result.Failed < len(result.Failures) {
		result.Failed = len(result.Failures)
	}
	return result
}

func describeFailures(failures []ScriptFailure) string {
	var b strings.Builder
	for _, f := range failures {
		if f.Name != "" {
			fmt.Fprintf(&b, "%s: %s\n", f.Name, f.Message)
		} else {
			fmt.Fprintf(&b, "%s\n", f.Message)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// DescribeFailures formats script failures one per line.
func (r *ScriptResult) DescribeFailures() string {
	return describeFailures(r.Failures)
}
