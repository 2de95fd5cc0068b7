package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/drivetest/packages/core/result"
	"github.com/abdul-hamid-achik/drivetest/packages/core/runner"
)

// TAPFormatter formats test results in TAP (Test Anything Protocol) format
type TAPFormatter struct {
	writer    io.Writer
	testCount int
	results   []tapResult
	bailOut   string
}

type tapResult struct {
	number   int
	name     string
	outcome  result.Outcome
	message  string
	duration time.Duration
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer:  os.Stdout,
		results: make([]tapResult, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatResult(res *runner.RunResult) {
	for _, r := range res.Records {
		f.testCount++
		f.results = append(f.results, tapResult{
			number:   f.testCount,
			name:     r.Name(),
			outcome:  r.Outcome,
			message:  r.Message,
			duration: r.Duration,
		})
	}
}

// FormatError turns a run-level error into a TAP bail out line.
func (f *TAPFormatter) FormatError(err error) {
	f.bailOut = err.Error()
}

func (f *TAPFormatter) FormatHeader(version string) {
	// Header is written in Flush
}

// Flush writes the accumulated TAP output
func (f *TAPFormatter) Flush(totalDuration time.Duration) error {
	fmt.Fprintf(f.writer, "TAP version 13\n")
	fmt.Fprintf(f.writer, "1..%d\n", f.testCount)

	for _, r := range f.results {
		switch r.outcome {
		case result.OutcomeSkip:
			reason := r.message
			if reason == "" {
				reason = "disabled"
			}
			fmt.Fprintf(f.writer, "ok %d - %s # SKIP %s\n", r.number, r.name, reason)
		case result.OutcomePass:
			fmt.Fprintf(f.writer, "ok %d - %s\n", r.number, r.name)
		case result.OutcomeExpectedFailure:
			fmt.Fprintf(f.writer, "not ok %d - %s # TODO expected failure\n", r.number, r.name)
		case result.OutcomeError, result.OutcomeCrash:
			severity := "error"
			if r.outcome == result.OutcomeCrash {
				severity = "crash"
			}
			fmt.Fprintf(f.writer, "not ok %d - %s\n", r.number, r.name)
			fmt.Fprintf(f.writer, "  ---\n")
			fmt.Fprintf(f.writer, "  message: %s\n", escapeYAML(r.message))
			fmt.Fprintf(f.writer, "  severity: %s\n", severity)
			fmt.Fprintf(f.writer, "  ...\n")
		default:
			fmt.Fprintf(f.writer, "not ok %d - %s\n", r.number, r.name)
			if r.message != "" {
				fmt.Fprintf(f.writer, "  ---\n")
				fmt.Fprintf(f.writer, "  failures:\n")
				for _, line := range strings.Split(strings.TrimSpace(r.message), "\n") {
					fmt.Fprintf(f.writer, "    - %s\n", escapeYAML(line))
				}
				fmt.Fprintf(f.writer, "  ...\n")
			}
		}
	}

	if f.bailOut != "" {
		fmt.Fprintf(f.writer, "Bail out! %s\n", strings.ReplaceAll(f.bailOut, "\n", " "))
	}

	// Add final newline for proper TAP output
	fmt.Fprintln(f.writer)

	return nil
}

func escapeYAML(s string) string {
	// Simple YAML escaping - wrap in quotes if contains special chars
	if strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		return "\"" + s + "\""
	}
	return s
}
