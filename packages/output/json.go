package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/drivetest/packages/core/runner"
	"github.com/abdul-hamid-achik/drivetest/packages/export/metrics"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	RunID    string      `json:"runId,omitempty"`
	Summary  JSONSummary `json:"summary"`
	Tests    []JSONTest  `json:"tests"`
	Errors   []string    `json:"errors,omitempty"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
}

// JSONSummary represents the test summary
type JSONSummary struct {
	Total            int           `json:"total"`
	Passed           int           `json:"passed"`
	Failed           int           `json:"failed"`
	Crashed          int           `json:"crashed"`
	Skipped          int           `json:"skipped"`
	ExpectedFailures int           `json:"expectedFailures"`
	ShuffleSeed      int64         `json:"shuffleSeed,omitempty"`
	Durations        *JSONDuration `json:"durations,omitempty"`
}

// JSONDuration holds duration percentiles in milliseconds
type JSONDuration struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

// JSONTest represents a single test result
type JSONTest struct {
	Name     string  `json:"name"`
	Path     string  `json:"path"`
	Manifest string  `json:"manifest,omitempty"`
	Expected string  `json:"expected,omitempty"`
	Outcome  string  `json:"outcome"`
	Message  string  `json:"message,omitempty"`
	Duration float64 `json:"duration"`
}

// JSONFormatter formats test results as JSON
type JSONFormatter struct {
	writer  io.Writer
	runID   string
	summary JSONSummary
	results []JSONTest
	errors  []string
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]JSONTest, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(res *runner.RunResult) {
	f.runID = res.ID
	f.summary = JSONSummary{
		Total:            res.Total + res.Skipped,
		Passed:           res.Passed,
		Failed:           res.Failed,
		Crashed:          res.Crashed,
		Skipped:          res.Skipped,
		ExpectedFailures: res.ExpectedFailures,
		ShuffleSeed:      res.ShuffleSeed,
	}
	if s := metrics.Summarize(res.Durations()); s.Count > 0 {
		f.summary.Durations = &JSONDuration{
			P50: float64(s.P50.Milliseconds()),
			P95: float64(s.P95.Milliseconds()),
			P99: float64(s.P99.Milliseconds()),
			Max: float64(s.Max.Milliseconds()),
		}
	}

	for _, r := range res.Records {
		f.results = append(f.results, JSONTest{
			Name:     r.Name(),
			Path:     r.Test.Path,
			Manifest: r.Test.Manifest,
			Expected: string(r.Test.Expected),
			Outcome:  string(r.Outcome),
			Message:  r.Message,
			Duration: float64(r.Duration.Milliseconds()),
		})
	}
}

// FormatError records run-level errors; they are written on Flush.
func (f *JSONFormatter) FormatError(err error) {
	f.errors = append(f.errors, err.Error())
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	output := JSONOutput{
		RunID:    f.runID,
		Summary:  f.summary,
		Tests:    f.results,
		Errors:   f.errors,
		Duration: float64(totalDuration.Milliseconds()),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
