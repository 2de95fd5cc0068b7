package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/drivetest/packages/core/result"
	"github.com/abdul-hamid-achik/drivetest/packages/core/runner"
)

// JUnit XML structures

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite represents a test suite (a manifest or a directory)
type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase represents a single test case
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a test failure
type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitError represents a test error
type JUnitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitSkipped represents a skipped test
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitFormatter formats test results as JUnit XML
type JUnitFormatter struct {
	writer     io.Writer
	testSuites []JUnitTestSuite
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{
		writer:     os.Stdout,
		testSuites: make([]JUnitTestSuite, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

func (f *JUnitFormatter) FormatResult(res *runner.RunResult) {
	suites := make(map[string]*JUnitTestSuite)
	var order []string
	timestamp := res.StartedAt.Format(time.RFC3339)

	for _, r := range res.Records {
		name := suiteName(r)
		suite, ok := suites[name]
		if !ok {
			suite = &JUnitTestSuite{
				Name:      name,
				Timestamp: timestamp,
				TestCases: make([]JUnitTestCase, 0),
			}
			suites[name] = suite
			order = append(order, name)
		}

		// a crash is reported as an error on the test it followed
		if r.Outcome == result.OutcomeCrash && len(suite.TestCases) > 0 {
			last := &suite.TestCases[len(suite.TestCases)-1]
			if last.Name == r.Name() && last.Error == nil {
				suite.Errors++
				last.Error = &JUnitError{Message: r.Message, Type: "Crash"}
				continue
			}
		}

		tc := JUnitTestCase{
			Name:      r.Name(),
			ClassName: name,
			Time:      r.Duration.Seconds(),
		}
		suite.Tests++
		suite.Time += r.Duration.Seconds()

		switch r.Outcome {
		case result.OutcomeSkip:
			suite.Skipped++
			tc.Skipped = &JUnitSkipped{
				Message: r.Message,
			}
		case result.OutcomeError:
			suite.Errors++
			tc.Error = &JUnitError{
				Message: firstLine(r.Message),
				Type:    "Error",
				Content: r.Message,
			}
		case result.OutcomeCrash:
			suite.Errors++
			tc.Error = &JUnitError{
				Message: r.Message,
				Type:    "Crash",
			}
		case result.OutcomeFail:
			suite.Failures++
			tc.Failure = &JUnitFailure{
				Message: firstLine(r.Message),
				Type:    "AssertionError",
				Content: r.Message,
			}
		case result.OutcomeUnexpectedSuccess:
			suite.Failures++
			tc.Failure = &JUnitFailure{
				Message: r.Message,
				Type:    "UnexpectedSuccess",
			}
		}

		suite.TestCases = append(suite.TestCases, tc)
	}

	for _, name := range order {
		f.testSuites = append(f.testSuites, *suites[name])
	}
}

// suiteName groups tests by the manifest they came from, else by directory.
func suiteName(r result.Record) string {
	if r.Test.Manifest != "" {
		return r.Test.Manifest
	}
	return filepath.Dir(r.Test.Path)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func (f *JUnitFormatter) FormatError(err error) {
	// Errors are included in individual test cases
}

func (f *JUnitFormatter) FormatHeader(version string) {
	// No header needed for JUnit XML
}

// Flush writes the accumulated JUnit XML output
func (f *JUnitFormatter) Flush(totalDuration time.Duration) error {
	var totalTests, totalFailures, totalErrors, totalSkipped int
	for _, suite := range f.testSuites {
		totalTests += suite.Tests
		totalFailures += suite.Failures
		totalErrors += suite.Errors
		totalSkipped += suite.Skipped
	}

	suites := JUnitTestSuites{
		Name:       "drivetest",
		Tests:      totalTests,
		Failures:   totalFailures,
		Errors:     totalErrors,
		Skipped:    totalSkipped,
		Time:       totalDuration.Seconds(),
		Timestamp:  time.Now().Format(time.RFC3339),
		TestSuites: f.testSuites,
	}

	fmt.Fprintf(f.writer, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	return encoder.Encode(suites)
}
