package output

import (
	"fmt"
	"io"
	"time"

	"github.com/abdul-hamid-achik/drivetest/packages/core/runner"
)

// Formatter interface for all output formatters
type Formatter interface {
	FormatHeader(version string)
	FormatResult(result *runner.RunResult)
	FormatError(err error)
}

// Flushable interface for formatters that need to flush output
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// Formats lists the names accepted by New.
var Formats = []string{"console", "json", "junit", "tap"}

// New returns the formatter for format writing to w.
func New(format string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	switch format {
	case "", "console":
		return NewConsoleFormatter(WithWriter(w), WithVerbose(verbose), WithNoColor(noColor)), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(w)), nil
	case "junit":
		return NewJUnitFormatter(JUnitWithWriter(w)), nil
	case "tap":
		return NewTAPFormatter(TAPWithWriter(w)), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (valid: console, json, junit, tap)", format)
	}
}
