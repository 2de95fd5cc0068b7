package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/drivetest/packages/core/result"
	"github.com/abdul-hamid-achik/drivetest/packages/core/runner"
	"github.com/abdul-hamid-achik/drivetest/packages/export/metrics"
	"github.com/fatih/color"
)

// maxMessageLines bounds failure output in non-verbose mode
const maxMessageLines = 5

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(res *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	magenta := color.New(color.FgMagenta, color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n")

	for _, r := range res.Records {
		duration := cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds()))

		switch r.Outcome {
		case result.OutcomeSkip:
			fmt.Fprintf(f.writer, "  %s %s", yellow("-"), r.Name())
			if r.Message != "" {
				fmt.Fprintf(f.writer, " (%s)", r.Message)
			}
			fmt.Fprintf(f.writer, "\n")
		case result.OutcomePass:
			fmt.Fprintf(f.writer, "  %s %s %s\n", green("✓"), r.Name(), duration)
		case result.OutcomeExpectedFailure:
			fmt.Fprintf(f.writer, "  %s %s %s %s\n", green("✓"), r.Name(), yellow("expected failure"), duration)
			if f.verbose {
				f.writeMessage(r.Message, yellow)
			}
		case result.OutcomeUnexpectedSuccess:
			fmt.Fprintf(f.writer, "  %s %s %s %s\n", red("✗"), r.Name(), red("unexpected pass"), duration)
		case result.OutcomeFail:
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("✗"), r.Name(), duration)
			f.writeMessage(r.Message, red)
		case result.OutcomeError:
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("x"), r.Name(), duration)
			f.writeMessage(r.Message, red)
		case result.OutcomeCrash:
			fmt.Fprintf(f.writer, "  %s %s %s\n", magenta("!"), r.Name(), magenta("driver crashed"))
		}

		if f.verbose && r.Test.Manifest != "" {
			fmt.Fprintf(f.writer, "    Manifest: %s\n", r.Test.Manifest)
		}
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Tests: ")
	if res.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", res.Passed)))
	}
	if res.ExpectedFailures > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d expected failures", res.ExpectedFailures)))
	}
	if res.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", res.Failed)))
	}
	if res.Crashed > 0 {
		fmt.Fprintf(f.writer, "%s, ", magenta(fmt.Sprintf("%d crashed", res.Crashed)))
	}
	if res.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", res.Skipped)))
	}
	fmt.Fprintf(f.writer, "%d total\n", res.Total+res.Skipped)
	fmt.Fprintf(f.writer, "Time:  %dms\n", res.Duration.Milliseconds())

	if s := metrics.Summarize(res.Durations()); s.Count > 0 {
		fmt.Fprintf(f.writer, "Durations: p50 %dms, p95 %dms, p99 %dms\n",
			s.P50.Milliseconds(), s.P95.Milliseconds(), s.P99.Milliseconds())
	}
	if res.ShuffleSeed != 0 {
		fmt.Fprintf(f.writer, "Seed:  %d\n", res.ShuffleSeed)
	}
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) writeMessage(msg string, paint func(a ...any) string) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return
	}
	lines := strings.Split(msg, "\n")
	if !f.verbose && len(lines) > maxMessageLines {
		lines = append(lines[:maxMessageLines], fmt.Sprintf("... %d more lines", len(lines)-maxMessageLines))
	}
	fmt.Fprintf(f.writer, "    %s %s\n", paint("→"), lines[0])
	for _, l := range lines[1:] {
		fmt.Fprintf(f.writer, "      %s\n", l)
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("drivetest"), version)
}
