package harness

// Exit codes for the drivetest CLI
const (
	// ExitSuccess indicates no test failed or crashed
	ExitSuccess = 0

	// ExitError indicates the run itself failed: bad configuration, a
	// missing manifest, or an unexpected error
	ExitError = 1

	// ExitTestFailure indicates the run completed with failed or crashed tests
	ExitTestFailure = 10
)

// ExitCode maps the outcome of Harness.Run to a process exit code.
func ExitCode(unsuccessful int, err error) int {
	switch {
	case err != nil:
		return ExitError
	case unsuccessful > 0:
		return ExitTestFailure
	default:
		return ExitSuccess
	}
}
