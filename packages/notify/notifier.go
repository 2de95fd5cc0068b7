// Package notify sends drivetest run summaries to chat webhooks.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/drivetest/packages/core/result"
	"github.com/abdul-hamid-achik/drivetest/packages/core/runner"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when tests fail or crash
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when tests pass
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends notifications on failure and on the first
	// success after a failure
	NotifyRecovery NotifyOn = "recovery"
)

// ParseNotifyOn validates a --notify-on value.
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch n := NotifyOn(strings.ToLower(strings.TrimSpace(s))); n {
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return n, nil
	case "":
		return NotifyFailure, nil
	default:
		return "", fmt.Errorf("invalid notify-on value %q (valid: always, failure, success, recovery)", s)
	}
}

// maxFailedResults bounds the failures listed in a notification
const maxFailedResults = 10

// RunSummary represents the summary of a test run for notifications
type RunSummary struct {
	RunID         string        `json:"run_id,omitempty"`
	TotalTests    int           `json:"total_tests"`
	PassedTests   int           `json:"passed_tests"`
	FailedTests   int           `json:"failed_tests"`
	CrashedTests  int           `json:"crashed_tests"`
	SkippedTests  int           `json:"skipped_tests"`
	Duration      time.Duration `json:"duration"`
	Label         string        `json:"label,omitempty"`
	FailedResults []FailedTest  `json:"failed_results,omitempty"`
	IsRecovery    bool          `json:"is_recovery,omitempty"`
}

// Failing reports whether any test failed or the driver crashed.
func (s *RunSummary) Failing() bool {
	return s.FailedTests+s.CrashedTests > 0
}

// FailedTest represents a failed test for notifications
type FailedTest struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
}

// Summarize builds the notification summary of a run.
func Summarize(res *runner.RunResult, label string) *RunSummary {
	s := &RunSummary{
		RunID:        res.ID,
		TotalTests:   res.Total,
		PassedTests:  res.Passed,
		FailedTests:  res.Failed,
		CrashedTests: res.Crashed,
		SkippedTests: res.Skipped,
		Duration:     res.Duration,
		Label:        label,
	}
	for _, r := range res.Records {
		if !r.Outcome.Failed() && r.Outcome != result.OutcomeCrash {
			continue
		}
		if len(s.FailedResults) == maxFailedResults {
			break
		}
		msg := strings.TrimSpace(r.Message)
		if i := strings.IndexByte(msg, '\n'); i >= 0 {
			msg = msg[:i]
		}
		s.FailedResults = append(s.FailedResults, FailedTest{
			Name:    r.Name(),
			Path:    r.Test.Path,
			Outcome: string(r.Outcome),
			Message: msg,
		})
	}
	return s
}

// Notifier is the interface for notification services
type Notifier interface {
	// Notify sends a notification about test results
	Notify(ctx context.Context, summary *RunSummary) error

	// Name returns the name of the notifier
	Name() string
}

// Manager manages multiple notifiers
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	lastState bool // true if last run was successful
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true, // Assume success initially
	}
}

// AddNotifier adds a notifier to the manager
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// SetLastSuccess seeds the previous run state, e.g. from run history.
func (m *Manager) SetLastSuccess(success bool) {
	m.lastState = success
}

// Len returns the number of notifiers.
func (m *Manager) Len() int {
	return len(m.notifiers)
}

// Notify sends notifications based on the configured policy
func (m *Manager) Notify(ctx context.Context, summary *RunSummary) error {
	shouldNotify := false
	currentSuccess := !summary.Failing()

	switch m.notifyOn {
	case NotifyAlways:
		shouldNotify = true
	case NotifyFailure:
		shouldNotify = !currentSuccess
	case NotifySuccess:
		shouldNotify = currentSuccess
	case NotifyRecovery:
		if !m.lastState && currentSuccess {
			shouldNotify = true
			summary.IsRecovery = true
		}
		if !currentSuccess {
			shouldNotify = true
		}
	}

	m.lastState = currentSuccess

	if !shouldNotify {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			lastErr = fmt.Errorf("%s: %w", n.Name(), err)
		}
	}

	return lastErr
}

func headline(summary *RunSummary) (string, bool) {
	switch {
	case summary.CrashedTests > 0:
		return fmt.Sprintf("Driver crashed, %d test(s) failed", summary.FailedTests), false
	case summary.FailedTests > 0:
		return fmt.Sprintf("%d test(s) failed", summary.FailedTests), false
	case summary.IsRecovery:
		return "Tests recovered!", true
	default:
		return "All tests passed!", true
	}
}
