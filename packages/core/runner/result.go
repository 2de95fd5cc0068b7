package runner

import (
	"time"

	"github.com/abdul-hamid-achik/drivetest/packages/core/result"
)

// RunResult summarizes a finished run.
type RunResult struct {
	ID               string
	StartedAt        time.Time
	FinishedAt       time.Time
	Duration         time.Duration
	Total            int
	Passed           int
	Failed           int
	Crashed          int
	Skipped          int
	ExpectedFailures int
	ShuffleSeed      int64
	Records          []result.Record
}

// Unsuccessful is the number that decides the exit code.
func (r *RunResult) Unsuccessful() int {
	return r.Failed + r.Crashed
}

func (r *RunResult) Success() bool {
	return r.Unsuccessful() == 0
}

// Durations returns the durations of executed tests in record order.
func (r *RunResult) Durations() []time.Duration {
	var out []time.Duration
	for _, rec := range r.Records {
		switch rec.Outcome {
		case result.OutcomeSkip, result.OutcomeCrash:
			continue
		}
		out = append(out, rec.Duration)
	}
	return out
}

// Result returns the summary of the run so far.
func (r *Runner) Result() *RunResult {
	res := &RunResult{
		ID:          r.id,
		StartedAt:   r.startedAt,
		FinishedAt:  r.finishedAt,
		Total:       r.executed,
		Failed:      r.Failed,
		Crashed:     r.Crashed,
		ShuffleSeed: r.shuffleSeed,
		Records:     make([]result.Record, len(r.records)),
	}
	copy(res.Records, r.records)

	if !res.FinishedAt.IsZero() {
		res.Duration = res.FinishedAt.Sub(res.StartedAt)
	}

	for _, rec := range r.records {
		switch rec.Outcome {
		case result.OutcomePass:
			res.Passed++
		case result.OutcomeSkip:
			res.Skipped++
		case result.OutcomeExpectedFailure:
			res.ExpectedFailures++
		}
	}
	return res
}
