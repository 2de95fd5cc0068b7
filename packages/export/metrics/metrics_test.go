package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/drivetest/packages/core/descriptor"
	"github.com/abdul-hamid-achik/drivetest/packages/core/result"
	"github.com/abdul-hamid-achik/drivetest/packages/core/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	var durations []time.Duration
	for i := 1; i <= 100; i++ {
		durations = append(durations, time.Duration(i)*time.Millisecond)
	}

	s := Summarize(durations)
	assert.Equal(t, int64(100), s.Count)
	assert.InDelta(t, float64(50*time.Millisecond), float64(s.P50), float64(time.Millisecond))
	assert.InDelta(t, float64(95*time.Millisecond), float64(s.P95), float64(time.Millisecond))
	assert.InDelta(t, float64(99*time.Millisecond), float64(s.P99), float64(time.Millisecond))
	assert.InDelta(t, float64(time.Millisecond), float64(s.Min), float64(10*time.Microsecond))
	assert.InDelta(t, float64(100*time.Millisecond), float64(s.Max), float64(time.Millisecond))
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, DurationSummary{}, Summarize(nil))
}

func TestSummarize_Clamps(t *testing.T) {
	s := Summarize([]time.Duration{0, 2 * time.Hour})
	assert.Equal(t, int64(2), s.Count)
	assert.LessOrEqual(t, s.Max, time.Hour+time.Minute)
}

func sampleRun() *runner.RunResult {
	test := descriptor.Test{Path: "/tests/test_a.py"}
	return &runner.RunResult{
		ID:         "run-1",
		StartedAt:  time.Unix(1700000000, 0),
		FinishedAt: time.Unix(1700000003, 0),
		Duration:   3 * time.Second,
		Crashed:    1,
		Records: []result.Record{
			{Test: test, Outcome: result.OutcomePass, Duration: 100 * time.Millisecond},
			{Test: test, Outcome: result.OutcomeFail, Duration: 200 * time.Millisecond},
			{Test: test, Outcome: result.OutcomeCrash},
		},
	}
}

func TestPrometheusExporter_WriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drivetest.prom")
	require.NoError(t, ExportRun(path, sampleRun(), WithConstLabels(map[string]string{"suite": "smoke"})))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, `drivetest_tests_total{outcome="pass",suite="smoke"} 1`)
	assert.Contains(t, out, `drivetest_tests_total{outcome="fail",suite="smoke"} 1`)
	assert.Contains(t, out, `drivetest_tests_total{outcome="skip",suite="smoke"} 0`)
	assert.Contains(t, out, `drivetest_crashes_total{suite="smoke"} 1`)
	assert.Contains(t, out, `drivetest_run_duration_seconds{suite="smoke"} 3`)
	assert.Contains(t, out, `drivetest_test_duration_seconds_count{outcome="pass",suite="smoke"} 1`)
}

func TestPrometheusExporter_Gather(t *testing.T) {
	p := NewPrometheusExporter()
	p.Record(sampleRun())

	families, err := p.Registry().Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "drivetest_tests_total")
	assert.Contains(t, names, "drivetest_last_run_timestamp_seconds")
}
