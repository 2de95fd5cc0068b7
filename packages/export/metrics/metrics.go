// Package metrics exports drivetest run metrics and summarizes test durations.
package metrics

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	// histogram bounds in microseconds
	minTrackable = 1
	maxTrackable = int64(time.Hour / time.Microsecond)
	sigFigs      = 3
)

// DurationSummary describes the distribution of test durations.
type DurationSummary struct {
	Count int64         `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
}

// Summarize computes duration percentiles. Durations longer than an hour are
// clamped to an hour.
func Summarize(durations []time.Duration) DurationSummary {
	if len(durations) == 0 {
		return DurationSummary{}
	}

	h := hdrhistogram.New(minTrackable, maxTrackable, sigFigs)
	for _, d := range durations {
		us := d.Microseconds()
		if us < minTrackable {
			us = minTrackable
		}
		if us > maxTrackable {
			us = maxTrackable
		}
		_ = h.RecordValue(us)
	}

	return DurationSummary{
		Count: h.TotalCount(),
		Min:   time.Duration(h.Min()) * time.Microsecond,
		Max:   time.Duration(h.Max()) * time.Microsecond,
		Mean:  time.Duration(h.Mean()) * time.Microsecond,
		P50:   time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P95:   time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		P99:   time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
	}
}
