package metrics

import (
	"fmt"

	"github.com/abdul-hamid-achik/drivetest/packages/core/result"
	"github.com/abdul-hamid-achik/drivetest/packages/core/runner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "drivetest"
)

var outcomes = []result.Outcome{
	result.OutcomePass,
	result.OutcomeFail,
	result.OutcomeError,
	result.OutcomeSkip,
	result.OutcomeExpectedFailure,
	result.OutcomeUnexpectedSuccess,
	result.OutcomeCrash,
}

// PrometheusExporter records a run into a private registry and writes it in
// the Prometheus text format, for the node exporter textfile collector.
type PrometheusExporter struct {
	registry *prometheus.Registry
	labels   prometheus.Labels

	testsTotal   *prometheus.CounterVec
	crashesTotal prometheus.Counter
	runDuration  prometheus.Gauge
	lastRun      prometheus.Gauge
	testDuration *prometheus.HistogramVec
}

// PrometheusOption is a functional option for PrometheusExporter
type PrometheusOption func(*PrometheusExporter)

// WithConstLabels adds labels to every exported series.
func WithConstLabels(labels map[string]string) PrometheusOption {
	return func(p *PrometheusExporter) {
		for k, v := range labels {
			p.labels[k] = v
		}
	}
}

func NewPrometheusExporter(opts ...PrometheusOption) *PrometheusExporter {
	p := &PrometheusExporter{
		registry: prometheus.NewRegistry(),
		labels:   prometheus.Labels{},
	}
	for _, opt := range opts {
		opt(p)
	}

	factory := promauto.With(p.registry)

	p.testsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace:   MetricsNamespace,
		Name:        "tests_total",
		Help:        "Count of test results by outcome",
		ConstLabels: p.labels,
	}, []string{
		"outcome",
	})

	p.crashesTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace:   MetricsNamespace,
		Name:        "crashes_total",
		Help:        "Count of driver crashes",
		ConstLabels: p.labels,
	})

	p.runDuration = factory.NewGauge(prometheus.GaugeOpts{
		Namespace:   MetricsNamespace,
		Name:        "run_duration_seconds",
		Help:        "Duration of the last run",
		ConstLabels: p.labels,
	})

	p.lastRun = factory.NewGauge(prometheus.GaugeOpts{
		Namespace:   MetricsNamespace,
		Name:        "last_run_timestamp_seconds",
		Help:        "Unix time the last run finished",
		ConstLabels: p.labels,
	})

	p.testDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   MetricsNamespace,
		Name:        "test_duration_seconds",
		Help:        "Duration of executed tests",
		Buckets:     prometheus.ExponentialBuckets(0.05, 2, 12),
		ConstLabels: p.labels,
	}, []string{
		"outcome",
	})

	// outcomes show up as zero rather than missing
	for _, o := range outcomes {
		p.testsTotal.WithLabelValues(string(o))
	}

	return p
}

// Record adds a finished run to the exporter.
func (p *PrometheusExporter) Record(res *runner.RunResult) {
	for _, rec := range res.Records {
		p.testsTotal.WithLabelValues(string(rec.Outcome)).Inc()
		if rec.Outcome != result.OutcomeSkip && rec.Outcome != result.OutcomeCrash {
			p.testDuration.WithLabelValues(string(rec.Outcome)).Observe(rec.Duration.Seconds())
		}
	}
	p.crashesTotal.Add(float64(res.Crashed))
	p.runDuration.Set(res.Duration.Seconds())
	if !res.FinishedAt.IsZero() {
		p.lastRun.Set(float64(res.FinishedAt.Unix()))
	}
}

// WriteTextfile writes the exporter's metrics to path atomically.
func (p *PrometheusExporter) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

// Registry exposes the underlying registry, e.g. for tests.
func (p *PrometheusExporter) Registry() *prometheus.Registry {
	return p.registry
}

// ExportRun records res and writes it to path.
func ExportRun(path string, res *runner.RunResult, opts ...PrometheusOption) error {
	p := NewPrometheusExporter(opts...)
	p.Record(res)
	return p.WriteTextfile(path)
}
