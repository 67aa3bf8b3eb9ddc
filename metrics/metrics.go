// Package metrics records per-run Prometheus metrics for an audit.
//
// Each Recorder owns its own registry, so concurrent runs and tests never
// share counters. A one-shot run exports its registry through the node
// exporter textfile format with WriteTextfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "uiaudit"

// Recorder collects adjudication and verdict metrics. It satisfies
// adjudicator.Observer.
type Recorder struct {
	registry *prometheus.Registry

	pages    prometheus.Counter
	elements prometheus.Counter
	failures prometheus.Counter
	verdicts *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewRecorder creates a Recorder with a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "HTML pages audited.",
		}),
		elements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adjudications_total",
			Help:      "Elements sent to the backend.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adjudication_failures_total",
			Help:      "Backend calls that failed and produced an Unknown verdict.",
		}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Parsed verdicts by status class.",
		}, []string{"status_class"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "adjudication_duration_seconds",
			Help:      "Backend call latency including retries.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}

	r.registry.MustRegister(r.pages, r.elements, r.failures, r.verdicts, r.duration)
	return r
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObservePage counts one audited page.
func (r *Recorder) ObservePage() {
	r.pages.Inc()
}

// ObserveAdjudication records one backend call.
func (r *Recorder) ObserveAdjudication(duration time.Duration, err error) {
	r.elements.Inc()
	r.duration.Observe(duration.Seconds())
	if err != nil {
		r.failures.Inc()
	}
}

// ObserveVerdict counts a verdict by its status class. An empty class is
// recorded as "unknown".
func (r *Recorder) ObserveVerdict(statusClass string) {
	r.verdicts.WithLabelValues(ClassLabel(statusClass)).Inc()
}

// WriteTextfile writes the registry in text exposition format to path.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// ClassLabel maps a status class to a label value.
func ClassLabel(statusClass string) string {
	if statusClass == "" {
		return "unknown"
	}
	return statusClass
}
