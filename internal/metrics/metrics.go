// Package metrics records analysis phase timings and case outcomes with
// Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "untangle"

// Recorder owns one registry. It is safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	phaseSeconds *prometheus.HistogramVec
	cases        *prometheus.CounterVec
	patches      prometheus.Histogram
	groups       prometheus.Histogram
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		// Labels: phase (tokens, graph, refactor, signals, decompose)
		phaseSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "phase_seconds",
			Help:      "Duration of analysis phases in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"phase"}),
		// Labels: outcome (ok, failed), reason (parse, refactoring, process, worker, vcs, unknown)
		cases: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "cases_total",
			Help:      "Analysed commit pairs by outcome",
		}, []string{"outcome", "reason"}),
		patches: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "patches",
			Help:      "Patches per analysed commit pair",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		groups: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "groups",
			Help:      "Groups per analysed commit pair",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObservePhase has the signature of a divide.Timer observer.
func (r *Recorder) ObservePhase(phase string, d time.Duration) {
	r.phaseSeconds.WithLabelValues(phase).Observe(d.Seconds())
}

func (r *Recorder) CaseSucceeded(patches, groups int) {
	r.cases.WithLabelValues("ok", "").Inc()
	r.patches.Observe(float64(patches))
	r.groups.Observe(float64(groups))
}

func (r *Recorder) CaseFailed(reason string) {
	r.cases.WithLabelValues("failed", reason).Inc()
}

// WriteFile writes the current values in the text exposition format.
func (r *Recorder) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
