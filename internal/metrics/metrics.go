// Package metrics exposes Prometheus counters for extraction and duplicate
// resolution. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Judge call outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeRateLimited = "rate_limited"
)

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	FramesSampled      prometheus.Counter
	KeyframesRetained  *prometheus.CounterVec
	KeyframesSkipped   prometheus.Counter
	TransitionsFlagged prometheus.Counter
	ScenesDetected     prometheus.Counter
	JudgeCalls         *prometheus.CounterVec
	DuplicatesFound    *prometheus.CounterVec
	ExtractionDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		FramesSampled: factory.NewCounter(prometheus.CounterOpts{
			Name: "keyframes_frames_sampled_total",
			Help: "Total number of frames decoded at sampled positions",
		}),
		KeyframesRetained: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "keyframes_retained_total",
			Help: "Total number of keyframes persisted, by method",
		}, []string{"method"}),
		KeyframesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "keyframes_skipped_total",
			Help: "Total number of keyframes dropped because the artifact could not be written",
		}),
		TransitionsFlagged: factory.NewCounter(prometheus.CounterOpts{
			Name: "keyframes_transitions_flagged_total",
			Help: "Total number of retained keyframes classified as transitions",
		}),
		ScenesDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "keyframes_scenes_detected_total",
			Help: "Total number of scenes declared by the scene detector",
		}),
		JudgeCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "keyframes_judge_calls_total",
			Help: "Total number of similarity judge calls, by outcome",
		}, []string{"outcome"}),
		DuplicatesFound: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "keyframes_duplicates_found_total",
			Help: "Total number of duplicate keyframes found, by strategy",
		}, []string{"strategy"}),
		ExtractionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "keyframes_extraction_duration_seconds",
			Help:    "Duration of one extraction, by method",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"method"}),
		gatherer: reg,
	}
}

// Sampled records one sampled frame.
func (m *Metrics) Sampled() {
	if m == nil {
		return
	}
	m.FramesSampled.Inc()
}

// Retained records one persisted keyframe.
func (m *Metrics) Retained(method string, transition bool) {
	if m == nil {
		return
	}
	m.KeyframesRetained.WithLabelValues(method).Inc()
	if transition {
		m.TransitionsFlagged.Inc()
	}
}

// Skipped records keyframes that failed to persist.
func (m *Metrics) Skipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.KeyframesSkipped.Add(float64(n))
}

// Scenes records declared scenes.
func (m *Metrics) Scenes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ScenesDetected.Add(float64(n))
}

// JudgeCall records one judge call outcome.
func (m *Metrics) JudgeCall(outcome string) {
	if m == nil {
		return
	}
	m.JudgeCalls.WithLabelValues(outcome).Inc()
}

// Duplicate records one duplicate found by strategy.
func (m *Metrics) Duplicate(strategy string) {
	if m == nil {
		return
	}
	m.DuplicatesFound.WithLabelValues(strategy).Inc()
}

// ObserveExtraction records how long one extraction took.
func (m *Metrics) ObserveExtraction(method string, d time.Duration) {
	if m == nil {
		return
	}
	m.ExtractionDuration.WithLabelValues(method).Observe(d.Seconds())
}

// Gatherer returns the registry the collectors live on.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.gatherer
}

// WriteTextfile writes every metric in the text exposition format, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.gatherer)
}
