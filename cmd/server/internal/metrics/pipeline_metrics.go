package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SegmentsTotal counts diarized segments processed by the pipeline.
	// Labels: status (transcribed/skipped/empty)
	SegmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flux_pipeline_segments_total",
			Help: "Total number of diarized segments processed by outcome",
		},
		[]string{"status"},
	)

	// FallbackTotal counts sessions that degraded to the whole-session
	// fallback utterance. Labels: reason
	// (no_pcm/not_ready/diarization_error/no_segments/empty_merge/panic)
	FallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flux_pipeline_fallback_total",
			Help: "Total number of sessions resolved via fallback by reason",
		},
		[]string{"reason"},
	)

	// StageDuration observes per-stage pipeline latency in seconds.
	// Labels: stage (diarize/transcribe/merge)
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flux_pipeline_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	// TranscriberReady reflects the readiness gate for the diarization path
	// (0=not ready, 1=ready).
	TranscriberReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flux_transcriber_ready",
			Help: "Transcription backend readiness (0=not ready, 1=ready)",
		},
	)

	// SessionsTotal counts finished capture sessions by terminal status.
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flux_capture_sessions_total",
			Help: "Total number of capture sessions by terminal status",
		},
		[]string{"status"},
	)
)

// RecordSegment records the outcome of one diarized segment.
func RecordSegment(status string) {
	SegmentsTotal.WithLabelValues(status).Inc()
}

// RecordFallback records a session degraded to fallback.
func RecordFallback(reason string) {
	FallbackTotal.WithLabelValues(reason).Inc()
}

// RecordStageDuration records one pipeline stage duration in seconds.
func RecordStageDuration(stage string, seconds float64) {
	StageDuration.WithLabelValues(stage).Observe(seconds)
}

// SetTranscriberReady publishes the readiness gate state.
func SetTranscriberReady(ready bool) {
	if ready {
		TranscriberReady.Set(1)
	} else {
		TranscriberReady.Set(0)
	}
}

// RecordSession records a capture session reaching a terminal status.
func RecordSession(status string) {
	SessionsTotal.WithLabelValues(status).Inc()
}
