package transcribe

import (
	"context"
	"log/slog"
)

// NoopTranscriber is the degraded-mode implementation used when no sidecar is
// configured. It reports not-ready, which keeps the pipeline on the
// whole-session fallback path, and returns empty text if called anyway so the
// pipeline drops the segment instead of failing.
type NoopTranscriber struct {
	log *slog.Logger
}

// NewNoopTranscriber returns the degraded transcriber.
func NewNoopTranscriber(log *slog.Logger) *NoopTranscriber {
	return &NoopTranscriber{log: log}
}

// Transcribe returns empty text and never errors.
func (n *NoopTranscriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	n.log.Warn("noop transcriber invoked in degraded mode", "pcm_bytes", len(pcm))
	return "", nil
}

// Ready always reports false: degraded mode never attempts the structured
// path.
func (n *NoopTranscriber) Ready(ctx context.Context) bool {
	return false
}

// Name identifies this implementation in logs.
func (n *NoopTranscriber) Name() string {
	return "noop-degraded"
}
