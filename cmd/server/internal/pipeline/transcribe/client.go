// Package transcribe provides per-segment transcription capabilities for the
// pipeline: an HTTP client for the local Flux transcription sidecar and a
// no-op degraded implementation for running without it.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fluxnotes/flux/cmd/server/internal/metrics"
)

// DefaultBaseURL is where the transcription sidecar listens.
const DefaultBaseURL = "http://127.0.0.1:7848"

// HTTPTranscriber talks to the Flux transcription sidecar, a local HTTP
// service wrapping a CTC speech-to-text model. The sidecar accepts a whole
// WAV file body on POST /transcribe and reports readiness on GET /health.
type HTTPTranscriber struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPTranscriber builds a client for the sidecar at baseURL (empty means
// DefaultBaseURL). The request timeout is generous: transcription time is
// roughly proportional to segment length and long speaker turns are common.
func NewHTTPTranscriber(baseURL string) *HTTPTranscriber {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPTranscriber{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// Transcribe wraps the PCM slice in a WAV container and posts it to the
// sidecar. The sidecar responds with {"text": "..."} on success and a JSON
// error body with a non-200 status otherwise.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	body := WrapWAV(pcm)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/transcribe", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build transcribe request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("transcriber returned status %d: %s", resp.StatusCode, string(b))
	}

	var payload struct {
		Text  string `json:"text"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode transcribe response: %w", err)
	}
	if payload.Error != "" {
		return "", fmt.Errorf("transcriber error: %s", payload.Error)
	}
	return payload.Text, nil
}

// Ready probes GET /health. The sidecar loads its model at startup and only
// serves /health once loading succeeded, so a 200 with status "ready" means
// the per-segment path can be attempted.
func (t *HTTPTranscriber) Ready(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, t.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		metrics.SetTranscriberReady(false)
		return false
	}
	defer resp.Body.Close()

	var payload struct {
		Status string `json:"status"`
	}
	ready := resp.StatusCode == http.StatusOK &&
		json.NewDecoder(resp.Body).Decode(&payload) == nil &&
		payload.Status == "ready"
	metrics.SetTranscriberReady(ready)
	return ready
}

// Name identifies this implementation in logs.
func (t *HTTPTranscriber) Name() string {
	return "flux-sidecar"
}
