package diarize

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SidecarModel runs speaker segmentation through the Flux sidecar's /diarize
// endpoint. The sidecar hosts the segmentation model next to the CTC
// transcriber; this keeps model weights and Python inference out of the Go
// process.
type SidecarModel struct {
	baseURL    string
	httpClient *http.Client
}

// NewSidecarModel builds a model client for the sidecar at baseURL.
func NewSidecarModel(baseURL string) *SidecarModel {
	return &SidecarModel{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
}

// Segment posts the session audio as WAV and decodes the scored segments.
func (m *SidecarModel) Segment(ctx context.Context, samples []float32) ([]RawSegment, error) {
	body := encodeWAV(samples)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/diarize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build diarize request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("diarize request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("diarizer returned status %d: %s", resp.StatusCode, string(b))
	}

	var payload struct {
		Segments []struct {
			Start       float64 `json:"start"`
			End         float64 `json:"end"`
			Speaker     int     `json:"speaker"`
			Probability float64 `json:"probability"`
		} `json:"segments"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode diarize response: %w", err)
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("diarizer error: %s", payload.Error)
	}

	out := make([]RawSegment, 0, len(payload.Segments))
	for _, s := range payload.Segments {
		out = append(out, RawSegment{
			Start:       s.Start,
			End:         s.End,
			Speaker:     s.Speaker,
			Probability: s.Probability,
		})
	}
	return out, nil
}

// encodeWAV re-quantizes normalized samples to s16le and prefixes a canonical
// 44-byte RIFF header.
func encodeWAV(samples []float32) []byte {
	dataLen := uint32(len(samples) * BytesPerSample)
	byteRate := uint32(SampleRate * BytesPerSample)

	buf := make([]byte, 44+len(samples)*BytesPerSample)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], 36+dataLen)
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(buf[22:24], 1)  // mono
	binary.LittleEndian.PutUint32(buf[24:28], SampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], byteRate)
	binary.LittleEndian.PutUint16(buf[32:34], BytesPerSample)
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], dataLen)

	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(buf[44+i*BytesPerSample:], uint16(int16(s*32767)))
	}
	return buf
}
