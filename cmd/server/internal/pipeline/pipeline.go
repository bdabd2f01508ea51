// Package pipeline orchestrates diarization and per-segment transcription and
// merges the results into time-ordered, speaker-attributed utterances.
//
// The design is fallback-first: whenever structured per-speaker segmentation
// is unavailable, empty or failing, the whole-session transcript becomes a
// single speaker-0 utterance. A session that captured speech always yields
// some transcript; callers never observe diarization or transcription errors.
package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/fluxnotes/flux/cmd/server/internal/metrics"
	"github.com/fluxnotes/flux/cmd/server/internal/models"
	"github.com/fluxnotes/flux/cmd/server/internal/pipeline/diarize"
)

// Diarizer produces speaker segments from raw PCM. Implemented by
// diarize.Engine.
type Diarizer interface {
	Diarize(ctx context.Context, pcm []byte) ([]diarize.Segment, error)
}

// SegmentTranscriber transcribes one PCM slice (s16le mono 16 kHz).
type SegmentTranscriber interface {
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}

// Readiness gates whether the diarization path is attempted at all.
type Readiness interface {
	Ready(ctx context.Context) bool
}

// Pipeline merges diarization and per-segment transcription into utterances.
type Pipeline struct {
	diarizer    Diarizer
	transcriber SegmentTranscriber
	readiness   Readiness
	log         *slog.Logger
}

// New builds a pipeline from its three capabilities.
func New(d Diarizer, t SegmentTranscriber, r Readiness, log *slog.Logger) *Pipeline {
	return &Pipeline{diarizer: d, transcriber: t, readiness: r, log: log}
}

// Process turns a finished session into utterances. transcript is the
// best-effort whole-session text, duration the wall-clock session length in
// seconds, pcm the captured samples (may be empty or nil).
//
// Process never fails: every error or panic on the structured path resolves
// to the fallback utterance set, which is empty only when the trimmed
// transcript is empty.
func (p *Pipeline) Process(ctx context.Context, transcript string, duration float64, pcm []byte) (utts []models.Utterance) {
	fallback := fallbackUtterances(transcript, duration)

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("pipeline panic, using fallback", "panic", r)
			metrics.RecordFallback("panic")
			utts = fallback
		}
	}()

	if len(pcm) == 0 {
		metrics.RecordFallback("no_pcm")
		return fallback
	}
	if !p.readiness.Ready(ctx) {
		p.log.Warn("transcription backend not ready, using fallback")
		metrics.RecordFallback("not_ready")
		return fallback
	}

	start := time.Now()
	segments, err := p.diarizer.Diarize(ctx, pcm)
	metrics.RecordStageDuration("diarize", time.Since(start).Seconds())
	if err != nil {
		p.log.Warn("diarization failed, using fallback", "error", err)
		metrics.RecordFallback("diarization_error")
		return fallback
	}
	if len(segments) == 0 {
		metrics.RecordFallback("no_segments")
		return fallback
	}

	merged, err := p.transcribeSegments(ctx, segments, pcm)
	if err != nil {
		p.log.Warn("segment transcription failed, using fallback", "error", err)
		metrics.RecordFallback("transcription_error")
		return fallback
	}
	if len(merged) == 0 {
		// Segments existed but none survived; never hand back an empty
		// transcript when a usable whole-session one exists.
		metrics.RecordFallback("empty_merge")
		return fallback
	}
	return merged
}

// transcribeSegments runs per-segment transcription over the sorted segments.
// Segments with empty or inverted clamped sample ranges are skipped, as are
// segments whose trimmed transcription is empty. A transcriber error aborts
// the whole structured path.
func (p *Pipeline) transcribeSegments(ctx context.Context, segments []diarize.Segment, pcm []byte) ([]models.Utterance, error) {
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].Start < segments[j].Start })

	totalSamples := len(pcm) / diarize.BytesPerSample
	out := make([]models.Utterance, 0, len(segments))

	start := time.Now()
	defer func() {
		metrics.RecordStageDuration("transcribe", time.Since(start).Seconds())
	}()

	for _, seg := range segments {
		startSample := int(seg.Start * diarize.SampleRate)
		endSample := int(seg.End * diarize.SampleRate)
		if startSample < 0 {
			startSample = 0
		}
		if endSample > totalSamples {
			endSample = totalSamples
		}
		if endSample <= startSample {
			metrics.RecordSegment("skipped")
			continue
		}

		slice := pcm[startSample*diarize.BytesPerSample : endSample*diarize.BytesPerSample]
		if len(slice) == 0 {
			metrics.RecordSegment("skipped")
			continue
		}

		text, err := p.transcriber.Transcribe(ctx, slice)
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			metrics.RecordSegment("empty")
			continue
		}

		speaker := seg.Speaker
		if speaker < 0 {
			// Sentinel speaker ids from the model collapse to speaker 0.
			speaker = 0
		}
		// Utterance times are the segment's original seconds, not re-derived
		// from the clamped sample offsets.
		out = append(out, models.Utterance{
			SpeakerIndex: speaker,
			Start:        seg.Start,
			End:          seg.End,
			Text:         text,
		})
		metrics.RecordSegment("transcribed")
	}
	return out, nil
}

// fallbackUtterances builds the single whole-session utterance, or none when
// the trimmed transcript is empty.
func fallbackUtterances(transcript string, duration float64) []models.Utterance {
	text := strings.TrimSpace(transcript)
	if text == "" {
		return []models.Utterance{}
	}
	if duration < 0 {
		duration = 0
	}
	return []models.Utterance{{SpeakerIndex: 0, Start: 0, End: duration, Text: text}}
}
