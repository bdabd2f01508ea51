package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/fluxnotes/flux/cmd/server/internal/models"
	"github.com/fluxnotes/flux/cmd/server/internal/pipeline/diarize"
)

type fakeDiarizer struct {
	segments []diarize.Segment
	err      error
	panics   bool
}

func (f *fakeDiarizer) Diarize(ctx context.Context, pcm []byte) ([]diarize.Segment, error) {
	if f.panics {
		panic("diarizer blew up")
	}
	return f.segments, f.err
}

type fakeTranscriber struct {
	// byRange maps "start-end" sample offsets to text; fallback to text.
	text  string
	texts []string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	i := f.calls
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if i < len(f.texts) {
		return f.texts[i], nil
	}
	return f.text, nil
}

type fakeReadiness bool

func (f fakeReadiness) Ready(ctx context.Context) bool { return bool(f) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPCM(samples int) []byte {
	return make([]byte, samples*2)
}

func newPipeline(d Diarizer, t SegmentTranscriber, ready bool) *Pipeline {
	return New(d, t, fakeReadiness(ready), discardLogger())
}

func TestProcessFallback(t *testing.T) {
	t.Run("no pcm yields single whole-session utterance", func(t *testing.T) {
		p := newPipeline(&fakeDiarizer{}, &fakeTranscriber{}, true)

		utts := p.Process(context.Background(), "hello there", 12.0, nil)

		if len(utts) != 1 {
			t.Fatalf("len(utts) = %d, want 1", len(utts))
		}
		want := models.Utterance{SpeakerIndex: 0, Start: 0, End: 12.0, Text: "hello there"}
		if utts[0] != want {
			t.Errorf("utterance = %+v, want %+v", utts[0], want)
		}
	})

	t.Run("empty trimmed transcript yields zero utterances", func(t *testing.T) {
		p := newPipeline(&fakeDiarizer{}, &fakeTranscriber{}, true)

		utts := p.Process(context.Background(), "   \n\t ", 5.0, nil)
		if len(utts) != 0 {
			t.Fatalf("len(utts) = %d, want 0", len(utts))
		}
	})

	t.Run("negative duration clamps to zero", func(t *testing.T) {
		p := newPipeline(&fakeDiarizer{}, &fakeTranscriber{}, true)

		utts := p.Process(context.Background(), "x", -3.0, nil)
		if len(utts) != 1 || utts[0].End != 0 {
			t.Fatalf("utts = %+v, want single utterance ending at 0", utts)
		}
	})

	t.Run("models not ready skips diarization", func(t *testing.T) {
		d := &fakeDiarizer{segments: []diarize.Segment{{Start: 0, End: 1, Speaker: 1}}}
		p := newPipeline(d, &fakeTranscriber{text: "structured"}, false)

		utts := p.Process(context.Background(), "fallback text", 4.0, testPCM(16000))
		if len(utts) != 1 || utts[0].Text != "fallback text" {
			t.Fatalf("utts = %+v, want fallback", utts)
		}
	})

	t.Run("diarizer error falls back", func(t *testing.T) {
		d := &fakeDiarizer{err: errors.New("model exploded")}
		p := newPipeline(d, &fakeTranscriber{}, true)

		utts := p.Process(context.Background(), "test", 5.0, testPCM(16000))
		if len(utts) != 1 {
			t.Fatalf("len(utts) = %d, want 1", len(utts))
		}
		want := models.Utterance{SpeakerIndex: 0, Start: 0, End: 5.0, Text: "test"}
		if utts[0] != want {
			t.Errorf("utterance = %+v, want %+v", utts[0], want)
		}
	})

	t.Run("diarizer panic falls back", func(t *testing.T) {
		p := newPipeline(&fakeDiarizer{panics: true}, &fakeTranscriber{}, true)

		utts := p.Process(context.Background(), "survived", 2.0, testPCM(16000))
		if len(utts) != 1 || utts[0].Text != "survived" {
			t.Fatalf("utts = %+v, want fallback", utts)
		}
	})

	t.Run("zero segments falls back", func(t *testing.T) {
		p := newPipeline(&fakeDiarizer{segments: []diarize.Segment{}}, &fakeTranscriber{}, true)

		utts := p.Process(context.Background(), "quiet room", 8.0, testPCM(16000))
		if len(utts) != 1 || utts[0].Text != "quiet room" {
			t.Fatalf("utts = %+v, want fallback", utts)
		}
	})

	t.Run("transcriber error falls back", func(t *testing.T) {
		d := &fakeDiarizer{segments: []diarize.Segment{{Start: 0, End: 0.5, Speaker: 0}}}
		tr := &fakeTranscriber{err: errors.New("sidecar down")}
		p := newPipeline(d, tr, true)

		utts := p.Process(context.Background(), "whole session", 1.0, testPCM(16000))
		if len(utts) != 1 || utts[0].Text != "whole session" {
			t.Fatalf("utts = %+v, want fallback", utts)
		}
	})

	t.Run("all segments empty falls back instead of empty list", func(t *testing.T) {
		d := &fakeDiarizer{segments: []diarize.Segment{
			{Start: 0, End: 0.5, Speaker: 0},
			{Start: 0.5, End: 1, Speaker: 1},
		}}
		tr := &fakeTranscriber{texts: []string{"  ", "\n"}}
		p := newPipeline(d, tr, true)

		utts := p.Process(context.Background(), "still here", 1.0, testPCM(16000))
		if len(utts) != 1 || utts[0].Text != "still here" {
			t.Fatalf("utts = %+v, want fallback", utts)
		}
	})
}

func TestProcessStructured(t *testing.T) {
	t.Run("utterances are ordered and attributed", func(t *testing.T) {
		// Segments arrive out of order; pipeline must sort before slicing.
		d := &fakeDiarizer{segments: []diarize.Segment{
			{Start: 1.0, End: 2.0, Speaker: 1},
			{Start: 0.0, End: 1.0, Speaker: 0},
		}}
		tr := &fakeTranscriber{texts: []string{"first turn", "second turn"}}
		p := newPipeline(d, tr, true)

		utts := p.Process(context.Background(), "ignored fallback", 2.0, testPCM(2*16000))

		if len(utts) != 2 {
			t.Fatalf("len(utts) = %d, want 2", len(utts))
		}
		if utts[0].Start > utts[1].Start {
			t.Errorf("utterances out of order: %+v", utts)
		}
		if utts[0].SpeakerIndex != 0 || utts[1].SpeakerIndex != 1 {
			t.Errorf("speaker attribution wrong: %+v", utts)
		}
		if utts[0].Text != "first turn" || utts[1].Text != "second turn" {
			t.Errorf("texts wrong: %+v", utts)
		}
	})

	t.Run("negative speaker clamps to zero", func(t *testing.T) {
		d := &fakeDiarizer{segments: []diarize.Segment{{Start: 0, End: 1, Speaker: -1}}}
		tr := &fakeTranscriber{text: "clamped"}
		p := newPipeline(d, tr, true)

		utts := p.Process(context.Background(), "fb", 1.0, testPCM(16000))
		if len(utts) != 1 || utts[0].SpeakerIndex != 0 {
			t.Fatalf("utts = %+v, want speaker 0", utts)
		}
	})

	t.Run("segment beyond pcm is clamped and skipped when empty", func(t *testing.T) {
		// 1 second of samples; second segment starts past the end.
		d := &fakeDiarizer{segments: []diarize.Segment{
			{Start: 0, End: 0.5, Speaker: 0},
			{Start: 2.0, End: 3.0, Speaker: 1},
		}}
		tr := &fakeTranscriber{text: "kept"}
		p := newPipeline(d, tr, true)

		utts := p.Process(context.Background(), "fb", 1.0, testPCM(16000))
		if len(utts) != 1 {
			t.Fatalf("len(utts) = %d, want 1", len(utts))
		}
		if tr.calls != 1 {
			t.Errorf("transcriber called %d times, want 1", tr.calls)
		}
	})

	t.Run("segment times survive clamping", func(t *testing.T) {
		// End is clamped to the 1s of available samples but the utterance
		// keeps the segment's original 1.5s end time.
		d := &fakeDiarizer{segments: []diarize.Segment{{Start: 0.5, End: 1.5, Speaker: 0}}}
		tr := &fakeTranscriber{text: "tail"}
		p := newPipeline(d, tr, true)

		utts := p.Process(context.Background(), "fb", 1.5, testPCM(16000))
		if len(utts) != 1 {
			t.Fatalf("len(utts) = %d, want 1", len(utts))
		}
		if utts[0].Start != 0.5 || utts[0].End != 1.5 {
			t.Errorf("times = [%g, %g], want [0.5, 1.5]", utts[0].Start, utts[0].End)
		}
	})

	t.Run("inverted range never reaches the transcriber", func(t *testing.T) {
		d := &fakeDiarizer{segments: []diarize.Segment{{Start: 3.0, End: 2.0, Speaker: 0}}}
		tr := &fakeTranscriber{text: "never"}
		p := newPipeline(d, tr, true)

		utts := p.Process(context.Background(), "fb", 1.0, testPCM(16000))
		if tr.calls != 0 {
			t.Errorf("transcriber called %d times, want 0", tr.calls)
		}
		if len(utts) != 1 || utts[0].Text != "fb" {
			t.Fatalf("utts = %+v, want fallback", utts)
		}
	})

	t.Run("transcriptions are trimmed", func(t *testing.T) {
		d := &fakeDiarizer{segments: []diarize.Segment{{Start: 0, End: 1, Speaker: 0}}}
		tr := &fakeTranscriber{text: "  padded text \n"}
		p := newPipeline(d, tr, true)

		utts := p.Process(context.Background(), "fb", 1.0, testPCM(16000))
		if len(utts) != 1 || utts[0].Text != "padded text" {
			t.Fatalf("utts = %+v, want trimmed text", utts)
		}
	})
}

func TestFallbackUtterances(t *testing.T) {
	if got := fallbackUtterances("", 10); len(got) != 0 {
		t.Errorf("empty transcript: got %+v, want empty", got)
	}
	got := fallbackUtterances("  hi  ", 3)
	if len(got) != 1 || got[0].Text != "hi" || got[0].End != 3 {
		t.Errorf("got %+v", got)
	}
	if strings.TrimSpace(got[0].Text) != got[0].Text {
		t.Errorf("text not trimmed: %q", got[0].Text)
	}
}
