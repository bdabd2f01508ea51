// Package diarize wraps a speaker-segmentation model behind a narrow
// interface. The engine normalizes raw PCM, lazily loads a single cached
// model instance with single-flight coordination, and post-processes model
// output into clean speaker segments. It implements no fallback of its own:
// model errors propagate to the caller.
package diarize

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Segment is one diarized speech interval attributed to a speaker index.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker int     `json:"speaker"`
}

// RawSegment is a scored segment as emitted by the underlying model, before
// threshold filtering and merging.
type RawSegment struct {
	Start       float64
	End         float64
	Speaker     int
	Probability float64
}

// Model is the capability the engine consumes. Samples are mono float32 in
// [-1, 1] at 16 kHz.
type Model interface {
	Segment(ctx context.Context, samples []float32) ([]RawSegment, error)
}

// ModelLoader constructs the model on first use. Loading is expected to be
// expensive (weights from disk), hence the lazy single-flight discipline.
type ModelLoader func(ctx context.Context) (Model, error)

// LoadState is the explicit tri-state of the lazy model load.
type LoadState int

const (
	StateNotLoaded LoadState = iota
	StateLoading
	StateReady
)

func (s LoadState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "not_loaded"
	}
}

// Params are the segment post-processing tunables.
type Params struct {
	// Threshold is the minimum model probability to retain a segment.
	Threshold float64
	// MinSegment drops segments shorter than this many seconds.
	MinSegment float64
	// MergeGap merges same-speaker adjacent segments separated by at most
	// this many seconds.
	MergeGap float64
}

// DefaultParams returns the production tuning.
func DefaultParams() Params {
	return Params{Threshold: 0.5, MinSegment: 0.25, MergeGap: 0.35}
}

// Engine is the diarization entry point. Safe for concurrent use.
type Engine struct {
	loader ModelLoader
	params Params
	log    *slog.Logger

	mu    sync.Mutex
	model Model
	state LoadState
	group singleflight.Group
}

// NewEngine builds an engine around loader. Zero-valued params fields fall
// back to DefaultParams.
func NewEngine(loader ModelLoader, params Params, log *slog.Logger) *Engine {
	def := DefaultParams()
	if params.Threshold == 0 {
		params.Threshold = def.Threshold
	}
	if params.MinSegment == 0 {
		params.MinSegment = def.MinSegment
	}
	if params.MergeGap == 0 {
		params.MergeGap = def.MergeGap
	}
	return &Engine{loader: loader, params: params, log: log, state: StateNotLoaded}
}

// State reports the model load tri-state.
func (e *Engine) State() LoadState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Diarize converts pcm (s16le mono 16 kHz) to normalized samples, runs the
// model and returns filtered, merged speaker segments. Empty input returns an
// empty list without touching the model.
func (e *Engine) Diarize(ctx context.Context, pcm []byte) ([]Segment, error) {
	if len(pcm) == 0 {
		return []Segment{}, nil
	}

	m, err := e.ensureModel(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := e.invoke(ctx, m, DecodeSamples(pcm))
	if err != nil {
		return nil, err
	}

	return e.refine(raw), nil
}

// ensureModel returns the cached model, loading it at most once even under
// concurrent cold-start calls.
func (e *Engine) ensureModel(ctx context.Context) (Model, error) {
	e.mu.Lock()
	if e.state == StateReady {
		m := e.model
		e.mu.Unlock()
		return m, nil
	}
	e.state = StateLoading
	e.mu.Unlock()

	v, err, _ := e.group.Do("model", func() (interface{}, error) {
		e.mu.Lock()
		if e.state == StateReady {
			m := e.model
			e.mu.Unlock()
			return m, nil
		}
		e.mu.Unlock()

		m, err := e.loader(ctx)

		e.mu.Lock()
		defer e.mu.Unlock()
		if err != nil {
			e.state = StateNotLoaded
			return nil, fmt.Errorf("load diarization model: %w", err)
		}
		e.model = m
		e.state = StateReady
		e.log.Info("diarization model loaded")
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Model), nil
}

// invoke runs the model call, confining any panic from the model binding to
// an error return.
func (e *Engine) invoke(ctx context.Context, m Model, samples []float32) (raw []RawSegment, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("diarization model panic: %v", r)
		}
	}()
	return m.Segment(ctx, samples)
}

// refine applies the probability threshold, drops sub-minimum segments and
// merges same-speaker neighbors separated by at most MergeGap.
func (e *Engine) refine(raw []RawSegment) []Segment {
	kept := make([]RawSegment, 0, len(raw))
	for _, r := range raw {
		if r.Probability < e.params.Threshold {
			continue
		}
		if r.End-r.Start < e.params.MinSegment {
			continue
		}
		kept = append(kept, r)
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })

	out := []Segment{}
	for _, r := range kept {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.Speaker == r.Speaker && r.Start-last.End <= e.params.MergeGap {
				if r.End > last.End {
					last.End = r.End
				}
				continue
			}
		}
		out = append(out, Segment{Start: r.Start, End: r.End, Speaker: r.Speaker})
	}
	return out
}
