package capture

import (
	"context"
	"log/slog"
	"sync"
)

// AudioSource is the capture collaborator. Implementations own the OS-level
// recording machinery; the manager only drives lifecycle and consumes the
// results. Completion and failure callbacks fire at most once per session,
// from a source-owned goroutine.
type AudioSource interface {
	// EnsureMicrophonePermission reports whether recording is permitted,
	// prompting the user if the platform requires it.
	EnsureMicrophonePermission(ctx context.Context) bool

	// Start begins capturing. onComplete receives the best-effort
	// whole-session transcript after Stop; onFailure receives a reason when
	// capture aborts. Returns false if capture could not start.
	Start(onComplete func(transcript string), onFailure func(reason string)) bool

	// Stop signals the source to finish; the completion callback follows
	// asynchronously.
	Stop()

	// LastCapturedPCM returns the session's raw samples: s16le mono 16 kHz.
	LastCapturedPCM() []byte
}

// MockSource is a scripted AudioSource for development and tests, in the
// spirit of a degraded-mode implementation: no microphone is touched and the
// configured transcript/PCM are delivered on Stop.
type MockSource struct {
	mu         sync.Mutex
	log        *slog.Logger
	Transcript string
	PCM        []byte
	Permitted  bool
	StartOK    bool
	FailReason string

	onComplete func(string)
	onFailure  func(string)
}

// NewMockSource returns a permitted, startable source delivering transcript
// and pcm.
func NewMockSource(transcript string, pcm []byte, log *slog.Logger) *MockSource {
	return &MockSource{
		log:        log,
		Transcript: transcript,
		PCM:        pcm,
		Permitted:  true,
		StartOK:    true,
	}
}

// EnsureMicrophonePermission reports the scripted permission state.
func (s *MockSource) EnsureMicrophonePermission(ctx context.Context) bool {
	return s.Permitted
}

// Start registers the callbacks and reports the scripted start result. When
// FailReason is set the failure callback fires asynchronously instead of
// waiting for Stop.
func (s *MockSource) Start(onComplete func(string), onFailure func(string)) bool {
	if !s.StartOK {
		return false
	}
	s.mu.Lock()
	s.onComplete = onComplete
	s.onFailure = onFailure
	reason := s.FailReason
	s.mu.Unlock()

	if reason != "" {
		go onFailure(reason)
	}
	return true
}

// Stop delivers the scripted transcript through the completion callback.
func (s *MockSource) Stop() {
	s.mu.Lock()
	cb := s.onComplete
	s.onComplete = nil
	transcript := s.Transcript
	s.mu.Unlock()

	if cb != nil {
		go cb(transcript)
	}
}

// LastCapturedPCM returns the scripted samples.
func (s *MockSource) LastCapturedPCM() []byte {
	return s.PCM
}
