// Package capture owns the recording session state machine. Exactly one
// session may be recording or processing at a time process-wide; the guard
// lives here, not in the store. Audio capture and inference run on worker
// goroutines and re-enter the manager only through method calls.
package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fluxnotes/flux/cmd/server/internal/metrics"
	"github.com/fluxnotes/flux/cmd/server/internal/models"
	"github.com/fluxnotes/flux/cmd/server/internal/pipeline"
	"github.com/fluxnotes/flux/cmd/server/internal/store"
	"github.com/fluxnotes/flux/pkg/logger"
)

// SessionState is the manager's ephemeral session state.
// Idle -> Recording -> Processing -> Idle.
type SessionState string

const (
	SessionIdle       SessionState = "idle"
	SessionRecording  SessionState = "recording"
	SessionProcessing SessionState = "processing"
)

// EventType labels manager event broadcasts.
type EventType string

const (
	EventStateChanged     EventType = "state_changed"
	EventMeetingCompleted EventType = "meeting_completed"
	EventMeetingFailed    EventType = "meeting_failed"
)

// Event is broadcast to subscribers on every session transition. The manager
// never depends on being observed, only on notifying.
type Event struct {
	Type      EventType    `json:"type"`
	State     SessionState `json:"state"`
	MeetingID string       `json:"meeting_id,omitempty"`
	Message   string       `json:"message,omitempty"`
}

const eventBuffer = 16

// Status is a snapshot of the manager for callers.
type Status struct {
	State     SessionState `json:"state"`
	MeetingID string       `json:"meeting_id,omitempty"`
	LastError string       `json:"last_error,omitempty"`
}

// Manager is the session state machine. Constructed explicitly and passed
// where needed; there is no process-wide singleton.
type Manager struct {
	source    AudioSource
	pipe      *pipeline.Pipeline
	store     *store.Store
	readiness pipeline.Readiness
	log       *slog.Logger

	mu        sync.Mutex
	state     SessionState
	starting  bool
	meetingID string
	startedAt time.Time
	lastError string

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// NewManager wires the state machine to its collaborators.
func NewManager(source AudioSource, pipe *pipeline.Pipeline, st *store.Store, readiness pipeline.Readiness, log *slog.Logger) *Manager {
	return &Manager{
		source:    source,
		pipe:      pipe,
		store:     st,
		readiness: readiness,
		log:       log,
		state:     SessionIdle,
		subs:      map[int]chan Event{},
	}
}

// Status returns a snapshot of the session state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{State: m.state, MeetingID: m.meetingID, LastError: m.lastError}
}

// LastError returns the single-slot last failure message. It is overwritten
// on each new failure, never accumulated.
func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}

// StartMeeting begins a new capture session. Preconditions: no active
// session, microphone permission granted, inference models ready. Any
// precondition failure returns false with the last-error slot set and no
// side effects. A capture start failure marks the just-created meeting
// failed and resets to idle.
func (m *Manager) StartMeeting(ctx context.Context, title string) bool {
	m.mu.Lock()
	if m.state != SessionIdle || m.starting {
		m.lastError = msgSessionActive
		m.mu.Unlock()
		m.log.Warn("start refused", "error", NewCaptureError(SESSION_ACTIVE, msgSessionActive, nil))
		return false
	}
	// Latch so a concurrent StartMeeting fails while the precondition
	// checks below run outside the lock.
	m.starting = true
	m.mu.Unlock()

	if !m.source.EnsureMicrophonePermission(ctx) {
		m.log.Warn("start refused", "error", NewCaptureError(PERMISSION_DENIED, msgPermissionDenied, nil))
		return m.failStart(msgPermissionDenied)
	}
	if !m.readiness.Ready(ctx) {
		m.log.Warn("start refused", "error", NewCaptureError(MODEL_NOT_READY, msgModelNotReady, nil))
		return m.failStart(msgModelNotReady)
	}

	meeting := m.store.CreateMeeting(title)

	m.mu.Lock()
	m.meetingID = meeting.ID
	m.startedAt = time.Now()
	m.state = SessionRecording
	m.starting = false
	m.mu.Unlock()

	if !m.source.Start(m.handleCompletion, m.handleFailure) {
		m.log.Error("capture start failed", "error", NewCaptureError(CAPTURE_START_FAILURE, msgCaptureStart, nil), "meeting_id", meeting.ID)
		if err := m.store.MarkMeetingFailed(meeting.ID); err != nil {
			m.log.Error("mark meeting failed", "meeting_id", meeting.ID, "error", err)
		}
		m.mu.Lock()
		m.lastError = msgCaptureStart
		m.resetLocked()
		m.mu.Unlock()
		m.emit(Event{Type: EventMeetingFailed, State: SessionIdle, MeetingID: meeting.ID, Message: msgCaptureStart})
		return false
	}

	m.log.Info("recording started", "meeting_id", meeting.ID, "title", meeting.Title)
	m.emit(Event{Type: EventStateChanged, State: SessionRecording, MeetingID: meeting.ID})
	return true
}

func (m *Manager) failStart(msg string) bool {
	m.mu.Lock()
	m.lastError = msg
	m.starting = false
	m.mu.Unlock()
	return false
}

// StopMeeting is a no-op unless recording. The meeting moves to processing
// immediately, before the final transcript exists; the asynchronous
// completion callback drives the terminal transition.
func (m *Manager) StopMeeting() {
	m.mu.Lock()
	if m.state != SessionRecording {
		m.mu.Unlock()
		return
	}
	m.state = SessionProcessing
	id := m.meetingID
	m.mu.Unlock()

	if err := m.store.FinishMeeting(id, models.StatusProcessing); err != nil {
		m.log.Error("set meeting processing", "meeting_id", id, "error", err)
	}
	m.emit(Event{Type: EventStateChanged, State: SessionProcessing, MeetingID: id})
	m.source.Stop()
}

// handleCompletion is the audio source's completion callback. It runs the
// pipeline, appends every resulting utterance and drives the terminal
// transition. The session resets to idle on every path.
func (m *Manager) handleCompletion(transcript string) {
	m.mu.Lock()
	if m.state == SessionIdle {
		// Stray callback after a failure already reset the session.
		m.mu.Unlock()
		return
	}
	id := m.meetingID
	startedAt := m.startedAt
	m.mu.Unlock()

	duration := time.Since(startedAt).Seconds()
	pcm := m.source.LastCapturedPCM()

	procStart := time.Now()
	utterances := m.pipe.Process(context.Background(), transcript, duration, pcm)
	procMs := time.Since(procStart).Milliseconds()
	for _, u := range utterances {
		if err := m.store.AppendUtterance(id, u); err != nil {
			m.log.Error("append utterance", "meeting_id", id, "error", err)
		}
	}

	if len(utterances) == 0 {
		logger.LogPipelineStage(m.log, "process", "error", id, procMs, string(NO_SPEECH_DETECTED))
		m.log.Warn("session finished without speech", "error", NewCaptureError(NO_SPEECH_DETECTED, msgNoSpeech, nil), "meeting_id", id)
		if err := m.store.MarkMeetingFailed(id); err != nil {
			m.log.Error("mark meeting failed", "meeting_id", id, "error", err)
		}
		m.mu.Lock()
		m.lastError = msgNoSpeech
		m.resetLocked()
		m.mu.Unlock()
		metrics.RecordSession("failed")
		m.emit(Event{Type: EventMeetingFailed, State: SessionIdle, MeetingID: id, Message: msgNoSpeech})
		return
	}

	logger.LogPipelineStage(m.log, "process", "success", id, procMs, "")
	if err := m.store.FinishMeeting(id, models.StatusCompleted); err != nil {
		m.log.Error("finish meeting", "meeting_id", id, "error", err)
	}
	m.mu.Lock()
	m.resetLocked()
	m.mu.Unlock()
	metrics.RecordSession("completed")
	m.log.Info("meeting completed", "meeting_id", id, "utterances", len(utterances), "duration_s", duration)
	m.emit(Event{Type: EventMeetingCompleted, State: SessionIdle, MeetingID: id})
}

// handleFailure is the audio source's failure callback. The meeting is marked
// failed and the session resets to idle; a generic capture-failure message is
// recorded only when no more specific one was already set.
func (m *Manager) handleFailure(reason string) {
	m.mu.Lock()
	if m.state == SessionIdle {
		m.mu.Unlock()
		return
	}
	id := m.meetingID
	if reason != "" {
		m.lastError = reason
	} else if m.lastError == "" {
		m.lastError = msgCaptureFailure
	}
	msg := m.lastError
	m.resetLocked()
	m.mu.Unlock()

	m.log.Error("capture failed", "error", NewCaptureError(CAPTURE_FAILURE, msg, nil), "meeting_id", id)
	if err := m.store.MarkMeetingFailed(id); err != nil {
		m.log.Error("mark meeting failed", "meeting_id", id, "error", err)
	}
	metrics.RecordSession("failed")
	m.emit(Event{Type: EventMeetingFailed, State: SessionIdle, MeetingID: id, Message: msg})
}

// resetLocked restores the single-active-session invariant.
func (m *Manager) resetLocked() {
	m.state = SessionIdle
	m.starting = false
	m.meetingID = ""
	m.startedAt = time.Time{}
}

// Subscribe registers an event channel. The returned cancel func must be
// called to release it. Slow subscribers drop events rather than blocking
// session transitions.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, eventBuffer)
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.subMu.Unlock()

	cancel := func() {
		m.subMu.Lock()
		if _, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
		m.subMu.Unlock()
	}
	return ch, cancel
}

func (m *Manager) emit(ev Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
