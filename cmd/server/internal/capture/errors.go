package capture

import (
	"fmt"
	"time"
)

// ErrorCode classifies capture lifecycle failures.
type ErrorCode string

const (
	// PERMISSION_DENIED microphone permission was not granted
	PERMISSION_DENIED ErrorCode = "PERMISSION_DENIED"

	// MODEL_NOT_READY inference models are not ready to serve
	MODEL_NOT_READY ErrorCode = "MODEL_NOT_READY"

	// SESSION_ACTIVE another session is already recording or processing
	SESSION_ACTIVE ErrorCode = "SESSION_ACTIVE"

	// CAPTURE_START_FAILURE the audio source refused to start
	CAPTURE_START_FAILURE ErrorCode = "CAPTURE_START_FAILURE"

	// CAPTURE_FAILURE the audio source reported a failure mid-session
	CAPTURE_FAILURE ErrorCode = "CAPTURE_FAILURE"

	// NO_SPEECH_DETECTED the finished session produced zero utterances
	NO_SPEECH_DETECTED ErrorCode = "NO_SPEECH_DETECTED"
)

// CaptureError is a classified capture lifecycle error.
type CaptureError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Cause     error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface.
func (e *CaptureError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap supports error chains.
func (e *CaptureError) Unwrap() error {
	return e.Cause
}

// NewCaptureError creates a classified capture error.
func NewCaptureError(code ErrorCode, message string, cause error) *CaptureError {
	return &CaptureError{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// Canonical user-facing failure messages kept in the manager's single-slot
// last error.
const (
	msgSessionActive    = "Another session is already active"
	msgPermissionDenied = "Microphone permission denied"
	msgModelNotReady    = "Transcription models are not ready"
	msgCaptureStart     = "Failed to start audio capture"
	msgCaptureFailure   = "Audio capture failed"
	msgNoSpeech         = "No speech detected in this recording"
)
