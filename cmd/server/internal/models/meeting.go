package models

import "time"

// MeetingStatus tracks a meeting through the capture lifecycle.
type MeetingStatus string

const (
	StatusRecording  MeetingStatus = "recording"
	StatusProcessing MeetingStatus = "processing"
	StatusCompleted  MeetingStatus = "completed"
	StatusFailed     MeetingStatus = "failed"
)

// Utterance is one speaker turn with transcribed text and time bounds.
// SpeakerIndex is never negative; Start/End are seconds from session start
// with End >= Start.
type Utterance struct {
	SpeakerIndex int     `json:"speaker_index"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Text         string  `json:"text"`
}

// Meeting is the canonical persisted record of one capture session.
// EndedAt is nil until the session reaches a terminal status. Utterances are
// appended in non-decreasing Start order by construction.
type Meeting struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	StartedAt  time.Time     `json:"started_at"`
	EndedAt    *time.Time    `json:"ended_at,omitempty"`
	Status     MeetingStatus `json:"status"`
	Utterances []Utterance   `json:"utterances"`
	FolderID   string        `json:"folder_id,omitempty"`
}

// MeetingFolder groups meetings. A meeting ID appears in at most one folder's
// MeetingIDs at any time.
type MeetingFolder struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	MeetingIDs []string `json:"meeting_ids"`
}

// MeetingSummary is the denormalized listing projection of a Meeting. It is
// derived by the store and never mutated independently.
type MeetingSummary struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Status         MeetingStatus `json:"status"`
	FolderID       string        `json:"folder_id,omitempty"`
	UtteranceCount int           `json:"utterance_count"`
}

// Index aggregates all summaries and folders, persisted as a single document
// separate from per-meeting bodies.
type Index struct {
	Summaries []MeetingSummary `json:"summaries"`
	Folders   []MeetingFolder  `json:"folders"`
}
