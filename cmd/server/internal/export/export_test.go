package export

import (
	"strings"
	"testing"
	"time"

	"github.com/fluxnotes/flux/cmd/server/internal/models"
)

func sampleMeeting() *models.Meeting {
	return &models.Meeting{
		ID:        "m-1",
		Title:     "Design review",
		StartedAt: time.Date(2025, time.March, 14, 15, 9, 0, 0, time.UTC),
		Status:    models.StatusCompleted,
		Utterances: []models.Utterance{
			{SpeakerIndex: 0, Start: 0, End: 4.25, Text: "Let's get started."},
			{SpeakerIndex: 1, Start: 4.5, End: 9.875, Text: "Agenda is on the screen."},
		},
	}
}

func TestToPlainText(t *testing.T) {
	got := ToPlainText(sampleMeeting())

	if !strings.HasPrefix(got, "Design review\nMar 14, 2025 3:09 PM\n\n") {
		t.Errorf("header wrong:\n%s", got)
	}
	wantLines := []string{
		"[00:00:00.000 --> 00:00:04.250] [Speaker 0] Let's get started.",
		"[00:00:04.500 --> 00:00:09.875] [Speaker 1] Agenda is on the screen.",
	}
	for _, line := range wantLines {
		if !strings.Contains(got, line) {
			t.Errorf("missing line %q in:\n%s", line, got)
		}
	}
}

func TestToPlainTextEmpty(t *testing.T) {
	m := sampleMeeting()
	m.Utterances = nil
	got := ToPlainText(m)
	if !strings.Contains(got, "Design review") {
		t.Errorf("title missing:\n%s", got)
	}
	if strings.Contains(got, "Speaker") {
		t.Errorf("unexpected utterance lines:\n%s", got)
	}
}

func TestToRTTM(t *testing.T) {
	got := ToRTTM(sampleMeeting())

	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), got)
	}
	if lines[0] != "SPEAKER m-1 1 0.000 4.250 <NA> <NA> speaker_0 <NA> <NA>" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[1] != "SPEAKER m-1 1 4.500 5.375 <NA> <NA> speaker_1 <NA> <NA>" {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestToRTTMClampsNegativeDuration(t *testing.T) {
	m := sampleMeeting()
	m.Utterances = []models.Utterance{{SpeakerIndex: 0, Start: 5, End: 3, Text: "x"}}
	got := ToRTTM(m)
	if !strings.Contains(got, " 5.000 0.000 ") {
		t.Errorf("negative duration not clamped:\n%s", got)
	}
}

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00.000"},
		{1.5, "00:00:01.500"},
		{61.25, "00:01:01.250"},
		{3723.125, "01:02:03.125"},
	}
	for _, tc := range cases {
		if got := formatTimestamp(tc.in); got != tc.want {
			t.Errorf("formatTimestamp(%g) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
