// Package export renders persisted meetings into interchange formats. All
// functions are pure over already-built Meeting data.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/fluxnotes/flux/cmd/server/internal/models"
)

// ToPlainText renders a meeting transcript as
// "[HH:MM:SS.mmm --> HH:MM:SS.mmm] [Speaker N] text" lines under a title
// header.
func ToPlainText(m *models.Meeting) string {
	var b strings.Builder
	b.WriteString(m.Title)
	b.WriteString("\n")
	b.WriteString(m.StartedAt.Format("Jan 2, 2006 3:04 PM"))
	b.WriteString("\n\n")

	for _, u := range m.Utterances {
		fmt.Fprintf(&b, "[%s --> %s] [Speaker %d] %s\n",
			formatTimestamp(u.Start), formatTimestamp(u.End), u.SpeakerIndex, u.Text)
	}
	return b.String()
}

// ToRTTM renders the meeting's speaker turns as RTTM SPEAKER lines, the
// interchange format consumed by diarization scoring tools. Text is not part
// of RTTM; only timing and speaker identity are emitted.
func ToRTTM(m *models.Meeting) string {
	var b strings.Builder
	for _, u := range m.Utterances {
		dur := u.End - u.Start
		if dur < 0 {
			dur = 0
		}
		fmt.Fprintf(&b, "SPEAKER %s 1 %.3f %.3f <NA> <NA> speaker_%d <NA> <NA>\n",
			m.ID, u.Start, dur, u.SpeakerIndex)
	}
	return b.String()
}

// formatTimestamp formats seconds as HH:MM:SS.mmm.
func formatTimestamp(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	ms := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
