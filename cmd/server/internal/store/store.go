// Package store owns the canonical persisted state for meetings, folders and
// listing summaries. All collection mutations are serialized behind one mutex;
// disk writes are scheduled as background tasks and never awaited by the
// triggering mutation, so durability is not guaranteed at return time.
package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fluxnotes/flux/cmd/server/internal/models"
)

// Store is the meeting persistence layer. The in-memory cache is the source
// of truth for reads; the JSON files under root trail it asynchronously.
// Scheduled writes are coalesced per document path so the last snapshot
// scheduled is the one that ends up on disk.
type Store struct {
	mu        sync.Mutex
	root      string
	log       *slog.Logger
	summaries []models.MeetingSummary
	folders   []*models.MeetingFolder
	cache     map[string]*models.Meeting

	writes  sync.WaitGroup
	maint   sync.WaitGroup
	queueMu sync.Mutex
	pending map[string]pendingOp
	writing map[string]bool
}

// Flush blocks until all scheduled background writes have finished. Mutators
// never wait on persistence; this exists for shutdown paths.
func (s *Store) Flush() {
	s.writes.Wait()
	s.maint.Wait()
}

// New opens a store rooted at dir, creating it if needed, and loads the index
// document. A missing or undecodable index resets to empty collections rather
// than failing: listing state is reconstructible and not worth refusing
// startup over.
func New(dir string, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	s := &Store{
		root:    filepath.Clean(dir),
		log:     log,
		cache:   map[string]*models.Meeting{},
		pending: map[string]pendingOp{},
		writing: map[string]bool{},
	}
	s.loadIndex()
	return s, nil
}

// Root returns the persistence root directory.
func (s *Store) Root() string {
	return s.root
}

// CreateMeeting inserts a new recording meeting and returns it. A blank title
// is replaced with a timestamp-derived default; a non-blank one is trimmed.
// The meeting body and updated index are persisted in the background.
func (s *Store) CreateMeeting(title string) *models.Meeting {
	now := time.Now()
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Meeting " + now.Format("Jan 2, 2006 3:04 PM")
	}

	m := &models.Meeting{
		ID:         uuid.NewString(),
		Title:      title,
		StartedAt:  now,
		Status:     models.StatusRecording,
		Utterances: []models.Utterance{},
	}

	s.mu.Lock()
	s.cache[m.ID] = m
	s.summaries = append([]models.MeetingSummary{summarize(m, now)}, s.summaries...)
	s.persistMeetingLocked(m)
	s.persistIndexLocked()
	s.mu.Unlock()

	return m
}

// Meeting returns the meeting with the given ID, loading it from disk on
// first access if it is not cached.
func (s *Store) Meeting(id string) (*models.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meetingLocked(id)
}

// AppendUtterance adds one utterance to the meeting and refreshes its summary.
func (s *Store) AppendUtterance(id string, u models.Utterance) error {
	return s.mutateMeeting(id, func(m *models.Meeting) {
		m.Utterances = append(m.Utterances, u)
	})
}

// FinishMeeting moves the meeting to status; terminal statuses also stamp
// EndedAt.
func (s *Store) FinishMeeting(id string, status models.MeetingStatus) error {
	return s.mutateMeeting(id, func(m *models.Meeting) {
		m.Status = status
		if status == models.StatusCompleted || status == models.StatusFailed {
			now := time.Now()
			m.EndedAt = &now
		}
	})
}

// MarkMeetingFailed is shorthand for FinishMeeting with StatusFailed.
func (s *Store) MarkMeetingFailed(id string) error {
	return s.FinishMeeting(id, models.StatusFailed)
}

// UpdateMeeting replaces the cached meeting wholesale and schedules a persist.
// Used for title renames and other whole-record edits.
func (s *Store) UpdateMeeting(m *models.Meeting) error {
	if m == nil || m.ID == "" {
		return fmt.Errorf("update meeting: missing id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.meetingLocked(m.ID); err != nil {
		return err
	}
	s.cache[m.ID] = m
	s.touchSummaryLocked(m, time.Now())
	s.persistMeetingLocked(m)
	s.persistIndexLocked()
	return nil
}

// DeleteMeeting removes the meeting from the cache, the summary list and every
// folder's member list, then schedules a best-effort removal of the backing
// file. File removal errors are logged and swallowed, not retried.
func (s *Store) DeleteMeeting(id string) {
	s.mu.Lock()
	delete(s.cache, id)
	for i, sum := range s.summaries {
		if sum.ID == id {
			s.summaries = append(s.summaries[:i], s.summaries[i+1:]...)
			break
		}
	}
	for _, f := range s.folders {
		f.MeetingIDs = removeID(f.MeetingIDs, id)
	}
	s.persistIndexLocked()
	s.removeMeetingFile(id)
	s.mu.Unlock()
}

// mutateMeeting runs fn on the cached meeting under the lock, refreshes the
// derived summary and schedules persistence of both body and index.
func (s *Store) mutateMeeting(id string, fn func(*models.Meeting)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.meetingLocked(id)
	if err != nil {
		return err
	}
	fn(m)
	s.touchSummaryLocked(m, time.Now())
	s.persistMeetingLocked(m)
	s.persistIndexLocked()
	return nil
}

func (s *Store) meetingLocked(id string) (*models.Meeting, error) {
	if m, ok := s.cache[id]; ok {
		return m, nil
	}
	m, err := s.readMeeting(id)
	if err != nil {
		return nil, err
	}
	s.cache[id] = m
	return m, nil
}

// touchSummaryLocked re-derives the summary for m, stamps UpdatedAt and
// re-sorts the list by UpdatedAt descending.
func (s *Store) touchSummaryLocked(m *models.Meeting, now time.Time) {
	found := false
	for i := range s.summaries {
		if s.summaries[i].ID == m.ID {
			s.summaries[i] = summarize(m, now)
			found = true
			break
		}
	}
	if !found {
		s.summaries = append(s.summaries, summarize(m, now))
	}
	sort.SliceStable(s.summaries, func(i, j int) bool {
		return s.summaries[i].UpdatedAt.After(s.summaries[j].UpdatedAt)
	})
}

func summarize(m *models.Meeting, updatedAt time.Time) models.MeetingSummary {
	return models.MeetingSummary{
		ID:             m.ID,
		Title:          m.Title,
		UpdatedAt:      updatedAt,
		Status:         m.Status,
		FolderID:       m.FolderID,
		UtteranceCount: len(m.Utterances),
	}
}

// Summaries returns a copy of all meeting summaries, most recently updated
// first.
func (s *Store) Summaries() []models.MeetingSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.MeetingSummary, len(s.summaries))
	copy(out, s.summaries)
	return out
}

// UnfiledSummaries returns summaries with no folder assignment.
func (s *Store) UnfiledSummaries() []models.MeetingSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.MeetingSummary{}
	for _, sum := range s.summaries {
		if sum.FolderID == "" {
			out = append(out, sum)
		}
	}
	return out
}

// FolderSummaries resolves the folder's member IDs against the summary list.
// Unknown folder IDs yield an empty result.
func (s *Store) FolderSummaries(folderID string) []models.MeetingSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.MeetingSummary{}
	f := s.folderLocked(folderID)
	if f == nil {
		return out
	}
	for _, id := range f.MeetingIDs {
		for _, sum := range s.summaries {
			if sum.ID == id {
				out = append(out, sum)
				break
			}
		}
	}
	return out
}

// ClearAll wipes the in-memory collections and schedules deletion of the
// entire persistence root.
func (s *Store) ClearAll() {
	s.mu.Lock()
	s.summaries = nil
	s.folders = nil
	s.cache = map[string]*models.Meeting{}
	s.mu.Unlock()

	// Queued document writes are obsolete; removal waits for active workers
	// so none of them resurrects a file after the wipe.
	s.dropPending()
	root := s.root
	s.maint.Add(1)
	go func() {
		defer s.maint.Done()
		s.writes.Wait()
		if err := os.RemoveAll(root); err != nil {
			s.log.Warn("clear store root", "error", err)
			return
		}
		if err := os.MkdirAll(root, 0o755); err != nil {
			s.log.Warn("recreate store root", "error", err)
		}
	}()
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
