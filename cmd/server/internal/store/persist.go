package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fluxnotes/flux/cmd/server/internal/models"
)

const indexFilename = "index.json"

func (s *Store) indexPath() string {
	return filepath.Join(s.root, indexFilename)
}

func (s *Store) meetingPath(id string) string {
	return filepath.Join(s.root, id+".json")
}

// loadIndex reads the index document at startup. A missing file is a fresh
// store; a decode failure resets to empty collections. No partial-corruption
// recovery is attempted.
func (s *Store) loadIndex() {
	b, err := os.ReadFile(s.indexPath())
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("read index", "error", err)
		}
		s.summaries = nil
		s.folders = nil
		return
	}

	var idx models.Index
	if err := json.Unmarshal(b, &idx); err != nil {
		s.log.Warn("decode index, resetting to empty state", "error", err)
		s.summaries = nil
		s.folders = nil
		return
	}

	s.summaries = idx.Summaries
	s.folders = make([]*models.MeetingFolder, 0, len(idx.Folders))
	for i := range idx.Folders {
		f := idx.Folders[i]
		if f.MeetingIDs == nil {
			f.MeetingIDs = []string{}
		}
		s.folders = append(s.folders, &f)
	}
}

// pendingOp is the latest scheduled disk operation for one document path.
// remove set means delete the file instead of writing data.
type pendingOp struct {
	data   []byte
	remove bool
}

// schedule queues op as the newest state for path. At most one worker runs
// per path; it drains the pending slot until empty, so operations apply in
// schedule order and intermediate snapshots are coalesced away. Callers must
// not assume durability at return time; Flush waits for the workers.
func (s *Store) schedule(path string, op pendingOp) {
	s.queueMu.Lock()
	s.pending[path] = op
	if s.writing[path] {
		s.queueMu.Unlock()
		return
	}
	s.writing[path] = true
	s.queueMu.Unlock()

	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		for {
			s.queueMu.Lock()
			op, ok := s.pending[path]
			if !ok {
				s.writing[path] = false
				s.queueMu.Unlock()
				return
			}
			delete(s.pending, path)
			s.queueMu.Unlock()

			if op.remove {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					s.log.Warn("remove document", "path", path, "error", err)
				}
				continue
			}
			if err := atomicWrite(path, op.data); err != nil {
				s.log.Error("write document", "path", path, "error", err)
			}
		}
	}()
}

// dropPending discards every queued operation. Active workers finish their
// current write and exit; used by ClearAll before removing the root.
func (s *Store) dropPending() {
	s.queueMu.Lock()
	s.pending = map[string]pendingOp{}
	s.queueMu.Unlock()
}

// persistIndexLocked snapshots the index under the caller's lock and schedules
// it for background persistence.
func (s *Store) persistIndexLocked() {
	idx := models.Index{
		Summaries: append([]models.MeetingSummary{}, s.summaries...),
		Folders:   make([]models.MeetingFolder, 0, len(s.folders)),
	}
	for _, f := range s.folders {
		cp := *f
		cp.MeetingIDs = append([]string{}, f.MeetingIDs...)
		idx.Folders = append(idx.Folders, cp)
	}

	b, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		s.log.Error("marshal index", "error", err)
		return
	}
	s.schedule(s.indexPath(), pendingOp{data: b})
}

// persistMeetingLocked snapshots the meeting body under the caller's lock and
// schedules it for background persistence.
func (s *Store) persistMeetingLocked(m *models.Meeting) {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		s.log.Error("marshal meeting", "id", m.ID, "error", err)
		return
	}
	s.schedule(s.meetingPath(m.ID), pendingOp{data: b})
}

// removeMeetingFile schedules deletion of the meeting body, ordered after any
// still-pending write for the same document.
func (s *Store) removeMeetingFile(id string) {
	s.schedule(s.meetingPath(id), pendingOp{remove: true})
}

func (s *Store) readMeeting(id string) (*models.Meeting, error) {
	b, err := os.ReadFile(s.meetingPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("meeting not found: %s", id)
		}
		return nil, fmt.Errorf("read meeting %s: %w", id, err)
	}
	var m models.Meeting
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode meeting %s: %w", id, err)
	}
	if m.Utterances == nil {
		m.Utterances = []models.Utterance{}
	}
	return &m, nil
}

// atomicWrite writes to a uniquely-named temp file then renames it into place
// so readers never observe a half-written document.
func atomicWrite(path string, b []byte) error {
	dir, base := filepath.Split(path)
	tmp, err := os.CreateTemp(dir, base+".tmp-")
	if err != nil {
		return fmt.Errorf("create tmp file: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write tmp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("chmod tmp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close tmp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename tmp file: %w", err)
	}
	return nil
}
