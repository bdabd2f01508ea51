package store

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fluxnotes/flux/cmd/server/internal/models"
)

// CreateFolder adds a new empty folder. Blank or whitespace-only names are
// rejected.
func (s *Store) CreateFolder(name string) (*models.MeetingFolder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("folder name must not be empty")
	}

	f := &models.MeetingFolder{
		ID:         uuid.NewString(),
		Name:       name,
		MeetingIDs: []string{},
	}

	s.mu.Lock()
	s.folders = append(s.folders, f)
	s.persistIndexLocked()
	s.mu.Unlock()

	out := *f
	return &out, nil
}

// RenameFolder validates and trims the new name, then updates the folder.
func (s *Store) RenameFolder(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("folder name must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.folderLocked(id)
	if f == nil {
		return fmt.Errorf("folder not found: %s", id)
	}
	f.Name = name
	s.persistIndexLocked()
	return nil
}

// DeleteFolder unassigns all member meetings (it never deletes them), then
// removes the folder itself.
func (s *Store) DeleteFolder(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, f := range s.folders {
		if f.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("folder not found: %s", id)
	}

	for _, mid := range s.folders[idx].MeetingIDs {
		s.clearFolderRefLocked(mid)
	}
	s.folders = append(s.folders[:idx], s.folders[idx+1:]...)
	s.persistIndexLocked()
	return nil
}

// MoveMeeting enforces single-folder membership: the meeting is first removed
// from every folder's member list, then appended to the target when a folder
// ID is given and found. An empty folderID unfiles the meeting.
func (s *Store) MoveMeeting(id, folderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.folders {
		f.MeetingIDs = removeID(f.MeetingIDs, id)
	}
	s.clearFolderRefLocked(id)

	if folderID != "" {
		target := s.folderLocked(folderID)
		if target != nil {
			target.MeetingIDs = append(removeID(target.MeetingIDs, id), id)
			s.setFolderRefLocked(id, folderID)
		}
	}

	s.persistIndexLocked()
	return nil
}

// Folders returns a snapshot of all folders.
func (s *Store) Folders() []models.MeetingFolder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.MeetingFolder, 0, len(s.folders))
	for _, f := range s.folders {
		cp := *f
		cp.MeetingIDs = append([]string{}, f.MeetingIDs...)
		out = append(out, cp)
	}
	return out
}

func (s *Store) folderLocked(id string) *models.MeetingFolder {
	for _, f := range s.folders {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// clearFolderRefLocked drops the folder reference on the summary and the
// meeting body.
func (s *Store) clearFolderRefLocked(meetingID string) {
	s.setFolderRefLocked(meetingID, "")
}

// setFolderRefLocked keeps the summary and the canonical meeting body in
// agreement about folder assignment. The body is loaded from disk when not
// yet cached; an unknown meeting ID only touches the summary list.
func (s *Store) setFolderRefLocked(meetingID, folderID string) {
	for i := range s.summaries {
		if s.summaries[i].ID == meetingID {
			s.summaries[i].FolderID = folderID
			break
		}
	}
	m, err := s.meetingLocked(meetingID)
	if err != nil {
		return
	}
	m.FolderID = folderID
	s.persistMeetingLocked(m)
}
