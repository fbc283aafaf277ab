package scheduler

import (
	"time"

	"github.com/adelaroche/roam/internal/storage/dirstore"
)

// EntryStore persists pending deferred entries as directories with meta.json.
type EntryStore struct {
	ds *dirstore.DirStore
}

// NewEntryStore creates an EntryStore rooted at baseDir.
func NewEntryStore(baseDir string) *EntryStore {
	return &EntryStore{ds: dirstore.NewDirStore(baseDir, "deferred entry")}
}

// Create persists a new deferred entry to disk.
func (s *EntryStore) Create(entry *Entry) error {
	s.ds.Lock()
	defer s.ds.Unlock()

	if entry.ID == "" {
		entry.ID = GenerateEntryID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if err := s.ds.EnsureDir(entry.ID); err != nil {
		return err
	}

	return s.ds.WriteMeta(entry.ID, entry)
}

// Get reads a deferred entry by ID.
func (s *EntryStore) Get(id string) (*Entry, error) {
	s.ds.RLock()
	defer s.ds.RUnlock()

	var entry Entry
	if err := s.ds.ReadMeta(id, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Delete removes a deferred entry directory (including its attempt journal).
func (s *EntryStore) Delete(id string) error {
	s.ds.Lock()
	defer s.ds.Unlock()

	return s.ds.RemoveDir(id)
}

// List returns all persisted entries. Corrupted entries are skipped.
func (s *EntryStore) List() ([]*Entry, error) {
	s.ds.RLock()
	defer s.ds.RUnlock()

	ids, err := s.ds.ListDirs()
	if err != nil {
		return nil, err
	}

	var entries []*Entry
	for _, id := range ids {
		var entry Entry
		if err := s.ds.ReadMeta(id, &entry); err != nil {
			continue
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

// AppendAttempt journals a dispatch attempt for an entry.
func (s *EntryStore) AppendAttempt(id string, rec AttemptRecord) error {
	s.ds.Lock()
	defer s.ds.Unlock()

	return s.ds.AppendJSONL(id, "attempts.jsonl", rec)
}

// LoadAttempts reads the dispatch attempt journal for an entry.
func (s *EntryStore) LoadAttempts(id string) ([]AttemptRecord, error) {
	s.ds.RLock()
	defer s.ds.RUnlock()

	return dirstore.LoadJSONL[AttemptRecord](s.ds, id, "attempts.jsonl")
}
