package repository

import (
	"sync"

	"github.com/noah-isme/attendance-sheet/internal/models"
)

// EntryStore is the ordered local mirror of the remote entries. Callers only
// mutate it after the matching remote call has succeeded.
type EntryStore struct {
	mu      sync.RWMutex
	entries []models.AttendanceEntry
}

// NewEntryStore returns an empty store.
func NewEntryStore() *EntryStore {
	return &EntryStore{entries: []models.AttendanceEntry{}}
}

// Load replaces the whole collection, keeping the given order. A repeated id
// keeps its first position.
func (s *EntryStore) Load(entries []models.AttendanceEntry) {
	next := make([]models.AttendanceEntry, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		next = append(next, e)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = next
}

// Append adds an entry at the end. An entry whose id is already present is
// replaced in place instead.
func (s *EntryStore) Append(entry models.AttendanceEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(entry.ID); i >= 0 {
		s.entries[i] = entry
		return
	}
	s.entries = append(s.entries, entry)
}

// Replace swaps the entry sharing entry.ID. It reports whether one was found.
func (s *EntryStore) Replace(entry models.AttendanceEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(entry.ID)
	if i < 0 {
		return false
	}
	s.entries[i] = entry
	return true
}

// Remove deletes the entry with id. It reports whether one was found.
func (s *EntryStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	next := make([]models.AttendanceEntry, 0, len(s.entries)-1)
	next = append(next, s.entries[:i]...)
	next = append(next, s.entries[i+1:]...)
	s.entries = next
	return true
}

// Get returns the entry with id.
func (s *EntryStore) Get(id string) (models.AttendanceEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return models.AttendanceEntry{}, false
	}
	return s.entries[i], true
}

// List returns a copy of the entries in display order.
func (s *EntryStore) List() []models.AttendanceEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AttendanceEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries.
func (s *EntryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *EntryStore) indexOf(id string) int {
	for i := range s.entries {
		if s.entries[i].ID == id {
			return i
		}
	}
	return -1
}
