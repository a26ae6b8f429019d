// Package persist saves finished assistant turns exactly once, coalescing
// the independent completion paths that race to write the same message.
package persist

import "sync"

// SavedSet tracks message ids believed persisted for one conversation. An id
// is marked optimistically before the save request is issued and unmarked
// only if the save definitively fails, so a second completion path observing
// the set cannot issue a duplicate write. The set is an in-memory hint; the
// durable store remains the source of truth and rejects duplicate ids by
// primary key.
type SavedSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewSavedSet creates an empty saved-set.
func NewSavedSet() *SavedSet {
	return &SavedSet{ids: make(map[string]struct{})}
}

// Mark records intent to write id. It returns false if the id was already
// marked, in which case the caller must not issue a write. The check and the
// set are one atomic step.
func (s *SavedSet) Mark(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Unmark rolls back a failed write so a later retry path can pick the
// message up again.
func (s *SavedSet) Unmark(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

// Contains reports whether id is marked.
func (s *SavedSet) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of marked ids.
func (s *SavedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
