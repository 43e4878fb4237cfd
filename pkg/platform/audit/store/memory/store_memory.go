package memory

import (
	"context"
	"sync"

	"amparo/pkg/platform/audit"
)

type subjectKey struct {
	subjectType string
	subjectID   string
}

// InMemoryStore keeps entries in memory for tests and local development.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[subjectKey][]audit.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[subjectKey][]audit.Entry)}
}

func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := subjectKey{entry.SubjectType, entry.SubjectID}
	s.entries[key] = append(s.entries[key], entry)
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subjectType, subjectID string) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Entry{}, s.entries[subjectKey{subjectType, subjectID}]...), nil
}

// All returns every entry, for test assertions.
func (s *InMemoryStore) All() []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []audit.Entry
	for _, entries := range s.entries {
		all = append(all, entries...)
	}
	return all
}

// Clear drops all entries.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[subjectKey][]audit.Entry)
}
