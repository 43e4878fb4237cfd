package records

import (
	"context"
	"sort"
	"sync"

	"amparo/pkg/domain"
	"amparo/pkg/platform/sentinel"
)

// InMemoryStore keeps records in maps. Used in tests and local runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	people   map[domain.RecordID]*Person
	families map[domain.RecordID]*Family
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		people:   make(map[domain.RecordID]*Person),
		families: make(map[domain.RecordID]*Family),
	}
}

func (s *InMemoryStore) SavePerson(_ context.Context, p *Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.people[p.ID] = p.Clone()
	return nil
}

func (s *InMemoryStore) FindPerson(_ context.Context, id domain.RecordID, includeDeleted bool) (*Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.people[id]
	if !ok || (!includeDeleted && p.Deleted()) {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *InMemoryStore) ListPeople(_ context.Context, includeDeleted bool) ([]*Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Person, 0, len(s.people))
	for _, p := range s.people {
		if !includeDeleted && p.Deleted() {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) SaveFamily(_ context.Context, f *Family) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.families[f.ID] = f.Clone()
	return nil
}

func (s *InMemoryStore) FindFamily(_ context.Context, id domain.RecordID, includeDeleted bool) (*Family, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.families[id]
	if !ok || (!includeDeleted && f.Deleted()) {
		return nil, sentinel.ErrNotFound
	}
	return f.Clone(), nil
}

func (s *InMemoryStore) ListFamilies(_ context.Context, includeDeleted bool) ([]*Family, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Family, 0, len(s.families))
	for _, f := range s.families {
		if !includeDeleted && f.Deleted() {
			continue
		}
		out = append(out, f.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
