package approval

import (
	"context"
	"sort"
	"sync"
	"time"

	"amparo/pkg/domain"
	"amparo/pkg/platform/sentinel"
)

// InMemoryStore keeps approval requests in a map. Used in tests and local runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[domain.RequestID]*Request
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[domain.RequestID]*Request)}
}

func (s *InMemoryStore) Save(_ context.Context, req *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req.Clone()
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, id domain.RequestID) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return req.Clone(), nil
}

func (s *InMemoryStore) ListByState(_ context.Context, state State) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Request
	for _, req := range s.requests {
		if req.State == state {
			out = append(out, req.Clone())
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subjectType string, subjectID domain.RecordID) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Request
	for _, req := range s.requests {
		if req.SubjectType == subjectType && req.SubjectID == subjectID {
			out = append(out, req.Clone())
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *InMemoryStore) ListExpiring(_ context.Context, before time.Time) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Request
	for _, req := range s.requests {
		if req.State == StateApproved && req.ExpiresAt != nil && !req.ExpiresAt.After(before) {
			out = append(out, req.Clone())
		}
	}
	sortByCreation(out)
	return out, nil
}

func sortByCreation(reqs []*Request) {
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].CreatedAt.Before(reqs[j].CreatedAt) })
}
