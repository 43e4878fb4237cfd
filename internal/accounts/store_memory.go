package accounts

import (
	"context"
	"sync"
	"time"

	"amparo/pkg/platform/sentinel"
)

// InMemoryStore keeps accounts in a map. Used in tests and local runs.
type InMemoryStore struct {
	mu    sync.RWMutex
	users map[UserID]*User
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{users: make(map[UserID]*User)}
}

func (s *InMemoryStore) Save(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u.Clone()
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, id UserID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return u.Clone(), nil
}

func (s *InMemoryStore) CountExpiredCancellations(_ context.Context, now time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, u := range s.users {
		if u.CancelExpiresAt != nil && !u.CancelExpiresAt.After(now) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) DeleteExpiredCancellations(_ context.Context, now time.Time) ([]UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted []UserID
	for id, u := range s.users {
		if u.CancelExpiresAt != nil && !u.CancelExpiresAt.After(now) {
			delete(s.users, id)
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}
