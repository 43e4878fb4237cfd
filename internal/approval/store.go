package approval

import (
	"context"
	"time"

	"amparo/pkg/domain"
)

// Store persists approval requests. Saves must honor a transaction carried
// in the context.
type Store interface {
	Save(ctx context.Context, req *Request) error
	Find(ctx context.Context, id domain.RequestID) (*Request, error)
	ListByState(ctx context.Context, state State) ([]*Request, error)
	ListBySubject(ctx context.Context, subjectType string, subjectID domain.RecordID) ([]*Request, error)
	// ListExpiring returns approved requests whose validity elapses at or
	// before the given instant.
	ListExpiring(ctx context.Context, before time.Time) ([]*Request, error)
}
