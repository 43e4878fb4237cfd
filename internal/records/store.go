package records

import (
	"context"

	"amparo/pkg/domain"
)

// Store persists people and families. Find never returns soft-deleted rows
// unless includeDeleted is set. Implementations must honor a transaction
// carried in the context so saves join the caller's transactional boundary.
type Store interface {
	SavePerson(ctx context.Context, p *Person) error
	FindPerson(ctx context.Context, id domain.RecordID, includeDeleted bool) (*Person, error)
	ListPeople(ctx context.Context, includeDeleted bool) ([]*Person, error)

	SaveFamily(ctx context.Context, f *Family) error
	FindFamily(ctx context.Context, id domain.RecordID, includeDeleted bool) (*Family, error)
	ListFamilies(ctx context.Context, includeDeleted bool) ([]*Family, error)
}
