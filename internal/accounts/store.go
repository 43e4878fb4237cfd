package accounts

import (
	"context"
	"time"
)

const EntityUser = "user"

// Store persists staff accounts.
type Store interface {
	Save(ctx context.Context, u *User) error
	Find(ctx context.Context, id UserID) (*User, error)
	// CountExpiredCancellations returns how many accounts have a
	// cancellation token expired at the given instant.
	CountExpiredCancellations(ctx context.Context, now time.Time) (int64, error)
	// DeleteExpiredCancellations removes those accounts and returns the ids
	// it deleted.
	DeleteExpiredCancellations(ctx context.Context, now time.Time) ([]UserID, error)
}
