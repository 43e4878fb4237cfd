package accounts

import (
	"time"

	"amparo/pkg/domain"
)

// User is a staff account. An account that requested registration
// cancellation carries a token with an expiry; once the token expires the
// cleanup job removes the account for good.
type User struct {
	ID                UserID
	Name              string
	Email             string
	Roles             domain.RoleSet
	CancellationToken string
	CancelRequestedAt *time.Time
	CancelExpiresAt   *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type UserID = domain.UserID

func (u *User) CancellationPending() bool { return u.CancelExpiresAt != nil }

func (u *User) Clone() *User {
	dup := *u
	dup.Roles = append(domain.RoleSet(nil), u.Roles...)
	if u.CancelRequestedAt != nil {
		t := *u.CancelRequestedAt
		dup.CancelRequestedAt = &t
	}
	if u.CancelExpiresAt != nil {
		t := *u.CancelExpiresAt
		dup.CancelExpiresAt = &t
	}
	return &dup
}
