// Package domain holds shared value types: typed identifiers, roles, and the
// acting identity. Construct values via the Parse helpers at trust boundaries;
// direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "amparo/pkg/domain-errors"
)

// UserID identifies a staff account.
type UserID uuid.UUID

func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id UserID) String() string { return uuid.UUID(id).String() }

// ParseUserID constructs a UserID from external input.
func ParseUserID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, dErrors.New(dErrors.CodeBadRequest, "invalid user id")
	}
	return UserID(u), nil
}

// RequestID identifies an approval request.
type RequestID uuid.UUID

func (id RequestID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) String() string { return uuid.UUID(id).String() }

// ParseRequestID constructs a RequestID from external input.
func ParseRequestID(s string) (RequestID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return RequestID{}, dErrors.New(dErrors.CodeBadRequest, "invalid approval request id")
	}
	return RequestID(u), nil
}

// RecordID identifies a PII-bearing record (person, family, ...).
type RecordID uuid.UUID

func (id RecordID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id RecordID) String() string { return uuid.UUID(id).String() }

// ParseRecordID constructs a RecordID from external input.
func ParseRecordID(s string) (RecordID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return RecordID{}, dErrors.New(dErrors.CodeBadRequest, "invalid record id")
	}
	return RecordID(u), nil
}
