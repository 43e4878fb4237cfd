// Package audit provides the append-only trail every tracked mutation and
// PII access must write to. Entries are immutable once appended; nothing in
// normal operation updates or deletes them (the retention purge governs
// their eventual removal like any other entity).
package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventKind classifies what happened to the subject.
type EventKind string

const (
	KindCreated     EventKind = "created"
	KindUpdated     EventKind = "updated"
	KindSoftDeleted EventKind = "soft_deleted"
	KindRestored    EventKind = "restored"
	KindHardDeleted EventKind = "hard_deleted"

	// KindAccessed marks a read of a PII-bearing record. Only written when
	// PII-access logging is enabled and the entity type has protected fields.
	KindAccessed EventKind = "accessed"

	// KindStateChanged marks an approval request transition; old/new
	// snapshots carry the states and the justification.
	KindStateChanged EventKind = "state_changed"

	// KindFastTrackApproved distinguishes a fast-track approval from the
	// standard review path.
	KindFastTrackApproved EventKind = "fast_track_approved"

	// KindRetentionPurged records a batch hard delete by the retention
	// engine; the new-values snapshot carries the purged row count.
	KindRetentionPurged EventKind = "retention_purged"
)

// Entry is one immutable audit record. The subject is a weak polymorphic
// (type, id) reference; the subject row may be purged long before its
// entries are.
type Entry struct {
	ID          uuid.UUID
	Kind        EventKind
	ActorID     string
	ActorName   string
	SubjectType string
	SubjectID   string

	// OldValues/NewValues are optional snapshots. PII fields appear here in
	// their encrypted envelope form, never as plaintext.
	OldValues map[string]any
	NewValues map[string]any

	ClientIP      string
	UserAgent     string
	DeviceSummary string
	RequestID     string

	// PIIAccess flags entries that expose or change protected fields;
	// PIIFields lists exactly which ones.
	PIIAccess bool
	PIIFields []string

	Timestamp time.Time
}
