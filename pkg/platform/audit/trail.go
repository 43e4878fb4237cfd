package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	dErrors "amparo/pkg/domain-errors"
	"amparo/pkg/requestcontext"
)

// Store persists entries. Append must participate in the caller's
// transaction when one is present in the context, so an audit failure rolls
// the whole mutation back.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListBySubject(ctx context.Context, subjectType, subjectID string) ([]Entry, error)
}

// PIIPolicy answers which fields of an entity type are protected.
// Satisfied by pii.FieldRegistry.
type PIIPolicy interface {
	HasPII(entityType string) bool
	FieldsFor(entityType string) []string
	Intersect(entityType string, changed []string) []string
}

// Trail is the single write path for audit entries. It stamps actor and
// client metadata from the request context so callers only describe what
// changed.
type Trail struct {
	store        Store
	policy       PIIPolicy
	logPIIAccess bool
	logger       *slog.Logger
}

// NewTrail builds the audit trail. logPIIAccess enables read-access entries
// and PII flagging on updates.
func NewTrail(store Store, policy PIIPolicy, logPIIAccess bool, logger *slog.Logger) *Trail {
	return &Trail{store: store, policy: policy, logPIIAccess: logPIIAccess, logger: logger}
}

// Record stamps identity, client metadata, and time onto the entry and
// appends it. A store failure is wrapped as CodeAuditWriteFailed: the
// enclosing transaction must treat it as fatal, because a mutation without
// its audit entry is data corruption.
func (t *Trail) Record(ctx context.Context, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}
	if entry.ActorID == "" {
		actor := requestcontext.Actor(ctx)
		if actor.System() {
			entry.ActorID = "system"
		} else {
			entry.ActorID = actor.ID.String()
		}
		entry.ActorName = actor.Name
	}
	entry.ClientIP = requestcontext.ClientIP(ctx)
	entry.UserAgent = requestcontext.UserAgent(ctx)
	entry.DeviceSummary = summarizeUserAgent(entry.UserAgent)
	entry.RequestID = requestcontext.RequestID(ctx)

	if err := t.store.Append(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeAuditWriteFailed, "audit append failed")
	}
	return nil
}

// RecordChange appends a mutation entry with old/new snapshots. For updates
// it computes the set of changed fields, intersects it with the entity's
// protected fields, and flags the entry with exactly that intersection when
// PII-access logging is enabled.
func (t *Trail) RecordChange(ctx context.Context, kind EventKind, subjectType, subjectID string, oldValues, newValues map[string]any) error {
	entry := Entry{
		Kind:        kind,
		SubjectType: subjectType,
		SubjectID:   subjectID,
		OldValues:   oldValues,
		NewValues:   newValues,
	}

	if t.logPIIAccess {
		touched := t.policy.Intersect(subjectType, changedFields(oldValues, newValues))
		if len(touched) > 0 {
			entry.PIIAccess = true
			entry.PIIFields = touched
		}
	}

	return t.Record(ctx, entry)
}

// RecordAccess appends a read-access entry for a PII-bearing record. It is a
// no-op when PII-access logging is disabled or the entity type has no
// protected fields configured. Access entries are independent inserts and
// never run inside a mutation transaction, so concurrent readers don't
// serialize on each other.
func (t *Trail) RecordAccess(ctx context.Context, subjectType, subjectID string) error {
	if !t.logPIIAccess || !t.policy.HasPII(subjectType) {
		return nil
	}
	return t.Record(ctx, Entry{
		Kind:        KindAccessed,
		SubjectType: subjectType,
		SubjectID:   subjectID,
		PIIAccess:   true,
		PIIFields:   t.policy.FieldsFor(subjectType),
	})
}

// ListBySubject returns the entries for a subject, for compliance export.
func (t *Trail) ListBySubject(ctx context.Context, subjectType, subjectID string) ([]Entry, error) {
	entries, err := t.store.ListBySubject(ctx, subjectType, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "audit query failed")
	}
	return entries, nil
}

// changedFields returns the keys whose values differ between the snapshots,
// including keys present on only one side. Sorted for deterministic output.
func changedFields(oldValues, newValues map[string]any) []string {
	keys := make(map[string]struct{}, len(oldValues)+len(newValues))
	for k := range oldValues {
		keys[k] = struct{}{}
	}
	for k := range newValues {
		keys[k] = struct{}{}
	}

	var changed []string
	for k := range keys {
		oldV, hasOld := oldValues[k]
		newV, hasNew := newValues[k]
		if hasOld != hasNew || fmt.Sprint(oldV) != fmt.Sprint(newV) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

// summarizeUserAgent reduces a raw User-Agent to "Browser version (OS)" for
// readable compliance exports. Unparseable agents pass through as-is.
func summarizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name == "" {
		return raw
	}
	if os := ua.OS(); os != "" {
		return fmt.Sprintf("%s %s (%s)", name, version, os)
	}
	return fmt.Sprintf("%s %s", name, version)
}
