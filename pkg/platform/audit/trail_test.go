package audit_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amparo/internal/pii"
	dErrors "amparo/pkg/domain-errors"
	"amparo/pkg/domain"
	"amparo/pkg/platform/audit"
	"amparo/pkg/platform/audit/store/memory"
	"amparo/pkg/testutil"
)

func newRegistry() *pii.FieldRegistry {
	r := pii.NewFieldRegistry()
	r.Register("person", "full_name", "email", "phone", "document_number")
	return r
}

func TestTrail_RecordStampsContextMetadata(t *testing.T) {
	store := memory.NewInMemoryStore()
	trail := audit.NewTrail(store, newRegistry(), true, slog.Default())

	actor := domain.Actor{ID: mustUserID(t), Name: "Ana Souza", Roles: domain.RoleSet{domain.RoleCoordinator}}
	ctx := testutil.ContextWithActor(actor)

	err := trail.Record(ctx, audit.Entry{
		Kind:        audit.KindStateChanged,
		SubjectType: "approval_request",
		SubjectID:   "req-1",
	})
	require.NoError(t, err)

	entries, err := trail.ListBySubject(ctx, "approval_request", "req-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, actor.ID.String(), got.ActorID)
	assert.Equal(t, "Ana Souza", got.ActorName)
	assert.Equal(t, "198.51.100.7", got.ClientIP)
	assert.NotEmpty(t, got.RequestID)
	assert.False(t, got.Timestamp.IsZero())
}

func TestTrail_SystemActor(t *testing.T) {
	store := memory.NewInMemoryStore()
	trail := audit.NewTrail(store, newRegistry(), true, slog.Default())

	ctx := testutil.ContextWithActor(domain.SystemActor())
	require.NoError(t, trail.Record(ctx, audit.Entry{
		Kind:        audit.KindRetentionPurged,
		SubjectType: "person",
		SubjectID:   "batch",
	}))

	entries := store.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "system", entries[0].ActorID)
}

func TestTrail_RecordChangePIIIntersection(t *testing.T) {
	store := memory.NewInMemoryStore()
	trail := audit.NewTrail(store, newRegistry(), true, slog.Default())
	ctx := testutil.ActorContext(domain.RoleSocialWorker)

	t.Run("update touching pii flags exactly the intersection", func(t *testing.T) {
		store.Clear()
		err := trail.RecordChange(ctx, audit.KindUpdated, "person", "p1",
			map[string]any{"email": "enc:v1:old", "notes": "a"},
			map[string]any{"email": "enc:v1:new", "notes": "b"},
		)
		require.NoError(t, err)

		entries := store.All()
		require.Len(t, entries, 1)
		assert.True(t, entries[0].PIIAccess)
		assert.Equal(t, []string{"email"}, entries[0].PIIFields)
	})

	t.Run("update without pii changes is recorded unflagged", func(t *testing.T) {
		store.Clear()
		err := trail.RecordChange(ctx, audit.KindUpdated, "person", "p1",
			map[string]any{"notes": "a"},
			map[string]any{"notes": "b"},
		)
		require.NoError(t, err)

		entries := store.All()
		require.Len(t, entries, 1)
		assert.False(t, entries[0].PIIAccess)
		assert.Empty(t, entries[0].PIIFields)
	})

	t.Run("pii flagging disabled leaves entries unflagged", func(t *testing.T) {
		quiet := memory.NewInMemoryStore()
		noPII := audit.NewTrail(quiet, newRegistry(), false, slog.Default())
		err := noPII.RecordChange(ctx, audit.KindUpdated, "person", "p1",
			map[string]any{"email": "enc:v1:old"},
			map[string]any{"email": "enc:v1:new"},
		)
		require.NoError(t, err)
		entries := quiet.All()
		require.Len(t, entries, 1)
		assert.False(t, entries[0].PIIAccess)
	})
}

func TestTrail_RecordAccess(t *testing.T) {
	ctx := testutil.ActorContext(domain.RoleAttendant)

	t.Run("pii entity produces access entry with configured fields", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		trail := audit.NewTrail(store, newRegistry(), true, slog.Default())

		require.NoError(t, trail.RecordAccess(ctx, "person", "p1"))

		entries := store.All()
		require.Len(t, entries, 1)
		assert.Equal(t, audit.KindAccessed, entries[0].Kind)
		assert.True(t, entries[0].PIIAccess)
		assert.Equal(t, []string{"full_name", "email", "phone", "document_number"}, entries[0].PIIFields)
	})

	t.Run("entity without configured pii fields is skipped", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		trail := audit.NewTrail(store, newRegistry(), true, slog.Default())

		require.NoError(t, trail.RecordAccess(ctx, "benefit", "b1"))
		assert.Empty(t, store.All())
	})

	t.Run("disabled logging is skipped", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		trail := audit.NewTrail(store, newRegistry(), false, slog.Default())

		require.NoError(t, trail.RecordAccess(ctx, "person", "p1"))
		assert.Empty(t, store.All())
	})
}

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Entry) error { return errors.New("disk full") }
func (failingStore) ListBySubject(context.Context, string, string) ([]audit.Entry, error) {
	return nil, nil
}

func TestTrail_AppendFailureIsAuditWriteFailed(t *testing.T) {
	trail := audit.NewTrail(failingStore{}, newRegistry(), true, slog.Default())
	ctx := testutil.ActorContext(domain.RoleAdmin)

	err := trail.Record(ctx, audit.Entry{Kind: audit.KindCreated, SubjectType: "person", SubjectID: "p1"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAuditWriteFailed))
}

func mustUserID(t *testing.T) domain.UserID {
	t.Helper()
	id, err := domain.ParseUserID("0b8f6f1e-4a5d-4c1e-9f2a-6d8b7c3e5a10")
	require.NoError(t, err)
	return id
}
