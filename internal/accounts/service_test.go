package accounts

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"amparo/internal/pii"
	dErrors "amparo/pkg/domain-errors"
	"amparo/pkg/domain"
	"amparo/pkg/platform/audit"
	auditmemory "amparo/pkg/platform/audit/store/memory"
	"amparo/pkg/platform/sentinel"
	"amparo/pkg/platform/tx"
	"amparo/pkg/testutil"
)

func newService(t *testing.T) (*Service, *InMemoryStore, *auditmemory.InMemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewInMemoryStore()
	auditStore := auditmemory.NewInMemoryStore()
	trail := audit.NewTrail(auditStore, pii.NewFieldRegistry(), true, logger)
	return NewService(store, trail, tx.Passthrough{}, logger), store, auditStore
}

func seedUser(t *testing.T, store *InMemoryStore) *User {
	t.Helper()
	u := &User{
		ID:        domain.UserID(uuid.New()),
		Name:      "Maria Souza",
		Email:     "maria@example.org",
		Roles:     domain.RoleSet{domain.RoleSocialWorker},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, store.Save(context.Background(), u))
	return u
}

func TestRequestCancellation(t *testing.T) {
	svc, store, _ := newService(t)
	u := seedUser(t, store)

	t.Run("owner can request", func(t *testing.T) {
		ctx := testutil.ContextWithActor(domain.Actor{ID: u.ID, Name: u.Name, Roles: u.Roles})
		updated, err := svc.RequestCancellation(ctx, u.ID, 30*24*time.Hour)
		require.NoError(t, err)
		require.NotEmpty(t, updated.CancellationToken)
		require.NotNil(t, updated.CancelExpiresAt)
	})

	t.Run("second request conflicts", func(t *testing.T) {
		ctx := testutil.ContextWithActor(domain.Actor{ID: u.ID, Name: u.Name, Roles: u.Roles})
		_, err := svc.RequestCancellation(ctx, u.ID, 30*24*time.Hour)
		require.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		other := seedUser(t, store)
		ctx := testutil.ActorContext(domain.RoleSocialWorker)
		_, err := svc.RequestCancellation(ctx, other.ID, 30*24*time.Hour)
		require.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func TestCleanupExpired(t *testing.T) {
	svc, store, auditStore := newService(t)

	expired := seedUser(t, store)
	pastRequested := time.Now().Add(-40 * 24 * time.Hour)
	pastExpires := time.Now().Add(-10 * 24 * time.Hour)
	expired.CancellationToken = "deadbeef"
	expired.CancelRequestedAt = &pastRequested
	expired.CancelExpiresAt = &pastExpires
	require.NoError(t, store.Save(context.Background(), expired))

	pending := seedUser(t, store)
	futureExpires := time.Now().Add(10 * 24 * time.Hour)
	pending.CancelExpiresAt = &futureExpires
	require.NoError(t, store.Save(context.Background(), pending))

	untouched := seedUser(t, store)

	t.Run("dry run reports without deleting", func(t *testing.T) {
		report, err := svc.CleanupExpired(context.Background(), true)
		require.NoError(t, err)
		require.Equal(t, int64(1), report.Eligible)
		require.Zero(t, report.Deleted)

		_, err = store.Find(context.Background(), expired.ID)
		require.NoError(t, err)
	})

	t.Run("real run deletes only expired cancellations", func(t *testing.T) {
		report, err := svc.CleanupExpired(context.Background(), false)
		require.NoError(t, err)
		require.Equal(t, 1, report.Deleted)

		_, err = store.Find(context.Background(), expired.ID)
		require.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = store.Find(context.Background(), pending.ID)
		require.NoError(t, err)
		_, err = store.Find(context.Background(), untouched.ID)
		require.NoError(t, err)

		entries, err := auditStore.ListBySubject(context.Background(), EntityUser, expired.ID.String())
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, audit.KindHardDeleted, entries[0].Kind)
		require.Equal(t, "system", entries[0].ActorName)
	})

	t.Run("rerun is a no-op", func(t *testing.T) {
		report, err := svc.CleanupExpired(context.Background(), false)
		require.NoError(t, err)
		require.Zero(t, report.Eligible)
		require.Zero(t, report.Deleted)
	})
}
