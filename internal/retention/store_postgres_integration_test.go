//go:build integration

package retention_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"amparo/internal/retention"
	"amparo/pkg/testutil/containers"
)

type RetentionStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *retention.PostgresStore
	cutoff   time.Time
}

func TestRetentionStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RetentionStoreSuite))
}

func (s *RetentionStoreSuite) SetupSuite() {
	s.postgres = containers.GetPostgres(s.T())
	s.store = retention.NewPostgresStore(s.postgres.DB)
}

func (s *RetentionStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"audit_outbox", "audit_entries", "approval_requests", "families", "people")
	s.Require().NoError(err)
	s.cutoff = time.Now().UTC().AddDate(-10, 0, 0)
}

func (s *RetentionStoreSuite) insertPerson(deletedAt *time.Time) {
	now := time.Now().UTC()
	_, err := s.postgres.DB.Exec(
		`INSERT INTO people (id, created_at, updated_at, deleted_at) VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), now, now, deletedAt)
	s.Require().NoError(err)
}

func (s *RetentionStoreSuite) insertApproval(state string, decidedAt *time.Time) {
	now := time.Now().UTC()
	_, err := s.postgres.DB.Exec(
		`INSERT INTO approval_requests
			(id, subject_type, subject_id, requester_id, requester_name, state, created_at, updated_at, decided_at)
		VALUES ($1, 'person', $2, $3, 'Ana Souza', $4, $5, $6, $7)`,
		uuid.NewString(), uuid.NewString(), uuid.NewString(), state, now, now, decidedAt)
	s.Require().NoError(err)
}

func (s *RetentionStoreSuite) insertAuditEntry(createdAt time.Time) {
	_, err := s.postgres.DB.Exec(
		`INSERT INTO audit_entries (id, kind, actor_id, actor_name, subject_type, subject_id, created_at)
		VALUES ($1, 'updated', $2, 'Ana Souza', 'person', $3, $4)`,
		uuid.NewString(), uuid.NewString(), uuid.NewString(), createdAt)
	s.Require().NoError(err)
}

func (s *RetentionStoreSuite) TestPersonEligibilityNeedsOldSoftDelete() {
	ctx := context.Background()
	old := s.cutoff.AddDate(-1, 0, 0)
	recent := time.Now().UTC().AddDate(0, 0, -30)

	s.insertPerson(&old)    // eligible
	s.insertPerson(&recent) // deleted, but inside the window
	s.insertPerson(nil)     // live

	n, err := s.store.CountExpired(ctx, "person", s.cutoff)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	purged, err := s.store.PurgeExpired(ctx, "person", s.cutoff)
	s.Require().NoError(err)
	s.Equal(int64(1), purged)

	var remaining int
	err = s.postgres.DB.QueryRow(`SELECT COUNT(*) FROM people`).Scan(&remaining)
	s.Require().NoError(err)
	s.Equal(2, remaining)
}

func (s *RetentionStoreSuite) TestApprovalEligibilityNeedsTerminalState() {
	ctx := context.Background()
	old := s.cutoff.AddDate(-1, 0, 0)

	s.insertApproval("rejected", &old) // eligible
	s.insertApproval("approved", &old) // terminal outcome, old decision: eligible
	s.insertApproval("submitted", nil) // still open
	recent := time.Now().UTC()
	s.insertApproval("rejected", &recent) // inside the window

	n, err := s.store.CountExpired(ctx, "approval_request", s.cutoff)
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	purged, err := s.store.PurgeExpired(ctx, "approval_request", s.cutoff)
	s.Require().NoError(err)
	s.Equal(int64(2), purged)
}

func (s *RetentionStoreSuite) TestAuditEligibilityByAge() {
	ctx := context.Background()

	s.insertAuditEntry(s.cutoff.AddDate(-1, 0, 0))
	s.insertAuditEntry(time.Now().UTC())

	n, err := s.store.CountExpired(ctx, "audit_entry", s.cutoff)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	purged, err := s.store.PurgeExpired(ctx, "audit_entry", s.cutoff)
	s.Require().NoError(err)
	s.Equal(int64(1), purged)

	var remaining int
	err = s.postgres.DB.QueryRow(`SELECT COUNT(*) FROM audit_entries`).Scan(&remaining)
	s.Require().NoError(err)
	s.Equal(1, remaining)
}

func (s *RetentionStoreSuite) TestPurgeIsIdempotent() {
	ctx := context.Background()
	old := s.cutoff.AddDate(-1, 0, 0)
	s.insertPerson(&old)

	purged, err := s.store.PurgeExpired(ctx, "person", s.cutoff)
	s.Require().NoError(err)
	s.Equal(int64(1), purged)

	purged, err = s.store.PurgeExpired(ctx, "person", s.cutoff)
	s.Require().NoError(err)
	s.Zero(purged)
}
