package records

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"amparo/internal/pii"
	"amparo/internal/platform/config"
	dErrors "amparo/pkg/domain-errors"
	"amparo/pkg/domain"
	"amparo/pkg/platform/audit"
	auditmemory "amparo/pkg/platform/audit/store/memory"
	"amparo/pkg/platform/tx"
	"amparo/pkg/testutil"
)

type ServiceSuite struct {
	suite.Suite

	store      *InMemoryStore
	auditStore *auditmemory.InMemoryStore
	codec      *pii.Codec
	service    *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	key := make([]byte, 32)
	_, err := rand.Read(key)
	s.Require().NoError(err)

	codec, err := pii.NewCodec(config.PII{Keys: map[int][]byte{1: key}, ActiveVersion: 1}, logger, nil)
	s.Require().NoError(err)

	registry := pii.NewFieldRegistry()
	registry.Register(EntityPerson, PersonPIIFields...)
	registry.Register(EntityFamily, FamilyPIIFields...)

	s.store = NewInMemoryStore()
	s.auditStore = auditmemory.NewInMemoryStore()
	s.codec = codec
	trail := audit.NewTrail(s.auditStore, registry, true, logger)
	s.service = NewService(s.store, codec, trail, tx.Passthrough{}, logger)
}

func (s *ServiceSuite) socialWorkerCtx() context.Context {
	return testutil.ActorContext(domain.RoleSocialWorker)
}

func (s *ServiceSuite) createPerson(ctx context.Context) *Person {
	p, err := s.service.CreatePerson(ctx, PersonInput{
		FullName:       "John Doe",
		Email:          "john.doe@example.com",
		Phone:          "+5521998765432",
		DocumentNumber: "123.456.789-00",
		Address:        "Rua das Flores 12",
	})
	s.Require().NoError(err)
	return p
}

func (s *ServiceSuite) TestCreatePersonEncryptsAtRestAndAudits() {
	ctx := s.socialWorkerCtx()
	p := s.createPerson(ctx)

	stored, err := s.store.FindPerson(ctx, p.ID, false)
	s.Require().NoError(err)

	// stored PII fields are ciphertext envelopes
	s.True(pii.IsEncrypted(stored.FullName))
	s.True(pii.IsEncrypted(stored.Email))
	s.True(pii.IsEncrypted(stored.Phone))
	s.Equal(1, stored.KeyVersion)

	// a creation entry was appended with ciphertext snapshots
	entries, err := s.auditStore.ListBySubject(ctx, EntityPerson, p.ID.String())
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(audit.KindCreated, entries[0].Kind)
	s.True(pii.IsEncrypted(entries[0].NewValues["email"].(string)))
	s.NotContains(entries[0].NewValues, "john.doe@example.com")
}

func (s *ServiceSuite) TestCreatePersonRequiresSubmitterRole() {
	ctx := testutil.ActorContext(domain.RoleAttendant)

	_, err := s.service.CreatePerson(ctx, PersonInput{FullName: "John Doe"})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestGetPersonDecryptsAndRecordsAccess() {
	ctx := s.socialWorkerCtx()
	p := s.createPerson(ctx)
	s.auditStore.Clear()

	got, err := s.service.GetPerson(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal("john.doe@example.com", got.Email)
	s.Equal("John Doe", got.FullName)

	entries := s.auditStore.All()
	s.Require().Len(entries, 1)
	s.Equal(audit.KindAccessed, entries[0].Kind)
	s.True(entries[0].PIIAccess)
	s.Contains(entries[0].PIIFields, "email")
}

func (s *ServiceSuite) TestListPeopleRecordsAccessPerPerson() {
	ctx := s.socialWorkerCtx()
	first := s.createPerson(ctx)
	second, err := s.service.CreatePerson(ctx, PersonInput{FullName: "Jane Roe", Email: "jane.roe@example.com"})
	s.Require().NoError(err)
	s.auditStore.Clear()

	people, err := s.service.ListPeople(ctx)
	s.Require().NoError(err)
	s.Require().Len(people, 2)
	s.ElementsMatch(
		[]string{"john.doe@example.com", "jane.roe@example.com"},
		[]string{people[0].Email, people[1].Email},
	)

	entries := s.auditStore.All()
	s.Require().Len(entries, 2)
	subjects := []string{entries[0].SubjectID, entries[1].SubjectID}
	s.ElementsMatch([]string{first.ID.String(), second.ID.String()}, subjects)
	for _, e := range entries {
		s.Equal(audit.KindAccessed, e.Kind)
		s.True(e.PIIAccess)
	}
}

func (s *ServiceSuite) TestListFamiliesRecordsAccessPerFamily() {
	ctx := s.socialWorkerCtx()
	p := s.createPerson(ctx)
	f, err := s.service.CreateFamily(ctx, FamilyInput{
		Name:              "Doe household",
		ReferencePersonID: p.ID.String(),
		ContactPhone:      "+5511988776655",
	})
	s.Require().NoError(err)
	s.auditStore.Clear()

	families, err := s.service.ListFamilies(ctx)
	s.Require().NoError(err)
	s.Require().Len(families, 1)
	s.Equal("+5511988776655", families[0].ContactPhone)

	entries := s.auditStore.All()
	s.Require().Len(entries, 1)
	s.Equal(audit.KindAccessed, entries[0].Kind)
	s.Equal(f.ID.String(), entries[0].SubjectID)
	s.Contains(entries[0].PIIFields, "contact_phone")
}

func (s *ServiceSuite) TestUpdatePersonAuditsOnlyChangedFields() {
	ctx := s.socialWorkerCtx()
	p := s.createPerson(ctx)
	storedBefore, err := s.store.FindPerson(ctx, p.ID, false)
	s.Require().NoError(err)
	s.auditStore.Clear()

	newEmail := "jdoe@example.org"
	_, err = s.service.UpdatePerson(ctx, p.ID, PersonUpdate{Email: &newEmail})
	s.Require().NoError(err)

	entries := s.auditStore.All()
	s.Require().Len(entries, 1)
	entry := entries[0]
	s.Equal(audit.KindUpdated, entry.Kind)

	// only the email field appears in the snapshots
	s.Len(entry.NewValues, 1)
	s.Contains(entry.NewValues, "email")
	s.Len(entry.OldValues, 1)
	s.Equal(storedBefore.Email, entry.OldValues["email"])

	// the PII flag is set with the changed field only
	s.True(entry.PIIAccess)
	s.Equal([]string{"email"}, entry.PIIFields)
}

func (s *ServiceSuite) TestUpdatePersonNoChangeAppendsNothing() {
	ctx := s.socialWorkerCtx()
	p := s.createPerson(ctx)
	s.auditStore.Clear()

	sameName := "John Doe"
	_, err := s.service.UpdatePerson(ctx, p.ID, PersonUpdate{FullName: &sameName})
	s.Require().NoError(err)
	s.Empty(s.auditStore.All())
}

func (s *ServiceSuite) TestUpdatePersonNonPIIFieldNotFlagged() {
	ctx := s.socialWorkerCtx()
	p := s.createPerson(ctx)
	s.auditStore.Clear()

	notes := "follow-up scheduled"
	_, err := s.service.UpdatePerson(ctx, p.ID, PersonUpdate{Notes: &notes})
	s.Require().NoError(err)

	entries := s.auditStore.All()
	s.Require().Len(entries, 1)
	s.False(entries[0].PIIAccess)
	s.Empty(entries[0].PIIFields)
}

func (s *ServiceSuite) TestSoftDeleteHidesPersonAndRestoreBringsBack() {
	submitCtx := s.socialWorkerCtx()
	reviewCtx := testutil.ActorContext(domain.RoleCoordinator)
	p := s.createPerson(submitCtx)

	s.Require().NoError(s.service.SoftDeletePerson(reviewCtx, p.ID))

	_, err := s.service.GetPerson(submitCtx, p.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound) || err != nil)

	s.Require().NoError(s.service.RestorePerson(reviewCtx, p.ID))
	got, err := s.service.GetPerson(submitCtx, p.ID)
	s.Require().NoError(err)
	s.Equal("John Doe", got.FullName)

	entries, err := s.auditStore.ListBySubject(submitCtx, EntityPerson, p.ID.String())
	s.Require().NoError(err)
	kinds := make([]audit.EventKind, 0, len(entries))
	for _, e := range entries {
		kinds = append(kinds, e.Kind)
	}
	s.Contains(kinds, audit.KindSoftDeleted)
	s.Contains(kinds, audit.KindRestored)
}

func (s *ServiceSuite) TestSoftDeleteRequiresReviewerRole() {
	ctx := s.socialWorkerCtx()
	p := s.createPerson(ctx)

	err := s.service.SoftDeletePerson(ctx, p.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestAuditFailureRollsBackCreate() {
	ctx := s.socialWorkerCtx()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := pii.NewFieldRegistry()
	registry.Register(EntityPerson, PersonPIIFields...)
	trail := audit.NewTrail(failingAuditStore{}, registry, true, logger)

	store := NewInMemoryStore()
	svc := NewService(store, s.codec, trail, rollbackRunner{store: store}, logger)

	_, err := svc.CreatePerson(ctx, PersonInput{FullName: "Jane Roe"})
	s.True(dErrors.HasCode(err, dErrors.CodeAuditWriteFailed))

	people, err := store.ListPeople(ctx, true)
	s.Require().NoError(err)
	s.Empty(people)
}

func (s *ServiceSuite) TestCreateFamilyValidatesReferencePerson() {
	ctx := s.socialWorkerCtx()

	_, err := s.service.CreateFamily(ctx, FamilyInput{
		Name:              "Silva household",
		ReferencePersonID: "b9a2f7de-53cf-4e7b-9a67-2d8f3e9c1a40",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidationFailed))

	p := s.createPerson(ctx)
	f, err := s.service.CreateFamily(ctx, FamilyInput{
		Name:              "Silva household",
		ReferencePersonID: p.ID.String(),
		Address:           "Av. Central 300",
		ContactPhone:      "+5521912340001",
		MemberCount:       4,
	})
	s.Require().NoError(err)

	stored, err := s.store.FindFamily(ctx, f.ID, false)
	s.Require().NoError(err)
	s.True(pii.IsEncrypted(stored.Address))
	s.False(pii.IsEncrypted(stored.Name))
}

func (s *ServiceSuite) TestValidationRejectsMalformedInput() {
	ctx := s.socialWorkerCtx()

	_, err := s.service.CreatePerson(ctx, PersonInput{FullName: "   "})
	s.True(dErrors.HasCode(err, dErrors.CodeValidationFailed))

	_, err = s.service.CreatePerson(ctx, PersonInput{FullName: "John Doe", Email: "not-an-email"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidationFailed))
	var dErr *dErrors.Error
	s.Require().ErrorAs(err, &dErr)
	s.Equal("email", dErr.Field)
}

type failingAuditStore struct{}

func (failingAuditStore) Append(context.Context, audit.Entry) error {
	return errors.New("audit insert failed")
}

func (failingAuditStore) ListBySubject(context.Context, string, string) ([]audit.Entry, error) {
	return nil, nil
}

// rollbackRunner imitates transactional rollback for the in-memory store by
// snapshotting people before fn and restoring them when fn fails.
type rollbackRunner struct {
	store *InMemoryStore
}

func (r rollbackRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.store.mu.Lock()
	before := make(map[domain.RecordID]*Person, len(r.store.people))
	for id, p := range r.store.people {
		before[id] = p.Clone()
	}
	r.store.mu.Unlock()

	if err := fn(ctx); err != nil {
		r.store.mu.Lock()
		r.store.people = before
		r.store.mu.Unlock()
		return err
	}
	return nil
}
