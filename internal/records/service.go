package records

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"amparo/internal/pii"
	dErrors "amparo/pkg/domain-errors"
	"amparo/pkg/domain"
	"amparo/pkg/platform/audit"
	"amparo/pkg/platform/tx"
	"amparo/pkg/requestcontext"
)

// Service owns the lifecycle of people and families. PII fields are encrypted
// before persistence and every mutation commits in the same transaction as
// its audit entry.
type Service struct {
	store  Store
	codec  *pii.Codec
	trail  *audit.Trail
	runner tx.Runner
	logger *slog.Logger
}

func NewService(store Store, codec *pii.Codec, trail *audit.Trail, runner tx.Runner, logger *slog.Logger) *Service {
	return &Service{store: store, codec: codec, trail: trail, runner: runner, logger: logger}
}

type PersonInput struct {
	FullName       string     `json:"full_name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	DocumentNumber string     `json:"document_number"`
	Address        string     `json:"address"`
	BirthDate      *time.Time `json:"birth_date"`
	Notes          string     `json:"notes"`
}

func (in PersonInput) validate() error {
	if strings.TrimSpace(in.FullName) == "" {
		return dErrors.NewField(dErrors.CodeValidationFailed, "full name is required", "full_name")
	}
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		return dErrors.NewField(dErrors.CodeValidationFailed, "malformed email address", "email")
	}
	return nil
}

// PersonUpdate carries a partial update. Nil fields are left untouched.
type PersonUpdate struct {
	FullName       *string    `json:"full_name"`
	Email          *string    `json:"email"`
	Phone          *string    `json:"phone"`
	DocumentNumber *string    `json:"document_number"`
	Address        *string    `json:"address"`
	BirthDate      *time.Time `json:"birth_date"`
	Notes          *string    `json:"notes"`
}

func (s *Service) CreatePerson(ctx context.Context, in PersonInput) (*Person, error) {
	actor := requestcontext.Actor(ctx)
	if !actor.IsValid() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no authenticated actor")
	}
	if !actor.Roles.CanSubmit() {
		return nil, dErrors.New(dErrors.CodeForbidden, "role cannot create records")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	p := &Person{
		ID:             domain.RecordID(uuid.New()),
		FullName:       strings.TrimSpace(in.FullName),
		Email:          strings.TrimSpace(in.Email),
		Phone:          strings.TrimSpace(in.Phone),
		DocumentNumber: strings.TrimSpace(in.DocumentNumber),
		Address:        strings.TrimSpace(in.Address),
		BirthDate:      in.BirthDate,
		Notes:          in.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	enc := p.Clone()
	if err := s.codec.Encrypt(enc); err != nil {
		return nil, err
	}

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.SavePerson(ctx, enc); err != nil {
			return err
		}
		return s.trail.RecordChange(ctx, audit.KindCreated, EntityPerson, p.ID.String(), nil, enc.snapshot())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("person created", "person_id", p.ID, "actor_id", actor.ID)
	return p, nil
}

// GetPerson returns the decrypted person and records the access. The access
// entry is written before the data leaves the service; if the append fails
// the read fails with it.
func (s *Service) GetPerson(ctx context.Context, id domain.RecordID) (*Person, error) {
	p, err := s.store.FindPerson(ctx, id, false)
	if err != nil {
		return nil, err
	}
	s.codec.Decrypt(p)

	if err := s.trail.RecordAccess(ctx, EntityPerson, id.String()); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPeople records an access entry per returned person, so the compliance
// export for a subject shows list reads as well as direct fetches.
func (s *Service) ListPeople(ctx context.Context) ([]*Person, error) {
	people, err := s.store.ListPeople(ctx, false)
	if err != nil {
		return nil, err
	}
	for _, p := range people {
		s.codec.Decrypt(p)
		if err := s.trail.RecordAccess(ctx, EntityPerson, p.ID.String()); err != nil {
			return nil, err
		}
	}
	return people, nil
}

func (s *Service) UpdatePerson(ctx context.Context, id domain.RecordID, upd PersonUpdate) (*Person, error) {
	actor := requestcontext.Actor(ctx)
	if !actor.IsValid() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no authenticated actor")
	}
	if !actor.Roles.CanSubmit() {
		return nil, dErrors.New(dErrors.CodeForbidden, "role cannot update records")
	}

	encOld, err := s.store.FindPerson(ctx, id, false)
	if err != nil {
		return nil, err
	}
	plainOld := encOld.Clone()
	s.codec.Decrypt(plainOld)

	plainNew := plainOld.Clone()
	applyString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	applyString(&plainNew.FullName, upd.FullName)
	applyString(&plainNew.Email, upd.Email)
	applyString(&plainNew.Phone, upd.Phone)
	applyString(&plainNew.DocumentNumber, upd.DocumentNumber)
	applyString(&plainNew.Address, upd.Address)
	if upd.BirthDate != nil {
		bd := *upd.BirthDate
		plainNew.BirthDate = &bd
	}
	if upd.Notes != nil {
		plainNew.Notes = *upd.Notes
	}
	if err := (PersonInput{FullName: plainNew.FullName, Email: plainNew.Email}).validate(); err != nil {
		return nil, err
	}

	// Changed fields are detected on plaintext. Re-encrypting rewrites every
	// ciphertext, so comparing stored values would flag all of them.
	changed := diffSnapshots(plainOld.snapshot(), plainNew.snapshot())
	if len(changed) == 0 {
		return plainOld, nil
	}

	plainNew.UpdatedAt = requestcontext.Now(ctx)
	encNew := plainNew.Clone()
	if err := s.codec.Encrypt(encNew); err != nil {
		return nil, err
	}

	oldSnap := pickFields(encOld.snapshot(), changed)
	newSnap := pickFields(encNew.snapshot(), changed)

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.SavePerson(ctx, encNew); err != nil {
			return err
		}
		return s.trail.RecordChange(ctx, audit.KindUpdated, EntityPerson, id.String(), oldSnap, newSnap)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("person updated", "person_id", id, "actor_id", actor.ID, "fields", len(changed))
	return plainNew, nil
}

func (s *Service) SoftDeletePerson(ctx context.Context, id domain.RecordID) error {
	return s.softDelete(ctx, EntityPerson, id)
}

func (s *Service) RestorePerson(ctx context.Context, id domain.RecordID) error {
	return s.restore(ctx, EntityPerson, id)
}

type FamilyInput struct {
	Name              string `json:"name"`
	ReferencePersonID string `json:"reference_person_id"`
	Address           string `json:"address"`
	ContactPhone      string `json:"contact_phone"`
	MemberCount       int    `json:"member_count"`
	Notes             string `json:"notes"`
}

func (s *Service) CreateFamily(ctx context.Context, in FamilyInput) (*Family, error) {
	actor := requestcontext.Actor(ctx)
	if !actor.IsValid() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no authenticated actor")
	}
	if !actor.Roles.CanSubmit() {
		return nil, dErrors.New(dErrors.CodeForbidden, "role cannot create records")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, dErrors.NewField(dErrors.CodeValidationFailed, "family name is required", "name")
	}
	refID, err := domain.ParseRecordID(in.ReferencePersonID)
	if err != nil {
		return nil, dErrors.NewField(dErrors.CodeValidationFailed, "malformed reference person id", "reference_person_id")
	}
	if _, err := s.store.FindPerson(ctx, refID, false); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidationFailed, "reference person not found")
	}

	now := requestcontext.Now(ctx)
	f := &Family{
		ID:                domain.RecordID(uuid.New()),
		Name:              strings.TrimSpace(in.Name),
		ReferencePersonID: refID,
		Address:           strings.TrimSpace(in.Address),
		ContactPhone:      strings.TrimSpace(in.ContactPhone),
		MemberCount:       in.MemberCount,
		Notes:             in.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	enc := f.Clone()
	if err := s.codec.Encrypt(enc); err != nil {
		return nil, err
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.SaveFamily(ctx, enc); err != nil {
			return err
		}
		return s.trail.RecordChange(ctx, audit.KindCreated, EntityFamily, f.ID.String(), nil, enc.snapshot())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("family created", "family_id", f.ID, "actor_id", actor.ID)
	return f, nil
}

func (s *Service) GetFamily(ctx context.Context, id domain.RecordID) (*Family, error) {
	f, err := s.store.FindFamily(ctx, id, false)
	if err != nil {
		return nil, err
	}
	s.codec.Decrypt(f)

	if err := s.trail.RecordAccess(ctx, EntityFamily, id.String()); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) ListFamilies(ctx context.Context) ([]*Family, error) {
	families, err := s.store.ListFamilies(ctx, false)
	if err != nil {
		return nil, err
	}
	for _, f := range families {
		s.codec.Decrypt(f)
		if err := s.trail.RecordAccess(ctx, EntityFamily, f.ID.String()); err != nil {
			return nil, err
		}
	}
	return families, nil
}

func (s *Service) SoftDeleteFamily(ctx context.Context, id domain.RecordID) error {
	return s.softDelete(ctx, EntityFamily, id)
}

func (s *Service) RestoreFamily(ctx context.Context, id domain.RecordID) error {
	return s.restore(ctx, EntityFamily, id)
}

func (s *Service) softDelete(ctx context.Context, entityType string, id domain.RecordID) error {
	actor := requestcontext.Actor(ctx)
	if !actor.IsValid() {
		return dErrors.New(dErrors.CodeUnauthorized, "no authenticated actor")
	}
	if !actor.Roles.CanReview() {
		return dErrors.New(dErrors.CodeForbidden, "role cannot delete records")
	}

	now := requestcontext.Now(ctx)
	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		switch entityType {
		case EntityPerson:
			p, err := s.store.FindPerson(ctx, id, false)
			if err != nil {
				return err
			}
			p.DeletedAt = &now
			p.UpdatedAt = now
			if err := s.store.SavePerson(ctx, p); err != nil {
				return err
			}
		case EntityFamily:
			f, err := s.store.FindFamily(ctx, id, false)
			if err != nil {
				return err
			}
			f.DeletedAt = &now
			f.UpdatedAt = now
			if err := s.store.SaveFamily(ctx, f); err != nil {
				return err
			}
		default:
			return dErrors.New(dErrors.CodeInternal, fmt.Sprintf("unknown entity type %q", entityType))
		}

		snap := map[string]any{"deleted_at": now.Format(time.RFC3339)}
		return s.trail.RecordChange(ctx, audit.KindSoftDeleted, entityType, id.String(), nil, snap)
	})
}

func (s *Service) restore(ctx context.Context, entityType string, id domain.RecordID) error {
	actor := requestcontext.Actor(ctx)
	if !actor.IsValid() {
		return dErrors.New(dErrors.CodeUnauthorized, "no authenticated actor")
	}
	if !actor.Roles.CanReview() {
		return dErrors.New(dErrors.CodeForbidden, "role cannot restore records")
	}

	now := requestcontext.Now(ctx)
	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		switch entityType {
		case EntityPerson:
			p, err := s.store.FindPerson(ctx, id, true)
			if err != nil {
				return err
			}
			if !p.Deleted() {
				return dErrors.New(dErrors.CodeConflict, "person is not deleted")
			}
			p.DeletedAt = nil
			p.UpdatedAt = now
			if err := s.store.SavePerson(ctx, p); err != nil {
				return err
			}
			return s.trail.RecordChange(ctx, audit.KindRestored, entityType, id.String(), nil, nil)
		case EntityFamily:
			f, err := s.store.FindFamily(ctx, id, true)
			if err != nil {
				return err
			}
			if !f.Deleted() {
				return dErrors.New(dErrors.CodeConflict, "family is not deleted")
			}
			f.DeletedAt = nil
			f.UpdatedAt = now
			if err := s.store.SaveFamily(ctx, f); err != nil {
				return err
			}
			return s.trail.RecordChange(ctx, audit.KindRestored, entityType, id.String(), nil, nil)
		default:
			return dErrors.New(dErrors.CodeInternal, fmt.Sprintf("unknown entity type %q", entityType))
		}
	})
}

func diffSnapshots(oldSnap, newSnap map[string]any) []string {
	var changed []string
	for field, newVal := range newSnap {
		if fmt.Sprint(oldSnap[field]) != fmt.Sprint(newVal) {
			changed = append(changed, field)
		}
	}
	return changed
}

func pickFields(snap map[string]any, fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := snap[f]; ok {
			out[f] = v
		}
	}
	return out
}
