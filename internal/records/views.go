package records

import (
	"time"

	"amparo/internal/pii"
	"amparo/pkg/domain"
)

// PersonView is the API projection of a person. PII fields are masked unless
// the caller's roles grant full access.
type PersonView struct {
	ID             string     `json:"id"`
	FullName       string     `json:"full_name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	DocumentNumber string     `json:"document_number"`
	Address        string     `json:"address"`
	BirthDate      *string    `json:"birth_date,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	Masked         bool       `json:"masked"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

func NewPersonView(p *Person, roles domain.RoleSet) PersonView {
	v := PersonView{
		ID:             p.ID.String(),
		FullName:       p.FullName,
		Email:          p.Email,
		Phone:          p.Phone,
		DocumentNumber: p.DocumentNumber,
		Address:        p.Address,
		Notes:          p.Notes,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
		DeletedAt:      p.DeletedAt,
	}
	if p.BirthDate != nil {
		bd := p.BirthDate.Format("2006-01-02")
		v.BirthDate = &bd
	}
	if !roles.CanAccessFullPII() {
		v.FullName = pii.MaskFullName(p.FullName)
		v.Email = pii.MaskEmail(p.Email)
		v.Phone = pii.MaskPhone(p.Phone)
		v.DocumentNumber = pii.MaskDocument(p.DocumentNumber)
		v.Address = pii.MaskExceptLast(p.Address, 0)
		v.Masked = true
	}
	return v
}

// FamilyView is the API projection of a family.
type FamilyView struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	ReferencePersonID string     `json:"reference_person_id"`
	Address           string     `json:"address"`
	ContactPhone      string     `json:"contact_phone"`
	MemberCount       int        `json:"member_count"`
	Notes             string     `json:"notes,omitempty"`
	Masked            bool       `json:"masked"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	DeletedAt         *time.Time `json:"deleted_at,omitempty"`
}

func NewFamilyView(f *Family, roles domain.RoleSet) FamilyView {
	v := FamilyView{
		ID:                f.ID.String(),
		Name:              f.Name,
		ReferencePersonID: f.ReferencePersonID.String(),
		Address:           f.Address,
		ContactPhone:      f.ContactPhone,
		MemberCount:       f.MemberCount,
		Notes:             f.Notes,
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         f.UpdatedAt,
		DeletedAt:         f.DeletedAt,
	}
	if !roles.CanAccessFullPII() {
		v.Address = pii.MaskExceptLast(f.Address, 0)
		v.ContactPhone = pii.MaskPhone(f.ContactPhone)
		v.Masked = true
	}
	return v
}
