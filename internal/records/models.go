package records

import (
	"time"

	"amparo/pkg/domain"
)

const (
	EntityPerson = "person"
	EntityFamily = "family"
)

// PII field names per entity type, registered with the field registry at
// startup. Values stay encrypted at rest; everything else is stored plain.
var (
	PersonPIIFields = []string{"full_name", "email", "phone", "document_number", "address"}
	FamilyPIIFields = []string{"address", "contact_phone"}
)

// Person is an assisted individual. PII fields hold plaintext in memory and
// ciphertext envelopes when loaded straight from a store.
type Person struct {
	ID             domain.RecordID
	FullName       string
	Email          string
	Phone          string
	DocumentNumber string
	Address        string
	BirthDate      *time.Time
	Notes          string
	KeyVersion     int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

func (p *Person) EntityType() string { return EntityPerson }

func (p *Person) PIIFields() map[string]*string {
	return map[string]*string{
		"full_name":       &p.FullName,
		"email":           &p.Email,
		"phone":           &p.Phone,
		"document_number": &p.DocumentNumber,
		"address":         &p.Address,
	}
}

func (p *Person) EncryptionKeyVersion() int     { return p.KeyVersion }
func (p *Person) SetEncryptionKeyVersion(v int) { p.KeyVersion = v }

func (p *Person) Deleted() bool { return p.DeletedAt != nil }

func (p *Person) Clone() *Person {
	dup := *p
	if p.BirthDate != nil {
		bd := *p.BirthDate
		dup.BirthDate = &bd
	}
	if p.DeletedAt != nil {
		da := *p.DeletedAt
		dup.DeletedAt = &da
	}
	return &dup
}

// snapshot returns the audit representation of the person. PII values are
// taken as-is, so callers snapshot the encrypted copy.
func (p *Person) snapshot() map[string]any {
	m := map[string]any{
		"full_name":       p.FullName,
		"email":           p.Email,
		"phone":           p.Phone,
		"document_number": p.DocumentNumber,
		"address":         p.Address,
		"notes":           p.Notes,
	}
	if p.BirthDate != nil {
		m["birth_date"] = p.BirthDate.Format("2006-01-02")
	}
	return m
}

// Family groups people assisted as one household.
type Family struct {
	ID                domain.RecordID
	Name              string
	ReferencePersonID domain.RecordID
	Address           string
	ContactPhone      string
	MemberCount       int
	Notes             string
	KeyVersion        int
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time
}

func (f *Family) EntityType() string { return EntityFamily }

func (f *Family) PIIFields() map[string]*string {
	return map[string]*string{
		"address":       &f.Address,
		"contact_phone": &f.ContactPhone,
	}
}

func (f *Family) EncryptionKeyVersion() int     { return f.KeyVersion }
func (f *Family) SetEncryptionKeyVersion(v int) { f.KeyVersion = v }

func (f *Family) Deleted() bool { return f.DeletedAt != nil }

func (f *Family) Clone() *Family {
	dup := *f
	if f.DeletedAt != nil {
		da := *f.DeletedAt
		dup.DeletedAt = &da
	}
	return &dup
}

func (f *Family) snapshot() map[string]any {
	return map[string]any{
		"name":                f.Name,
		"reference_person_id": f.ReferencePersonID.String(),
		"address":             f.Address,
		"contact_phone":       f.ContactPhone,
		"member_count":        f.MemberCount,
		"notes":               f.Notes,
	}
}
