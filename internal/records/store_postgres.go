package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"amparo/pkg/domain"
	"amparo/pkg/platform/sentinel"
	"amparo/pkg/platform/tx"
)

// PostgresStore persists records in PostgreSQL. Writes join a transaction
// carried in the context when one is present.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) execer {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

const personColumns = `id, full_name, email, phone, document_number, address, birth_date, notes, key_version, created_at, updated_at, deleted_at`

func (s *PostgresStore) SavePerson(ctx context.Context, p *Person) error {
	query := `
		INSERT INTO people (` + personColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			document_number = EXCLUDED.document_number,
			address = EXCLUDED.address,
			birth_date = EXCLUDED.birth_date,
			notes = EXCLUDED.notes,
			key_version = EXCLUDED.key_version,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at`

	_, err := s.execer(ctx).ExecContext(ctx, query,
		p.ID.String(), p.FullName, p.Email, p.Phone, p.DocumentNumber, p.Address,
		p.BirthDate, p.Notes, p.KeyVersion, p.CreatedAt, p.UpdatedAt, p.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("save person: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindPerson(ctx context.Context, id domain.RecordID, includeDeleted bool) (*Person, error) {
	query := `SELECT ` + personColumns + ` FROM people WHERE id = $1`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}

	p, err := scanPerson(s.execer(ctx).QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find person: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListPeople(ctx context.Context, includeDeleted bool) ([]*Person, error) {
	query := `SELECT ` + personColumns + ` FROM people`
	if !includeDeleted {
		query += ` WHERE deleted_at IS NULL`
	}
	query += ` ORDER BY created_at`

	rows, err := s.execer(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	defer rows.Close()

	var out []*Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("list people: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*Person, error) {
	var (
		p     Person
		rawID string
	)
	err := row.Scan(&rawID, &p.FullName, &p.Email, &p.Phone, &p.DocumentNumber, &p.Address,
		&p.BirthDate, &p.Notes, &p.KeyVersion, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err != nil {
		return nil, err
	}
	id, err := domain.ParseRecordID(rawID)
	if err != nil {
		return nil, err
	}
	p.ID = id
	return &p, nil
}

const familyColumns = `id, name, reference_person_id, address, contact_phone, member_count, notes, key_version, created_at, updated_at, deleted_at`

func (s *PostgresStore) SaveFamily(ctx context.Context, f *Family) error {
	query := `
		INSERT INTO families (` + familyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			reference_person_id = EXCLUDED.reference_person_id,
			address = EXCLUDED.address,
			contact_phone = EXCLUDED.contact_phone,
			member_count = EXCLUDED.member_count,
			notes = EXCLUDED.notes,
			key_version = EXCLUDED.key_version,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at`

	_, err := s.execer(ctx).ExecContext(ctx, query,
		f.ID.String(), f.Name, f.ReferencePersonID.String(), f.Address, f.ContactPhone,
		f.MemberCount, f.Notes, f.KeyVersion, f.CreatedAt, f.UpdatedAt, f.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("save family: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindFamily(ctx context.Context, id domain.RecordID, includeDeleted bool) (*Family, error) {
	query := `SELECT ` + familyColumns + ` FROM families WHERE id = $1`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}

	f, err := scanFamily(s.execer(ctx).QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find family: %w", err)
	}
	return f, nil
}

func (s *PostgresStore) ListFamilies(ctx context.Context, includeDeleted bool) ([]*Family, error) {
	query := `SELECT ` + familyColumns + ` FROM families`
	if !includeDeleted {
		query += ` WHERE deleted_at IS NULL`
	}
	query += ` ORDER BY created_at`

	rows, err := s.execer(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list families: %w", err)
	}
	defer rows.Close()

	var out []*Family
	for rows.Next() {
		f, err := scanFamily(rows)
		if err != nil {
			return nil, fmt.Errorf("list families: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanFamily(row rowScanner) (*Family, error) {
	var (
		f        Family
		rawID    string
		rawRefID string
	)
	err := row.Scan(&rawID, &f.Name, &rawRefID, &f.Address, &f.ContactPhone,
		&f.MemberCount, &f.Notes, &f.KeyVersion, &f.CreatedAt, &f.UpdatedAt, &f.DeletedAt)
	if err != nil {
		return nil, err
	}
	id, err := domain.ParseRecordID(rawID)
	if err != nil {
		return nil, err
	}
	refID, err := domain.ParseRecordID(rawRefID)
	if err != nil {
		return nil, err
	}
	f.ID = id
	f.ReferencePersonID = refID
	return &f, nil
}
