package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"amparo/pkg/domain"
	"amparo/pkg/platform/sentinel"
	"amparo/pkg/platform/tx"
)

// PostgresStore persists accounts in PostgreSQL.
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

func (s *PostgresStore) Save(ctx context.Context, u *User) error {
	roles := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, r.String())
	}

	query := `
		INSERT INTO users (id, name, email, roles, cancellation_token, cancel_requested_at, cancel_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			roles = EXCLUDED.roles,
			cancellation_token = EXCLUDED.cancellation_token,
			cancel_requested_at = EXCLUDED.cancel_requested_at,
			cancel_expires_at = EXCLUDED.cancel_expires_at,
			updated_at = EXCLUDED.updated_at`

	_, err := s.execer(ctx).ExecContext(ctx, query,
		u.ID.String(), u.Name, u.Email, pq.Array(roles),
		u.CancellationToken, u.CancelRequestedAt, u.CancelExpiresAt,
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, id UserID) (*User, error) {
	query := `SELECT id, name, email, roles, cancellation_token, cancel_requested_at, cancel_expires_at, created_at, updated_at
		FROM users WHERE id = $1`

	var (
		u        User
		rawID    string
		rawRoles pq.StringArray
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, id.String()).Scan(
		&rawID, &u.Name, &u.Email, &rawRoles,
		&u.CancellationToken, &u.CancelRequestedAt, &u.CancelExpiresAt,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	parsed, err := domain.ParseUserID(rawID)
	if err != nil {
		return nil, err
	}
	u.ID = parsed
	for _, raw := range rawRoles {
		role, err := domain.ParseRole(raw)
		if err != nil {
			continue
		}
		u.Roles = append(u.Roles, role)
	}
	return &u, nil
}

func (s *PostgresStore) CountExpiredCancellations(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE cancel_expires_at IS NOT NULL AND cancel_expires_at <= $1`, now,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count expired cancellations: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) DeleteExpiredCancellations(ctx context.Context, now time.Time) ([]UserID, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`DELETE FROM users WHERE cancel_expires_at IS NOT NULL AND cancel_expires_at <= $1 RETURNING id`, now)
	if err != nil {
		return nil, fmt.Errorf("delete expired cancellations: %w", err)
	}
	defer rows.Close()

	var deleted []UserID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("delete expired cancellations: %w", err)
		}
		id, err := domain.ParseUserID(raw)
		if err != nil {
			return nil, err
		}
		deleted = append(deleted, id)
	}
	return deleted, rows.Err()
}
