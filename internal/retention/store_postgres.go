package retention

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"amparo/pkg/platform/tx"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// expiryPredicate returns the table and the WHERE predicate selecting rows
// whose retention has elapsed at the given cutoff.
func expiryPredicate(entityType string, cutoff time.Time) (table string, pred sq.Sqlizer, err error) {
	switch entityType {
	case "person":
		return "people", sq.And{sq.NotEq{"deleted_at": nil}, sq.Lt{"deleted_at": cutoff}}, nil
	case "family":
		return "families", sq.And{sq.NotEq{"deleted_at": nil}, sq.Lt{"deleted_at": cutoff}}, nil
	case "approval_request":
		return "approval_requests", sq.And{
			sq.Eq{"state": []string{"approved", "rejected", "cancelled", "revoked", "expired"}},
			sq.NotEq{"decided_at": nil},
			sq.Lt{"decided_at": cutoff},
		}, nil
	case "audit_entry":
		return "audit_entries", sq.Lt{"created_at": cutoff}, nil
	default:
		return "", nil, fmt.Errorf("retention: unknown entity type %q", entityType)
	}
}

// PostgresStore counts and purges expired rows.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) execer {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

func (s *PostgresStore) CountExpired(ctx context.Context, entityType string, cutoff time.Time) (int64, error) {
	table, pred, err := expiryPredicate(entityType, cutoff)
	if err != nil {
		return 0, err
	}

	query, args, err := psql.Select("COUNT(*)").From(table).Where(pred).ToSql()
	if err != nil {
		return 0, fmt.Errorf("count expired %s: %w", entityType, err)
	}

	var count int64
	if err := s.execer(ctx).QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count expired %s: %w", entityType, err)
	}
	return count, nil
}

func (s *PostgresStore) PurgeExpired(ctx context.Context, entityType string, cutoff time.Time) (int64, error) {
	table, pred, err := expiryPredicate(entityType, cutoff)
	if err != nil {
		return 0, err
	}

	query, args, err := psql.Delete(table).Where(pred).ToSql()
	if err != nil {
		return 0, fmt.Errorf("purge expired %s: %w", entityType, err)
	}

	res, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge expired %s: %w", entityType, err)
	}
	return res.RowsAffected()
}
