package approval

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"amparo/pkg/domain"
	"amparo/pkg/platform/sentinel"
	"amparo/pkg/platform/tx"
)

// PostgresStore persists approval requests in PostgreSQL.
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

const requestColumns = `id, subject_type, subject_id, requester_id, requester_name, state, reason,
	metadata, requested_documents, fast_tracked, created_at, updated_at, decided_at, expires_at, transitions`

func (s *PostgresStore) Save(ctx context.Context, req *Request) error {
	metadata, err := json.Marshal(req.Metadata)
	if err != nil {
		return fmt.Errorf("save approval request: marshal metadata: %w", err)
	}
	history, err := json.Marshal(req.Transitions)
	if err != nil {
		return fmt.Errorf("save approval request: marshal transitions: %w", err)
	}

	query := `
		INSERT INTO approval_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			reason = EXCLUDED.reason,
			metadata = EXCLUDED.metadata,
			requested_documents = EXCLUDED.requested_documents,
			fast_tracked = EXCLUDED.fast_tracked,
			updated_at = EXCLUDED.updated_at,
			decided_at = EXCLUDED.decided_at,
			expires_at = EXCLUDED.expires_at,
			transitions = EXCLUDED.transitions`

	_, err = s.execer(ctx).ExecContext(ctx, query,
		req.ID.String(), req.SubjectType, req.SubjectID.String(),
		req.RequesterID.String(), req.RequesterName, string(req.State), req.Reason,
		metadata, pq.Array(req.RequestedDocuments), req.FastTracked,
		req.CreatedAt, req.UpdatedAt, req.DecidedAt, req.ExpiresAt, history,
	)
	if err != nil {
		return fmt.Errorf("save approval request: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, id domain.RequestID) (*Request, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests WHERE id = $1`

	req, err := scanRequest(s.execer(ctx).QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find approval request: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) ListByState(ctx context.Context, state State) ([]*Request, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests WHERE state = $1 ORDER BY created_at`
	return s.list(ctx, query, string(state))
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subjectType string, subjectID domain.RecordID) ([]*Request, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests
		WHERE subject_type = $1 AND subject_id = $2 ORDER BY created_at`
	return s.list(ctx, query, subjectType, subjectID.String())
}

func (s *PostgresStore) ListExpiring(ctx context.Context, before time.Time) ([]*Request, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests
		WHERE state = $1 AND expires_at IS NOT NULL AND expires_at <= $2 ORDER BY created_at`
	return s.list(ctx, query, string(StateApproved), before)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*Request, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list approval requests: %w", err)
	}
	defer rows.Close()

	var out []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("list approval requests: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*Request, error) {
	var (
		req         Request
		rawID       string
		rawSubject  string
		rawUser     string
		rawState    string
		rawMetadata []byte
		rawDocs     pq.StringArray
		rawHistory  []byte
	)
	err := row.Scan(&rawID, &req.SubjectType, &rawSubject, &rawUser, &req.RequesterName,
		&rawState, &req.Reason, &rawMetadata, &rawDocs, &req.FastTracked,
		&req.CreatedAt, &req.UpdatedAt, &req.DecidedAt, &req.ExpiresAt, &rawHistory)
	if err != nil {
		return nil, err
	}

	id, err := domain.ParseRequestID(rawID)
	if err != nil {
		return nil, err
	}
	subjectID, err := domain.ParseRecordID(rawSubject)
	if err != nil {
		return nil, err
	}
	userID, err := domain.ParseUserID(rawUser)
	if err != nil {
		return nil, err
	}

	req.ID = id
	req.SubjectID = subjectID
	req.RequesterID = userID
	req.State = State(rawState)
	req.RequestedDocuments = rawDocs
	if len(rawMetadata) > 0 {
		if err := json.Unmarshal(rawMetadata, &req.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	if len(rawHistory) > 0 {
		if err := json.Unmarshal(rawHistory, &req.Transitions); err != nil {
			return nil, fmt.Errorf("unmarshal transitions: %w", err)
		}
	}
	return &req, nil
}
