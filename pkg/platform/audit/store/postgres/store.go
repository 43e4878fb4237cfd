package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"amparo/pkg/platform/audit"
	txcontext "amparo/pkg/platform/tx"
)

// Store persists audit entries in PostgreSQL. Append joins the caller's
// transaction when one is in the context, which is what makes an audit
// failure roll the triggering mutation back. Each append also writes an
// outbox row; the relay ships those to the compliance Kafka topic.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	oldValues, err := marshalSnapshot(entry.OldValues)
	if err != nil {
		return fmt.Errorf("marshal old values: %w", err)
	}
	newValues, err := marshalSnapshot(entry.NewValues)
	if err != nil {
		return fmt.Errorf("marshal new values: %w", err)
	}

	execer := s.execer(ctx)

	const insertEntry = `
		INSERT INTO audit_entries (
			id, kind, actor_id, actor_name, subject_type, subject_id,
			old_values, new_values, client_ip, user_agent, device_summary,
			request_id, pii_access, pii_fields, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = execer.ExecContext(ctx, insertEntry,
		entry.ID,
		string(entry.Kind),
		entry.ActorID,
		entry.ActorName,
		entry.SubjectType,
		entry.SubjectID,
		oldValues,
		newValues,
		entry.ClientIP,
		entry.UserAgent,
		entry.DeviceSummary,
		entry.RequestID,
		entry.PIIAccess,
		pq.Array(entry.PIIFields),
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	payload, err := json.Marshal(outboxPayload{
		ID:          entry.ID.String(),
		Kind:        string(entry.Kind),
		ActorID:     entry.ActorID,
		SubjectType: entry.SubjectType,
		SubjectID:   entry.SubjectID,
		RequestID:   entry.RequestID,
		PIIAccess:   entry.PIIAccess,
		PIIFields:   entry.PIIFields,
		Timestamp:   entry.Timestamp.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	const insertOutbox = `
		INSERT INTO audit_outbox (id, entry_id, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := execer.ExecContext(ctx, insertOutbox, uuid.New(), entry.ID, payload, entry.Timestamp); err != nil {
		return fmt.Errorf("insert outbox row: %w", err)
	}
	return nil
}

// outboxPayload is the JSON shipped to the compliance topic. Snapshots stay
// out of it: the broker only carries the fact of the event, not field
// contents.
type outboxPayload struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	ActorID     string   `json:"actor_id"`
	SubjectType string   `json:"subject_type"`
	SubjectID   string   `json:"subject_id"`
	RequestID   string   `json:"request_id,omitempty"`
	PIIAccess   bool     `json:"pii_access"`
	PIIFields   []string `json:"pii_fields,omitempty"`
	Timestamp   string   `json:"timestamp"`
}

func (s *Store) ListBySubject(ctx context.Context, subjectType, subjectID string) ([]audit.Entry, error) {
	query, args, err := sq.Select(
		"id", "kind", "actor_id", "actor_name", "subject_type", "subject_id",
		"old_values", "new_values", "client_ip", "user_agent", "device_summary",
		"request_id", "pii_access", "pii_fields", "created_at",
	).
		From("audit_entries").
		Where(sq.Eq{"subject_type": subjectType, "subject_id": subjectID}).
		OrderBy("created_at DESC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	var entries []audit.Entry
	for rows.Next() {
		var (
			entry     audit.Entry
			kind      string
			oldValues []byte
			newValues []byte
			piiFields pq.StringArray
		)
		err := rows.Scan(
			&entry.ID,
			&kind,
			&entry.ActorID,
			&entry.ActorName,
			&entry.SubjectType,
			&entry.SubjectID,
			&oldValues,
			&newValues,
			&entry.ClientIP,
			&entry.UserAgent,
			&entry.DeviceSummary,
			&entry.RequestID,
			&entry.PIIAccess,
			&piiFields,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Kind = audit.EventKind(kind)
		entry.PIIFields = piiFields
		if err := unmarshalSnapshot(oldValues, &entry.OldValues); err != nil {
			return nil, err
		}
		if err := unmarshalSnapshot(newValues, &entry.NewValues); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func marshalSnapshot(values map[string]any) ([]byte, error) {
	if values == nil {
		return nil, nil
	}
	return json.Marshal(values)
}

func unmarshalSnapshot(data []byte, dst *map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return nil
}
