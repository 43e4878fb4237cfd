// Package relay ships audit outbox rows to the compliance Kafka topic.
//
// The audit store writes entries and outbox rows in the same transaction as
// the mutation they describe; the relay then publishes the outbox
// asynchronously. Publishing can lag or retry without ever losing an entry,
// because PostgreSQL holds the source of truth.
package relay

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultBatchSize    = 100
)

// Relay polls unpublished outbox rows and produces them to Kafka.
type Relay struct {
	db       *sql.DB
	client   *kgo.Client
	topic    string
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

func New(db *sql.DB, client *kgo.Client, topic string, logger *slog.Logger) *Relay {
	return &Relay{
		db:       db,
		client:   client,
		topic:    topic,
		logger:   logger,
		interval: defaultPollInterval,
		batch:    defaultBatchSize,
	}
}

// Run polls until the context is cancelled. Publish failures are logged and
// retried on the next tick; rows are only marked published after the broker
// acknowledges them.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.relayBatch(ctx); err != nil {
				r.logger.ErrorContext(ctx, "audit relay batch failed", "error", err)
			}
		}
	}
}

type outboxRow struct {
	id      uuid.UUID
	entryID uuid.UUID
	payload []byte
}

func (r *Relay) relayBatch(ctx context.Context) error {
	rows, err := r.fetchUnpublished(ctx)
	if err != nil {
		return err
	}

	for _, row := range rows {
		record := &kgo.Record{
			Topic: r.topic,
			Key:   []byte(row.entryID.String()),
			Value: row.payload,
		}
		// One row at a time: the entry ID key gives the topic per-subject
		// ordering, and a failed produce leaves the row unpublished for the
		// next tick.
		if err := r.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			return fmt.Errorf("produce outbox row %s: %w", row.id, err)
		}
		if err := r.markPublished(ctx, row.id); err != nil {
			return err
		}
	}
	return nil
}

func (r *Relay) fetchUnpublished(ctx context.Context) ([]outboxRow, error) {
	const query = `
		SELECT id, entry_id, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, r.batch)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox rows: %w", err)
	}
	defer rows.Close()

	var out []outboxRow
	for rows.Next() {
		var row outboxRow
		if err := rows.Scan(&row.id, &row.entryID, &row.payload); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *Relay) markPublished(ctx context.Context, id uuid.UUID) error {
	const query = `UPDATE audit_outbox SET published_at = now() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark outbox row published: %w", err)
	}
	return nil
}
