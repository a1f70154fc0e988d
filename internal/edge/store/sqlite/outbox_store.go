// Package sqlite persists the outbox in the edge database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	dbpkg "github.com/tainadesingsil-coder/Interaopen/internal/db"
	"github.com/tainadesingsil-coder/Interaopen/internal/edge/store"
)

// OutboxStore implements store.OutboxStore on SQLite. All mutations run on
// the single-writer worker so concurrent appends cannot interleave;
// ListUnsynced reads directly on the pooled connection and never holds the
// writer up for longer than the snapshot read itself.
type OutboxStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
	now    func() time.Time
}

func NewOutboxStore(db *sql.DB, writer *dbpkg.Worker) *OutboxStore {
	return &OutboxStore{
		db:     db,
		writer: writer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *OutboxStore) Append(ctx context.Context, eventType string, payload map[string]any) (string, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("Append marshal payload: %w", err)
	}

	eventID := uuid.NewString()
	createdMs := s.now().UnixMilli()

	err = s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO outbox_events(id, event_type, payload_json, created_at_ms, synced)
VALUES (?, ?, ?, ?, 0);
`, eventID, eventType, string(payloadJSON), createdMs); err != nil {
			return fmt.Errorf("Append insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return eventID, nil
}

func (s *OutboxStore) ListUnsynced(ctx context.Context, limit int) ([]store.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	// rowid breaks created_at_ms ties so replay order matches append order
	// even for events created within the same millisecond.
	rows, err := s.db.QueryContext(ctx, `
SELECT id, event_type, payload_json, created_at_ms, last_error
FROM outbox_events
WHERE synced = 0
ORDER BY created_at_ms ASC, rowid ASC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("ListUnsynced query: %w", err)
	}
	defer rows.Close()

	var out []store.OutboxEvent
	for rows.Next() {
		var (
			ev          store.OutboxEvent
			payloadJSON string
			createdMs   int64
			lastError   sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.EventType, &payloadJSON, &createdMs, &lastError); err != nil {
			return nil, fmt.Errorf("ListUnsynced scan: %w", err)
		}
		if err := json.Unmarshal([]byte(payloadJSON), &ev.Payload); err != nil {
			return nil, fmt.Errorf("ListUnsynced payload %s: %w", ev.ID, err)
		}
		ev.CreatedAt = time.UnixMilli(createdMs).UTC()
		ev.LastError = lastError.String
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListUnsynced rows: %w", err)
	}
	return out, nil
}

func (s *OutboxStore) MarkSynced(ctx context.Context, eventID string) error {
	syncedMs := s.now().UnixMilli()
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
UPDATE outbox_events
SET synced = 1, synced_at_ms = ?, last_error = NULL
WHERE id = ?;
`, syncedMs, eventID); err != nil {
			return fmt.Errorf("MarkSynced %s: %w", eventID, err)
		}
		return nil
	})
}

func (s *OutboxStore) MarkError(ctx context.Context, eventID, message string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
UPDATE outbox_events
SET last_error = ?
WHERE id = ?;
`, store.TruncateError(message), eventID); err != nil {
			return fmt.Errorf("MarkError %s: %w", eventID, err)
		}
		return nil
	})
}
