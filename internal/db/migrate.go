package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// migrations is the ordered schema history. Each entry runs in its own
// transaction exactly once, tracked in schema_migrations by index.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS outbox_events (
  id            TEXT PRIMARY KEY,
  event_type    TEXT NOT NULL,
  payload_json  TEXT NOT NULL,
  created_at_ms INTEGER NOT NULL,
  synced        INTEGER NOT NULL DEFAULT 0,
  synced_at_ms  INTEGER,
  last_error    TEXT
);
CREATE INDEX IF NOT EXISTS idx_outbox_unsynced
  ON outbox_events(synced, created_at_ms);`,
}

// Migrate applies any pending migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_ms INTEGER NOT NULL
);`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	for i, stmt := range migrations {
		version := i + 1

		applied, err := isApplied(ctx, db, version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}

		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations(version, applied_at_ms) VALUES(?, ?);",
			version, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", version, err)
		}
	}

	return nil
}

func isApplied(ctx context.Context, db *sql.DB, version int) (bool, error) {
	var v int
	err := db.QueryRowContext(ctx, "SELECT version FROM schema_migrations WHERE version = ?;", version).Scan(&v)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check migration %d: %w", version, err)
	}
	return true, nil
}
