package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ReadVersion returns the persisted schema version, or 0 when the database has never been migrated.
//
// It only reads; a database without schema_meta is left as it is.
func ReadVersion(ctx context.Context, q queryer) (int, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'schema_meta')",
	).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to check schema_meta: %w", err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = q.QueryRowContext(ctx, "SELECT version FROM schema_meta WHERE id = 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// writeVersion records version in the single schema_meta row, creating the table on first use.
func writeVersion(ctx context.Context, tx *sql.Tx, version int) error {
	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			version INTEGER NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_meta: %w", err)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO schema_meta (id, version) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET version = excluded.version, updated_at = CURRENT_TIMESTAMP
	`, version)
	if err != nil {
		return fmt.Errorf("failed to write schema version: %w", err)
	}
	return nil
}
