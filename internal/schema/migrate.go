package schema

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catalogd/internal/shared"
)

// Migrate brings db up to registry.Latest and reports the versions before and after.
//
// A persisted version above the latest fails with [shared.DowngradeError] before anything is written. Each pending
// step runs in its own transaction together with its version bump; the first failure stops the run with a
// [shared.MigrationError] and the database stays at the previous version. Calling Migrate on an up to date database
// changes nothing.
//
// Steps run on a dedicated connection with foreign key enforcement off so tables can be rebuilt; every step must
// still leave PRAGMA foreign_key_check clean before it commits. When the registry declares a layout, the migrated
// tables are then checked with [Validate].
func Migrate(ctx context.Context, db *sql.DB, registry *Registry, logger *log.Logger) (from, to int, err error) {
	if registry == nil {
		return 0, 0, fmt.Errorf("%w: no registry", shared.ErrInvalidRegistry)
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return 0, 0, shared.Storage("acquire migration connection", err)
	}
	defer conn.Close()

	from, err = ReadVersion(ctx, conn)
	if err != nil {
		return 0, 0, shared.Storage("read schema version", err)
	}

	latest := registry.Latest()
	if from > latest {
		return from, from, &shared.DowngradeError{Persisted: from, Latest: latest}
	}

	pending := registry.pending(from)
	if len(pending) == 0 {
		logger.Debug("schema up to date", "version", from)
		return from, from, Validate(ctx, conn, from, registry.Layout())
	}

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return from, from, shared.Storage("disable foreign keys", err)
	}
	defer func() {
		if _, ferr := conn.ExecContext(context.Background(), "PRAGMA foreign_keys = ON"); ferr != nil && err == nil {
			err = shared.Storage("enable foreign keys", ferr)
		}
	}()

	to = from
	for _, step := range pending {
		start := time.Now()
		if err := applyStep(ctx, conn, step); err != nil {
			logger.Error("schema step failed", "version", step.Version, "name", step.Name, "error", err)
			return from, to, &shared.MigrationError{Version: step.Version, Name: step.Name, Err: err}
		}
		to = step.Version
		logger.Info("applied schema step", "version", step.Version, "name", step.Name, "elapsed", time.Since(start))
	}

	return from, to, Validate(ctx, conn, to, registry.Layout())
}

// applyStep runs step and records its version in a single transaction.
func applyStep(ctx context.Context, conn *sql.Conn, step Step) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := step.Apply(ctx, tx); err != nil {
		return err
	}

	if err := checkForeignKeys(ctx, tx); err != nil {
		return err
	}

	if err := writeVersion(ctx, tx, step.Version); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// checkForeignKeys fails on the first row PRAGMA foreign_key_check reports.
func checkForeignKeys(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return fmt.Errorf("failed to check foreign keys: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		var (
			table  string
			rowID  sql.NullInt64
			parent string
			fkid   int
		)
		if err := rows.Scan(&table, &rowID, &parent, &fkid); err != nil {
			return fmt.Errorf("failed to scan foreign key violation: %w", err)
		}
		return fmt.Errorf("foreign key violation: %s row %d references missing %s", table, rowID.Int64, parent)
	}
	return rows.Err()
}
