package main

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catalogd/internal/shared"
)

// Process exit codes.
const (
	exitError = iota + 1
	exitDowngrade
	exitMigration
	exitImportBusy
	exitIntegrity
	exitInterrupted
)

// exitCode logs err the way an operator needs to see it and picks the process exit code.
func exitCode(logger *log.Logger, err error) int {
	var (
		downgrade *shared.DowngradeError
		migration *shared.MigrationError
		drift     *shared.SchemaDriftError
		integrity *shared.IntegrityError
	)

	switch {
	case errors.As(err, &downgrade):
		logger.Error("database was written by a newer catalogd", "persisted", downgrade.Persisted, "supported", downgrade.Latest)
		logger.Info("upgrade catalogd to open this database; it was left unmodified")
		return exitDowngrade
	case errors.As(err, &migration):
		logger.Error("schema migration failed", "version", migration.Version, "name", migration.Name, "error", migration.Err)
		logger.Info("earlier steps stayed committed; rerun after fixing the cause to resume")
		return exitMigration
	case errors.As(err, &drift):
		logger.Error("database schema has drifted", "version", drift.Version, "table", drift.Table, "reason", drift.Reason)
		logger.Info("the file was changed outside catalogd; restore it from a backup or rebuild it with an import")
		return exitMigration
	case errors.Is(err, shared.ErrImportInProgress):
		logger.Error("another import holds the catalog, try again when it finishes")
		return exitImportBusy
	case errors.As(err, &integrity):
		logger.Error("import rejected", "kind", integrity.Kind, "id", integrity.ID, "reason", integrity.Reason)
		return exitIntegrity
	case errors.Is(err, context.Canceled):
		logger.Warn("interrupted")
		return exitInterrupted
	default:
		logger.Error("application error", "error", err)
		return exitError
	}
}
