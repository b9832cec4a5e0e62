// package repositories provides persistence for users and notifications.
package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/catalogd/internal/shared"
)

// notFound converts sql.ErrNoRows into [shared.ErrNotFound] for what and passes other errors through as storage
// failures.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, shared.ErrNotFound)
	}
	return shared.Storage("query "+what, err)
}

// expectAffected fails with [shared.ErrNotFound] when result touched no rows.
func expectAffected(result sql.Result, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", what, shared.ErrNotFound)
	}
	return nil
}
