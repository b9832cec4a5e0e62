package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrMissingConfig = errors.New("configuration not found")
	ErrInvalidConfig = errors.New("invalid configuration")

	// Schema errors
	ErrInvalidRegistry       = errors.New("invalid schema registry")
	ErrDowngradeNotSupported = errors.New("database schema is newer than this binary supports")
	ErrMigrationFailed       = errors.New("schema migration failed")
	ErrSchemaDrift           = errors.New("database schema does not match the declared layout")

	// Import errors
	ErrImportInProgress   = errors.New("another import is in progress")
	ErrIntegrityViolation = errors.New("integrity violation")
	ErrTransactionDone    = errors.New("import transaction already finished")

	// Storage errors
	ErrStorageIO = errors.New("storage I/O failure")
	ErrNotFound  = errors.New("not found")

	// Input validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingArgument = errors.New("missing required argument")
	ErrInvalidArgument = errors.New("invalid argument")

	// Upstream feed errors
	ErrAPIRequest         = errors.New("API request failed")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// DowngradeError reports a persisted schema version the registry does not know about.
type DowngradeError struct {
	Persisted int
	Latest    int
}

func (e *DowngradeError) Error() string {
	return fmt.Sprintf("%v: persisted version %d, latest known %d", ErrDowngradeNotSupported, e.Persisted, e.Latest)
}

func (e *DowngradeError) Unwrap() error { return ErrDowngradeNotSupported }

// MigrationError reports the step that failed while upgrading a database.
//
// The database stays at Version-1.
type MigrationError struct {
	Version int
	Name    string
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("%v: step %d (%s): %v", ErrMigrationFailed, e.Version, e.Name, e.Err)
}

// Unwrap exposes both the failure kind and its cause.
func (e *MigrationError) Unwrap() []error { return []error{ErrMigrationFailed, e.Err} }

// SchemaDriftError reports a table whose live columns differ from the layout declared for the latest version.
type SchemaDriftError struct {
	Version int
	Table   string
	Reason  string
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf("%v: version %d, table %s: %s", ErrSchemaDrift, e.Version, e.Table, e.Reason)
}

func (e *SchemaDriftError) Unwrap() error { return ErrSchemaDrift }

// IntegrityError reports the entity that aborted an import.
type IntegrityError struct {
	Kind   string
	ID     string
	Reason string
}

func (e *IntegrityError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%v: %s %q", ErrIntegrityViolation, e.Kind, e.ID)
	}
	return fmt.Sprintf("%v: %s %q: %s", ErrIntegrityViolation, e.Kind, e.ID, e.Reason)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrityViolation }

// StorageError wraps an underlying read or write failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrStorageIO, e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorageIO, e.Err} }

// Storage wraps err as a [StorageError] for op, passing nil and already-typed errors through.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
