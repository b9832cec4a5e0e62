package shared

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultBusyTimeout is the busy timeout in milliseconds used when none is configured.
const DefaultBusyTimeout = 5000

// DSN builds a go-sqlite3 connection string for path.
//
// Every connection enforces foreign keys and waits busyTimeout milliseconds on a locked database.
// Transactions start with BEGIN IMMEDIATE so a writer holds the reserved lock from its first statement.
// The journal mode is left alone; callers switch to WAL once the file has been validated.
func DSN(path string, busyTimeout int) string {
	if busyTimeout <= 0 {
		busyTimeout = DefaultBusyTimeout
	}
	params := url.Values{}
	params.Set("_foreign_keys", "1")
	params.Set("_busy_timeout", fmt.Sprint(busyTimeout))
	params.Set("_txlock", "immediate")

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + params.Encode()
	}
	return "file:" + path + "?" + params.Encode()
}

// NewDatabase opens a connection to a SQLite database at the specified path.
// Returns an open database connection or an error if connection fails.
func NewDatabase(path string, busyTimeout int) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", DSN(path, busyTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ConfigureDatabase sets connection pool settings for the database.
// Recommended for production use to limit connections and improve performance.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
}

// EnableWAL switches the database to write-ahead logging so readers keep a consistent snapshot while a writer commits.
func EnableWAL(db *sql.DB) error {
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode = WAL").Scan(&mode); err != nil {
		return fmt.Errorf("failed to enable WAL: %w", err)
	}
	return nil
}
