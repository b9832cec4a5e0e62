package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catalogd/internal/repositories"
	"github.com/desertthunder/catalogd/internal/schema"
	"github.com/desertthunder/catalogd/internal/shared"
)

// Options configures [Open]. Zero values fall back to driver defaults.
type Options struct {
	Logger        *log.Logger
	MaxOpenConns  int
	MaxIdleConns  int
	BusyTimeoutMS int
}

// CommitHook runs after an import commits.
type CommitHook func(result *ImportResult)

// Database is an open, fully migrated catalog store.
type Database struct {
	db      *sql.DB
	logger  *log.Logger
	writer  *writerGuard
	version int

	mu    sync.RWMutex
	hooks []CommitHook
}

// Open opens the SQLite file at path and migrates it with registry.
//
// Migration, downgrade and layout failures close the handle and are returned as is, so callers can match
// [shared.ErrDowngradeNotSupported], [shared.ErrMigrationFailed] and [shared.ErrSchemaDrift].
func Open(ctx context.Context, path string, registry *schema.Registry, opts Options) (*Database, error) {
	if registry == nil {
		return nil, fmt.Errorf("%w: no registry", shared.ErrInvalidRegistry)
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	db, err := shared.NewDatabase(path, opts.BusyTimeoutMS)
	if err != nil {
		return nil, shared.Storage("open database", err)
	}
	shared.ConfigureDatabase(db, opts.MaxOpenConns, opts.MaxIdleConns)

	from, to, err := schema.Migrate(ctx, db, registry, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	if from != to {
		logger.Info("database migrated", "path", path, "from", from, "to", to)
	}

	if err := shared.EnableWAL(db); err != nil {
		db.Close()
		return nil, shared.Storage("enable WAL", err)
	}

	return &Database{
		db:      db,
		logger:  logger,
		writer:  newWriterGuard(),
		version: to,
	}, nil
}

// Close closes the underlying handle.
func (d *Database) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Version returns the schema version the database was migrated to at open time.
func (d *Database) Version() int {
	return d.version
}

// OnCommit registers hook to run after every successful import commit, in registration order.
func (d *Database) OnCommit(hook CommitHook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, hook)
}

func (d *Database) runHooks(result *ImportResult) {
	d.mu.RLock()
	hooks := make([]CommitHook, len(d.hooks))
	copy(hooks, d.hooks)
	d.mu.RUnlock()

	for _, hook := range hooks {
		hook(result)
	}
}

// Users returns the user store backed by this database.
func (d *Database) Users() *repositories.UserRepository {
	return repositories.NewUserRepository(d.db)
}

// Notifications returns the notification store backed by this database.
func (d *Database) Notifications() *repositories.NotificationRepository {
	return repositories.NewNotificationRepository(d.db)
}
