package schema

import (
	"context"
	"database/sql"
	"fmt"
)

// Catalog returns the registry for the catalog store.
func Catalog() *Registry {
	return MustRegistry(
		SQLStep(1, "create catalog tables", "0001_create_catalog.sql"),
		SQLStep(2, "create users and notifications", "0002_create_users.sql"),
		SQLStep(3, "create import changelog", "0003_create_import_batches.sql"),
		Step{Version: 4, Name: "rename images.uri to content_ref", Apply: renameImageURI},
		Step{Version: 5, Name: "add release dates and lookup indexes", Apply: addReleaseDates},
	).WithLayout(catalogLayout...)
}

// catalogLayout is the table layout after the last catalog step.
var catalogLayout = []Table{
	{Name: "images", Columns: []Column{
		{"id", "INTEGER", false},
		{"external_id", "TEXT", true},
		{"content_ref", "TEXT", true},
		{"width", "INTEGER", true},
		{"height", "INTEGER", true},
	}},
	{Name: "artists", Columns: []Column{
		{"id", "INTEGER", false},
		{"external_id", "TEXT", true},
		{"name", "TEXT", true},
		{"image_id", "INTEGER", false},
	}},
	{Name: "catalog_entries", Columns: []Column{
		{"id", "INTEGER", false},
		{"external_id", "TEXT", true},
		{"title", "TEXT", true},
		{"artist_id", "INTEGER", true},
		{"image_id", "INTEGER", false},
		{"release_date", "TEXT", false},
	}},
	{Name: "catalog_entry_tracks", Columns: []Column{
		{"entry_id", "INTEGER", true},
		{"position", "INTEGER", true},
		{"track_id", "TEXT", true},
	}},
	{Name: "users", Columns: []Column{
		{"id", "TEXT", false},
		{"handle", "TEXT", true},
		{"created_at", "TIMESTAMP", true},
	}},
	{Name: "notifications", Columns: []Column{
		{"id", "TEXT", false},
		{"user_id", "TEXT", true},
		{"kind", "TEXT", true},
		{"title", "TEXT", true},
		{"body", "TEXT", true},
		{"data", "TEXT", false},
		{"read_at", "TIMESTAMP", false},
		{"created_at", "TIMESTAMP", true},
	}},
	{Name: "import_batches", Columns: []Column{
		{"id", "INTEGER", false},
		{"batch_id", "TEXT", true},
		{"begun_at", "TIMESTAMP", true},
		{"committed_at", "TIMESTAMP", true},
		{"full_kinds", "TEXT", true},
		{"upserted", "TEXT", true},
		{"deleted", "TEXT", true},
	}},
}

const imagesV4 = `
	CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		content_ref TEXT NOT NULL,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0
	)
`

func renameImageURI(ctx context.Context, tx *sql.Tx) error {
	done, err := hasColumn(ctx, tx, "images", "content_ref")
	if err != nil || done {
		return err
	}
	return rebuildTable(ctx, tx, "images", imagesV4,
		"id, external_id, content_ref, width, height",
		"id, external_id, uri, width, height",
	)
}

func addReleaseDates(ctx context.Context, tx *sql.Tx) error {
	if err := addColumnIfAbsent(ctx, tx, "catalog_entries", "release_date", "TEXT"); err != nil {
		return err
	}
	return execScript(ctx, tx, `
		CREATE INDEX IF NOT EXISTS idx_catalog_entries_artist ON catalog_entries(artist_id);
		CREATE INDEX IF NOT EXISTS idx_catalog_entries_image ON catalog_entries(image_id);
		CREATE INDEX IF NOT EXISTS idx_artists_image ON artists(image_id);
		CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);
	`)
}

// hasColumn reports whether table has a column named column.
func hasColumn(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return false, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// addColumnIfAbsent adds column to table unless a previous run already did.
func addColumnIfAbsent(ctx context.Context, tx *sql.Tx, table, column, definition string) error {
	exists, err := hasColumn(ctx, tx, table, column)
	if err != nil || exists {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)); err != nil {
		return fmt.Errorf("failed to add %s.%s: %w", table, column, err)
	}
	return nil
}

// rebuildTable replaces table with one created from createSQL, copying rows across.
//
// createSQL takes the new table name as its only %s verb. selectExprs is evaluated against the old table and must
// line up with columns. Indexes on the old table are dropped with it.
func rebuildTable(ctx context.Context, tx *sql.Tx, table, createSQL, columns, selectExprs string) error {
	tmp := table + "_new"
	stmts := []string{
		fmt.Sprintf(createSQL, tmp),
		fmt.Sprintf("DELETE FROM %s", tmp),
		fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", tmp, columns, selectExprs, table),
		fmt.Sprintf("DROP TABLE %s", table),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", tmp, table),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to rebuild %s: %w", table, err)
		}
	}
	return nil
}
