package schema

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/catalogd/internal/shared"
)

func setupTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "catalog.db")
	db, err := shared.NewDatabase(path, 0)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, path
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()

	var exists bool
	err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?)", name).Scan(&exists)
	if err != nil {
		t.Fatalf("failed to look up table %s: %v", name, err)
	}
	return exists
}

func columnExists(t *testing.T, db *sql.DB, table, column string) bool {
	t.Helper()

	var exists bool
	err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM pragma_table_info(?) WHERE name = ?)", table, column).Scan(&exists)
	if err != nil {
		t.Fatalf("failed to inspect %s: %v", table, err)
	}
	return exists
}

func schemaSQL(t *testing.T, db *sql.DB) string {
	t.Helper()

	var s string
	if err := db.QueryRow("SELECT group_concat(sql, ';') FROM (SELECT sql FROM sqlite_master ORDER BY name)").Scan(&s); err != nil {
		t.Fatalf("failed to read schema: %v", err)
	}
	return s
}

func TestReadVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh database is version 0 and stays untouched", func(t *testing.T) {
		db, _ := setupTestDB(t)

		v, err := ReadVersion(ctx, db)
		if err != nil {
			t.Fatalf("ReadVersion() error = %v", err)
		}
		if v != 0 {
			t.Errorf("expected version 0, got %d", v)
		}
		if tableExists(t, db, "schema_meta") {
			t.Error("ReadVersion should not create schema_meta")
		}
	})

	t.Run("reads the recorded version", func(t *testing.T) {
		db, _ := setupTestDB(t)
		if _, _, err := Migrate(ctx, db, Catalog().Until(2), nil); err != nil {
			t.Fatalf("Migrate() error = %v", err)
		}

		v, err := ReadVersion(ctx, db)
		if err != nil {
			t.Fatalf("ReadVersion() error = %v", err)
		}
		if v != 2 {
			t.Errorf("expected version 2, got %d", v)
		}
	})
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh database reaches latest", func(t *testing.T) {
		db, _ := setupTestDB(t)

		from, to, err := Migrate(ctx, db, Catalog(), nil)
		if err != nil {
			t.Fatalf("Migrate() error = %v", err)
		}
		if from != 0 || to != 5 {
			t.Errorf("expected 0 -> 5, got %d -> %d", from, to)
		}

		for _, table := range []string{
			"images", "artists", "catalog_entries", "catalog_entry_tracks",
			"users", "notifications", "import_batches", "schema_meta",
		} {
			if !tableExists(t, db, table) {
				t.Errorf("expected table %s", table)
			}
		}

		if !columnExists(t, db, "images", "content_ref") || columnExists(t, db, "images", "uri") {
			t.Error("expected images.uri to be renamed to content_ref")
		}
		if !columnExists(t, db, "catalog_entries", "release_date") {
			t.Error("expected catalog_entries.release_date")
		}
		if tableExists(t, db, "images_new") {
			t.Error("rebuild table left behind")
		}

		var fk int
		if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
			t.Fatalf("failed to read foreign_keys: %v", err)
		}
		if fk != 1 {
			t.Error("expected foreign keys enforced after migration")
		}
	})

	t.Run("second run changes nothing", func(t *testing.T) {
		db, _ := setupTestDB(t)
		if _, _, err := Migrate(ctx, db, Catalog(), nil); err != nil {
			t.Fatalf("first Migrate() error = %v", err)
		}
		before := schemaSQL(t, db)

		from, to, err := Migrate(ctx, db, Catalog(), nil)
		if err != nil {
			t.Fatalf("second Migrate() error = %v", err)
		}
		if from != 5 || to != 5 {
			t.Errorf("expected 5 -> 5, got %d -> %d", from, to)
		}
		if after := schemaSQL(t, db); after != before {
			t.Errorf("schema changed on second run:\nbefore: %s\nafter:  %s", before, after)
		}
	})

	t.Run("intermediate version keeps its data", func(t *testing.T) {
		db, _ := setupTestDB(t)
		if _, _, err := Migrate(ctx, db, Catalog().Until(3), nil); err != nil {
			t.Fatalf("Migrate() to 3 error = %v", err)
		}

		if _, err := db.Exec("INSERT INTO images (id, external_id, uri, width, height) VALUES (7, 'i1', 'blob://i1', 640, 480)"); err != nil {
			t.Fatalf("failed to seed image: %v", err)
		}
		if _, err := db.Exec("INSERT INTO artists (id, external_id, name, image_id) VALUES (3, 'a1', 'Artist', 7)"); err != nil {
			t.Fatalf("failed to seed artist: %v", err)
		}
		if _, err := db.Exec("INSERT INTO catalog_entries (external_id, title, artist_id, image_id) VALUES ('c1', 'Album', 3, 7)"); err != nil {
			t.Fatalf("failed to seed entry: %v", err)
		}

		from, to, err := Migrate(ctx, db, Catalog(), nil)
		if err != nil {
			t.Fatalf("Migrate() to latest error = %v", err)
		}
		if from != 3 || to != 5 {
			t.Errorf("expected 3 -> 5, got %d -> %d", from, to)
		}

		var (
			rowID      int64
			contentRef string
			width      int
		)
		err = db.QueryRow("SELECT id, content_ref, width FROM images WHERE external_id = 'i1'").Scan(&rowID, &contentRef, &width)
		if err != nil {
			t.Fatalf("failed to read migrated image: %v", err)
		}
		if rowID != 7 || contentRef != "blob://i1" || width != 640 {
			t.Errorf("image not preserved: id=%d content_ref=%s width=%d", rowID, contentRef, width)
		}

		var artist string
		err = db.QueryRow(`
			SELECT a.external_id FROM catalog_entries c
			JOIN artists a ON a.id = c.artist_id
			JOIN images i ON i.id = c.image_id
			WHERE c.external_id = 'c1'
		`).Scan(&artist)
		if err != nil || artist != "a1" {
			t.Errorf("expected entry to still resolve artist a1, got %q (%v)", artist, err)
		}

		rows, err := db.Query("PRAGMA foreign_key_check")
		if err != nil {
			t.Fatalf("foreign_key_check error = %v", err)
		}
		defer rows.Close()
		if rows.Next() {
			t.Error("expected no foreign key violations after rebuild")
		}
	})

	t.Run("downgrade fails and leaves the file unmodified", func(t *testing.T) {
		db, path := setupTestDB(t)
		if _, _, err := Migrate(ctx, db, Catalog(), nil); err != nil {
			t.Fatalf("Migrate() error = %v", err)
		}
		if _, err := db.Exec("UPDATE schema_meta SET version = 9"); err != nil {
			t.Fatalf("failed to bump version: %v", err)
		}
		db.Close()

		before, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read database file: %v", err)
		}

		db, err = shared.NewDatabase(path, 0)
		if err != nil {
			t.Fatalf("failed to reopen: %v", err)
		}
		_, _, err = Migrate(ctx, db, Catalog(), nil)
		db.Close()

		if !errors.Is(err, shared.ErrDowngradeNotSupported) {
			t.Fatalf("expected ErrDowngradeNotSupported, got %v", err)
		}
		var de *shared.DowngradeError
		if !errors.As(err, &de) || de.Persisted != 9 || de.Latest != 5 {
			t.Errorf("unexpected downgrade details: %+v", de)
		}

		after, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read database file: %v", err)
		}
		if !bytes.Equal(before, after) {
			t.Error("database file changed after a rejected downgrade")
		}
	})

	t.Run("failed step keeps the previous version and can resume", func(t *testing.T) {
		db, _ := setupTestDB(t)
		boom := errors.New("boom")

		first := Step{1, "create a", func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, "CREATE TABLE a (id INTEGER PRIMARY KEY)")
			return err
		}}
		broken := Step{2, "create b then fail", func(ctx context.Context, tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, "CREATE TABLE b (id INTEGER PRIMARY KEY)"); err != nil {
				return err
			}
			return boom
		}}

		_, to, err := Migrate(ctx, db, MustRegistry(first, broken), nil)
		if !errors.Is(err, shared.ErrMigrationFailed) || !errors.Is(err, boom) {
			t.Fatalf("expected MigrationFailed wrapping the cause, got %v", err)
		}
		var me *shared.MigrationError
		if !errors.As(err, &me) || me.Version != 2 {
			t.Errorf("expected failure at step 2, got %+v", me)
		}
		if to != 1 {
			t.Errorf("expected to report version 1, got %d", to)
		}

		if v, _ := ReadVersion(ctx, db); v != 1 {
			t.Errorf("expected persisted version 1, got %d", v)
		}
		if tableExists(t, db, "b") {
			t.Error("failed step left table b behind")
		}

		fixed := Step{2, "create b", func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS b (id INTEGER PRIMARY KEY)")
			return err
		}}
		from, to, err := Migrate(ctx, db, MustRegistry(first, fixed), nil)
		if err != nil {
			t.Fatalf("resumed Migrate() error = %v", err)
		}
		if from != 1 || to != 2 || !tableExists(t, db, "b") {
			t.Errorf("expected resume 1 -> 2 with table b, got %d -> %d", from, to)
		}
	})

	t.Run("step leaving dangling references is rejected", func(t *testing.T) {
		db, _ := setupTestDB(t)

		dangling := Step{6, "orphan artist", func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, "INSERT INTO artists (external_id, name, image_id) VALUES ('a1', 'Orphan', 404)")
			return err
		}}
		registry := MustRegistry(append(Catalog().Steps(), dangling)...)

		_, to, err := Migrate(ctx, db, registry, nil)
		var me *shared.MigrationError
		if !errors.As(err, &me) || me.Version != 6 {
			t.Fatalf("expected failure at step 6, got %v", err)
		}
		if to != 5 {
			t.Errorf("expected database left at 5, got %d", to)
		}

		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM artists").Scan(&n); err != nil {
			t.Fatalf("failed to count artists: %v", err)
		}
		if n != 0 {
			t.Errorf("expected rolled back insert, found %d artists", n)
		}
	})

	t.Run("nil registry is rejected", func(t *testing.T) {
		db, _ := setupTestDB(t)

		if _, _, err := Migrate(ctx, db, nil, nil); !errors.Is(err, shared.ErrInvalidRegistry) {
			t.Errorf("expected ErrInvalidRegistry, got %v", err)
		}
		if tableExists(t, db, "schema_meta") {
			t.Error("rejected migration touched the database")
		}
	})
}

func TestValidate(t *testing.T) {
	ctx := context.Background()

	migrated := func(t *testing.T) *sql.DB {
		t.Helper()
		db, _ := setupTestDB(t)
		if _, _, err := Migrate(ctx, db, Catalog(), nil); err != nil {
			t.Fatalf("Migrate() error = %v", err)
		}
		return db
	}

	expectDrift := func(t *testing.T, err error, table string) {
		t.Helper()
		var drift *shared.SchemaDriftError
		if !errors.As(err, &drift) {
			t.Fatalf("expected SchemaDriftError, got %v", err)
		}
		if drift.Table != table || drift.Version != 5 {
			t.Errorf("expected drift in %s at version 5, got %+v", table, drift)
		}
		if !errors.Is(err, shared.ErrSchemaDrift) {
			t.Error("expected ErrSchemaDrift")
		}
	}

	t.Run("freshly migrated catalog matches its layout", func(t *testing.T) {
		db := migrated(t)
		if err := Validate(ctx, db, 5, Catalog().Layout()); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("missing column", func(t *testing.T) {
		db := migrated(t)
		if _, err := db.Exec("ALTER TABLE catalog_entries DROP COLUMN release_date"); err != nil {
			t.Fatalf("failed to drop column: %v", err)
		}

		_, _, err := Migrate(ctx, db, Catalog(), nil)
		expectDrift(t, err, "catalog_entries")
	})

	t.Run("column with the wrong type", func(t *testing.T) {
		db := migrated(t)
		if _, err := db.Exec(`
			DROP TABLE import_batches;
			CREATE TABLE import_batches (
				id INTEGER PRIMARY KEY,
				batch_id TEXT NOT NULL UNIQUE,
				begun_at TIMESTAMP NOT NULL,
				committed_at TEXT NOT NULL,
				full_kinds TEXT NOT NULL DEFAULT '',
				upserted TEXT NOT NULL DEFAULT '{}',
				deleted TEXT NOT NULL DEFAULT '{}'
			);
		`); err != nil {
			t.Fatalf("failed to replace table: %v", err)
		}

		_, _, err := Migrate(ctx, db, Catalog(), nil)
		expectDrift(t, err, "import_batches")
		if !strings.Contains(err.Error(), "committed_at") {
			t.Errorf("expected column name in %v", err)
		}
	})

	t.Run("nullability and missing tables", func(t *testing.T) {
		db := migrated(t)
		layout := []Table{
			{Name: "users", Columns: []Column{
				{"id", "TEXT", true},
				{"handle", "TEXT", true},
				{"created_at", "TIMESTAMP", true},
			}},
		}
		expectDrift(t, Validate(ctx, db, 5, layout), "users")

		missing := []Table{{Name: "playlists", Columns: []Column{{"id", "INTEGER", false}}}}
		expectDrift(t, Validate(ctx, db, 5, missing), "playlists")
	})

	t.Run("intermediate versions are not checked", func(t *testing.T) {
		db, _ := setupTestDB(t)
		if _, _, err := Migrate(ctx, db, Catalog().Until(3), nil); err != nil {
			t.Errorf("Migrate() to 3 error = %v", err)
		}
	})
}
