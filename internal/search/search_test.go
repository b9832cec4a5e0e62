package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/desertthunder/catalogd/internal/catalog"
	"github.com/desertthunder/catalogd/internal/models"
	"github.com/desertthunder/catalogd/internal/schema"
)

func setupTestDB(t *testing.T) *catalog.Database {
	t.Helper()

	db, err := catalog.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"), schema.Catalog(), catalog.Options{})
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setupIndex(t *testing.T) *Index {
	t.Helper()

	index, err := NewIndex("", nil)
	if err != nil {
		t.Fatalf("failed to create index: %v", err)
	}
	t.Cleanup(func() { index.Close() })
	return index
}

func importBatch(t *testing.T, db *catalog.Database, opts catalog.ImportOptions, fill func(tx *catalog.ImportTransaction) error) {
	t.Helper()

	tx, err := db.BeginImport(context.Background(), opts)
	if err != nil {
		t.Fatalf("failed to begin import: %v", err)
	}
	defer tx.Rollback()

	if err := fill(tx); err != nil {
		t.Fatalf("failed to buffer changes: %v", err)
	}
	if _, err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
}

func ids(hits []Hit) map[string]bool {
	out := map[string]bool{}
	for _, h := range hits {
		out[h.ID] = true
	}
	return out
}

func TestIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("Rebuild", func(t *testing.T) {
		db := setupTestDB(t)
		importBatch(t, db, catalog.ImportOptions{}, func(tx *catalog.ImportTransaction) error {
			if err := tx.UpsertArtist(models.Artist{ID: "a1", Name: "Miles Davis"}); err != nil {
				return err
			}
			return tx.UpsertCatalogEntry(models.CatalogEntry{ID: "c1", Title: "Kind of Blue", ArtistID: "a1", ReleaseDate: "1959-08-17"})
		})

		index := setupIndex(t)
		if err := index.Rebuild(ctx, db); err != nil {
			t.Fatalf("Rebuild() error = %v", err)
		}

		if n, _ := index.Count(); n != 2 {
			t.Errorf("expected 2 documents, got %d", n)
		}

		hits, err := index.Search("blue", 0)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(hits) != 1 || hits[0].ID != "c1" || hits[0].Kind != models.KindCatalogEntry || hits[0].Artist != "Miles Davis" {
			t.Errorf("unexpected hits: %+v", hits)
		}

		hits, err = index.Search("year:1959", 0)
		if err != nil || len(hits) != 1 {
			t.Errorf("expected field query to match, got %+v (%v)", hits, err)
		}
	})

	t.Run("Hook follows imports", func(t *testing.T) {
		db := setupTestDB(t)
		index := setupIndex(t)
		db.OnCommit(index.Hook(db))

		importBatch(t, db, catalog.ImportOptions{}, func(tx *catalog.ImportTransaction) error {
			if err := tx.UpsertArtist(models.Artist{ID: "a1", Name: "Nina Simone"}); err != nil {
				return err
			}
			if err := tx.UpsertArtist(models.Artist{ID: "a2", Name: "Chet Baker"}); err != nil {
				return err
			}
			return tx.UpsertCatalogEntry(models.CatalogEntry{ID: "c1", Title: "Pastel Blues", ArtistID: "a1"})
		})

		if got := ids(mustSearch(t, index, "nina")); !got["a1"] || !got["c1"] {
			t.Errorf("expected artist and entry for nina, got %v", got)
		}

		importBatch(t, db, catalog.ImportOptions{}, func(tx *catalog.ImportTransaction) error {
			return tx.UpsertArtist(models.Artist{ID: "a1", Name: "Eunice Waymon"})
		})
		if got := ids(mustSearch(t, index, "eunice")); !got["c1"] {
			t.Errorf("expected entry re-indexed under renamed artist, got %v", got)
		}

		importBatch(t, db, catalog.ImportOptions{Full: []models.Kind{models.KindCatalogEntry}}, func(*catalog.ImportTransaction) error {
			return nil
		})
		if got := ids(mustSearch(t, index, "pastel")); got["c1"] {
			t.Errorf("expected pruned entry removed from index, got %v", got)
		}
	})

	t.Run("empty query matches all", func(t *testing.T) {
		db := setupTestDB(t)
		index := setupIndex(t)
		importBatch(t, db, catalog.ImportOptions{}, func(tx *catalog.ImportTransaction) error {
			return tx.UpsertArtist(models.Artist{ID: "a1", Name: "Someone"})
		})
		if err := index.Rebuild(ctx, db); err != nil {
			t.Fatalf("Rebuild() error = %v", err)
		}
		if hits := mustSearch(t, index, ""); len(hits) != 1 {
			t.Errorf("expected 1 hit, got %d", len(hits))
		}
	})

	t.Run("EnsureBuilt fills a new index once", func(t *testing.T) {
		db := setupTestDB(t)
		importBatch(t, db, catalog.ImportOptions{}, func(tx *catalog.ImportTransaction) error {
			return tx.UpsertArtist(models.Artist{ID: "a1", Name: "Alice Coltrane"})
		})

		path := filepath.Join(t.TempDir(), "catalog.bleve")
		index, err := NewIndex(path, nil)
		if err != nil {
			t.Fatalf("NewIndex() error = %v", err)
		}
		if built, err := index.Built(); err != nil || built {
			t.Fatalf("expected new index to be unbuilt, got %t (%v)", built, err)
		}
		db.OnCommit(index.Hook(db))
		if err := index.EnsureBuilt(ctx, db); err != nil {
			t.Fatalf("EnsureBuilt() error = %v", err)
		}

		importBatch(t, db, catalog.ImportOptions{}, func(tx *catalog.ImportTransaction) error {
			return tx.UpsertArtist(models.Artist{ID: "a2", Name: "Pharoah Sanders"})
		})
		if got := ids(mustSearch(t, index, "alice")); !got["a1"] {
			t.Errorf("expected earlier artist indexed, got %v", got)
		}
		index.Close()

		reopened, err := NewIndex(path, nil)
		if err != nil {
			t.Fatalf("failed to reopen index: %v", err)
		}
		defer reopened.Close()
		if built, err := reopened.Built(); err != nil || !built {
			t.Errorf("expected reopened index to stay built, got %t (%v)", built, err)
		}
		if got := ids(mustSearch(t, reopened, "pharoah")); !got["a2"] {
			t.Errorf("expected hooked artist indexed, got %v", got)
		}
	})

	t.Run("persistent index", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.bleve")
		index, err := NewIndex(path, nil)
		if err != nil {
			t.Fatalf("NewIndex() error = %v", err)
		}
		index.Close()

		reopened, err := NewIndex(path, nil)
		if err != nil {
			t.Fatalf("failed to reopen index: %v", err)
		}
		reopened.Close()
	})
}

func mustSearch(t *testing.T, index *Index, q string) []Hit {
	t.Helper()

	hits, err := index.Search(q, 0)
	if err != nil {
		t.Fatalf("Search(%q) error = %v", q, err)
	}
	return hits
}
