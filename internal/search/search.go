// package search keeps a full-text index of catalog artists and entries.
//
// The index is derived data: [Index.Rebuild] fills it from the catalog and [Index.Hook] keeps it current by
// applying every committed import.
package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/catalogd/internal/catalog"
	"github.com/desertthunder/catalogd/internal/models"
	"github.com/desertthunder/catalogd/internal/shared"
)

// DefaultLimit caps search results when no limit is given.
const DefaultLimit = 20

// builtKey marks an index that has been filled from the catalog at least once.
var builtKey = []byte("catalogd:built")

// document is what gets indexed for an artist or a catalog entry.
type document struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Name   string `json:"name"`             // artist name or entry title
	Artist string `json:"artist,omitempty"` // owning artist's name, entries only
	Year   string `json:"year,omitempty"`
}

// Hit is one search result.
type Hit struct {
	Kind   models.Kind
	ID     string
	Name   string
	Artist string
	Score  float64
}

// Index wraps a bleve index.
type Index struct {
	index  bleve.Index
	logger *log.Logger
}

// NewIndex opens the index directory at path, creating it when missing. An empty path keeps the index in memory.
func NewIndex(path string, logger *log.Logger) (*Index, error) {
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	var (
		index bleve.Index
		err   error
	)
	switch {
	case path == "":
		index, err = bleve.NewMemOnly(bleve.NewIndexMapping())
	case exists(path):
		index, err = bleve.Open(path)
	default:
		index, err = bleve.New(path, bleve.NewIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open search index: %w", err)
	}
	return &Index{index: index, logger: logger}, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}

// Close closes the index.
func (x *Index) Close() error {
	return x.index.Close()
}

// Count returns the number of indexed documents.
func (x *Index) Count() (int, error) {
	c, err := x.index.DocCount()
	return int(c), err
}

func docID(kind models.Kind, id string) string {
	return kind.String() + ":" + id
}

func artistDoc(a *models.Artist) document {
	return document{Kind: models.KindArtist.String(), ID: a.ID, Name: a.Name}
}

func entryDoc(e *models.CatalogEntry, artistName string) document {
	year, _, _ := strings.Cut(e.ReleaseDate, "-")
	return document{Kind: models.KindCatalogEntry.String(), ID: e.ID, Name: e.Title, Artist: artistName, Year: year}
}

// Rebuild indexes every artist and catalog entry currently stored in db.
func (x *Index) Rebuild(ctx context.Context, db *catalog.Database) error {
	artists, err := db.ListArtists(ctx, 0, 0)
	if err != nil {
		return err
	}

	batch := x.index.NewBatch()
	for _, artist := range artists {
		if err := batch.Index(docID(models.KindArtist, artist.ID), artistDoc(artist)); err != nil {
			return fmt.Errorf("failed to index artist %s: %w", artist.ID, err)
		}

		entries, err := db.ArtistEntries(ctx, artist.ID)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := batch.Index(docID(models.KindCatalogEntry, entry.ID), entryDoc(entry, artist.Name)); err != nil {
				return fmt.Errorf("failed to index catalog entry %s: %w", entry.ID, err)
			}
		}
	}

	size := batch.Size()
	if err := x.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to write search index: %w", err)
	}
	if err := x.index.SetInternal(builtKey, []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
		return fmt.Errorf("failed to mark search index built: %w", err)
	}
	x.logger.Debug("search index rebuilt", "artists", len(artists), "documents", size)
	return nil
}

// Built reports whether [Index.Rebuild] has completed on this index.
func (x *Index) Built() (bool, error) {
	v, err := x.index.GetInternal(builtKey)
	if err != nil {
		return false, fmt.Errorf("failed to read search index marker: %w", err)
	}
	return len(v) > 0, nil
}

// EnsureBuilt rebuilds the index from db unless it has been built before.
func (x *Index) EnsureBuilt(ctx context.Context, db *catalog.Database) error {
	built, err := x.Built()
	if err != nil || built {
		return err
	}
	return x.Rebuild(ctx, db)
}

// Apply brings the index in line with a committed import.
//
// Upserted artists also re-index their entries so a renamed artist is found through its albums.
func (x *Index) Apply(ctx context.Context, db *catalog.Database, result *catalog.ImportResult) error {
	batch := x.index.NewBatch()
	entries := map[string]bool{}

	for _, id := range result.Upserted[models.KindArtist] {
		artist, err := db.Artist(ctx, id)
		if err != nil {
			return err
		}
		if err := batch.Index(docID(models.KindArtist, id), artistDoc(artist)); err != nil {
			return fmt.Errorf("failed to index artist %s: %w", id, err)
		}

		owned, err := db.ArtistEntries(ctx, id)
		if err != nil {
			return err
		}
		for _, entry := range owned {
			if err := batch.Index(docID(models.KindCatalogEntry, entry.ID), entryDoc(entry, artist.Name)); err != nil {
				return fmt.Errorf("failed to index catalog entry %s: %w", entry.ID, err)
			}
			entries[entry.ID] = true
		}
	}

	for _, id := range result.Upserted[models.KindCatalogEntry] {
		if entries[id] {
			continue
		}
		entry, err := db.CatalogEntry(ctx, id)
		if err != nil {
			return err
		}
		artist, err := db.Artist(ctx, entry.ArtistID)
		if err != nil {
			return err
		}
		if err := batch.Index(docID(models.KindCatalogEntry, id), entryDoc(entry, artist.Name)); err != nil {
			return fmt.Errorf("failed to index catalog entry %s: %w", id, err)
		}
	}

	for _, kind := range []models.Kind{models.KindArtist, models.KindCatalogEntry} {
		for _, id := range result.Deleted[kind] {
			batch.Delete(docID(kind, id))
		}
	}

	if err := x.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to write search index: %w", err)
	}
	return nil
}

// Hook returns a commit hook that applies each committed import to the index. Failures are logged; the import
// itself has already committed.
func (x *Index) Hook(db *catalog.Database) catalog.CommitHook {
	return func(result *catalog.ImportResult) {
		if err := x.Apply(context.Background(), db, result); err != nil {
			x.logger.Warn("failed to update search index", "batch", result.BatchID, "error", err)
		}
	}
}

// Search runs a bleve query string (for example "artist:beatles year:1969") and returns up to limit hits.
// An empty input matches everything.
func (x *Index) Search(input string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	var q query.Query
	if strings.TrimSpace(input) == "" {
		q = bleve.NewMatchAllQuery()
	} else {
		q = bleve.NewQueryStringQuery(input)
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"kind", "id", "name", "artist"}

	res, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("%w: search failed: %v", shared.ErrInvalidInput, err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		str := func(f string) string {
			s, _ := h.Fields[f].(string)
			return s
		}
		hits = append(hits, Hit{
			Kind:   models.Kind(str("kind")),
			ID:     str("id"),
			Name:   str("name"),
			Artist: str("artist"),
			Score:  h.Score,
		})
	}
	return hits, nil
}
