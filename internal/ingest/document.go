package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/desertthunder/catalogd/internal/catalog"
	"github.com/desertthunder/catalogd/internal/models"
	"github.com/desertthunder/catalogd/internal/shared"
)

// Document is a set of catalog changes.
type Document struct {
	Images         []models.Image           `json:"images,omitempty"`
	Artists        []models.Artist          `json:"artists,omitempty"`
	CatalogEntries []models.CatalogEntry    `json:"catalog_entries,omitempty"`
	Deleted        map[models.Kind][]string `json:"deleted,omitempty"`
}

// Len returns the number of changes in the document.
func (d *Document) Len() int {
	n := len(d.Images) + len(d.Artists) + len(d.CatalogEntries)
	for _, ids := range d.Deleted {
		n += len(ids)
	}
	return n
}

// ReadDocument decodes a JSON document and normalizes the kinds of its deletions.
func ReadDocument(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: failed to decode catalog document: %v", shared.ErrInvalidInput, err)
	}
	if err := doc.normalize(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ReadDocumentFile reads a JSON document from path.
func ReadDocumentFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog document: %w", err)
	}
	defer f.Close()
	return ReadDocument(f)
}

// normalize rewrites deletion kinds such as "albums" to their canonical [models.Kind].
func (d *Document) normalize() error {
	if len(d.Deleted) == 0 {
		return nil
	}
	deleted := make(map[models.Kind][]string, len(d.Deleted))
	for raw, ids := range d.Deleted {
		kind, err := models.ParseKind(string(raw))
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
		deleted[kind] = append(deleted[kind], ids...)
	}
	d.Deleted = deleted
	return nil
}

// Load buffers every change of doc into tx. Deletions are buffered last so a document that both upserts and
// deletes an id removes it.
func Load(tx *catalog.ImportTransaction, doc *Document) error {
	for _, image := range doc.Images {
		if err := tx.UpsertImage(image); err != nil {
			return err
		}
	}
	for _, artist := range doc.Artists {
		if err := tx.UpsertArtist(artist); err != nil {
			return err
		}
	}
	for _, entry := range doc.CatalogEntries {
		if err := tx.UpsertCatalogEntry(entry); err != nil {
			return err
		}
	}
	for _, kind := range models.Kinds {
		for _, id := range doc.Deleted[kind] {
			if err := tx.Delete(kind, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Apply commits doc as a single batch.
func Apply(ctx context.Context, db *catalog.Database, doc *Document, opts catalog.ImportOptions) (*catalog.ImportResult, error) {
	tx, err := db.BeginImport(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := Load(tx, doc); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return tx.Commit(ctx)
}

// ReadPage decodes one JSON feed page.
func ReadPage(r io.Reader) (*Page, error) {
	var page Page
	if err := json.NewDecoder(r).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: failed to decode feed page: %v", shared.ErrInvalidInput, err)
	}
	if err := page.normalize(); err != nil {
		return nil, err
	}
	return &page, nil
}
