package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/desertthunder/catalogd/internal/catalog"
)

// Export reads the catalog into a document. Importing it with every kind marked full reproduces the catalog.
//
// The reads are separate statements, so an import committing meanwhile can show through.
func Export(ctx context.Context, db *catalog.Database) (*Document, error) {
	doc := &Document{}

	images, err := db.ListImages(ctx)
	if err != nil {
		return nil, err
	}
	for _, image := range images {
		doc.Images = append(doc.Images, *image)
	}

	artists, err := db.ListArtists(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	for _, artist := range artists {
		doc.Artists = append(doc.Artists, *artist)

		entries, err := db.ArtistEntries(ctx, artist.ID)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			doc.CatalogEntries = append(doc.CatalogEntries, *entry)
		}
	}
	return doc, nil
}

// WriteDocument encodes doc as indented JSON.
func WriteDocument(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode catalog document: %w", err)
	}
	return nil
}
