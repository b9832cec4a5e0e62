// package models defines the data model for the catalog store
package models

import (
	"fmt"
	"strings"
)

// Validator is implemented by every entity that can check its own fields.
type Validator interface {
	Validate() error // Validate checks if the model's data is valid and returns an error if not
}

// Kind names a catalog entity kind.
type Kind string

const (
	KindArtist       Kind = "artist"
	KindCatalogEntry Kind = "catalog_entry"
	KindImage        Kind = "image"
)

// Kinds lists every catalog entity kind in dependency order: images have no references, artists reference images,
// catalog entries reference both.
var Kinds = []Kind{KindImage, KindArtist, KindCatalogEntry}

func (k Kind) String() string { return string(k) }

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindArtist, KindCatalogEntry, KindImage:
		return true
	default:
		return false
	}
}

// ParseKind converts user input (artist, artists, entry, catalog_entry, album, image...) to a [Kind].
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "artist", "artists":
		return KindArtist, nil
	case "catalog_entry", "catalog_entries", "entry", "entries", "album", "albums":
		return KindCatalogEntry, nil
	case "image", "images":
		return KindImage, nil
	default:
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
}

// FieldError describes a single invalid field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &FieldError{Field: field, Reason: "is required"}
	}
	return nil
}
