package models

import (
	"fmt"
	"strings"
	"time"
)

// Artist is a catalog artist.
type Artist struct {
	RowID   int64  `json:"-"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	ImageID string `json:"image_id,omitempty"` // optional portrait
}

// Validate checks the artist's required fields.
func (a *Artist) Validate() error {
	if err := required("id", a.ID); err != nil {
		return err
	}
	if err := required("name", a.Name); err != nil {
		return err
	}
	if a.ImageID != "" {
		return required("image_id", a.ImageID)
	}
	return nil
}

// CatalogEntry is an album/release-level record belonging to an artist.
type CatalogEntry struct {
	RowID       int64    `json:"-"`
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	ArtistID    string   `json:"artist_id"`
	TrackIDs    []string `json:"track_ids,omitempty"`
	ImageID     string   `json:"image_id,omitempty"`
	ReleaseDate string   `json:"release_date,omitempty"` // 2023-05-15, 2023-05 or 2023
}

// Validate checks the entry's required fields and track references.
//
// It does not check that ArtistID or ImageID exist.
func (c *CatalogEntry) Validate() error {
	if err := required("id", c.ID); err != nil {
		return err
	}
	if err := required("title", c.Title); err != nil {
		return err
	}
	if err := required("artist_id", c.ArtistID); err != nil {
		return err
	}
	if c.ImageID != "" {
		if err := required("image_id", c.ImageID); err != nil {
			return err
		}
	}
	for i, track := range c.TrackIDs {
		if strings.TrimSpace(track) == "" {
			return &FieldError{Field: fmt.Sprintf("track_ids[%d]", i), Reason: "is required"}
		}
	}
	if c.ReleaseDate != "" && !validReleaseDate(c.ReleaseDate) {
		return &FieldError{Field: "release_date", Reason: "must be YYYY, YYYY-MM or YYYY-MM-DD"}
	}
	return nil
}

func validReleaseDate(s string) bool {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// Image is a piece of artwork referenced by artists and catalog entries.
type Image struct {
	RowID      int64  `json:"-"`
	ID         string `json:"id"`
	ContentRef string `json:"content_ref"` // URL or blob key of the image content
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// Validate checks the image's content reference and dimensions.
func (i *Image) Validate() error {
	if err := required("id", i.ID); err != nil {
		return err
	}
	if err := required("content_ref", i.ContentRef); err != nil {
		return err
	}
	if i.Width < 0 {
		return &FieldError{Field: "width", Reason: fmt.Sprintf("must be non-negative, got %d", i.Width)}
	}
	if i.Height < 0 {
		return &FieldError{Field: "height", Reason: fmt.Sprintf("must be non-negative, got %d", i.Height)}
	}
	return nil
}

// ImportRecord is the changelog row written by every committed import.
type ImportRecord struct {
	BatchID     string
	BegunAt     time.Time
	CommittedAt time.Time
	Full        []Kind
	Upserted    map[Kind]int
	Deleted     map[Kind]int
}

// Counts holds the number of stored rows per kind.
type Counts struct {
	Artists        int `json:"artists"`
	CatalogEntries int `json:"catalog_entries"`
	Images         int `json:"images"`
}
