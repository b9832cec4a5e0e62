package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/catalogd/internal/models"
	"github.com/desertthunder/catalogd/internal/shared"
)

// selectEntry reads an entry and its ordered track ids in one statement. Tracks come back as a JSON array.
const selectEntry = `
	SELECT c.id, c.external_id, c.title, a.external_id, i.external_id, c.release_date,
		(SELECT json_group_array(t.track_id ORDER BY t.position)
		 FROM catalog_entry_tracks t WHERE t.entry_id = c.id)
	FROM catalog_entries c
	JOIN artists a ON a.id = c.artist_id
	LEFT JOIN images i ON i.id = c.image_id
`

const selectArtist = `
	SELECT a.id, a.external_id, a.name, i.external_id
	FROM artists a
	LEFT JOIN images i ON i.id = a.image_id
`

type scanner interface {
	Scan(dest ...any) error
}

func lookupError(err error, kind models.Kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %q: %w", kind, id, shared.ErrNotFound)
	}
	return shared.Storage("read "+kind.String()+" "+id, err)
}

// Artist returns the artist with external id id.
func (d *Database) Artist(ctx context.Context, id string) (*models.Artist, error) {
	row := d.db.QueryRowContext(ctx, selectArtist+" WHERE a.external_id = ?", id)
	artist, err := scanArtist(row)
	if err != nil {
		return nil, lookupError(err, models.KindArtist, id)
	}
	return artist, nil
}

// ListArtists returns artists ordered by name. A non-positive limit returns every artist after offset.
func (d *Database) ListArtists(ctx context.Context, limit, offset int) ([]*models.Artist, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.QueryContext(ctx, selectArtist+" ORDER BY a.name, a.external_id LIMIT ? OFFSET ?", limit, max(offset, 0))
	if err != nil {
		return nil, shared.Storage("list artists", err)
	}
	defer rows.Close()

	var artists []*models.Artist
	for rows.Next() {
		artist, err := scanArtist(rows)
		if err != nil {
			return nil, shared.Storage("scan artist", err)
		}
		artists = append(artists, artist)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("list artists", err)
	}
	return artists, nil
}

// CatalogEntry returns the entry with external id id, including its ordered track ids.
func (d *Database) CatalogEntry(ctx context.Context, id string) (*models.CatalogEntry, error) {
	row := d.db.QueryRowContext(ctx, selectEntry+" WHERE c.external_id = ?", id)
	entry, err := scanEntry(row)
	if err != nil {
		return nil, lookupError(err, models.KindCatalogEntry, id)
	}
	return entry, nil
}

// ArtistEntries returns the catalog entries of an artist ordered by release date then title.
func (d *Database) ArtistEntries(ctx context.Context, artistID string) ([]*models.CatalogEntry, error) {
	rows, err := d.db.QueryContext(ctx,
		selectEntry+" WHERE a.external_id = ? ORDER BY c.release_date IS NULL, c.release_date, c.title",
		artistID,
	)
	if err != nil {
		return nil, shared.Storage("list artist entries", err)
	}
	defer rows.Close()

	var entries []*models.CatalogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, shared.Storage("scan catalog entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("list artist entries", err)
	}

	if len(entries) == 0 {
		if _, err := d.Artist(ctx, artistID); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// Image returns the image with external id id.
func (d *Database) Image(ctx context.Context, id string) (*models.Image, error) {
	var image models.Image
	err := d.db.QueryRowContext(ctx,
		"SELECT id, external_id, content_ref, width, height FROM images WHERE external_id = ?", id,
	).Scan(&image.RowID, &image.ID, &image.ContentRef, &image.Width, &image.Height)
	if err != nil {
		return nil, lookupError(err, models.KindImage, id)
	}
	return &image, nil
}

// ListImages returns every image ordered by external id.
func (d *Database) ListImages(ctx context.Context) ([]*models.Image, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT id, external_id, content_ref, width, height FROM images ORDER BY external_id",
	)
	if err != nil {
		return nil, shared.Storage("list images", err)
	}
	defer rows.Close()

	var images []*models.Image
	for rows.Next() {
		var image models.Image
		if err := rows.Scan(&image.RowID, &image.ID, &image.ContentRef, &image.Width, &image.Height); err != nil {
			return nil, shared.Storage("scan image", err)
		}
		images = append(images, &image)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("list images", err)
	}
	return images, nil
}

// Counts returns the number of stored rows per kind.
func (d *Database) Counts(ctx context.Context) (models.Counts, error) {
	var c models.Counts
	err := d.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM artists),
			(SELECT COUNT(*) FROM catalog_entries),
			(SELECT COUNT(*) FROM images)
	`).Scan(&c.Artists, &c.CatalogEntries, &c.Images)
	if err != nil {
		return c, shared.Storage("count catalog", err)
	}
	return c, nil
}

// ImportHistory returns the most recent committed imports, newest first.
func (d *Database) ImportHistory(ctx context.Context, limit int) ([]models.ImportRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT batch_id, begun_at, committed_at, full_kinds, upserted, deleted
		FROM import_batches
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, shared.Storage("read import history", err)
	}
	defer rows.Close()

	var records []models.ImportRecord
	for rows.Next() {
		var (
			r                 models.ImportRecord
			full              string
			upserted, deleted string
		)
		if err := rows.Scan(&r.BatchID, &r.BegunAt, &r.CommittedAt, &full, &upserted, &deleted); err != nil {
			return nil, shared.Storage("scan import record", err)
		}
		for kind := range strings.SplitSeq(full, ",") {
			if kind != "" {
				r.Full = append(r.Full, models.Kind(kind))
			}
		}
		if err := json.Unmarshal([]byte(upserted), &r.Upserted); err != nil {
			return nil, fmt.Errorf("failed to decode import counts: %w", err)
		}
		if err := json.Unmarshal([]byte(deleted), &r.Deleted); err != nil {
			return nil, fmt.Errorf("failed to decode import counts: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("read import history", err)
	}
	return records, nil
}

func scanArtist(s scanner) (*models.Artist, error) {
	var (
		artist  models.Artist
		imageID sql.NullString
	)
	if err := s.Scan(&artist.RowID, &artist.ID, &artist.Name, &imageID); err != nil {
		return nil, err
	}
	artist.ImageID = imageID.String
	return &artist, nil
}

func scanEntry(s scanner) (*models.CatalogEntry, error) {
	var (
		entry       models.CatalogEntry
		imageID     sql.NullString
		releaseDate sql.NullString
		tracks      sql.NullString
	)
	if err := s.Scan(&entry.RowID, &entry.ID, &entry.Title, &entry.ArtistID, &imageID, &releaseDate, &tracks); err != nil {
		return nil, err
	}
	entry.ImageID = imageID.String
	entry.ReleaseDate = releaseDate.String
	if tracks.Valid && tracks.String != "" {
		if err := json.Unmarshal([]byte(tracks.String), &entry.TrackIDs); err != nil {
			return nil, fmt.Errorf("failed to decode tracks of %s: %w", entry.ID, err)
		}
		if len(entry.TrackIDs) == 0 {
			entry.TrackIDs = nil
		}
	}
	return &entry, nil
}
