package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/catalogd/internal/models"
	"github.com/desertthunder/catalogd/internal/shared"
)

var tables = map[models.Kind]string{
	models.KindImage:        "images",
	models.KindArtist:       "artists",
	models.KindCatalogEntry: "catalog_entries",
}

// plan is the buffered batch grouped by kind, with ids sorted so writes are deterministic.
type plan struct {
	upserts map[models.Kind][]change
	deletes map[models.Kind][]string
}

func newPlan(changes map[changeKey]change) plan {
	p := plan{upserts: map[models.Kind][]change{}, deletes: map[models.Kind][]string{}}
	for _, key := range slices.SortedFunc(maps.Keys(changes), func(a, b changeKey) int {
		return strings.Compare(a.id, b.id)
	}) {
		c := changes[key]
		if c.delete {
			p.deletes[key.kind] = append(p.deletes[key.kind], key.id)
		} else {
			p.upserts[key.kind] = append(p.upserts[key.kind], c)
		}
	}
	return p
}

// apply writes changes inside one SQL transaction: upserts in dependency order, then deletions and full-kind
// pruning, then a reference check over the whole post-batch state. Nothing is visible to readers unless every
// step succeeds.
func (t *ImportTransaction) apply(ctx context.Context, changes map[changeKey]change) (*ImportResult, error) {
	tx, err := t.db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, shared.Storage("begin import", err)
	}
	defer tx.Rollback()

	result := &ImportResult{
		BatchID:  t.batchID,
		Full:     t.full,
		Upserted: map[models.Kind][]string{},
		Deleted:  map[models.Kind][]string{},
		BegunAt:  t.begunAt,
	}
	w := &batchWriter{ctx: ctx, tx: tx}
	p := newPlan(changes)

	for _, kind := range models.Kinds {
		for _, c := range p.upserts[kind] {
			id, err := w.upsert(c)
			if err != nil {
				return nil, err
			}
			result.Upserted[kind] = append(result.Upserted[kind], id)
		}
	}

	for _, kind := range slices.Backward(models.Kinds) {
		for _, id := range p.deletes[kind] {
			removed, err := w.delete(kind, id)
			if err != nil {
				return nil, err
			}
			if removed {
				result.Deleted[kind] = append(result.Deleted[kind], id)
			}
		}

		if slices.Contains(t.full, kind) {
			pruned, err := w.prune(kind, result.Upserted[kind])
			if err != nil {
				return nil, err
			}
			result.Deleted[kind] = append(result.Deleted[kind], pruned...)
		}
		slices.Sort(result.Deleted[kind])
	}

	if err := checkReferences(ctx, tx); err != nil {
		return nil, err
	}

	result.CommittedAt = time.Now().UTC()
	if err := recordBatch(ctx, tx, result); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, shared.Storage("commit import", err)
	}
	return result, nil
}

// batchWriter issues the statements of one batch.
type batchWriter struct {
	ctx context.Context
	tx  *sql.Tx
}

func (w *batchWriter) upsert(c change) (string, error) {
	switch {
	case c.image != nil:
		return c.image.ID, w.upsertImage(c.image)
	case c.artist != nil:
		return c.artist.ID, w.upsertArtist(c.artist)
	case c.entry != nil:
		return c.entry.ID, w.upsertEntry(c.entry)
	default:
		return "", fmt.Errorf("empty change in batch")
	}
}

func (w *batchWriter) upsertImage(image *models.Image) error {
	err := w.tx.QueryRowContext(w.ctx, `
		INSERT INTO images (external_id, content_ref, width, height) VALUES (?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			content_ref = excluded.content_ref, width = excluded.width, height = excluded.height
		RETURNING id
	`, image.ID, image.ContentRef, image.Width, image.Height).Scan(&image.RowID)
	return shared.Storage("upsert image "+image.ID, err)
}

func (w *batchWriter) upsertArtist(artist *models.Artist) error {
	imageRow, err := w.resolveOptional(models.KindArtist, artist.ID, models.KindImage, artist.ImageID)
	if err != nil {
		return err
	}

	err = w.tx.QueryRowContext(w.ctx, `
		INSERT INTO artists (external_id, name, image_id) VALUES (?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET name = excluded.name, image_id = excluded.image_id
		RETURNING id
	`, artist.ID, artist.Name, imageRow).Scan(&artist.RowID)
	return shared.Storage("upsert artist "+artist.ID, err)
}

func (w *batchWriter) upsertEntry(entry *models.CatalogEntry) error {
	artistRow, err := w.resolve(models.KindCatalogEntry, entry.ID, models.KindArtist, entry.ArtistID)
	if err != nil {
		return err
	}
	imageRow, err := w.resolveOptional(models.KindCatalogEntry, entry.ID, models.KindImage, entry.ImageID)
	if err != nil {
		return err
	}

	releaseDate := sql.NullString{String: entry.ReleaseDate, Valid: entry.ReleaseDate != ""}
	err = w.tx.QueryRowContext(w.ctx, `
		INSERT INTO catalog_entries (external_id, title, artist_id, image_id, release_date) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			title = excluded.title, artist_id = excluded.artist_id,
			image_id = excluded.image_id, release_date = excluded.release_date
		RETURNING id
	`, entry.ID, entry.Title, artistRow, imageRow, releaseDate).Scan(&entry.RowID)
	if err != nil {
		return shared.Storage("upsert catalog entry "+entry.ID, err)
	}

	if _, err := w.tx.ExecContext(w.ctx, "DELETE FROM catalog_entry_tracks WHERE entry_id = ?", entry.RowID); err != nil {
		return shared.Storage("replace tracks of "+entry.ID, err)
	}
	if len(entry.TrackIDs) == 0 {
		return nil
	}

	stmt, err := w.tx.PrepareContext(w.ctx, "INSERT INTO catalog_entry_tracks (entry_id, position, track_id) VALUES (?, ?, ?)")
	if err != nil {
		return shared.Storage("prepare track insert", err)
	}
	defer stmt.Close()

	for pos, track := range entry.TrackIDs {
		if _, err := stmt.ExecContext(w.ctx, entry.RowID, pos, track); err != nil {
			return shared.Storage("insert track of "+entry.ID, err)
		}
	}
	return nil
}

// resolve returns the surrogate key of target, failing with an integrity error naming the referring entity.
func (w *batchWriter) resolve(kind models.Kind, id string, target models.Kind, targetID string) (int64, error) {
	var rowID int64
	err := w.tx.QueryRowContext(w.ctx, "SELECT id FROM "+tables[target]+" WHERE external_id = ?", targetID).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &shared.IntegrityError{
			Kind:   kind.String(),
			ID:     id,
			Reason: fmt.Sprintf("%s %q does not exist", target, targetID),
		}
	}
	if err != nil {
		return 0, shared.Storage("resolve "+target.String()+" "+targetID, err)
	}
	return rowID, nil
}

func (w *batchWriter) resolveOptional(kind models.Kind, id string, target models.Kind, targetID string) (sql.NullInt64, error) {
	if targetID == "" {
		return sql.NullInt64{}, nil
	}
	rowID, err := w.resolve(kind, id, target, targetID)
	if err != nil {
		return sql.NullInt64{}, err
	}
	return sql.NullInt64{Int64: rowID, Valid: true}, nil
}

func (w *batchWriter) delete(kind models.Kind, id string) (bool, error) {
	res, err := w.tx.ExecContext(w.ctx, "DELETE FROM "+tables[kind]+" WHERE external_id = ?", id)
	if err != nil {
		return false, shared.Storage("delete "+kind.String()+" "+id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, shared.Storage("delete "+kind.String()+" "+id, err)
	}
	return n > 0, nil
}

// prune deletes every row of kind whose external id is not in keep.
func (w *batchWriter) prune(kind models.Kind, keep []string) ([]string, error) {
	rows, err := w.tx.QueryContext(w.ctx, "SELECT external_id FROM "+tables[kind])
	if err != nil {
		return nil, shared.Storage("scan "+tables[kind]+" for full sync", err)
	}

	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, shared.Storage("scan "+tables[kind]+" for full sync", err)
		}
		if _, found := slices.BinarySearch(keep, id); !found {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("scan "+tables[kind]+" for full sync", err)
	}

	for _, id := range stale {
		if _, err := w.delete(kind, id); err != nil {
			return nil, err
		}
	}
	return stale, nil
}

var referenceChecks = []struct {
	kind, target models.Kind
	query        string
}{
	{models.KindArtist, models.KindImage, `
		SELECT a.external_id FROM artists a
		LEFT JOIN images i ON i.id = a.image_id
		WHERE a.image_id IS NOT NULL AND i.id IS NULL
		ORDER BY a.external_id LIMIT 1`},
	{models.KindCatalogEntry, models.KindArtist, `
		SELECT c.external_id FROM catalog_entries c
		LEFT JOIN artists a ON a.id = c.artist_id
		WHERE a.id IS NULL
		ORDER BY c.external_id LIMIT 1`},
	{models.KindCatalogEntry, models.KindImage, `
		SELECT c.external_id FROM catalog_entries c
		LEFT JOIN images i ON i.id = c.image_id
		WHERE c.image_id IS NOT NULL AND i.id IS NULL
		ORDER BY c.external_id LIMIT 1`},
}

// checkReferences fails on the first artist or entry whose reference no longer resolves.
func checkReferences(ctx context.Context, tx *sql.Tx) error {
	for _, check := range referenceChecks {
		var id string
		err := tx.QueryRowContext(ctx, check.query).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return shared.Storage("check "+check.kind.String()+" references", err)
		}
		return &shared.IntegrityError{
			Kind:   check.kind.String(),
			ID:     id,
			Reason: fmt.Sprintf("referenced %s was deleted", check.target),
		}
	}
	return nil
}

func recordBatch(ctx context.Context, tx *sql.Tx, result *ImportResult) error {
	upserted, err := json.Marshal(countByKind(result.Upserted))
	if err != nil {
		return fmt.Errorf("failed to encode import counts: %w", err)
	}
	deleted, err := json.Marshal(countByKind(result.Deleted))
	if err != nil {
		return fmt.Errorf("failed to encode import counts: %w", err)
	}

	full := make([]string, len(result.Full))
	for i, kind := range result.Full {
		full[i] = kind.String()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO import_batches (batch_id, begun_at, committed_at, full_kinds, upserted, deleted)
		VALUES (?, ?, ?, ?, ?, ?)
	`, result.BatchID, result.BegunAt, result.CommittedAt, strings.Join(full, ","), string(upserted), string(deleted))
	return shared.Storage("record import batch", err)
}

func countByKind(ids map[models.Kind][]string) map[models.Kind]int {
	counts := make(map[models.Kind]int, len(ids))
	for kind, list := range ids {
		if len(list) > 0 {
			counts[kind] = len(list)
		}
	}
	return counts
}
