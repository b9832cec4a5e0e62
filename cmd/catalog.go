package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/catalogd/internal/formatter"
	"github.com/desertthunder/catalogd/internal/ingest"
	"github.com/desertthunder/catalogd/internal/models"
	"github.com/desertthunder/catalogd/internal/shared"
	"github.com/desertthunder/catalogd/internal/ui"
	"github.com/urfave/cli/v3"
)

func requireID(cmd *cli.Command) (string, error) {
	id := cmd.StringArg("id")
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%w: id", shared.ErrMissingArgument)
	}
	return id, nil
}

// CatalogArtist shows an artist with its catalog entries.
func (r *Runner) CatalogArtist(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}

	db, err := r.openCatalog(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	artist, err := db.Artist(ctx, id)
	if err != nil {
		return err
	}
	entries, err := db.ArtistEntries(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(struct {
			*models.Artist
			Entries []*models.CatalogEntry `json:"catalog_entries"`
		}{artist, entries}, cmd.Bool("pretty"))
	}

	summary := ui.NewSummary(artist.Name).Add("id", artist.ID)
	if artist.ImageID != "" {
		summary.Add("image", artist.ImageID)
	}
	for _, entry := range entries {
		summary.Add(entry.ID, entryLine(entry))
	}
	return r.writeSummary(summary)
}

// CatalogEntry shows a catalog entry with its ordered tracks.
func (r *Runner) CatalogEntry(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}

	db, err := r.openCatalog(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	entry, err := db.CatalogEntry(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(entry, cmd.Bool("pretty"))
	}

	summary := ui.NewSummary(entry.Title).
		Add("id", entry.ID).
		Add("artist", entry.ArtistID)
	if entry.ReleaseDate != "" {
		summary.Add("released", entry.ReleaseDate)
	}
	if entry.ImageID != "" {
		summary.Add("image", entry.ImageID)
	}
	for i, track := range entry.TrackIDs {
		summary.Add(fmt.Sprintf("%2d", i+1), track)
	}
	return r.writeSummary(summary)
}

// CatalogImage shows an image.
func (r *Runner) CatalogImage(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}

	db, err := r.openCatalog(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	image, err := db.Image(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(image, cmd.Bool("pretty"))
	}
	return r.writeSummary(ui.NewSummary("Image").
		Add("id", image.ID).
		Add("content", image.ContentRef).
		Add("size", fmt.Sprintf("%dx%d", image.Width, image.Height)))
}

// CatalogCounts prints the number of stored entities per kind.
func (r *Runner) CatalogCounts(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openCatalog(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	counts, err := db.Counts(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(counts, cmd.Bool("pretty"))
	}
	return r.writeSummary(ui.NewSummary("Catalog").
		Add("artists", counts.Artists).
		Add("catalog entries", counts.CatalogEntries).
		Add("images", counts.Images))
}

// CatalogHistory lists committed import batches, newest first.
func (r *Runner) CatalogHistory(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openCatalog(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.ImportHistory(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(records, cmd.Bool("pretty"))
	}
	if len(records) == 0 {
		return r.writePlain("%s\n", r.palette.Help("no imports yet"))
	}

	summary := ui.NewSummary("Imports")
	for _, rec := range records {
		summary.Add(rec.BatchID, historyLine(rec))
	}
	return r.writeSummary(summary)
}

// CatalogExport writes the catalog to a file in the requested format.
func (r *Runner) CatalogExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	db, err := r.openCatalog(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	doc, err := ingest.Export(ctx, db)
	if err != nil {
		return err
	}

	path, err := formatter.WriteExport(doc, format, cmd.String("output"))
	if err != nil {
		return err
	}
	r.logger.Info("catalog exported", "path", path, "format", format)

	return r.writeSummary(ui.NewSummary(r.palette.OK("✓ Catalog exported")).
		Add("file", path).
		Add("artists", len(doc.Artists)).
		Add("catalog entries", len(doc.CatalogEntries)).
		Add("images", len(doc.Images)))
}

func entryLine(entry *models.CatalogEntry) string {
	line := entry.Title
	if entry.ReleaseDate != "" {
		line += " (" + entry.ReleaseDate + ")"
	}
	return fmt.Sprintf("%s, %d tracks", line, len(entry.TrackIDs))
}

func historyLine(rec models.ImportRecord) string {
	var upserted, deleted int
	for _, n := range rec.Upserted {
		upserted += n
	}
	for _, n := range rec.Deleted {
		deleted += n
	}

	line := fmt.Sprintf("%s  +%d -%d", rec.CommittedAt.Local().Format(time.DateTime), upserted, deleted)
	if len(rec.Full) > 0 {
		kinds := make([]string, len(rec.Full))
		for i, kind := range rec.Full {
			kinds[i] = string(kind)
		}
		line += "  full: " + strings.Join(kinds, ",")
	}
	return line
}
