package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/catalogd/internal/catalog"
	"github.com/desertthunder/catalogd/internal/ingest"
	"github.com/desertthunder/catalogd/internal/models"
	"github.com/desertthunder/catalogd/internal/shared"
	"github.com/desertthunder/catalogd/internal/ui"
	"github.com/urfave/cli/v3"
)

// parseKinds converts --full values, accepting the same aliases as feed documents.
func parseKinds(values []string) ([]models.Kind, error) {
	var kinds []models.Kind
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			kind, err := models.ParseKind(part)
			if err != nil {
				return nil, fmt.Errorf("%w: --full %q", shared.ErrInvalidArgument, part)
			}
			kinds = append(kinds, kind)
		}
	}
	return kinds, nil
}

// ImportFile applies a JSON feed document as one batch.
func (r *Runner) ImportFile(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: document path", shared.ErrMissingArgument)
	}

	full, err := parseKinds(cmd.StringSlice("full"))
	if err != nil {
		return err
	}

	doc, err := ingest.ReadDocumentFile(path)
	if err != nil {
		return err
	}

	db, err := r.openCatalog(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	defer r.attachSearch(ctx, db)()

	r.logger.Info("importing document", "path", path, "changes", doc.Len(), "full", full)
	result, err := ingest.Apply(ctx, db, doc, catalog.ImportOptions{Full: full})
	if err != nil {
		r.notifyFailure(db, err, nil)
		return fmt.Errorf("failed to import %s: %w", path, err)
	}
	notified := r.notify(db, result)

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}
	return r.writeSummary(importSummary(r.palette, result, notified))
}

// ImportSync pulls the upstream feed into the catalog, printing progress as pages arrive.
func (r *Runner) ImportSync(ctx context.Context, cmd *cli.Command) error {
	full, err := parseKinds(cmd.StringSlice("full"))
	if err != nil {
		return err
	}

	source, err := r.upstreamSource()
	if err != nil {
		return err
	}

	db, err := r.openCatalog(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	defer r.attachSearch(ctx, db)()

	syncer := ingest.NewSyncer(db, source, ingest.SyncOptions{
		Full:                full,
		PagesPerTransaction: r.config.Import.PagesPerTransaction,
		Logger:              shared.WithLogger(r.logger, "component", "sync"),
	})

	progressCh := make(chan ingest.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case ingest.FetchPage:
				r.writePlain("📥 %s\n", update.Message)
			case ingest.CommitBatch:
				r.writePlain("%s %s\n", r.palette.OK("✓"), update.Message)
			case ingest.SyncDone:
				r.writePlain("\n%s\n", r.palette.Title(update.Message))
			}
		}
	}()

	result, err := syncer.Run(ctx, progressCh)
	close(progressCh)
	<-done

	if err != nil {
		if result.Batches > 0 {
			r.logger.Warn("sync stopped; earlier batches stay committed", "batches", result.Batches)
		}
		r.notifyFailure(db, err, result.BatchIDs)
		return fmt.Errorf("failed to sync: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}
	return r.writeSummary(ui.NewSummary("Sync").
		Add("pages", result.Pages).
		Add("batches", result.Batches).
		Add("upserted", result.Upserted).
		Add("deleted", result.Deleted))
}

func (r *Runner) notify(db *catalog.Database, result *catalog.ImportResult) int {
	n, err := ingest.Notify(db, result)
	if err != nil {
		r.logger.Warn("failed to notify users", "batch", result.BatchID, "error", err)
	}
	return n
}

// notifyFailure reports rolled back imports. Contention and interrupts are not failures of the catalog.
func (r *Runner) notifyFailure(db *catalog.Database, cause error, committed []string) {
	if errors.Is(cause, shared.ErrImportInProgress) || errors.Is(cause, context.Canceled) {
		return
	}
	if _, err := ingest.NotifyFailure(db, cause, committed); err != nil {
		r.logger.Warn("failed to notify users of import failure", "error", err)
	}
}

func importSummary(p *ui.Palette, result *catalog.ImportResult, notified int) *ui.Summary {
	upserted, deleted := result.Totals()
	summary := ui.NewSummary(p.OK("✓ Import committed")).
		Add("batch", result.BatchID).
		Add("upserted", upserted).
		Add("deleted", deleted)
	for _, kind := range models.Kinds {
		if n := len(result.Upserted[kind]) + len(result.Deleted[kind]); n > 0 {
			summary.Add(string(kind), fmt.Sprintf("+%d -%d", len(result.Upserted[kind]), len(result.Deleted[kind])))
		}
	}
	if len(result.Full) > 0 {
		summary.Add("full", result.Full)
	}
	return summary.Add("notified", notified)
}
