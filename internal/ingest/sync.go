package ingest

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catalogd/internal/catalog"
	"github.com/desertthunder/catalogd/internal/models"
	"github.com/desertthunder/catalogd/internal/shared"
)

// PageRequest asks a [Source] for one page of changes.
type PageRequest struct {
	Cursor string        // empty for the first page
	Full   []models.Kind // kinds requested as a complete snapshot
}

// Page is one page of a feed. An empty Next marks the last page.
type Page struct {
	Document
	Next string `json:"next,omitempty"`
}

// Source is a paginated feed of catalog changes.
type Source interface {
	FetchPage(ctx context.Context, req PageRequest) (*Page, error)
}

// SyncOptions configures a [Syncer].
type SyncOptions struct {
	// Full lists kinds pulled as a complete snapshot. A sync with any full kind commits once at the end, since
	// pruning is only correct against the whole snapshot.
	Full []models.Kind
	// PagesPerTransaction bounds incremental batches. Zero or less commits every page.
	PagesPerTransaction int
	Logger              *log.Logger
}

// SyncResult summarizes a sync run. Batches committed before a failure stay committed.
type SyncResult struct {
	Pages    int
	Batches  int
	Upserted int
	Deleted  int
	BatchIDs []string
}

// Syncer pulls a [Source] into a catalog database.
type Syncer struct {
	db     *catalog.Database
	source Source
	opts   SyncOptions
	logger *log.Logger
}

// NewSyncer creates a [Syncer].
func NewSyncer(db *catalog.Database, source Source, opts SyncOptions) *Syncer {
	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	if opts.PagesPerTransaction <= 0 {
		opts.PagesPerTransaction = 1
	}
	return &Syncer{db: db, source: source, opts: opts, logger: logger}
}

// Run fetches pages until the feed is exhausted.
//
// Cancelling ctx stops the run between pages and discards the open batch; a batch already committing finishes.
func (s *Syncer) Run(ctx context.Context, progress chan<- ProgressUpdate) (*SyncResult, error) {
	result := &SyncResult{}
	full := len(s.opts.Full) > 0

	var (
		tx       *catalog.ImportTransaction
		txPages  int
		cursor   string
		lastPage bool
	)
	defer func() {
		if tx != nil {
			tx.Rollback()
		}
	}()

	commit := func() error {
		committed, err := tx.Commit(ctx)
		tx, txPages = nil, 0
		if err != nil {
			return err
		}
		upserted, deleted := committed.Totals()
		result.Batches++
		result.Upserted += upserted
		result.Deleted += deleted
		result.BatchIDs = append(result.BatchIDs, committed.BatchID)
		sendProgress(progress, commitBatchUpdate(result.Batches, upserted, deleted, committed.BatchID))
		return nil
	}

	for !lastPage {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		page, err := s.source.FetchPage(ctx, PageRequest{Cursor: cursor, Full: s.opts.Full})
		if err != nil {
			return result, fmt.Errorf("failed to fetch page %d: %w", result.Pages+1, err)
		}
		result.Pages++
		sendProgress(progress, fetchPageUpdate(result.Pages, page.Len()))
		s.logger.Debug("fetched page", "page", result.Pages, "changes", page.Len(), "next", page.Next)

		if tx == nil {
			opts := catalog.ImportOptions{Full: s.opts.Full}
			if tx, err = s.db.BeginImport(ctx, opts); err != nil {
				return result, err
			}
		}
		if err := Load(tx, &page.Document); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			return result, err
		}
		txPages++

		cursor, lastPage = page.Next, page.Next == ""
		if !full && txPages >= s.opts.PagesPerTransaction {
			if err := commit(); err != nil {
				return result, err
			}
		}
	}

	if tx != nil {
		if err := commit(); err != nil {
			return result, err
		}
	}

	s.logger.Info("sync complete", "pages", result.Pages, "batches", result.Batches,
		"upserted", result.Upserted, "deleted", result.Deleted)
	sendProgress(progress, syncDoneUpdate(result))
	return result, nil
}
