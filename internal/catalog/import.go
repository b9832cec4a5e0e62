package catalog

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catalogd/internal/models"
	"github.com/desertthunder/catalogd/internal/shared"
)

// ImportOptions configures a batch.
type ImportOptions struct {
	// Full lists the kinds this batch carries in full. On commit, stored rows of a full kind that the batch did
	// not upsert are deleted. Kinds not listed are never pruned.
	Full []models.Kind
}

// ImportResult describes a committed batch. Ids are external ids, sorted.
type ImportResult struct {
	BatchID     string
	Full        []models.Kind
	Upserted    map[models.Kind][]string
	Deleted     map[models.Kind][]string
	BegunAt     time.Time
	CommittedAt time.Time
}

// Totals returns the number of upserted and deleted entities across all kinds.
func (r *ImportResult) Totals() (upserted, deleted int) {
	for _, ids := range r.Upserted {
		upserted += len(ids)
	}
	for _, ids := range r.Deleted {
		deleted += len(ids)
	}
	return upserted, deleted
}

type changeKey struct {
	kind models.Kind
	id   string
}

// change is one buffered operation; exactly one of the entity pointers is set unless delete is true.
type change struct {
	delete bool
	artist *models.Artist
	entry  *models.CatalogEntry
	image  *models.Image
}

// ImportTransaction buffers catalog changes until [ImportTransaction.Commit].
//
// It holds the database's writer guard from [Database.BeginImport] until Commit or Rollback returns. Callers should
// defer Rollback right after beginning; it is a no-op once Commit has run. Cancelling the context passed to
// BeginImport rolls the batch back, and a transaction that is dropped without either call releases the guard when
// it is garbage collected.
type ImportTransaction struct {
	db      *Database
	logger  *log.Logger
	batchID string
	full    []models.Kind
	begunAt time.Time
	lease   *lease
	stop    func() bool
	ctxErr  func() error
	cleanup runtime.Cleanup

	mu      sync.Mutex
	changes map[changeKey]change
	done    bool
}

// lease is one transaction's hold on the writer guard. It must not point back at its transaction, so the
// transaction stays collectable.
type lease struct {
	once  sync.Once
	guard *writerGuard
}

func (l *lease) release() {
	l.once.Do(l.guard.release)
}

// BeginImport starts a batch, failing with [shared.ErrImportInProgress] while another batch is open.
func (d *Database) BeginImport(ctx context.Context, opts ImportOptions) (*ImportTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var full []models.Kind
	for _, kind := range opts.Full {
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: unknown kind %q", shared.ErrInvalidArgument, kind)
		}
		if !slices.Contains(full, kind) {
			full = append(full, kind)
		}
	}

	if !d.writer.tryAcquire() {
		return nil, shared.ErrImportInProgress
	}

	batchID := shared.GenerateID()
	t := &ImportTransaction{
		db:      d,
		logger:  shared.WithLogger(d.logger, "batch", batchID),
		batchID: batchID,
		full:    full,
		begunAt: time.Now().UTC(),
		lease:   &lease{guard: d.writer},
		changes: make(map[changeKey]change),
	}
	t.cleanup = runtime.AddCleanup(t, (*lease).release, t.lease)
	t.ctxErr = ctx.Err
	t.stop = context.AfterFunc(ctx, t.Rollback)
	return t, nil
}

// BatchID returns the id the batch will be recorded under.
func (t *ImportTransaction) BatchID() string {
	return t.batchID
}

// UpsertArtist buffers an insert or update of artist.
//
// Field validation happens immediately; the image reference is checked at commit.
func (t *ImportTransaction) UpsertArtist(artist models.Artist) error {
	if err := artist.Validate(); err != nil {
		return &shared.IntegrityError{Kind: models.KindArtist.String(), ID: artist.ID, Reason: err.Error()}
	}
	artist.RowID = 0
	return t.put(models.KindArtist, artist.ID, change{artist: &artist})
}

// UpsertCatalogEntry buffers an insert or update of entry. Its artist and image may arrive later in the same batch.
func (t *ImportTransaction) UpsertCatalogEntry(entry models.CatalogEntry) error {
	if err := entry.Validate(); err != nil {
		return &shared.IntegrityError{Kind: models.KindCatalogEntry.String(), ID: entry.ID, Reason: err.Error()}
	}
	entry.RowID = 0
	entry.TrackIDs = slices.Clone(entry.TrackIDs)
	return t.put(models.KindCatalogEntry, entry.ID, change{entry: &entry})
}

// UpsertImage buffers an insert or update of image.
func (t *ImportTransaction) UpsertImage(image models.Image) error {
	if err := image.Validate(); err != nil {
		return &shared.IntegrityError{Kind: models.KindImage.String(), ID: image.ID, Reason: err.Error()}
	}
	image.RowID = 0
	return t.put(models.KindImage, image.ID, change{image: &image})
}

// DeleteArtist buffers removal of an artist. Entries still referencing it abort the commit.
func (t *ImportTransaction) DeleteArtist(id string) error {
	return t.put(models.KindArtist, id, change{delete: true})
}

// DeleteCatalogEntry buffers removal of an entry and its tracks.
func (t *ImportTransaction) DeleteCatalogEntry(id string) error {
	return t.put(models.KindCatalogEntry, id, change{delete: true})
}

// DeleteImage buffers removal of an image. Artists or entries still referencing it abort the commit.
func (t *ImportTransaction) DeleteImage(id string) error {
	return t.put(models.KindImage, id, change{delete: true})
}

// Delete buffers removal of the entity of kind with external id id.
func (t *ImportTransaction) Delete(kind models.Kind, id string) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", shared.ErrInvalidArgument, kind)
	}
	return t.put(kind, id, change{delete: true})
}

// Len returns the number of buffered changes.
func (t *ImportTransaction) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.changes)
}

// put replaces any earlier change for the same entity.
func (t *ImportTransaction) put(kind models.Kind, id string, c change) error {
	if id == "" {
		return &shared.IntegrityError{Kind: kind.String(), Reason: "id is required"}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return shared.ErrTransactionDone
	}
	t.changes[changeKey{kind, id}] = c
	return nil
}

// Commit writes the batch atomically.
//
// Every buffered change is applied inside one SQL transaction, then every reference in the resulting state is
// checked. An unresolved reference fails with a [shared.IntegrityError] and leaves the store exactly as it was.
// Once Commit starts it runs to completion; cancelling ctx has no effect. A batch whose BeginImport context was
// already cancelled is rolled back instead and fails with both [shared.ErrTransactionDone] and the context's error. The writer guard is released
// on return whatever the outcome, and commit hooks run only on success.
func (t *ImportTransaction) Commit(ctx context.Context) (*ImportResult, error) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return nil, shared.ErrTransactionDone
	}
	if !t.stop() {
		t.mu.Unlock()
		t.Rollback()
		return nil, fmt.Errorf("%w: %w", shared.ErrTransactionDone, t.ctxErr())
	}
	t.done = true
	changes := t.changes
	t.changes = nil
	t.mu.Unlock()

	result, err := t.apply(context.WithoutCancel(ctx), changes)
	t.finish()

	if err != nil {
		t.logger.Warn("import aborted", "changes", len(changes), "error", err)
		return nil, err
	}

	upserted, deleted := result.Totals()
	t.logger.Info("import committed", "upserted", upserted, "deleted", deleted, "full", result.Full)

	t.db.runHooks(result)
	return result, nil
}

// Rollback discards the buffered changes and releases the writer guard. It is safe to call more than once and
// after Commit.
func (t *ImportTransaction) Rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return
	}
	t.done = true
	t.logger.Debug("import rolled back", "changes", len(t.changes))
	t.changes = nil
	t.finish()
}

// finish detaches the transaction from its context and collector, then gives up the guard.
func (t *ImportTransaction) finish() {
	t.stop()
	t.cleanup.Stop()
	t.lease.release()
}
