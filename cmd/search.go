package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/catalogd/internal/catalog"
	"github.com/desertthunder/catalogd/internal/search"
	"github.com/desertthunder/catalogd/internal/shared"
	"github.com/urfave/cli/v3"
)

// attachSearch keeps the persistent search index in step with imports committed on db. An index that has never
// been built is filled from db first so rows committed before it existed stay searchable.
// The returned func closes the index and is a no-op when no index is configured.
func (r *Runner) attachSearch(ctx context.Context, db *catalog.Database) func() {
	path := r.config.Search.IndexPath
	if path == "" {
		return func() {}
	}

	index, err := search.NewIndex(path, shared.WithLogger(r.logger, "component", "search"))
	if err != nil {
		r.logger.Warn("search index unavailable, imports will not be indexed", "path", path, "error", err)
		return func() {}
	}
	if err := index.EnsureBuilt(ctx, db); err != nil {
		r.logger.Warn("search index could not be built, imports will not be indexed", "path", path, "error", err)
		index.Close()
		return func() {}
	}
	db.OnCommit(index.Hook(db))
	return func() { index.Close() }
}

// openSearch opens the configured index, or an in-memory one, and fills it from db unless it has been built before.
func (r *Runner) openSearch(ctx context.Context, db *catalog.Database, rebuild bool) (*search.Index, error) {
	path := r.config.Search.IndexPath
	logger := shared.WithLogger(r.logger, "component", "search")

	if path != "" && rebuild {
		if err := os.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("failed to remove search index: %w", err)
		}
	}

	index, err := search.NewIndex(path, logger)
	if err != nil {
		return nil, err
	}

	if err := index.EnsureBuilt(ctx, db); err != nil {
		index.Close()
		return nil, err
	}
	return index, nil
}

// Search runs a full-text query over artists and catalog entries.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	input := cmd.StringArg("query")

	db, err := r.openCatalog(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	index, err := r.openSearch(ctx, db, cmd.Bool("rebuild"))
	if err != nil {
		return err
	}
	defer index.Close()

	hits, err := index.Search(input, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(hits, cmd.Bool("pretty"))
	}

	if len(hits) == 0 {
		return r.writePlain("%s\n", r.palette.Help("no matches"))
	}
	for _, hit := range hits {
		line := fmt.Sprintf("%-14s %-24s %s", hit.Kind, hit.ID, hit.Name)
		if hit.Artist != "" {
			line += r.palette.Help(" by " + hit.Artist)
		}
		if err := r.writePlain("%s\n", line); err != nil {
			return err
		}
	}
	return nil
}
