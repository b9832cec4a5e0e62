package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/catalogd/internal/schema"
	"github.com/desertthunder/catalogd/internal/shared"
	"github.com/desertthunder/catalogd/internal/ui"
	"github.com/urfave/cli/v3"
)

// SetupDatabase writes a config file when none exists, then opens and migrates the database.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); os.IsNotExist(err) {
			r.logger.Info("config file not found, creating from template", "path", r.configPath)
			if err := shared.CreateConfigFile(r.configPath); err != nil {
				r.logger.Warn("failed to create config file, using defaults", "error", err)
			} else if config, err := shared.ResolveConfig(r.configPath); err != nil {
				r.logger.Warn("failed to load created config, using current settings", "error", err)
			} else {
				r.config = config
			}
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	db, err := r.openCatalog(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writeSummary(ui.NewSummary(r.palette.OK("✓ Database ready")).
		Add("path", r.config.Database.Path).
		Add("schema", db.Version()))
}

// schemaStatus is the JSON form of `schema status`.
type schemaStatus struct {
	Path    string   `json:"path"`
	Exists  bool     `json:"exists"`
	Version int      `json:"version"`
	Latest  int      `json:"latest"`
	State   string   `json:"state"`
	Pending []string `json:"pending,omitempty"`
}

// SchemaStatus reports the persisted schema version against the latest registered step without migrating.
func (r *Runner) SchemaStatus(ctx context.Context, cmd *cli.Command) error {
	status := schemaStatus{Path: r.config.Database.Path, Latest: r.registry.Latest()}

	if _, err := os.Stat(status.Path); err == nil {
		status.Exists = true
		db, err := shared.NewDatabase(status.Path, r.config.Database.BusyTimeoutMS)
		if err != nil {
			return shared.Storage("open database", err)
		}
		defer db.Close()

		if status.Version, err = schema.ReadVersion(ctx, db); err != nil {
			return err
		}
	}

	switch {
	case status.Version > status.Latest:
		status.State = "newer than this binary"
	case status.Version == status.Latest:
		status.State = "up to date"
	default:
		status.State = "migration pending"
		for _, step := range r.registry.Steps() {
			if step.Version > status.Version {
				status.Pending = append(status.Pending, fmt.Sprintf("%d %s", step.Version, step.Name))
			}
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, cmd.Bool("pretty"))
	}

	state := r.palette.OK(status.State)
	switch {
	case status.Version > status.Latest:
		state = r.palette.Err(status.State)
	case len(status.Pending) > 0:
		state = r.palette.Warn(status.State)
	}

	summary := ui.NewSummary("Schema").
		Add("path", status.Path).
		Add("persisted", status.Version).
		Add("latest", status.Latest).
		Add("state", state)
	for _, step := range status.Pending {
		summary.Add("pending", step)
	}
	if !status.Exists {
		summary.Add("note", r.palette.Help("database file does not exist yet"))
	}
	return r.writeSummary(summary)
}
