package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catalogd/internal/catalog"
	"github.com/desertthunder/catalogd/internal/ingest"
	"github.com/desertthunder/catalogd/internal/schema"
	"github.com/desertthunder/catalogd/internal/shared"
	"github.com/desertthunder/catalogd/internal/ui"
	"github.com/desertthunder/catalogd/internal/upstream"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	registry   *schema.Registry
	source     ingest.Source
	logger     *log.Logger
	output     io.Writer
	palette    *ui.Palette
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Registry   *schema.Registry
	Source     ingest.Source // upstream feed; built from config when nil
	Logger     *log.Logger
	Output     io.Writer
	Palette    *ui.Palette
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Registry == nil {
		opts.Registry = schema.Catalog()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Palette == nil {
		opts.Palette = ui.Default
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		registry:   opts.Registry,
		source:     opts.Source,
		logger:     opts.Logger,
		output:     opts.Output,
		palette:    opts.Palette,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, schemaCommand, importCommand, catalogCommand, searchCommand, usersCommand, notificationsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig resolves the --config file and environment overlay before any command runs.
func (r *Runner) loadConfig(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	config, err := shared.ResolveConfig(path)
	if err != nil {
		return ctx, err
	}

	level, err := shared.ParseLogLevel(config.Log.Level)
	if err != nil {
		return ctx, err
	}
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)

	r.config, r.configPath = config, path
	return ctx, nil
}

// openCatalog opens and migrates the configured database.
func (r *Runner) openCatalog(ctx context.Context) (*catalog.Database, error) {
	conf := r.config.Database
	return catalog.Open(ctx, conf.Path, r.registry, catalog.Options{
		Logger:        shared.WithLogger(r.logger, "component", "catalog"),
		MaxOpenConns:  conf.MaxOpenConns,
		MaxIdleConns:  conf.MaxIdleConns,
		BusyTimeoutMS: conf.BusyTimeoutMS,
	})
}

// upstreamSource returns the injected source or a client built from the [upstream] config section.
func (r *Runner) upstreamSource() (ingest.Source, error) {
	if r.source != nil {
		return r.source, nil
	}
	client, err := upstream.NewClientFromConfig(r.config.Upstream)
	if err != nil {
		return nil, err
	}
	r.source = client
	return client, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeSummary(s *ui.Summary) error {
	return r.writePlain("%s", r.palette.Render(s))
}
