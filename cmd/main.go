package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/desertthunder/catalogd/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp(runner).Run(ctx, os.Args); err != nil {
		stop()
		os.Exit(exitCode(logger, err))
	}
}

func newApp(runner *Runner) *cli.Command {
	return &cli.Command{
		Name:    "catalogd",
		Usage:   "Maintain a local music catalog from bulk imports and an upstream feed",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before:   runner.loadConfig,
		Commands: runner.register(),
	}
}
