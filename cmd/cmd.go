// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// withOutputFlags appends fresh --json and --pretty flags; flag values are per command.
func withOutputFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags,
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
		},
	)
}

func fullFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  "full",
		Usage: "Treat the import as a complete snapshot of `KIND` (artist, catalog_entry, image); repeatable",
	}
}

// setupCommand initializes the config file and database
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the config file if missing, then open and migrate the database",
				Action: r.SetupDatabase,
			},
		},
	}
}

// schemaCommand inspects the persisted schema version
func schemaCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Schema version operations",
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Compare the persisted schema version with the latest known version without migrating",
				Flags:  withOutputFlags(),
				Action: r.SchemaStatus,
			},
		},
	}
}

// importCommand applies batches of catalog changes
func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import catalog changes",
		Commands: []*cli.Command{
			{
				Name:  "file",
				Usage: "Apply a JSON feed document as one batch",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags:  withOutputFlags(fullFlag()),
				Action: r.ImportFile,
			},
			{
				Name:   "sync",
				Usage:  "Pull changes from the upstream feed",
				Flags:  withOutputFlags(fullFlag()),
				Action: r.ImportSync,
			},
		},
	}
}

// catalogCommand reads committed catalog state
func catalogCommand(r *Runner) *cli.Command {
	idArg := func() []cli.Argument {
		return []cli.Argument{&cli.StringArg{Name: "id"}}
	}

	return &cli.Command{
		Name:    "catalog",
		Aliases: []string{"cat"},
		Usage:   "Read the catalog",
		Commands: []*cli.Command{
			{
				Name:      "artist",
				Usage:     "Show an artist and its catalog entries",
				Arguments: idArg(),
				Flags:     withOutputFlags(),
				Action:    r.CatalogArtist,
			},
			{
				Name:      "entry",
				Usage:     "Show a catalog entry",
				Arguments: idArg(),
				Flags:     withOutputFlags(),
				Action:    r.CatalogEntry,
			},
			{
				Name:      "image",
				Usage:     "Show an image",
				Arguments: idArg(),
				Flags:     withOutputFlags(),
				Action:    r.CatalogImage,
			},
			{
				Name:   "counts",
				Usage:  "Count stored entities per kind",
				Flags:  withOutputFlags(),
				Action: r.CatalogCounts,
			},
			{
				Name:  "history",
				Usage: "List committed import batches, newest first",
				Flags: withOutputFlags(
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of batches to show",
						Value: 20,
					},
				),
				Action: r.CatalogHistory,
			},
			{
				Name:  "export",
				Usage: "Write the catalog to a file; JSON exports re-import with --full",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: json, csv, markdown, txt",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default: catalog.<ext>)",
					},
				},
				Action: r.CatalogExport,
			},
		},
	}
}

// searchCommand runs full-text queries over artists and catalog entries
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search artists and catalog entries",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "query"},
		},
		Flags: withOutputFlags(
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of hits",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "rebuild",
				Usage: "Rebuild the persistent index (search.index_path) from the catalog before searching",
			},
		),
		Action: r.Search,
	}
}

// usersCommand manages catalog users
func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Manage users",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Create a user",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "handle"},
				},
				Flags:  withOutputFlags(),
				Action: r.UsersAdd,
			},
			{
				Name:   "list",
				Usage:  "List users",
				Flags:  withOutputFlags(),
				Action: r.UsersList,
			},
		},
	}
}

// notificationsCommand reads user inboxes
func notificationsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "notifications",
		Usage: "Read user notifications",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List a user's notifications, newest first",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "handle"},
				},
				Flags: withOutputFlags(
					&cli.BoolFlag{
						Name:  "unread",
						Usage: "Only show unread notifications",
					},
					&cli.BoolFlag{
						Name:  "mark-read",
						Usage: "Mark the listed notifications as read",
					},
				),
				Action: r.NotificationsList,
			},
		},
	}
}
