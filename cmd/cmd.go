package main

import (
	"fmt"
	"strings"

	"github.com/desertthunder/crate/internal/formatter"
	"github.com/urfave/cli/v3"
)

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   defaultConfigPath,
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write the example configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   defaultConfigPath,
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing configuration file",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent database migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the library over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Interface to listen on (default: server.host from config)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (default: server.port from config)",
			},
			&cli.BoolFlag{
				Name:  "no-watch",
				Usage: "Do not watch the songs directory for changes",
			},
		},
		Action: r.Serve,
	}
}

func songsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "songs",
		Usage: "Song library operations",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List every song in the library",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
						Value: true,
					},
				},
				Action: r.SongsList,
			},
			{
				Name:      "upload",
				Usage:     "Copy audio files into the library",
				ArgsUsage: "<file>...",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SongsUpload,
			},
			{
				Name:  "rename",
				Usage: "Rename a song, keeping its playlist memberships",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "new-name"},
				},
				Action: r.SongsRename,
			},
			{
				Name:  "tag",
				Usage: "Set a song's artist or duration",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "artist",
						Usage: "Artist name",
					},
					&cli.IntFlag{
						Name:  "duration",
						Usage: "Track length in seconds",
					},
				},
				Action: r.SongsTag,
			},
			{
				Name:    "delete",
				Aliases: []string{"rm"},
				Usage:   "Delete a song and remove it from every playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.SongsDelete,
			},
		},
	}
}

func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Playlist operations",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List playlists in creation order",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
						Value: true,
					},
				},
				Action: r.PlaylistsList,
			},
			{
				Name:  "show",
				Usage: "Show the songs of one playlist in order",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.PlaylistsShow,
			},
			{
				Name:  "create",
				Usage: "Create an empty playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Action: r.PlaylistsCreate,
			},
			{
				Name:    "delete",
				Aliases: []string{"rm"},
				Usage:   "Delete a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Action: r.PlaylistsDelete,
			},
			{
				Name:  "rename",
				Usage: "Rename a playlist, keeping its songs",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "old-name"},
					&cli.StringArg{Name: "new-name"},
				},
				Action: r.PlaylistsRename,
			},
			{
				Name:  "add",
				Usage: "Append a song to a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "playlist"},
					&cli.StringArg{Name: "song"},
				},
				Action: r.PlaylistsAdd,
			},
			{
				Name:  "remove",
				Usage: "Remove a song from a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "playlist"},
					&cli.StringArg{Name: "song"},
				},
				Action: r.PlaylistsRemove,
			},
			{
				Name:      "export",
				Usage:     "Export playlists to files (all playlists when none are named)",
				ArgsUsage: "[playlist]...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   fmt.Sprintf("Export format (%s)", strings.Join(formatNames(), ", ")),
						Value:   string(formatter.FormatM3U),
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: crate_export_{timestamp})",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent writers",
						Value: 4,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the export summary as JSON",
					},
				},
				Action: r.PlaylistsExport,
			},
		},
	}
}

func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import local audio files and directories into the library",
		ArgsUsage: "<path>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "recursive",
				Aliases: []string{"r"},
				Usage:   "Descend into subdirectories",
			},
			&cli.StringFlag{
				Name:  "playlist",
				Usage: "Collect imported songs into this playlist, creating it when missing",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent uploads",
				Value: 4,
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Maximum files per second (0 for unlimited)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print per-file results as JSON",
			},
		},
		Action: r.Import,
	}
}

func sweepCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "sweep",
		Usage:  "Reconcile song metadata with the files in the songs directory",
		Action: r.Sweep,
	}
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Browse the library and drive the play queue",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where logs go while the TUI owns the terminal",
				Value: "./tmp/crate-tui.log",
			},
		},
		Action: r.TUI,
	}
}

func formatNames() []string {
	names := make([]string, len(formatter.Formats))
	for i, f := range formatter.Formats {
		names[i] = string(f)
	}
	return names
}
