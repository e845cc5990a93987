package main

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/desertthunder/crate/internal/formatter"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/desertthunder/crate/internal/tasks"
	"github.com/urfave/cli/v3"
)

// PlaylistsList prints every playlist with its song count, in creation order.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	lib, db, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	playlists, err := lib.OrderedPlaylists(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Playlists (%d)", len(playlists)))
	for _, p := range playlists {
		r.writePlain("%-40s %d song(s)\n", p.Name, len(p.SongIDs))
	}
	return nil
}

// PlaylistsShow prints the songs of one playlist in playlist order.
func (r *Runner) PlaylistsShow(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	lib, db, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	playlist, err := lib.Playlist(ctx, name)
	if err != nil {
		return err
	}
	songs, err := lib.ListSongs(ctx)
	if err != nil {
		return err
	}

	byID := lo.KeyBy(songs, func(s models.Song) string { return s.ID })
	export := models.PlaylistExport{
		Name: playlist.Name,
		Songs: lo.FilterMap(playlist.SongIDs, func(id string, _ int) (models.Song, bool) {
			s, ok := byID[id]
			return s, ok
		}),
	}

	if cmd.Bool("json") {
		return r.writeJSON(export, true)
	}

	r.writePlainHeader(fmt.Sprintf("%s (%d)", export.Name, len(export.Songs)))
	for i, s := range export.Songs {
		r.writePlain("%3d. %-40s %6s\n", i+1, s.Name, shared.FormatDuration(s.DurationSeconds))
	}
	return nil
}

// PlaylistsCreate creates an empty playlist.
func (r *Runner) PlaylistsCreate(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	lib, db, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := lib.CreatePlaylist(ctx, name); err != nil {
		return err
	}

	r.writePlain("✓ Created playlist %s\n", name)
	return nil
}

// PlaylistsDelete deletes a playlist. Its songs stay in the library.
func (r *Runner) PlaylistsDelete(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	lib, db, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := lib.DeletePlaylist(ctx, name); err != nil {
		return err
	}

	r.writePlain("✓ Deleted playlist %s\n", name)
	return nil
}

// PlaylistsRename renames a playlist, keeping its songs and their order.
func (r *Runner) PlaylistsRename(ctx context.Context, cmd *cli.Command) error {
	oldName, newName := cmd.StringArg("old-name"), cmd.StringArg("new-name")
	if oldName == "" || newName == "" {
		return fmt.Errorf("%w: old and new playlist names", shared.ErrMissingArgument)
	}

	lib, db, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := lib.RenamePlaylist(ctx, oldName, newName); err != nil {
		return err
	}

	r.writePlain("✓ Renamed playlist %s → %s\n", oldName, newName)
	return nil
}

// PlaylistsAdd appends a song to a playlist. Adding a song that is already present changes nothing.
func (r *Runner) PlaylistsAdd(ctx context.Context, cmd *cli.Command) error {
	playlist, song := cmd.StringArg("playlist"), cmd.StringArg("song")
	if playlist == "" || song == "" {
		return fmt.Errorf("%w: playlist and song", shared.ErrMissingArgument)
	}

	lib, db, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	added, err := lib.AddToPlaylist(ctx, playlist, song)
	if err != nil {
		return err
	}

	if added {
		r.writePlain("✓ Added %s to %s\n", song, playlist)
	} else {
		r.writePlain("%s is already in %s\n", song, playlist)
	}
	return nil
}

// PlaylistsRemove removes a song from a playlist.
func (r *Runner) PlaylistsRemove(ctx context.Context, cmd *cli.Command) error {
	playlist, song := cmd.StringArg("playlist"), cmd.StringArg("song")
	if playlist == "" || song == "" {
		return fmt.Errorf("%w: playlist and song", shared.ErrMissingArgument)
	}

	lib, db, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	removed, err := lib.RemoveFromPlaylist(ctx, playlist, song)
	if err != nil {
		return err
	}

	if removed {
		r.writePlain("✓ Removed %s from %s\n", song, playlist)
	} else {
		r.writePlain("%s is not in %s\n", song, playlist)
	}
	return nil
}

// PlaylistsExport writes the named playlists, or every playlist, to files in the chosen format.
func (r *Runner) PlaylistsExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidFlag, err)
	}

	lib, db, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	engine := tasks.NewEngine(lib, r.logger)
	opts := tasks.ExportOpts{
		Format:     format,
		OutputDir:  cmd.String("output"),
		SongsDir:   lib.Blobs().Root(),
		NumWorkers: cmd.Int("workers"),
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	done := r.printProgress(progress, cmd.Bool("json"))

	result, err := engine.Export(ctx, progress, cmd.Args().Slice(), opts)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}

	r.writePlainln("Exported %d of %d playlist(s) to %s", result.SuccessfulExports, result.TotalPlaylists, result.OutputDirectory)
	r.writePlain("Manifest: %s\n", result.ManifestPath)
	if result.FailedExports > 0 {
		return fmt.Errorf("%d playlist(s) failed to export", result.FailedExports)
	}
	return nil
}

// printProgress writes each update as a line until progress is closed. Quiet only drains the channel.
func (r *Runner) printProgress(progress <-chan tasks.ProgressUpdate, quiet bool) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Debug("progress", "phase", update.Phase, "step", update.Step, "total", update.Total)
			if quiet {
				continue
			}
			if update.Total > 1 {
				r.writePlain("[%d/%d] %s\n", update.Step, update.Total, update.Message)
			} else {
				r.writePlain("%s\n", update.Message)
			}
		}
	}()
	return done
}
