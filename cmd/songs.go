package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/crate/internal/library"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/urfave/cli/v3"
)

// SongsList prints every song ordered by id.
func (r *Runner) SongsList(ctx context.Context, cmd *cli.Command) error {
	lib, db, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	songs, err := lib.ListSongs(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(songs, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Songs (%d)", len(songs)))
	for _, s := range songs {
		artist := s.Artist
		if artist == "" {
			artist = "-"
		}
		r.writePlain("%-40s %-24s %6s  %s\n", s.Name, artist, shared.FormatDuration(s.DurationSeconds), s.ID)
	}
	return nil
}

// SongsUpload copies local files into the library, reporting each file's outcome.
func (r *Runner) SongsUpload(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("%w: at least one file", shared.ErrMissingArgument)
	}

	files := make([]library.File, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		files = append(files, library.File{Name: filepath.Base(path), Body: f})
	}

	lib, db, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := lib.Upload(ctx, files)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(results, true)
	}

	uploaded := library.Uploaded(results)
	for _, res := range results {
		switch {
		case res.Err != nil:
			r.writePlain("✗ %s: %v\n", res.Name, res.Err)
		case res.Overwrote:
			r.writePlain("✓ %s (replaced existing audio)\n", res.ID)
		default:
			r.writePlain("✓ %s\n", res.ID)
		}
	}
	r.writePlainln("Uploaded %d of %d file(s)", uploaded, len(results))

	if uploaded == 0 {
		return fmt.Errorf("no files uploaded: %w", results[0].Err)
	}
	return nil
}

// SongsRename gives a song a new name while keeping its playlist memberships.
func (r *Runner) SongsRename(ctx context.Context, cmd *cli.Command) error {
	id, newName := cmd.StringArg("id"), cmd.StringArg("new-name")
	if id == "" || newName == "" {
		return fmt.Errorf("%w: id and new name", shared.ErrMissingArgument)
	}

	lib, db, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	newID, err := lib.RenameSong(ctx, id, newName)
	if err != nil {
		return err
	}

	r.writePlain("✓ Renamed %s → %s\n", id, newID)
	return nil
}

// SongsTag records artist and duration metadata for a song.
func (r *Runner) SongsTag(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: id", shared.ErrMissingArgument)
	}

	var tags library.Tags
	if cmd.IsSet("artist") {
		artist := cmd.String("artist")
		tags.Artist = &artist
	}
	if cmd.IsSet("duration") {
		seconds := cmd.Int("duration")
		tags.DurationSeconds = &seconds
	}

	lib, db, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	song, err := lib.TagSong(ctx, id, tags)
	if err != nil {
		return err
	}

	artist := song.Artist
	if artist == "" {
		artist = "-"
	}
	r.writePlain("✓ Tagged %s: %s, %s\n", song.ID, artist, shared.FormatDuration(song.DurationSeconds))
	return nil
}

// SongsDelete removes a song's audio, metadata and playlist memberships.
func (r *Runner) SongsDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: id", shared.ErrMissingArgument)
	}

	lib, db, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := lib.DeleteSong(ctx, id); err != nil {
		return err
	}

	r.writePlain("✓ Deleted %s\n", id)
	return nil
}

// Sweep registers untracked audio files and drops songs whose files have disappeared.
func (r *Runner) Sweep(ctx context.Context, cmd *cli.Command) error {
	lib, db, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := lib.Sweep(ctx)
	if err != nil {
		return err
	}

	if !report.Changed() {
		r.writePlain("✓ Library is in sync with %s\n", lib.Blobs().Root())
		return nil
	}

	for _, id := range report.Adopted {
		r.writePlain("+ %s\n", id)
	}
	for _, id := range report.Dropped {
		r.writePlain("- %s\n", id)
	}
	r.writePlainln("Adopted %d, dropped %d", len(report.Adopted), len(report.Dropped))
	return nil
}
