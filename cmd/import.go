package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/crate/internal/shared"
	"github.com/desertthunder/crate/internal/tasks"
	"github.com/urfave/cli/v3"
)

type importedFile struct {
	Path      string `json:"path"`
	ID        string `json:"id,omitempty"`
	Overwrote bool   `json:"overwrote,omitempty"`
	Error     string `json:"error,omitempty"`
}

type importSummary struct {
	Total    int            `json:"total"`
	Imported int            `json:"imported"`
	Failed   int            `json:"failed"`
	Skipped  int            `json:"skipped"`
	Playlist string         `json:"playlist,omitempty"`
	Added    int            `json:"added,omitempty"`
	Files    []importedFile `json:"files"`
}

// Import uploads local files and directories through a worker pool, optionally collecting them into a playlist.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("%w: at least one path", shared.ErrMissingArgument)
	}

	lib, db, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer db.Close()

	engine := tasks.NewEngine(lib, r.logger)
	opts := tasks.ImportOpts{
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
		Recursive:  cmd.Bool("recursive"),
		Playlist:   cmd.String("playlist"),
	}

	asJSON := cmd.Bool("json")
	progress := make(chan tasks.ProgressUpdate, 16)
	done := r.printProgress(progress, asJSON)

	result, err := engine.Import(ctx, progress, paths, opts)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	if asJSON {
		return r.writeJSON(summarizeImport(result), true)
	}

	r.writePlainln("Imported %d of %d file(s), %d failed, %d skipped", result.Imported, result.Total, result.Failed, result.Skipped)
	if result.Playlist != "" {
		r.writePlain("Added %d song(s) to %s\n", result.Added, result.Playlist)
	}
	if result.Imported == 0 && result.Failed > 0 {
		return fmt.Errorf("no files imported")
	}
	return nil
}

func summarizeImport(result *tasks.ImportResult) importSummary {
	summary := importSummary{
		Total:    result.Total,
		Imported: result.Imported,
		Failed:   result.Failed,
		Skipped:  result.Skipped,
		Playlist: result.Playlist,
		Added:    result.Added,
		Files:    make([]importedFile, len(result.Files)),
	}
	for i, f := range result.Files {
		summary.Files[i] = importedFile{Path: f.Path, ID: f.ID, Overwrote: f.Overwrote}
		if f.Err != nil {
			summary.Files[i].Error = f.Err.Error()
		}
	}
	return summary
}
