package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/desertthunder/crate/internal/formatter"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

// ManifestName is the summary file written next to exported playlists.
const ManifestName = "export_manifest.json"

// ExportOpts contains configuration for bulk playlist exports.
type ExportOpts struct {
	Format     formatter.Format // Export format (default: m3u)
	OutputDir  string           // Base output directory (default: crate_export_{epoch})
	SongsDir   string           // M3U entries point into this directory when set
	NumWorkers int              // Concurrent writers (default: 4, max: 16)
}

// PlaylistExportResult is the outcome of writing one playlist.
type PlaylistExportResult struct {
	Playlist string `json:"playlist"`
	File     string `json:"file,omitempty"`
	Songs    int    `json:"songs"`
	Error    string `json:"error,omitempty"`
	Err      error  `json:"-"`
}

// ExportResult summarizes a bulk export.
type ExportResult struct {
	Format            formatter.Format       `json:"format"`
	TotalPlaylists    int                    `json:"total_playlists"`
	SuccessfulExports int                    `json:"successful_exports"`
	FailedExports     int                    `json:"failed_exports"`
	OutputDirectory   string                 `json:"output_directory"`
	ManifestPath      string                 `json:"-"`
	Results           []PlaylistExportResult `json:"results"`
}

type exportJob struct {
	index  int
	export *models.PlaylistExport
}

// Export writes playlists to files concurrently and records a manifest. An empty names list exports every playlist.
//
// Song ids are resolved against the catalog at the start of the run; results keep playlist order.
func (e *Engine) Export(ctx context.Context, prog chan<- ProgressUpdate, names []string, opts ExportOpts) (*ExportResult, error) {
	if opts.Format == "" {
		opts.Format = formatter.FormatM3U
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("crate_export_%d", time.Now().Unix())
	}

	e.sendProgress(prog, resolveUpdate(1, 2, "Loading catalog..."))
	songs, err := e.lib.ListSongs(ctx)
	if err != nil {
		return nil, err
	}
	e.sendProgress(prog, resolveUpdate(2, 2, "Loading playlists..."))
	playlists, err := e.lib.OrderedPlaylists(ctx)
	if err != nil {
		return nil, err
	}

	selected, err := selectPlaylists(playlists, names)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	byID := lo.KeyBy(songs, func(s models.Song) string { return s.ID })
	result := &ExportResult{
		Format:          opts.Format,
		TotalPlaylists:  len(selected),
		OutputDirectory: opts.OutputDir,
		Results:         make([]PlaylistExportResult, len(selected)),
	}

	jobs := make(chan exportJob)
	done := make(chan int, len(selected))

	var wg sync.WaitGroup
	for range workerCount(opts.NumWorkers, len(selected)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result.Results[job.index] = e.exportOne(job.export, opts)
				done <- job.index
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, pl := range selected {
			export := &models.PlaylistExport{
				Name: pl.Name,
				Songs: lo.FilterMap(pl.SongIDs, func(id string, _ int) (models.Song, bool) {
					s, ok := byID[id]
					return s, ok
				}),
			}
			select {
			case jobs <- exportJob{index: i, export: export}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(done)
	}()

	completed := 0
	for i := range done {
		completed++
		res := result.Results[i]
		if res.Err != nil {
			result.FailedExports++
			e.sendProgress(prog, exportFailedUpdate(completed, len(selected), res.Playlist, res.Err))
			continue
		}
		result.SuccessfulExports++
		e.sendProgress(prog, exportCompletedUpdate(completed, len(selected), res.Playlist, res.Songs))
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	manifestPath := filepath.Join(opts.OutputDir, ManifestName)
	if err := formatter.WriteManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

func (e *Engine) exportOne(export *models.PlaylistExport, opts ExportOpts) PlaylistExportResult {
	res := PlaylistExportResult{Playlist: export.Name, Songs: len(export.Songs)}

	path, err := formatter.WriteExport(export, opts.Format, opts.OutputDir, opts.SongsDir)
	if err != nil {
		res.Err = err
		res.Error = err.Error()
		e.logger.Warn("export failed", "playlist", export.Name, "error", err)
		return res
	}
	res.File = path
	return res
}

// selectPlaylists picks the named playlists in the order given, or all of them when names is empty.
func selectPlaylists(all []models.PlaylistSongs, names []string) ([]models.PlaylistSongs, error) {
	if len(names) == 0 {
		return all, nil
	}

	byName := lo.KeyBy(all, func(p models.PlaylistSongs) string { return p.Name })
	selected := make([]models.PlaylistSongs, 0, len(names))
	for _, name := range lo.Uniq(names) {
		pl, ok := byName[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("%w: %q", shared.ErrPlaylistNotFound, name)
		}
		selected = append(selected, pl)
	}
	return selected, nil
}
