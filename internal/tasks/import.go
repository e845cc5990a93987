package tasks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/desertthunder/crate/internal/library"
	"github.com/desertthunder/crate/internal/shared"
)

// ImportOpts contains configuration for bulk imports.
type ImportOpts struct {
	NumWorkers int     // Concurrent uploads (default: 4, max: 16)
	RateLimit  float64 // Files per second (default: unlimited)
	Recursive  bool    // Descend into subdirectories of directory arguments
	Playlist   string  // Collect imported songs into this playlist, creating it when missing
}

// FileResult is the outcome of importing one local file.
type FileResult struct {
	Path      string `json:"path"`
	ID        string `json:"id,omitempty"`
	Overwrote bool   `json:"overwrote,omitempty"`
	Err       error  `json:"-"`
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Files    []FileResult // One entry per candidate file, in argument order
	Total    int          // Candidate files
	Imported int          // Files now in the library
	Failed   int          // Files that could not be imported
	Skipped  int          // Non-audio or hidden files found while expanding directories
	Playlist string       // Playlist the imported songs were collected into
	Added    int          // Songs newly added to Playlist
}

type importJob struct {
	index int
	path  string
}

// Import uploads local files and directories into the library.
//
// Files are processed by a bounded worker pool paced by a [rate.Limiter]. Each file gets its own result;
// one failure never blocks its siblings. When opts.Playlist is set, imported songs are appended to it in
// argument order after every upload finished.
func (e *Engine) Import(ctx context.Context, prog chan<- ProgressUpdate, paths []string, opts ImportOpts) (*ImportResult, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no paths to import", shared.ErrMissingArgument)
	}

	e.sendProgress(prog, scanUpdate(len(paths)))
	files, skipped := e.collect(paths, opts.Recursive)

	result := &ImportResult{
		Files:   files,
		Total:   len(files),
		Skipped: skipped,
	}
	if len(files) == 0 {
		return result, nil
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	limiter := rate.NewLimiter(limit, 1)

	jobs := make(chan importJob)
	done := make(chan importJob, len(files))

	var wg sync.WaitGroup
	for range workerCount(opts.NumWorkers, len(files)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				e.importFile(ctx, &files[job.index])
				done <- job
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range files {
			if files[i].Err != nil {
				continue
			}
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			select {
			case jobs <- importJob{index: i, path: files[i].Path}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(done)
	}()

	dispatched := make([]bool, len(files))
	completed := 0
	for job := range done {
		completed++
		dispatched[job.index] = true
		e.sendProgress(prog, uploadUpdate(completed, len(files), files[job.index]))
	}

	for i := range files {
		if !dispatched[i] && files[i].Err == nil {
			files[i].Err = fmt.Errorf("not imported: %w", context.Cause(ctx))
		}
	}

	result.Imported = lo.CountBy(files, func(f FileResult) bool { return f.Err == nil })
	result.Failed = result.Total - result.Imported

	if err := ctx.Err(); err != nil {
		return result, err
	}

	if opts.Playlist != "" && result.Imported > 0 {
		if err := e.collectInto(ctx, prog, result, opts.Playlist); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (e *Engine) importFile(ctx context.Context, res *FileResult) {
	f, err := os.Open(res.Path)
	if err != nil {
		res.Err = fmt.Errorf("%w: %v", shared.ErrNotFound, err)
		e.logger.Warn("import failed", "path", res.Path, "error", res.Err)
		return
	}
	defer f.Close()

	up := e.lib.UploadOne(ctx, library.File{Name: filepath.Base(res.Path), Body: f})
	res.ID, res.Overwrote, res.Err = up.ID, up.Overwrote, up.Err
	if res.Err != nil {
		e.logger.Warn("import failed", "path", res.Path, "error", res.Err)
		return
	}
	e.logger.Debug("imported", "path", res.Path, "id", res.ID, "overwrote", res.Overwrote)
}

// collectInto appends every imported song to playlist, creating it first when needed.
func (e *Engine) collectInto(ctx context.Context, prog chan<- ProgressUpdate, result *ImportResult, playlist string) error {
	if err := e.lib.CreatePlaylist(ctx, playlist); err != nil && !errors.Is(err, shared.ErrPlaylistExists) {
		return fmt.Errorf("failed to create playlist %q: %w", playlist, err)
	}
	result.Playlist = strings.TrimSpace(playlist)

	ids := lo.Uniq(lo.FilterMap(result.Files, func(f FileResult, _ int) (string, bool) {
		return f.ID, f.Err == nil
	}))
	for i, id := range ids {
		added, err := e.lib.AddToPlaylist(ctx, result.Playlist, id)
		if err != nil {
			return fmt.Errorf("failed to add %q to %q: %w", id, result.Playlist, err)
		}
		if added {
			result.Added++
		}
		e.sendProgress(prog, collectUpdate(i+1, len(ids), result.Playlist, id))
	}
	return nil
}

// collect expands paths into candidate files. Missing paths become failed results; hidden and
// non-audio files inside directories are skipped.
func (e *Engine) collect(paths []string, recursive bool) ([]FileResult, int) {
	var files []FileResult
	skipped := 0

	consider := func(path string) {
		name := filepath.Base(path)
		if strings.HasPrefix(name, ".") || !e.lib.Accepts(name) {
			skipped++
			return
		}
		files = append(files, FileResult{Path: path})
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			files = append(files, FileResult{Path: p, Err: fmt.Errorf("%w: %v", shared.ErrNotFound, err)})
			continue
		}
		if !info.IsDir() {
			files = append(files, FileResult{Path: p})
			continue
		}

		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path == p {
					return nil
				}
				if !recursive || strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				consider(path)
			}
			return nil
		})
		if err != nil {
			files = append(files, FileResult{Path: p, Err: shared.Storage("scan directory", err)})
		}
	}
	return files, skipped
}
