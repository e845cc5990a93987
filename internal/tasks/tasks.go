// package tasks implements bulk import and export jobs over the music library.
//
// The core abstraction is [Engine], which drives a [Library] through worker pools.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/crate/internal/library"
	"github.com/desertthunder/crate/internal/models"
)

const (
	defaultWorkers = 4
	maxWorkers     = 16
)

// Library is the catalog surface the engine drives. *library.Library satisfies it.
type Library interface {
	Accepts(name string) bool
	UploadOne(ctx context.Context, f library.File) library.UploadResult
	CreatePlaylist(ctx context.Context, name string) error
	AddToPlaylist(ctx context.Context, playlist, songID string) (bool, error)
	ListSongs(ctx context.Context) ([]models.Song, error)
	OrderedPlaylists(ctx context.Context) ([]models.PlaylistSongs, error)
}

// Engine runs bulk jobs against a [Library].
type Engine struct {
	lib    Library
	logger *log.Logger
}

// NewEngine creates a new Engine. A nil logger falls back to the default logger.
func NewEngine(lib Library, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{lib: lib, logger: logger.With("component", "tasks")}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func workerCount(n, jobs int) int {
	if n <= 0 {
		n = defaultWorkers
	}
	n = min(n, maxWorkers)
	return max(min(n, jobs), 1)
}
