package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/desertthunder/crate/internal/events"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/repositories"
	"github.com/desertthunder/crate/internal/shared"
)

// File is one audio file in an upload batch.
type File struct {
	Name string
	Body io.Reader
}

// UploadResult reports the outcome for a single file.
type UploadResult struct {
	Name      string `json:"name"`
	ID        string `json:"id,omitempty"`
	Overwrote bool   `json:"overwrote,omitempty"`
	Err       error  `json:"-"`
}

// Uploaded counts the successful results.
func Uploaded(results []UploadResult) int {
	n := 0
	for _, r := range results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// Upload stores every file and registers its metadata, returning one result per file in input order.
//
// An empty batch fails with [shared.ErrInvalidInput]. A failing file never stops its siblings.
// Re-uploading an existing id overwrites its audio and keeps its playlist memberships.
func (l *Library) Upload(ctx context.Context, files []File) ([]UploadResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files", shared.ErrInvalidInput)
	}

	results := make([]UploadResult, len(files))
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			results[i] = UploadResult{Name: f.Name, Err: err}
			continue
		}
		results[i] = l.UploadOne(ctx, f)
	}

	if n := Uploaded(results); n > 0 {
		l.publisher.Publish(ctx, events.New(events.SongsUploaded, "").WithDetail(fmt.Sprintf("%d", n)))
	}
	return results, nil
}

// UploadOne stores a single file without announcing it.
func (l *Library) UploadOne(ctx context.Context, f File) UploadResult {
	result := UploadResult{Name: f.Name}

	id := models.SanitizeName(path.Base(strings.ReplaceAll(f.Name, "\\", "/")))
	if _, err := l.blobs.ResolvePath(id); err != nil {
		result.Err = err
		return result
	}
	if !l.blobs.IsAudio(id) {
		result.Err = fmt.Errorf("%w: unsupported file type %q", shared.ErrInvalidInput, filepath.Ext(id))
		return result
	}
	result.ID = id

	l.catalog.Lock()
	defer l.catalog.Unlock()

	existed, err := l.blobs.Exists(id)
	if err != nil {
		result.Err = l.fail("upload song", err)
		return result
	}

	size, err := l.blobs.Put(id, f.Body)
	if err != nil {
		result.Err = l.fail("upload song", err)
		return result
	}

	overwrote, err := l.register(ctx, id, size)
	if err != nil {
		if !existed {
			if rmErr := l.blobs.Remove(id); rmErr != nil {
				l.logger.Warn("failed to remove unregistered blob", "id", id, "error", rmErr)
			}
		}
		result.Err = l.fail("upload song", err)
		return result
	}

	result.Overwrote = overwrote || existed
	if result.Overwrote {
		l.logger.Warn("upload replaced existing song", "id", id)
	}
	return result
}

// register creates metadata for a stored blob, or refreshes the size of an existing record.
// It reports whether a record already existed. Callers hold the catalog lock.
func (l *Library) register(ctx context.Context, id string, size int64) (bool, error) {
	var existed bool
	err := shared.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		songs := repositories.NewSongRepository(tx)

		song, err := songs.Get(ctx, id)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			song = models.NewPersistedSong(shared.GenerateID(), id)
			song.SetSize(size)
			return songs.Create(ctx, song)
		case err != nil:
			return err
		}

		existed = true
		if song.Size() == size {
			return nil
		}
		song.SetSize(size)
		return songs.Update(ctx, song)
	})
	return existed, err
}
