package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

// SongRepository implements models.Repository[*models.PersistedSong] for song metadata.
//
// Songs are addressed by their external id; the internal key is what playlist membership references.
type SongRepository struct {
	db DBTX
}

var _ models.Repository[*models.PersistedSong] = (*SongRepository)(nil)

// NewSongRepository creates a new SongRepository over the given connection or transaction
func NewSongRepository(db DBTX) *SongRepository {
	return &SongRepository{db: db}
}

const songColumns = `key, id, name, artist, duration_seconds, size, created_at, updated_at`

// Create inserts a new song. A taken id fails with [shared.ErrSongExists].
func (r *SongRepository) Create(ctx context.Context, song *models.PersistedSong) error {
	if err := song.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO songs (` + songColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		song.Key(),
		song.ID(),
		song.Name(),
		song.Artist(),
		song.Duration(),
		song.Size(),
		song.CreatedAt(),
		song.UpdatedAt(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", shared.ErrSongExists, song.ID())
	}
	if err != nil {
		return shared.Storage("insert song", err)
	}

	return nil
}

// Get retrieves a song by its external id
func (r *SongRepository) Get(ctx context.Context, id string) (*models.PersistedSong, error) {
	query := `SELECT ` + songColumns + ` FROM songs WHERE id = ?`
	return r.scan(r.db.QueryRowContext(ctx, query, id), id)
}

// GetByKey retrieves a song by its internal key
func (r *SongRepository) GetByKey(ctx context.Context, key string) (*models.PersistedSong, error) {
	query := `SELECT ` + songColumns + ` FROM songs WHERE key = ?`
	return r.scan(r.db.QueryRowContext(ctx, query, key), key)
}

// Exists reports whether a song with the given external id is stored.
func (r *SongRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM songs WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, shared.Storage("check song", err)
	}
	return exists, nil
}

// Update writes the song's mutable fields, including a relabelled id, matching on the internal key.
func (r *SongRepository) Update(ctx context.Context, song *models.PersistedSong) error {
	if err := song.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	song.SetUpdatedAt(now)

	query := `
		UPDATE songs
		SET id = ?, name = ?, artist = ?, duration_seconds = ?, size = ?, updated_at = ?
		WHERE key = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		song.ID(),
		song.Name(),
		song.Artist(),
		song.Duration(),
		song.Size(),
		now,
		song.Key(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", shared.ErrSongExists, song.ID())
	}
	if err != nil {
		return shared.Storage("update song", err)
	}

	if err := affectedOne(result, fmt.Errorf("%w: %s", shared.ErrSongNotFound, song.ID())); err != nil {
		return err
	}
	return nil
}

// Delete removes a song by external id. Playlist membership rows go with it through ON DELETE CASCADE.
func (r *SongRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM songs WHERE id = ?`, id)
	if err != nil {
		return shared.Storage("delete song", err)
	}
	return affectedOne(result, fmt.Errorf("%w: %s", shared.ErrSongNotFound, id))
}

// List retrieves songs ordered by id.
//
// Supported criteria: "ids" ([]string) restricts to the given external ids.
func (r *SongRepository) List(ctx context.Context, criteria map[string]any) ([]*models.PersistedSong, error) {
	query := `SELECT ` + songColumns + ` FROM songs`
	args := []any{}

	if ids, ok := criteria["ids"].([]string); ok {
		if len(ids) == 0 {
			return []*models.PersistedSong{}, nil
		}
		query += " WHERE id IN (?" + repeatPlaceholder(len(ids)-1) + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}

	query += " ORDER BY id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, shared.Storage("query songs", err)
	}
	defer rows.Close()

	songs := []*models.PersistedSong{}
	for rows.Next() {
		song, err := r.scan(rows, "")
		if err != nil {
			return nil, err
		}
		songs = append(songs, song)
	}

	if err := rows.Err(); err != nil {
		return nil, shared.Storage("iterate songs", err)
	}

	return songs, nil
}

// scan reads one song row. ref names the requested song in not-found errors.
func (r *SongRepository) scan(row rowScanner, ref string) (*models.PersistedSong, error) {
	var (
		key       string
		id        string
		name      string
		artist    string
		duration  int
		size      int64
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(&key, &id, &name, &artist, &duration, &size, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSongNotFound, ref)
	}
	if err != nil {
		return nil, shared.Storage("scan song", err)
	}

	song := models.NewPersistedSong(key, id)
	song.SetArtist(artist)
	song.SetDuration(duration)
	song.SetSize(size)
	song.SetCreatedAt(createdAt)
	song.SetUpdatedAt(updatedAt)

	return song, nil
}

// repeatPlaceholder returns n copies of ", ?".
func repeatPlaceholder(n int) string {
	b := make([]byte, 0, n*3)
	for range n {
		b = append(b, ", ?"...)
	}
	return string(b)
}
