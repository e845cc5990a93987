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

// PlaylistRepository implements models.Repository[*models.PersistedPlaylist].
//
// Playlists are keyed by name and listed in creation order; a rename keeps the playlist's position.
type PlaylistRepository struct {
	db DBTX
}

var _ models.Repository[*models.PersistedPlaylist] = (*PlaylistRepository)(nil)

// NewPlaylistRepository creates a new PlaylistRepository over the given connection or transaction
func NewPlaylistRepository(db DBTX) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts a new playlist. A taken name fails with [shared.ErrPlaylistExists].
func (r *PlaylistRepository) Create(ctx context.Context, playlist *models.PersistedPlaylist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO playlists (name, created_at, updated_at) VALUES (?, ?, ?)`,
		playlist.Name(), playlist.CreatedAt(), playlist.UpdatedAt(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistExists, playlist.Name())
	}
	if err != nil {
		return shared.Storage("insert playlist", err)
	}
	return nil
}

// Get retrieves a playlist by name
func (r *PlaylistRepository) Get(ctx context.Context, name string) (*models.PersistedPlaylist, error) {
	row := r.db.QueryRowContext(ctx, `SELECT name, created_at, updated_at FROM playlists WHERE name = ?`, name)

	var (
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(&name, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, name)
	}
	if err != nil {
		return nil, shared.Storage("scan playlist", err)
	}

	playlist := models.NewPersistedPlaylist(name)
	playlist.SetCreatedAt(createdAt)
	playlist.SetUpdatedAt(updatedAt)
	return playlist, nil
}

// Exists reports whether a playlist with the given name is stored.
func (r *PlaylistRepository) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM playlists WHERE name = ?)`, name).Scan(&exists)
	if err != nil {
		return false, shared.Storage("check playlist", err)
	}
	return exists, nil
}

// Update bumps the playlist's updated_at timestamp.
func (r *PlaylistRepository) Update(ctx context.Context, playlist *models.PersistedPlaylist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	playlist.SetUpdatedAt(now)

	result, err := r.db.ExecContext(ctx, `UPDATE playlists SET updated_at = ? WHERE name = ?`, now, playlist.Name())
	if err != nil {
		return shared.Storage("update playlist", err)
	}
	return affectedOne(result, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlist.Name()))
}

// Rename swaps a playlist's key. Membership rows follow through ON UPDATE CASCADE, preserving order.
func (r *PlaylistRepository) Rename(ctx context.Context, oldName, newName string) error {
	target := models.NewPersistedPlaylist(newName)
	if err := target.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE playlists SET name = ?, updated_at = ? WHERE name = ?`,
		target.Name(), time.Now(), oldName,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistExists, target.Name())
	}
	if err != nil {
		return shared.Storage("rename playlist", err)
	}
	return affectedOne(result, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, oldName))
}

// Delete removes a playlist and, through ON DELETE CASCADE, its membership rows.
func (r *PlaylistRepository) Delete(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM playlists WHERE name = ?`, name)
	if err != nil {
		return shared.Storage("delete playlist", err)
	}
	return affectedOne(result, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, name))
}

// List retrieves all playlists in creation order. Criteria are currently unused.
func (r *PlaylistRepository) List(ctx context.Context, criteria map[string]any) ([]*models.PersistedPlaylist, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, created_at, updated_at FROM playlists ORDER BY rowid ASC`)
	if err != nil {
		return nil, shared.Storage("query playlists", err)
	}
	defer rows.Close()

	playlists := []*models.PersistedPlaylist{}
	for rows.Next() {
		var (
			name      string
			createdAt time.Time
			updatedAt time.Time
		)
		if err := rows.Scan(&name, &createdAt, &updatedAt); err != nil {
			return nil, shared.Storage("scan playlist", err)
		}
		playlist := models.NewPersistedPlaylist(name)
		playlist.SetCreatedAt(createdAt)
		playlist.SetUpdatedAt(updatedAt)
		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, shared.Storage("iterate playlists", err)
	}
	return playlists, nil
}
