package repositories

import (
	"context"
	"time"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

// PlaylistSongRepository manages the ordered junction between playlists and songs.
//
// The (playlist_name, song_key) pair is unique, so a song can appear at most once per playlist.
type PlaylistSongRepository struct {
	db DBTX
}

// NewPlaylistSongRepository creates a new PlaylistSongRepository over the given connection or transaction
func NewPlaylistSongRepository(db DBTX) *PlaylistSongRepository {
	return &PlaylistSongRepository{db: db}
}

// Add appends the song to the end of the playlist. It reports false when the song was already present.
func (r *PlaylistSongRepository) Add(ctx context.Context, playlistName, songKey string) (bool, error) {
	query := `
		INSERT INTO playlist_songs (playlist_name, song_key, position, added_at)
		VALUES (?, ?, COALESCE((SELECT MAX(position) + 1 FROM playlist_songs WHERE playlist_name = ?), 0), ?)
		ON CONFLICT (playlist_name, song_key) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, playlistName, songKey, playlistName, time.Now())
	if err != nil {
		return false, shared.Storage("add playlist song", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, shared.Storage("add playlist song", err)
	}
	return rows > 0, nil
}

// Remove drops the song from the playlist. It reports false when the song was not a member.
func (r *PlaylistSongRepository) Remove(ctx context.Context, playlistName, songKey string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM playlist_songs WHERE playlist_name = ? AND song_key = ?`,
		playlistName, songKey,
	)
	if err != nil {
		return false, shared.Storage("remove playlist song", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, shared.Storage("remove playlist song", err)
	}
	return rows > 0, nil
}

// RemoveEverywhere drops the song from every playlist and returns the names of the playlists it left.
func (r *PlaylistSongRepository) RemoveEverywhere(ctx context.Context, songKey string) ([]string, error) {
	names, err := r.PlaylistsContaining(ctx, songKey)
	if err != nil {
		return nil, err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM playlist_songs WHERE song_key = ?`, songKey); err != nil {
		return nil, shared.Storage("remove song from playlists", err)
	}
	return names, nil
}

// PlaylistsContaining lists, in playlist creation order, the playlists the song belongs to.
func (r *PlaylistSongRepository) PlaylistsContaining(ctx context.Context, songKey string) ([]string, error) {
	query := `
		SELECT p.name
		FROM playlist_songs ps
		JOIN playlists p ON p.name = ps.playlist_name
		WHERE ps.song_key = ?
		ORDER BY p.rowid ASC
	`

	rows, err := r.db.QueryContext(ctx, query, songKey)
	if err != nil {
		return nil, shared.Storage("query song playlists", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, shared.Storage("scan song playlists", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("iterate song playlists", err)
	}
	return names, nil
}

// SongIDs returns the external ids of the playlist's songs in playback order.
func (r *PlaylistSongRepository) SongIDs(ctx context.Context, playlistName string) ([]string, error) {
	query := `
		SELECT s.id
		FROM playlist_songs ps
		JOIN songs s ON s.key = ps.song_key
		WHERE ps.playlist_name = ?
		ORDER BY ps.position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, playlistName)
	if err != nil {
		return nil, shared.Storage("query playlist songs", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, shared.Storage("scan playlist songs", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("iterate playlist songs", err)
	}
	return ids, nil
}

// All returns every playlist, including empty ones, mapped to its ordered song ids.
func (r *PlaylistSongRepository) All(ctx context.Context) (models.Playlists, error) {
	query := `
		SELECT p.name, s.id
		FROM playlists p
		LEFT JOIN playlist_songs ps ON ps.playlist_name = p.name
		LEFT JOIN songs s ON s.key = ps.song_key
		ORDER BY p.rowid ASC, ps.position ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, shared.Storage("query playlists", err)
	}
	defer rows.Close()

	playlists := models.Playlists{}
	for rows.Next() {
		var (
			name   string
			songID *string
		)
		if err := rows.Scan(&name, &songID); err != nil {
			return nil, shared.Storage("scan playlists", err)
		}
		if _, ok := playlists[name]; !ok {
			playlists[name] = []string{}
		}
		if songID != nil {
			playlists[name] = append(playlists[name], *songID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("iterate playlists", err)
	}
	return playlists, nil
}

// Ordered returns every playlist in creation order with its song ids.
func (r *PlaylistSongRepository) Ordered(ctx context.Context) ([]models.PlaylistSongs, error) {
	names, err := NewPlaylistRepository(r.db).List(ctx, nil)
	if err != nil {
		return nil, err
	}

	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}

	ordered := make([]models.PlaylistSongs, 0, len(names))
	for _, p := range names {
		ordered = append(ordered, models.PlaylistSongs{Name: p.Name(), SongIDs: all[p.Name()]})
	}
	return ordered, nil
}
