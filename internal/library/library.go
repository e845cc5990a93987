package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/desertthunder/crate/internal/events"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/repositories"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/desertthunder/crate/internal/storage"
)

// Library is the consistency coordinator between song metadata, audio blobs and playlists.
type Library struct {
	db        *sql.DB
	blobs     *storage.Store
	publisher events.Publisher
	logger    *log.Logger

	catalog   sync.RWMutex
	playlists *keyedMutex
}

// Option configures a [Library].
type Option func(*Library)

// WithPublisher sets where committed changes are announced.
func WithPublisher(p events.Publisher) Option {
	return func(l *Library) { l.publisher = p }
}

// WithLogger sets the logger storage failures are reported to.
func WithLogger(logger *log.Logger) Option {
	return func(l *Library) { l.logger = logger }
}

// New creates a coordinator over a migrated database and a blob store.
func New(db *sql.DB, blobs *storage.Store, opts ...Option) *Library {
	l := &Library{
		db:        db,
		blobs:     blobs,
		publisher: events.Nop{},
		logger:    log.Default(),
		playlists: newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "library")
	return l
}

// Blobs exposes the underlying blob store.
func (l *Library) Blobs() *storage.Store { return l.blobs }

// Accepts reports whether name has an audio extension the library stores.
func (l *Library) Accepts(name string) bool { return l.blobs.IsAudio(name) }

// Snapshot is a consistent view of the whole library.
type Snapshot struct {
	Songs     []models.Song          `json:"songs"`
	Playlists []models.PlaylistSongs `json:"playlists"`
}

// ListSongs returns every song ordered by id.
func (l *Library) ListSongs(ctx context.Context) ([]models.Song, error) {
	l.catalog.RLock()
	defer l.catalog.RUnlock()

	songs, err := repositories.NewSongRepository(l.db).List(ctx, nil)
	if err != nil {
		return nil, l.fail("list songs", err)
	}
	return toDTOs(songs), nil
}

// Get returns a single song.
func (l *Library) Get(ctx context.Context, id string) (models.Song, error) {
	l.catalog.RLock()
	defer l.catalog.RUnlock()

	song, err := repositories.NewSongRepository(l.db).Get(ctx, id)
	if err != nil {
		return models.Song{}, l.fail("get song", err)
	}
	return song.DTO(), nil
}

// OpenSong opens a song's audio for reading. The caller closes the file.
//
// Ids that could address anything outside the songs directory fail with [shared.ErrInvalidInput] before any lookup.
func (l *Library) OpenSong(ctx context.Context, id string) (*os.File, models.Song, error) {
	if _, err := l.blobs.ResolvePath(id); err != nil {
		return nil, models.Song{}, err
	}

	l.catalog.RLock()
	defer l.catalog.RUnlock()

	song, err := repositories.NewSongRepository(l.db).Get(ctx, id)
	if err != nil {
		return nil, models.Song{}, l.fail("get song", err)
	}

	f, err := l.blobs.Open(id)
	if err != nil {
		return nil, models.Song{}, l.fail("open song", err)
	}
	return f, song.DTO(), nil
}

// RenameSong relabels a song and its blob, returning the new id.
//
// newName is sanitized and keeps the song's extension. The rename fails with [shared.ErrSongNotFound]
// if id is unknown and [shared.ErrSongExists] if the computed id is taken, leaving the song untouched.
func (l *Library) RenameSong(ctx context.Context, id, newName string) (string, error) {
	if models.SanitizeName(newName) == "" {
		return "", fmt.Errorf("%w: new name", shared.ErrMissingArgument)
	}

	target := models.RenameTarget(id, newName)
	if _, err := l.blobs.ResolvePath(target); err != nil {
		return "", err
	}

	l.catalog.Lock()
	defer l.catalog.Unlock()

	var key string
	err := shared.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		songs := repositories.NewSongRepository(tx)

		song, err := songs.Get(ctx, id)
		if err != nil {
			return err
		}
		key = song.Key()

		if target == id {
			return nil
		}

		taken, err := l.blobs.Exists(target)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %s", shared.ErrSongExists, target)
		}

		song.Relabel(target)
		return songs.Update(ctx, song)
	})
	if err != nil {
		return "", l.fail("rename song", err)
	}

	if target == id {
		return id, nil
	}

	if err := l.blobs.Rename(id, target); err != nil {
		l.revertRename(ctx, key, id)
		return "", l.fail("rename song blob", err)
	}

	l.logger.Info("renamed song", "from", id, "to", target)
	l.publisher.Publish(ctx, events.New(events.SongRenamed, id).WithDetail(target))
	return target, nil
}

// revertRename restores the song's previous id after its blob could not be moved.
func (l *Library) revertRename(ctx context.Context, key, id string) {
	ctx = context.WithoutCancel(ctx)
	err := shared.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		songs := repositories.NewSongRepository(tx)

		song, err := songs.GetByKey(ctx, key)
		if err != nil {
			return err
		}
		song.Relabel(id)
		return songs.Update(ctx, song)
	})
	if err != nil {
		l.logger.Error("failed to revert song rename, run a sweep", "key", key, "id", id, "error", err)
	}
}

// Tags carries song metadata edits; nil fields are left unchanged.
type Tags struct {
	Artist          *string
	DurationSeconds *int
}

// TagSong records artist and duration metadata for a song.
func (l *Library) TagSong(ctx context.Context, id string, tags Tags) (models.Song, error) {
	if tags.Artist == nil && tags.DurationSeconds == nil {
		return models.Song{}, fmt.Errorf("%w: artist or duration", shared.ErrMissingArgument)
	}

	l.catalog.Lock()
	defer l.catalog.Unlock()

	var tagged models.Song
	err := shared.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		songs := repositories.NewSongRepository(tx)

		song, err := songs.Get(ctx, id)
		if err != nil {
			return err
		}
		if tags.Artist != nil {
			song.SetArtist(strings.TrimSpace(*tags.Artist))
		}
		if tags.DurationSeconds != nil {
			song.SetDuration(*tags.DurationSeconds)
		}
		if err := songs.Update(ctx, song); err != nil {
			return err
		}
		tagged = song.DTO()
		return nil
	})
	if err != nil {
		return models.Song{}, l.fail("tag song", err)
	}

	l.logger.Info("tagged song", "id", id, "artist", tagged.Artist, "duration", tagged.DurationSeconds)
	l.publisher.Publish(ctx, events.New(events.SongTagged, id))
	return tagged, nil
}

// DeleteSong removes a song's metadata, its blob and every playlist reference to it.
func (l *Library) DeleteSong(ctx context.Context, id string) error {
	l.catalog.Lock()
	defer l.catalog.Unlock()

	var affected []string
	err := shared.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		songs := repositories.NewSongRepository(tx)

		song, err := songs.Get(ctx, id)
		if err != nil {
			return err
		}

		affected, err = repositories.NewPlaylistSongRepository(tx).RemoveEverywhere(ctx, song.Key())
		if err != nil {
			return err
		}

		if err := songs.Delete(ctx, id); err != nil {
			return err
		}

		// The blob goes before commit; a failure here rolls the metadata delete back.
		if err := l.blobs.Remove(id); err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return l.fail("delete song", err)
	}

	l.logger.Info("deleted song", "id", id, "playlists", len(affected))
	l.publisher.Publish(ctx, events.New(events.SongDeleted, id))
	for _, name := range affected {
		l.publisher.Publish(ctx, events.New(events.PlaylistChanged, name))
	}
	return nil
}

// ListPlaylists maps every playlist name to its ordered song ids.
func (l *Library) ListPlaylists(ctx context.Context) (models.Playlists, error) {
	l.catalog.RLock()
	defer l.catalog.RUnlock()

	playlists, err := repositories.NewPlaylistSongRepository(l.db).All(ctx)
	if err != nil {
		return nil, l.fail("list playlists", err)
	}
	return playlists, nil
}

// OrderedPlaylists returns every playlist in creation order.
func (l *Library) OrderedPlaylists(ctx context.Context) ([]models.PlaylistSongs, error) {
	l.catalog.RLock()
	defer l.catalog.RUnlock()

	playlists, err := repositories.NewPlaylistSongRepository(l.db).Ordered(ctx)
	if err != nil {
		return nil, l.fail("list playlists", err)
	}
	return playlists, nil
}

// Playlist returns one playlist's ordered song ids.
func (l *Library) Playlist(ctx context.Context, name string) (models.PlaylistSongs, error) {
	l.catalog.RLock()
	defer l.catalog.RUnlock()

	if _, err := repositories.NewPlaylistRepository(l.db).Get(ctx, name); err != nil {
		return models.PlaylistSongs{}, l.fail("get playlist", err)
	}

	ids, err := repositories.NewPlaylistSongRepository(l.db).SongIDs(ctx, name)
	if err != nil {
		return models.PlaylistSongs{}, l.fail("get playlist", err)
	}
	return models.PlaylistSongs{Name: name, SongIDs: ids}, nil
}

// CreatePlaylist adds an empty playlist. Blank names fail with [shared.ErrInvalidInput] and taken names with [shared.ErrPlaylistExists].
func (l *Library) CreatePlaylist(ctx context.Context, name string) error {
	playlist := models.NewPersistedPlaylist(name)
	if err := playlist.Validate(); err != nil {
		return err
	}

	l.catalog.RLock()
	defer l.catalog.RUnlock()
	defer l.playlists.Lock(playlist.Name())()

	err := shared.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		return repositories.NewPlaylistRepository(tx).Create(ctx, playlist)
	})
	if err != nil {
		return l.fail("create playlist", err)
	}

	l.publisher.Publish(ctx, events.New(events.PlaylistCreated, playlist.Name()))
	return nil
}

// DeletePlaylist removes a playlist and its membership. The songs themselves are untouched.
func (l *Library) DeletePlaylist(ctx context.Context, name string) error {
	l.catalog.RLock()
	defer l.catalog.RUnlock()
	defer l.playlists.Lock(name)()

	err := shared.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		return repositories.NewPlaylistRepository(tx).Delete(ctx, name)
	})
	if err != nil {
		return l.fail("delete playlist", err)
	}

	l.publisher.Publish(ctx, events.New(events.PlaylistDeleted, name))
	return nil
}

// RenamePlaylist swaps a playlist's name, keeping its songs and their order.
func (l *Library) RenamePlaylist(ctx context.Context, oldName, newName string) error {
	target := models.NewPersistedPlaylist(newName)
	if err := target.Validate(); err != nil {
		return err
	}

	l.catalog.RLock()
	defer l.catalog.RUnlock()
	defer l.playlists.Lock(oldName, target.Name())()

	err := shared.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		playlists := repositories.NewPlaylistRepository(tx)
		if oldName == target.Name() {
			_, err := playlists.Get(ctx, oldName)
			return err
		}
		return playlists.Rename(ctx, oldName, target.Name())
	})
	if err != nil {
		return l.fail("rename playlist", err)
	}

	if oldName != target.Name() {
		l.publisher.Publish(ctx, events.New(events.PlaylistRenamed, oldName).WithDetail(target.Name()))
	}
	return nil
}

// AddToPlaylist appends a song to a playlist.
//
// Both must exist. Adding a song that is already present is a no-op and reports false.
func (l *Library) AddToPlaylist(ctx context.Context, playlist, songID string) (bool, error) {
	l.catalog.RLock()
	defer l.catalog.RUnlock()
	defer l.playlists.Lock(playlist)()

	var added bool
	err := shared.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		exists, err := repositories.NewPlaylistRepository(tx).Exists(ctx, playlist)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlist)
		}

		song, err := repositories.NewSongRepository(tx).Get(ctx, songID)
		if err != nil {
			return err
		}

		added, err = repositories.NewPlaylistSongRepository(tx).Add(ctx, playlist, song.Key())
		return err
	})
	if err != nil {
		return false, l.fail("add to playlist", err)
	}

	if added {
		l.publisher.Publish(ctx, events.New(events.PlaylistChanged, playlist))
	}
	return added, nil
}

// RemoveFromPlaylist drops a song from a playlist.
//
// The playlist must exist; removing a song that is not a member, or no longer exists, is a no-op and reports false.
func (l *Library) RemoveFromPlaylist(ctx context.Context, playlist, songID string) (bool, error) {
	l.catalog.RLock()
	defer l.catalog.RUnlock()
	defer l.playlists.Lock(playlist)()

	var removed bool
	err := shared.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		exists, err := repositories.NewPlaylistRepository(tx).Exists(ctx, playlist)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlist)
		}

		song, err := repositories.NewSongRepository(tx).Get(ctx, songID)
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		removed, err = repositories.NewPlaylistSongRepository(tx).Remove(ctx, playlist, song.Key())
		return err
	})
	if err != nil {
		return false, l.fail("remove from playlist", err)
	}

	if removed {
		l.publisher.Publish(ctx, events.New(events.PlaylistChanged, playlist))
	}
	return removed, nil
}

// Snapshot reads songs and playlists in one transaction.
func (l *Library) Snapshot(ctx context.Context) (Snapshot, error) {
	l.catalog.RLock()
	defer l.catalog.RUnlock()

	var snap Snapshot
	err := shared.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		songs, err := repositories.NewSongRepository(tx).List(ctx, nil)
		if err != nil {
			return err
		}
		snap.Songs = toDTOs(songs)

		snap.Playlists, err = repositories.NewPlaylistSongRepository(tx).Ordered(ctx)
		return err
	})
	if err != nil {
		return Snapshot{}, l.fail("snapshot", err)
	}
	return snap, nil
}

// fail logs storage failures with their full cause and returns err unchanged.
func (l *Library) fail(op string, err error) error {
	var se *shared.StorageError
	if errors.As(err, &se) {
		l.logger.Error("storage failure", "op", op, "step", se.Op, "error", se.Err)
	}
	return err
}

func toDTOs(songs []*models.PersistedSong) []models.Song {
	return lo.Map(songs, func(s *models.PersistedSong, _ int) models.Song {
		return s.DTO()
	})
}
