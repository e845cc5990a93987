package library

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/crate/internal/events"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/desertthunder/crate/internal/storage"
)

type fixture struct {
	lib      *Library
	db       *sql.DB
	blobs    *storage.Store
	recorder *events.Recorder
}

func setupLibrary(t *testing.T) *fixture {
	t.Helper()
	return setupLibraryAt(t, ":memory:")
}

func setupLibraryAt(t *testing.T, dsn string) *fixture {
	t.Helper()

	db, err := shared.NewDatabase(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, shared.RunMigrations(db))

	blobs, err := storage.New(t.TempDir(), []string{".mp3", ".ogg"})
	require.NoError(t, err)

	recorder := events.NewRecorder(256)
	lib := New(db, blobs, WithPublisher(recorder), WithLogger(log.New(io.Discard)))
	return &fixture{lib: lib, db: db, blobs: blobs, recorder: recorder}
}

func (f *fixture) upload(t *testing.T, names ...string) {
	t.Helper()

	files := make([]File, len(names))
	for i, name := range names {
		files[i] = File{Name: name, Body: strings.NewReader("audio:" + name)}
	}

	results, err := f.lib.Upload(context.Background(), files)
	require.NoError(t, err)
	for _, r := range results {
		require.NoError(t, r.Err, "upload %s", r.Name)
	}
}

func (f *fixture) playlist(t *testing.T, name string, songIDs ...string) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, f.lib.CreatePlaylist(ctx, name))
	for _, id := range songIDs {
		_, err := f.lib.AddToPlaylist(ctx, name, id)
		require.NoError(t, err)
	}
}

// assertIntegrity checks that every playlist entry names an existing song and no playlist repeats one.
func assertIntegrity(t *testing.T, lib *Library) {
	t.Helper()

	snap, err := lib.Snapshot(context.Background())
	require.NoError(t, err)

	known := map[string]bool{}
	for _, s := range snap.Songs {
		known[s.ID] = true
	}

	for _, p := range snap.Playlists {
		seen := map[string]bool{}
		for _, id := range p.SongIDs {
			assert.True(t, known[id], "playlist %s references missing song %s", p.Name, id)
			assert.False(t, seen[id], "playlist %s repeats %s", p.Name, id)
			seen[id] = true
		}
	}
}

func TestUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("RegistersSongs", func(t *testing.T) {
		f := setupLibrary(t)
		f.upload(t, "B.mp3", "A.ogg")

		songs, err := f.lib.ListSongs(ctx)
		require.NoError(t, err)
		require.Len(t, songs, 2)
		assert.Equal(t, "A.ogg", songs[0].ID)
		assert.Equal(t, "A", songs[0].Name)
		assert.Equal(t, "B.mp3", songs[1].ID)

		kinds := eventKinds(f.recorder.Drain())
		assert.Equal(t, []events.Kind{events.SongsUploaded}, kinds)
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		f := setupLibrary(t)

		_, err := f.lib.Upload(ctx, nil)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("PartialFailure", func(t *testing.T) {
		f := setupLibrary(t)

		results, err := f.lib.Upload(ctx, []File{
			{Name: "good.mp3", Body: strings.NewReader("x")},
			{Name: "notes.txt", Body: strings.NewReader("x")},
			{Name: "..", Body: strings.NewReader("x")},
			{Name: "also-good.ogg", Body: strings.NewReader("x")},
		})
		require.NoError(t, err)
		require.Len(t, results, 4)

		assert.NoError(t, results[0].Err)
		assert.ErrorIs(t, results[1].Err, shared.ErrInvalidInput)
		assert.ErrorIs(t, results[2].Err, shared.ErrInvalidInput)
		assert.NoError(t, results[3].Err)
		assert.Equal(t, 2, Uploaded(results))

		songs, err := f.lib.ListSongs(ctx)
		require.NoError(t, err)
		assert.Len(t, songs, 2)
	})

	t.Run("StripsDirectories", func(t *testing.T) {
		f := setupLibrary(t)

		results, err := f.lib.Upload(ctx, []File{
			{Name: "../../etc/evil.mp3", Body: strings.NewReader("x")},
			{Name: `C:\music\win.mp3`, Body: strings.NewReader("x")},
		})
		require.NoError(t, err)
		assert.Equal(t, "evil.mp3", results[0].ID)
		assert.Equal(t, "win.mp3", results[1].ID)
	})

	t.Run("OverwriteKeepsMembership", func(t *testing.T) {
		f := setupLibrary(t)
		f.upload(t, "A.mp3")
		f.playlist(t, "P", "A.mp3")

		results, err := f.lib.Upload(ctx, []File{{Name: "A.mp3", Body: strings.NewReader("replacement")}})
		require.NoError(t, err)
		assert.True(t, results[0].Overwrote)

		playlists, err := f.lib.ListPlaylists(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"A.mp3"}, playlists["P"])

		r, _, err := f.lib.OpenSong(ctx, "A.mp3")
		require.NoError(t, err)
		defer r.Close()
		data, _ := io.ReadAll(r)
		assert.Equal(t, "replacement", string(data))
	})
}

func TestOpenSong(t *testing.T) {
	ctx := context.Background()
	f := setupLibrary(t)
	f.upload(t, "A.mp3")

	r, song, err := f.lib.OpenSong(ctx, "A.mp3")
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "A", song.Name)

	_, _, err = f.lib.OpenSong(ctx, "missing.mp3")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	for _, id := range []string{"../A.mp3", "/etc/passwd", `..\A.mp3`, ""} {
		_, _, err := f.lib.OpenSong(ctx, id)
		assert.ErrorIs(t, err, shared.ErrInvalidInput, id)
	}
}

func TestRenameSong(t *testing.T) {
	ctx := context.Background()

	// P3
	t.Run("UpdatesEveryPlaylist", func(t *testing.T) {
		f := setupLibrary(t)
		f.upload(t, "A.mp3", "C.mp3")
		f.playlist(t, "P1", "C.mp3", "A.mp3")
		f.playlist(t, "P2", "A.mp3")

		newID, err := f.lib.RenameSong(ctx, "A.mp3", "B")
		require.NoError(t, err)
		assert.Equal(t, "B.mp3", newID)

		playlists, err := f.lib.ListPlaylists(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"C.mp3", "B.mp3"}, playlists["P1"])
		assert.Equal(t, []string{"B.mp3"}, playlists["P2"])

		exists, err := f.blobs.Exists("B.mp3")
		require.NoError(t, err)
		assert.True(t, exists)
		exists, _ = f.blobs.Exists("A.mp3")
		assert.False(t, exists)

		song, err := f.lib.Get(ctx, "B.mp3")
		require.NoError(t, err)
		assert.Equal(t, "B", song.Name)
		assertIntegrity(t, f.lib)
	})

	// P8
	t.Run("ConflictLeavesSongUntouched", func(t *testing.T) {
		f := setupLibrary(t)
		f.upload(t, "A.mp3", "B.mp3")
		f.playlist(t, "P", "A.mp3")

		_, err := f.lib.RenameSong(ctx, "A.mp3", "B.mp3")
		assert.ErrorIs(t, err, shared.ErrConflict)

		_, err = f.lib.Get(ctx, "A.mp3")
		assert.NoError(t, err)

		playlists, err := f.lib.ListPlaylists(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"A.mp3"}, playlists["P"])

		r, _, err := f.lib.OpenSong(ctx, "B.mp3")
		require.NoError(t, err)
		defer r.Close()
		data, _ := io.ReadAll(r)
		assert.Equal(t, "audio:B.mp3", string(data))
	})

	t.Run("NotFound", func(t *testing.T) {
		f := setupLibrary(t)

		_, err := f.lib.RenameSong(ctx, "ghost.mp3", "B")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("SanitizesName", func(t *testing.T) {
		f := setupLibrary(t)
		f.upload(t, "A.ogg")

		newID, err := f.lib.RenameSong(ctx, "A.ogg", "../x/y")
		require.NoError(t, err)
		assert.Equal(t, ".._x_y.ogg", newID)
		assert.Equal(t, filepath.Join(f.blobs.Root(), newID), mustResolve(t, f.blobs, newID))
	})

	t.Run("BlankName", func(t *testing.T) {
		f := setupLibrary(t)
		f.upload(t, "A.mp3")

		_, err := f.lib.RenameSong(ctx, "A.mp3", "   ")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("SameNameIsNoop", func(t *testing.T) {
		f := setupLibrary(t)
		f.upload(t, "A.mp3")
		f.recorder.Drain()

		newID, err := f.lib.RenameSong(ctx, "A.mp3", "A")
		require.NoError(t, err)
		assert.Equal(t, "A.mp3", newID)
		assert.Empty(t, f.recorder.Drain())
	})

	t.Run("BlobFailureRevertsMetadata", func(t *testing.T) {
		f := setupLibrary(t)
		f.upload(t, "A.mp3")
		f.playlist(t, "P", "A.mp3")

		// A directory is invisible to the blob store's existence check but blocks the move.
		require.NoError(t, os.Mkdir(filepath.Join(f.blobs.Root(), "B.mp3"), storage.DirPermissions))
		require.NoError(t, os.WriteFile(filepath.Join(f.blobs.Root(), "B.mp3", "keep"), nil, storage.FilePermissions))

		_, err := f.lib.RenameSong(ctx, "A.mp3", "B")
		assert.ErrorIs(t, err, shared.ErrStorageFailure)

		_, err = f.lib.Get(ctx, "A.mp3")
		assert.NoError(t, err, "metadata should be reverted")

		playlists, err := f.lib.ListPlaylists(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"A.mp3"}, playlists["P"])
	})
}

func mustResolve(t *testing.T, s *storage.Store, name string) string {
	t.Helper()
	p, err := s.ResolvePath(name)
	require.NoError(t, err)
	return p
}

func TestDeleteSong(t *testing.T) {
	ctx := context.Background()

	t.Run("CascadesOutOfPlaylists", func(t *testing.T) {
		f := setupLibrary(t)
		f.upload(t, "A.mp3", "B.mp3")
		f.playlist(t, "P1", "A.mp3", "B.mp3")
		f.playlist(t, "P2", "A.mp3")
		f.recorder.Drain()

		require.NoError(t, f.lib.DeleteSong(ctx, "A.mp3"))

		playlists, err := f.lib.ListPlaylists(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"B.mp3"}, playlists["P1"])
		assert.Empty(t, playlists["P2"])

		exists, _ := f.blobs.Exists("A.mp3")
		assert.False(t, exists)

		kinds := eventKinds(f.recorder.Drain())
		assert.Equal(t, []events.Kind{events.SongDeleted, events.PlaylistChanged, events.PlaylistChanged}, kinds)
		assertIntegrity(t, f.lib)
	})

	t.Run("NotFound", func(t *testing.T) {
		f := setupLibrary(t)
		assert.ErrorIs(t, f.lib.DeleteSong(ctx, "ghost.mp3"), shared.ErrNotFound)
	})

	t.Run("BlobFailureAbortsDelete", func(t *testing.T) {
		f := setupLibrary(t)
		f.upload(t, "A.mp3")
		f.playlist(t, "P", "A.mp3")

		// Swap the blob for a non-empty directory so removal fails.
		path := mustResolve(t, f.blobs, "A.mp3")
		require.NoError(t, os.Remove(path))
		require.NoError(t, os.Mkdir(path, storage.DirPermissions))
		require.NoError(t, os.WriteFile(filepath.Join(path, "keep"), nil, storage.FilePermissions))

		err := f.lib.DeleteSong(ctx, "A.mp3")
		assert.ErrorIs(t, err, shared.ErrStorageFailure)
		assert.NotContains(t, err.Error(), f.blobs.Root(), "storage errors must not leak paths")

		_, err = f.lib.Get(ctx, "A.mp3")
		assert.NoError(t, err)

		playlists, _ := f.lib.ListPlaylists(ctx)
		assert.Equal(t, []string{"A.mp3"}, playlists["P"])
	})
}

func TestTagSong(t *testing.T) {
	ctx := context.Background()

	t.Run("SetsArtistAndDuration", func(t *testing.T) {
		f := setupLibrary(t)
		f.upload(t, "A.mp3")
		f.playlist(t, "P", "A.mp3")
		f.recorder.Drain()

		artist, seconds := "  Coltrane ", 214
		song, err := f.lib.TagSong(ctx, "A.mp3", Tags{Artist: &artist, DurationSeconds: &seconds})
		require.NoError(t, err)
		assert.Equal(t, "Coltrane", song.Artist)
		assert.Equal(t, 214, song.DurationSeconds)

		stored, err := f.lib.Get(ctx, "A.mp3")
		require.NoError(t, err)
		assert.Equal(t, song, stored)

		playlists, err := f.lib.ListPlaylists(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"A.mp3"}, playlists["P"])
		assert.Equal(t, []events.Kind{events.SongTagged}, eventKinds(f.recorder.Drain()))
	})

	t.Run("LeavesNilFieldsAlone", func(t *testing.T) {
		f := setupLibrary(t)
		f.upload(t, "A.mp3")

		artist, seconds := "Monk", 90
		_, err := f.lib.TagSong(ctx, "A.mp3", Tags{Artist: &artist, DurationSeconds: &seconds})
		require.NoError(t, err)

		seconds = 95
		song, err := f.lib.TagSong(ctx, "A.mp3", Tags{DurationSeconds: &seconds})
		require.NoError(t, err)
		assert.Equal(t, "Monk", song.Artist)
		assert.Equal(t, 95, song.DurationSeconds)
	})

	t.Run("Rejections", func(t *testing.T) {
		f := setupLibrary(t)
		f.upload(t, "A.mp3")

		_, err := f.lib.TagSong(ctx, "A.mp3", Tags{})
		assert.ErrorIs(t, err, shared.ErrMissingArgument)

		negative := -1
		_, err = f.lib.TagSong(ctx, "A.mp3", Tags{DurationSeconds: &negative})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)

		artist := "x"
		_, err = f.lib.TagSong(ctx, "ghost.mp3", Tags{Artist: &artist})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestPlaylists(t *testing.T) {
	ctx := context.Background()

	// P4
	t.Run("CreateTwiceConflicts", func(t *testing.T) {
		f := setupLibrary(t)
		require.NoError(t, f.lib.CreatePlaylist(ctx, "Workout"))

		err := f.lib.CreatePlaylist(ctx, "Workout")
		assert.ErrorIs(t, err, shared.ErrConflict)

		playlists, err := f.lib.OrderedPlaylists(ctx)
		require.NoError(t, err)
		assert.Len(t, playlists, 1)
	})

	t.Run("CreateBlank", func(t *testing.T) {
		f := setupLibrary(t)
		assert.ErrorIs(t, f.lib.CreatePlaylist(ctx, "  "), shared.ErrInvalidInput)
	})

	// P5
	t.Run("RecreateIsEmpty", func(t *testing.T) {
		f := setupLibrary(t)
		f.upload(t, "A.mp3")
		f.playlist(t, "Workout", "A.mp3")

		require.NoError(t, f.lib.DeletePlaylist(ctx, "Workout"))
		require.NoError(t, f.lib.CreatePlaylist(ctx, "Workout"))

		p, err := f.lib.Playlist(ctx, "Workout")
		require.NoError(t, err)
		assert.Empty(t, p.SongIDs)
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		f := setupLibrary(t)
		assert.ErrorIs(t, f.lib.DeletePlaylist(ctx, "nope"), shared.ErrNotFound)
	})

	// P2
	t.Run("AddTwiceIsIdempotent", func(t *testing.T) {
		f := setupLibrary(t)
		f.upload(t, "A.mp3")
		f.playlist(t, "P", "A.mp3")

		added, err := f.lib.AddToPlaylist(ctx, "P", "A.mp3")
		require.NoError(t, err)
		assert.False(t, added)

		p, err := f.lib.Playlist(ctx, "P")
		require.NoError(t, err)
		assert.Len(t, p.SongIDs, 1)
	})

	t.Run("AddRequiresBoth", func(t *testing.T) {
		f := setupLibrary(t)
		f.upload(t, "A.mp3")
		f.playlist(t, "P")

		_, err := f.lib.AddToPlaylist(ctx, "missing", "A.mp3")
		assert.ErrorIs(t, err, shared.ErrNotFound)

		_, err = f.lib.AddToPlaylist(ctx, "P", "missing.mp3")
		assert.ErrorIs(t, err, shared.ErrNotFound)

		p, _ := f.lib.Playlist(ctx, "P")
		assert.Empty(t, p.SongIDs)
	})

	t.Run("RemoveIsIdempotent", func(t *testing.T) {
		f := setupLibrary(t)
		f.upload(t, "A.mp3", "B.mp3")
		f.playlist(t, "P", "A.mp3", "B.mp3")

		removed, err := f.lib.RemoveFromPlaylist(ctx, "P", "A.mp3")
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = f.lib.RemoveFromPlaylist(ctx, "P", "A.mp3")
		require.NoError(t, err)
		assert.False(t, removed)

		removed, err = f.lib.RemoveFromPlaylist(ctx, "P", "never-existed.mp3")
		require.NoError(t, err)
		assert.False(t, removed)

		_, err = f.lib.RemoveFromPlaylist(ctx, "missing", "B.mp3")
		assert.ErrorIs(t, err, shared.ErrNotFound)

		p, _ := f.lib.Playlist(ctx, "P")
		assert.Equal(t, []string{"B.mp3"}, p.SongIDs)
	})

	t.Run("Rename", func(t *testing.T) {
		f := setupLibrary(t)
		f.upload(t, "A.mp3", "B.mp3")
		f.playlist(t, "Old", "B.mp3", "A.mp3")
		f.playlist(t, "Taken")

		assert.ErrorIs(t, f.lib.RenamePlaylist(ctx, "Old", "Taken"), shared.ErrConflict)
		assert.ErrorIs(t, f.lib.RenamePlaylist(ctx, "Missing", "X"), shared.ErrNotFound)
		assert.ErrorIs(t, f.lib.RenamePlaylist(ctx, "Old", ""), shared.ErrInvalidInput)
		assert.NoError(t, f.lib.RenamePlaylist(ctx, "Old", "Old"))

		require.NoError(t, f.lib.RenamePlaylist(ctx, "Old", "New"))

		playlists, err := f.lib.ListPlaylists(ctx)
		require.NoError(t, err)
		assert.NotContains(t, playlists, "Old")
		assert.Equal(t, []string{"B.mp3", "A.mp3"}, playlists["New"])
	})
}

// P1
func TestIntegrityUnderOperationSequences(t *testing.T) {
	ctx := context.Background()
	f := setupLibrary(t)

	f.upload(t, "a.mp3", "b.mp3", "c.mp3", "d.mp3")
	f.playlist(t, "P", "a.mp3", "b.mp3", "c.mp3")
	f.playlist(t, "Q", "d.mp3", "a.mp3")

	steps := []func() error{
		func() error { return f.lib.DeleteSong(ctx, "a.mp3") },
		func() error { _, err := f.lib.AddToPlaylist(ctx, "Q", "b.mp3"); return err },
		func() error { _, err := f.lib.RenameSong(ctx, "b.mp3", "bee"); return err },
		func() error { _, err := f.lib.AddToPlaylist(ctx, "P", "d.mp3"); return err },
		func() error { return f.lib.DeleteSong(ctx, "d.mp3") },
		func() error { _, err := f.lib.RemoveFromPlaylist(ctx, "P", "c.mp3"); return err },
		func() error { return f.lib.RenamePlaylist(ctx, "Q", "R") },
	}

	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		assertIntegrity(t, f.lib)
	}

	playlists, err := f.lib.ListPlaylists(ctx)
	require.NoError(t, err)
	assert.Empty(t, playlists["P"])
	assert.Equal(t, []string{"bee.mp3"}, playlists["R"])
}

func TestConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	f := setupLibrary(t)

	var names []string
	for i := range 20 {
		names = append(names, fmt.Sprintf("song-%02d.mp3", i))
	}
	f.upload(t, names...)
	f.playlist(t, "Shared")

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.lib.AddToPlaylist(ctx, "Shared", name); err != nil {
				t.Errorf("add %s: %v", name, err)
			}
			if i%4 == 0 {
				if err := f.lib.DeleteSong(ctx, name); err != nil {
					t.Errorf("delete %s: %v", name, err)
				}
			}
			if i%4 == 1 {
				if _, err := f.lib.RenameSong(ctx, name, "renamed-"+name); err != nil {
					t.Errorf("rename %s: %v", name, err)
				}
			}
		}()
	}
	wg.Wait()

	assertIntegrity(t, f.lib)

	p, err := f.lib.Playlist(ctx, "Shared")
	require.NoError(t, err)
	assert.Len(t, p.SongIDs, 15)
	assert.Equal(t, 0, f.lib.playlists.size())
}

func TestConcurrentMutationsOnDisk(t *testing.T) {
	ctx := context.Background()
	f := setupLibraryAt(t, filepath.Join(t.TempDir(), "crate.db"))
	shared.ConfigureDatabase(f.db, 8, 8)

	var names []string
	for i := range 16 {
		names = append(names, fmt.Sprintf("track-%02d.mp3", i))
	}
	f.upload(t, names...)

	playlists := make([]string, 8)
	for i := range playlists {
		playlists[i] = fmt.Sprintf("Mix %d", i)
		f.playlist(t, playlists[i])
	}

	var wg sync.WaitGroup
	for _, playlist := range playlists {
		for _, name := range names {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := f.lib.AddToPlaylist(ctx, playlist, name); err != nil {
					t.Errorf("add %s to %s: %v", name, playlist, err)
				}
			}()
		}
	}
	wg.Wait()

	assertIntegrity(t, f.lib)

	all, err := f.lib.ListPlaylists(ctx)
	require.NoError(t, err)
	require.Len(t, all, len(playlists))
	for _, playlist := range playlists {
		assert.Len(t, all[playlist], len(names), playlist)
	}
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	f := setupLibrary(t)
	f.upload(t, "kept.mp3", "vanished.mp3")
	f.playlist(t, "P", "kept.mp3", "vanished.mp3")

	require.NoError(t, os.Remove(mustResolve(t, f.blobs, "vanished.mp3")))
	require.NoError(t, os.WriteFile(mustResolve(t, f.blobs, "dropped-in.ogg"), []byte("x"), storage.FilePermissions))
	require.NoError(t, os.WriteFile(mustResolve(t, f.blobs, "readme.txt"), []byte("x"), storage.FilePermissions))

	report, err := f.lib.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dropped-in.ogg"}, report.Adopted)
	assert.Equal(t, []string{"vanished.mp3"}, report.Dropped)

	playlists, err := f.lib.ListPlaylists(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept.mp3"}, playlists["P"])
	assertIntegrity(t, f.lib)

	again, err := f.lib.Sweep(ctx)
	require.NoError(t, err)
	assert.False(t, again.Changed())
}

func TestAdoptAndForget(t *testing.T) {
	ctx := context.Background()
	f := setupLibrary(t)

	require.NoError(t, os.WriteFile(mustResolve(t, f.blobs, "new.mp3"), []byte("abc"), storage.FilePermissions))

	adopted, err := f.lib.Adopt(ctx, "new.mp3")
	require.NoError(t, err)
	assert.True(t, adopted)

	adopted, err = f.lib.Adopt(ctx, "new.mp3")
	require.NoError(t, err)
	assert.False(t, adopted)

	forgotten, err := f.lib.Forget(ctx, "new.mp3")
	require.NoError(t, err)
	assert.False(t, forgotten, "blob still present")

	require.NoError(t, os.Remove(mustResolve(t, f.blobs, "new.mp3")))
	forgotten, err = f.lib.Forget(ctx, "new.mp3")
	require.NoError(t, err)
	assert.True(t, forgotten)

	forgotten, err = f.lib.Forget(ctx, "new.mp3")
	require.NoError(t, err)
	assert.False(t, forgotten, "already forgotten")

	forgotten, err = f.lib.Forget(ctx, "never-known.mp3")
	require.NoError(t, err)
	assert.False(t, forgotten)
}

func TestWatcher(t *testing.T) {
	f := setupLibrary(t)

	w, err := NewWatcher(f.lib, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.NoError(t, os.WriteFile(mustResolve(t, f.blobs, "dropped.mp3"), []byte("x"), storage.FilePermissions))

	assert.Eventually(t, func() bool {
		_, err := f.lib.Get(context.Background(), "dropped.mp3")
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(mustResolve(t, f.blobs, "dropped.mp3")))

	assert.Eventually(t, func() bool {
		_, err := f.lib.Get(context.Background(), "dropped.mp3")
		return err != nil
	}, 3*time.Second, 20*time.Millisecond)
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	unlock := k.Lock("b", "a", "a")
	assert.Equal(t, 2, k.size())

	acquired := make(chan struct{})
	go func() {
		defer k.Lock("a")()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(30 * time.Millisecond):
	}

	unlock()
	<-acquired
	assert.Eventually(t, func() bool { return k.size() == 0 }, time.Second, 5*time.Millisecond)
}

func eventKinds(evs []events.Event) []events.Kind {
	kinds := make([]events.Kind, len(evs))
	for i, e := range evs {
		kinds[i] = e.Kind
	}
	return kinds
}
