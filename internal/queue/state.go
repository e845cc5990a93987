package queue

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/samber/lo"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

// SourceAll labels a queue derived from the whole catalog.
const SourceAll = "all songs"

// PlaylistSource labels a queue derived from the named playlist.
func PlaylistSource(name string) string {
	return "playlist:" + name
}

// State is the presenter's application state: the library view plus the queue derived from it.
//
// State is not safe for concurrent use; it is owned by the presenter's event loop.
type State struct {
	songs     []models.Song
	byID      map[string]models.Song
	playlists []models.PlaylistSongs
	selected  string
	filter    string
	shuffle   bool

	// origin is the active queue's source in natural order, used to undo a shuffle.
	origin []models.Song

	queue *Queue
	rng   *rand.Rand
}

// NewState creates an empty state around q. A nil rng uses the global source.
func NewState(q *Queue, rng *rand.Rand) *State {
	return &State{byID: map[string]models.Song{}, queue: q, rng: rng}
}

// Queue returns the queue the state drives.
func (s *State) Queue() *Queue { return s.queue }

// SetLibrary replaces the canonical songs and playlists after a re-fetch.
//
// A selected playlist that no longer exists is deselected. Queued songs pick up fresh metadata and
// songs that disappeared are dropped from the queue.
func (s *State) SetLibrary(songs []models.Song, playlists []models.PlaylistSongs) {
	s.songs = append([]models.Song(nil), songs...)
	s.byID = lo.KeyBy(s.songs, func(song models.Song) string { return song.ID })
	s.playlists = append([]models.PlaylistSongs(nil), playlists...)

	if s.selected != "" && !s.hasPlaylist(s.selected) {
		s.selected = ""
	}

	s.origin = lo.Filter(s.origin, func(song models.Song, _ int) bool {
		_, ok := s.byID[song.ID]
		return ok
	})
	s.queue.Refresh(func(id string) (models.Song, bool) {
		song, ok := s.byID[id]
		return song, ok
	})
}

// Songs returns the whole catalog.
func (s *State) Songs() []models.Song { return s.songs }

// Song looks a song up by id.
func (s *State) Song(id string) (models.Song, bool) {
	song, ok := s.byID[id]
	return song, ok
}

// Playlists returns every playlist in display order.
func (s *State) Playlists() []models.PlaylistSongs { return s.playlists }

// SelectPlaylist makes name the selected playlist. An empty name clears the selection.
func (s *State) SelectPlaylist(name string) error {
	if name != "" && !s.hasPlaylist(name) {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, name)
	}
	s.selected = name
	return nil
}

// Selected returns the selected playlist name, or "".
func (s *State) Selected() string { return s.selected }

// SetFilter changes the catalog search. It does not touch a queue already playing.
func (s *State) SetFilter(filter string) { s.filter = filter }

// Filter returns the current catalog search.
func (s *State) Filter() string { return s.filter }

// VisibleSongs returns the catalog narrowed by the current filter, in catalog order.
func (s *State) VisibleSongs() []models.Song {
	return Filter(s.songs, s.filter)
}

// PlaylistSongs resolves a playlist's ids to songs in playlist order. Unknown ids are skipped.
func (s *State) PlaylistSongs(name string) []models.Song {
	for _, p := range s.playlists {
		if p.Name != name {
			continue
		}
		return lo.FilterMap(p.SongIDs, func(id string, _ int) (models.Song, bool) {
			song, ok := s.byID[id]
			return song, ok
		})
	}
	return nil
}

// Shuffled reports whether shuffle is on.
func (s *State) Shuffled() bool { return s.shuffle }

// ToggleShuffle flips shuffle and reorders the active queue from its source.
//
// The pointer resets to -1; the current song is not tracked through the new order.
func (s *State) ToggleShuffle() bool {
	s.shuffle = !s.shuffle

	if s.queue.Len() == 0 {
		return s.shuffle
	}

	if s.shuffle {
		s.queue.Reorder(Shuffle(s.origin, s.rng))
	} else {
		s.queue.Reorder(s.origin)
	}
	return s.shuffle
}

// PlayAll queues the visible songs and starts the one at index.
// With shuffle on, that song plays first and the rest follow in random order.
func (s *State) PlayAll(index int) (models.Song, error) {
	return s.play(s.VisibleSongs(), index, SourceAll)
}

// PlayPlaylist queues the named playlist and starts the song at index.
func (s *State) PlayPlaylist(name string, index int) (models.Song, error) {
	if !s.hasPlaylist(name) {
		return models.Song{}, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, name)
	}
	return s.play(s.PlaylistSongs(name), index, PlaylistSource(name))
}

// ShuffleAll queues the whole catalog, ignoring the filter, in random order and starts the first song.
func (s *State) ShuffleAll() (models.Song, error) {
	return s.playShuffled(s.songs, SourceAll)
}

// ShufflePlaylist queues the named playlist in random order and starts the first song.
func (s *State) ShufflePlaylist(name string) (models.Song, error) {
	if !s.hasPlaylist(name) {
		return models.Song{}, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, name)
	}
	return s.playShuffled(s.PlaylistSongs(name), PlaylistSource(name))
}

// SourceLabel describes the active queue's source for display.
func (s *State) SourceLabel() string {
	source := s.queue.Source()
	if name, ok := strings.CutPrefix(source, "playlist:"); ok {
		return name
	}
	return source
}

func (s *State) play(songs []models.Song, index int, source string) (models.Song, error) {
	if len(songs) == 0 {
		return models.Song{}, ErrEmptyQueue
	}
	if index < 0 || index >= len(songs) {
		return models.Song{}, fmt.Errorf("%w: %d of %d", ErrInvalidStart, index, len(songs))
	}

	s.origin = songs
	if s.shuffle {
		return s.queue.SetQueue(shuffleAfter(songs, index, s.rng), 0, source)
	}
	return s.queue.SetQueue(songs, index, source)
}

func (s *State) playShuffled(songs []models.Song, source string) (models.Song, error) {
	if len(songs) == 0 {
		return models.Song{}, ErrEmptyQueue
	}

	s.origin = songs
	return s.queue.SetQueue(Shuffle(songs, s.rng), 0, source)
}

func (s *State) hasPlaylist(name string) bool {
	return lo.ContainsBy(s.playlists, func(p models.PlaylistSongs) bool { return p.Name == name })
}
