package queue

import (
	"errors"
	"fmt"
	"sync"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

var (
	ErrEmptyQueue   = errors.New("queue is empty")
	ErrEndOfQueue   = errors.New("end of queue")
	ErrStartOfQueue = errors.New("start of queue")
	ErrInTransition = errors.New("queue is changing tracks")
	ErrInvalidStart = fmt.Errorf("start index out of range: %w", shared.ErrInvalidInput)
)

// RepeatMode controls what happens at the edges of the queue.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatAll
	RepeatOne
)

func (r RepeatMode) String() string {
	switch r {
	case RepeatAll:
		return "All"
	case RepeatOne:
		return "One"
	default:
		return "Off"
	}
}

// Player is the audio collaborator. It is told to start a song every time the pointer moves.
type Player interface {
	Play(song models.Song) error
}

// PlayerFunc adapts a function to [Player].
type PlayerFunc func(models.Song) error

func (f PlayerFunc) Play(song models.Song) error { return f(song) }

// Outcome describes what [Queue.OnPlaybackEnded] did.
type Outcome int

const (
	Advanced Outcome = iota
	Replayed
	Exhausted
	Ignored
)

func (o Outcome) String() string {
	switch o {
	case Advanced:
		return "advanced"
	case Replayed:
		return "replayed"
	case Exhausted:
		return "end of queue"
	default:
		return "ignored"
	}
}

// Queue is an ordered list of songs with a position pointer.
//
// Every pointer move bumps a generation counter. An "ended" notification carries the generation it was
// issued for, so a late notification for a track the user already skipped cannot advance twice.
type Queue struct {
	mu            sync.Mutex
	songs         []models.Song
	pointer       int
	source        string
	repeat        RepeatMode
	generation    uint64
	transitioning bool
	player        Player
}

// New creates an empty queue that starts songs through player. A nil player is allowed.
func New(player Player) *Queue {
	return &Queue{pointer: -1, player: player}
}

// SetQueue replaces the queue and starts songs[start].
func (q *Queue) SetQueue(songs []models.Song, start int, source string) (models.Song, error) {
	if len(songs) == 0 {
		return models.Song{}, ErrEmptyQueue
	}
	if start < 0 || start >= len(songs) {
		return models.Song{}, fmt.Errorf("%w: %d of %d", ErrInvalidStart, start, len(songs))
	}

	q.mu.Lock()
	if q.transitioning {
		q.mu.Unlock()
		return models.Song{}, ErrInTransition
	}
	q.songs = append([]models.Song(nil), songs...)
	q.source = source
	q.pointer = start
	return q.playLocked()
}

// Advance moves to the next song.
//
// At the last index it wraps to the start under [RepeatAll] and otherwise stays put, returning [ErrEndOfQueue].
func (q *Queue) Advance() (models.Song, error) {
	q.mu.Lock()
	if err := q.readyLocked(); err != nil {
		q.mu.Unlock()
		return models.Song{}, err
	}

	switch {
	case q.pointer < len(q.songs)-1:
		q.pointer++
	case q.repeat == RepeatAll:
		q.pointer = 0
	default:
		q.mu.Unlock()
		return models.Song{}, ErrEndOfQueue
	}
	return q.playLocked()
}

// Retreat moves to the previous song.
//
// At index 0 it wraps to the end under [RepeatAll] and otherwise stays put, returning [ErrStartOfQueue].
func (q *Queue) Retreat() (models.Song, error) {
	q.mu.Lock()
	if err := q.readyLocked(); err != nil {
		q.mu.Unlock()
		return models.Song{}, err
	}

	switch {
	case q.pointer > 0:
		q.pointer--
	case q.repeat == RepeatAll:
		q.pointer = len(q.songs) - 1
	default:
		q.mu.Unlock()
		return models.Song{}, ErrStartOfQueue
	}
	return q.playLocked()
}

// OnPlaybackEnded handles the player finishing the track started at generation.
//
// [RepeatOne] replays the track; otherwise it advances. Reaching the end is reported as [Exhausted], not an error.
// Notifications for an older generation, or arriving mid-transition, are [Ignored].
func (q *Queue) OnPlaybackEnded(generation uint64) (Outcome, models.Song, error) {
	q.mu.Lock()
	if q.transitioning || generation != q.generation {
		q.mu.Unlock()
		return Ignored, models.Song{}, nil
	}
	if len(q.songs) == 0 || q.pointer < 0 {
		q.mu.Unlock()
		return Exhausted, models.Song{}, nil
	}

	if q.repeat == RepeatOne {
		song, err := q.playLocked()
		return Replayed, song, err
	}

	switch {
	case q.pointer < len(q.songs)-1:
		q.pointer++
	case q.repeat == RepeatAll:
		q.pointer = 0
	default:
		q.mu.Unlock()
		return Exhausted, models.Song{}, nil
	}

	song, err := q.playLocked()
	return Advanced, song, err
}

// Reorder replaces the song list without starting playback and resets the pointer to -1.
func (q *Queue) Reorder(songs []models.Song) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.songs = append([]models.Song(nil), songs...)
	q.pointer = -1
	q.generation++
}

// Refresh swaps in current metadata for queued songs and drops songs that no longer exist.
// The pointer follows the current song, or becomes -1 if it was dropped.
func (q *Queue) Refresh(lookup func(id string) (models.Song, bool)) {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := make([]models.Song, 0, len(q.songs))
	pointer := -1
	for i, s := range q.songs {
		fresh, ok := lookup(s.ID)
		if !ok {
			continue
		}
		if i == q.pointer {
			pointer = len(kept)
		}
		kept = append(kept, fresh)
	}

	if pointer == -1 && q.pointer != -1 {
		q.generation++
	}
	q.songs = kept
	q.pointer = pointer
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.songs = nil
	q.pointer = -1
	q.source = ""
	q.generation++
}

// Current returns the song under the pointer.
func (q *Queue) Current() (models.Song, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pointer < 0 || q.pointer >= len(q.songs) {
		return models.Song{}, false
	}
	return q.songs[q.pointer], true
}

// Pointer returns the current index, or -1 when unset.
func (q *Queue) Pointer() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pointer
}

// Generation identifies the track most recently started.
func (q *Queue) Generation() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.generation
}

// Songs returns a copy of the queued songs in play order.
func (q *Queue) Songs() []models.Song {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.Song(nil), q.songs...)
}

// Len returns the number of queued songs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.songs)
}

// Source returns the label the queue was derived from.
func (q *Queue) Source() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.source
}

// Repeat returns the repeat mode.
func (q *Queue) Repeat() RepeatMode {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.repeat
}

// SetRepeat sets the repeat mode.
func (q *Queue) SetRepeat(mode RepeatMode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.repeat = mode
}

// CycleRepeat steps Off -> All -> One -> Off and returns the new mode.
func (q *Queue) CycleRepeat() RepeatMode {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.repeat = (q.repeat + 1) % 3
	return q.repeat
}

func (q *Queue) readyLocked() error {
	if q.transitioning {
		return ErrInTransition
	}
	if len(q.songs) == 0 {
		return ErrEmptyQueue
	}
	return nil
}

// playLocked starts the song under the pointer. It is entered with q.mu held and returns with it released.
// The player runs outside the lock; the transitioning flag rejects re-entrant moves meanwhile.
func (q *Queue) playLocked() (models.Song, error) {
	song := q.songs[q.pointer]
	q.generation++
	q.transitioning = true
	player := q.player
	q.mu.Unlock()

	var err error
	if player != nil {
		err = player.Play(song)
	}

	q.mu.Lock()
	q.transitioning = false
	q.mu.Unlock()

	if err != nil {
		return song, fmt.Errorf("failed to play %s: %w", song.ID, err)
	}
	return song, nil
}
