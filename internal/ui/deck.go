package ui

import (
	"time"

	"github.com/desertthunder/crate/internal/models"
)

// deck stands in for the audio device. It implements [queue.Player] by recording which song started when.
//
// The queue calls Play synchronously from Update, so the deck is only touched on the event loop.
type deck struct {
	song    models.Song
	started time.Time
	playing bool
	now     func() time.Time
}

func newDeck(now func() time.Time) *deck {
	if now == nil {
		now = time.Now
	}
	return &deck{now: now}
}

func (d *deck) Play(song models.Song) error {
	d.song = song
	d.started = d.now()
	d.playing = true
	return nil
}

func (d *deck) Stop() { d.playing = false }

// Elapsed is how long the current song has been playing.
func (d *deck) Elapsed() time.Duration {
	if !d.playing {
		return 0
	}
	return d.now().Sub(d.started)
}

// Remaining is the time left in the current song, or zero when its duration is unknown.
func (d *deck) Remaining() time.Duration {
	if !d.playing || d.song.DurationSeconds <= 0 {
		return 0
	}
	return max(time.Duration(d.song.DurationSeconds)*time.Second-d.Elapsed(), 0)
}
