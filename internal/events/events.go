package events

import (
	"context"
	"encoding/json"
	"time"
)

// Kind names what changed.
type Kind string

const (
	SongsUploaded   Kind = "songs.uploaded"
	SongRenamed     Kind = "song.renamed"
	SongTagged      Kind = "song.tagged"
	SongDeleted     Kind = "song.deleted"
	PlaylistCreated Kind = "playlist.created"
	PlaylistRenamed Kind = "playlist.renamed"
	PlaylistDeleted Kind = "playlist.deleted"
	PlaylistChanged Kind = "playlist.changed"
	LibrarySwept    Kind = "library.swept"
)

// Event is a committed change to the library.
type Event struct {
	Kind    Kind      `json:"kind"`
	Subject string    `json:"subject,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

// New stamps an event with the current time.
func New(kind Kind, subject string) Event {
	return Event{Kind: kind, Subject: subject, At: time.Now().UTC()}
}

// WithDetail returns a copy of e carrying extra context, such as the new name after a rename.
func (e Event) WithDetail(detail string) Event {
	e.Detail = detail
	return e
}

func (e Event) encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses an event previously produced by a publisher.
func Decode(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}

// Publisher delivers events after the change they describe has been committed.
//
// Publishing is best effort; implementations log failures instead of returning them to the mutation.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// Multi fans an event out to several publishers in order.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) {
	for _, p := range m {
		p.Publish(ctx, e)
	}
}

// Recorder keeps every published event in memory.
type Recorder struct {
	events chan Event
}

// NewRecorder creates a recorder holding up to size events; later events are dropped.
func NewRecorder(size int) *Recorder {
	return &Recorder{events: make(chan Event, size)}
}

func (r *Recorder) Publish(_ context.Context, e Event) {
	select {
	case r.events <- e:
	default:
	}
}

// Events returns the channel events are recorded on.
func (r *Recorder) Events() <-chan Event { return r.events }

// Drain returns every event recorded so far without blocking.
func (r *Recorder) Drain() []Event {
	var out []Event
	for {
		select {
		case e := <-r.events:
			out = append(out, e)
		default:
			return out
		}
	}
}
