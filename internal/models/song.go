package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/crate/internal/shared"
)

// DefaultExtension is appended to renamed songs whose current id carries no extension.
const DefaultExtension = ".mp3"

// Song is the catalog entry exposed to clients.
type Song struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Artist          string `json:"artist,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

// PersistedSong is a song's metadata record.
//
// key is generated once on upload and never changes; id (the stored filename) and name change together on rename.
type PersistedSong struct {
	key       string
	id        string
	name      string
	artist    string
	duration  int
	size      int64
	createdAt time.Time
	updatedAt time.Time
}

// NewPersistedSong creates a song record for the blob stored under id, deriving its display name.
func NewPersistedSong(key, id string) *PersistedSong {
	now := time.Now()
	return &PersistedSong{
		key:       key,
		id:        id,
		name:      DisplayName(id),
		createdAt: now,
		updatedAt: now,
	}
}

func (s *PersistedSong) Key() string { return s.key }
func (s *PersistedSong) ID() string { return s.id }
func (s *PersistedSong) Name() string { return s.name }
func (s *PersistedSong) Artist() string { return s.artist }
func (s *PersistedSong) Duration() int { return s.duration }
func (s *PersistedSong) Size() int64 { return s.size }
func (s *PersistedSong) CreatedAt() time.Time { return s.createdAt }
func (s *PersistedSong) UpdatedAt() time.Time { return s.updatedAt }

func (s *PersistedSong) SetKey(key string) { s.key = key }
func (s *PersistedSong) SetArtist(artist string) { s.artist = artist }
func (s *PersistedSong) SetDuration(seconds int) { s.duration = seconds }
func (s *PersistedSong) SetSize(size int64) { s.size = size }
func (s *PersistedSong) SetCreatedAt(t time.Time) { s.createdAt = t }
func (s *PersistedSong) SetUpdatedAt(t time.Time) { s.updatedAt = t }

// Relabel moves the song to a new stored filename, updating id and display name together.
func (s *PersistedSong) Relabel(id string) {
	s.id = id
	s.name = DisplayName(id)
}

// Validate checks that the song has a key and a usable id.
func (s *PersistedSong) Validate() error {
	if s.key == "" {
		return fmt.Errorf("%w: song key is required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(s.id) == "" {
		return fmt.Errorf("%w: song id is required", shared.ErrInvalidInput)
	}
	if s.duration < 0 {
		return fmt.Errorf("%w: duration cannot be negative", shared.ErrInvalidInput)
	}
	return nil
}

// DTO converts the record to its client-facing [Song].
func (s *PersistedSong) DTO() Song {
	return Song{ID: s.id, Name: s.name, Artist: s.artist, DurationSeconds: s.duration}
}

// DisplayName strips the audio extension from a stored filename.
func DisplayName(id string) string {
	return strings.TrimSuffix(id, filepath.Ext(id))
}

// SanitizeName replaces path separators so a user-supplied name can never address another directory.
func SanitizeName(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(strings.TrimSpace(name))
}

// RenameTarget computes the stored filename a rename of id to newName resolves to.
//
// The new name is sanitized and keeps the current extension (or [DefaultExtension]) unless it already ends with it,
// compared without regard to case.
func RenameTarget(id, newName string) string {
	ext := filepath.Ext(id)
	if ext == "" {
		ext = DefaultExtension
	}

	sanitized := SanitizeName(newName)
	if strings.EqualFold(filepath.Ext(sanitized), ext) {
		return sanitized
	}
	return sanitized + ext
}
