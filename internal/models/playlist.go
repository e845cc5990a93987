package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/crate/internal/shared"
)

// PlaylistSongs is a playlist as clients see it: a name and the ordered ids of its songs.
type PlaylistSongs struct {
	Name    string   `json:"name"`
	SongIDs []string `json:"songIds"`
}

// PlaylistExport is a playlist resolved against the catalog, ready to be written out.
type PlaylistExport struct {
	Name  string `json:"name"`
	Songs []Song `json:"songs"`
}

// Playlists maps playlist names to their ordered song ids.
type Playlists map[string][]string

// PersistedPlaylist is a named playlist record. Its name is the external key.
type PersistedPlaylist struct {
	name      string
	createdAt time.Time
	updatedAt time.Time
}

// NewPersistedPlaylist creates a playlist record with surrounding whitespace trimmed from name.
func NewPersistedPlaylist(name string) *PersistedPlaylist {
	now := time.Now()
	return &PersistedPlaylist{name: strings.TrimSpace(name), createdAt: now, updatedAt: now}
}

func (p *PersistedPlaylist) ID() string { return p.name }
func (p *PersistedPlaylist) Name() string { return p.name }
func (p *PersistedPlaylist) CreatedAt() time.Time { return p.createdAt }
func (p *PersistedPlaylist) UpdatedAt() time.Time { return p.updatedAt }

func (p *PersistedPlaylist) SetName(name string) { p.name = strings.TrimSpace(name) }
func (p *PersistedPlaylist) SetCreatedAt(t time.Time) { p.createdAt = t }
func (p *PersistedPlaylist) SetUpdatedAt(t time.Time) { p.updatedAt = t }

// Validate rejects empty or whitespace-only names.
func (p *PersistedPlaylist) Validate() error {
	if p.name == "" {
		return fmt.Errorf("%w: playlist name is required", shared.ErrInvalidInput)
	}
	return nil
}
