package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

var (
	_ list.Item = playlistItem{}
	_ list.Item = songItem{}
)

// playlistItem wraps [models.PlaylistSongs] to implement [list.Item].
type playlistItem struct {
	playlist models.PlaylistSongs
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	if n := len(i.playlist.SongIDs); n != 1 {
		return fmt.Sprintf("%d songs", n)
	}
	return "1 song"
}

// songItem wraps [models.Song] to implement [list.Item].
type songItem struct {
	song    models.Song
	playing bool
}

func (i songItem) FilterValue() string { return i.song.Name }
func (i songItem) Title() string {
	if i.playing {
		return "♪ " + i.song.Name
	}
	return i.song.Name
}
func (i songItem) Description() string {
	desc := i.song.ID
	if i.song.Artist != "" {
		desc = fmt.Sprintf("%s • %s", i.song.Artist, desc)
	}
	if i.song.DurationSeconds > 0 {
		desc = fmt.Sprintf("%s • %s", desc, shared.FormatDuration(i.song.DurationSeconds))
	}
	return desc
}

func songItems(songs []models.Song, current string) []list.Item {
	items := make([]list.Item, len(songs))
	for i, s := range songs {
		items[i] = songItem{song: s, playing: s.ID == current}
	}
	return items
}

func playlistItems(playlists []models.PlaylistSongs) []list.Item {
	items := make([]list.Item, len(playlists))
	for i, p := range playlists {
		items[i] = playlistItem{playlist: p}
	}
	return items
}

func newList(title string) list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(true)
	l.DisableQuitKeybindings()
	return l
}
