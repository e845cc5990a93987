package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/crate/internal/events"
	"github.com/desertthunder/crate/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgLibraryLoaded MsgKind = iota
	MsgActionResolved
	MsgLibraryChanged
	MsgPlaybackEnded
	MsgContinue
	MsgTick
)

type libraryLoaded struct {
	songs     []models.Song
	playlists []models.PlaylistSongs
	err       error
}

type actionResolved struct {
	status string
	err    error
}

// libraryLoadedMsg is the constructor for [MsgLibraryLoaded]
func libraryLoadedMsg(songs []models.Song, playlists []models.PlaylistSongs, err error) Msg {
	return Msg{kind: MsgLibraryLoaded, data: libraryLoaded{songs, playlists, err}}
}

// actionResolvedMsg is the constructor for [MsgActionResolved]
func actionResolvedMsg(status string, err error) Msg {
	return Msg{kind: MsgActionResolved, data: actionResolved{status, err}}
}

// libraryChangedMsg is the constructor for [MsgLibraryChanged]
func libraryChangedMsg(e events.Event) Msg {
	return Msg{kind: MsgLibraryChanged, data: e}
}

// playbackEndedMsg is the constructor for [MsgPlaybackEnded]. generation identifies the track that ended.
func playbackEndedMsg(generation uint64) Msg {
	return Msg{kind: MsgPlaybackEnded, data: generation}
}

// continueMsg is the constructor for [MsgContinue], sent when a track still sounding from a replaced queue ends.
func continueMsg(generation uint64) Msg {
	return Msg{kind: MsgContinue, data: generation}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg() Msg {
	return Msg{kind: MsgTick}
}
