package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/crate/internal/shared"
)

// Actions is the slice of the library a presenter mutates through.
type Actions interface {
	RenameSong(ctx context.Context, id, newName string) (string, error)
	DeleteSong(ctx context.Context, id string) error
	CreatePlaylist(ctx context.Context, name string) error
	RenamePlaylist(ctx context.Context, oldName, newName string) error
	DeletePlaylist(ctx context.Context, name string) error
	AddToPlaylist(ctx context.Context, playlist, songID string) (bool, error)
	RemoveFromPlaylist(ctx context.Context, playlist, songID string) (bool, error)
}

// PendingAction is an operation awaiting confirmation or input in a modal.
//
// Each variant carries its own subject and handler; presenters switch on the concrete type only for layout.
type PendingAction interface {
	// Prompt is the question shown to the user.
	Prompt() string
	// NeedsInput reports whether Resolve expects typed input rather than a yes/no confirmation.
	NeedsInput() bool
	// Resolve performs the action and returns a status message for the user.
	Resolve(ctx context.Context, actions Actions, input string) (string, error)

	pending()
}

type RenameSongAction struct{ ID string }

type DeleteSongAction struct{ ID string }

type CreatePlaylistAction struct{}

type RenamePlaylistAction struct{ Name string }

type DeletePlaylistAction struct{ Name string }

type AddToPlaylistAction struct{ SongID string }

type RemoveFromPlaylistAction struct{ Playlist, SongID string }

func (RenameSongAction) pending() {}
func (DeleteSongAction) pending() {}
func (CreatePlaylistAction) pending() {}
func (RenamePlaylistAction) pending() {}
func (DeletePlaylistAction) pending() {}
func (AddToPlaylistAction) pending() {}
func (RemoveFromPlaylistAction) pending() {}

func (a RenameSongAction) Prompt() string { return fmt.Sprintf("Rename %q to:", a.ID) }
func (a RenameSongAction) NeedsInput() bool { return true }

func (a RenameSongAction) Resolve(ctx context.Context, actions Actions, input string) (string, error) {
	if err := requireInput(input, "new name"); err != nil {
		return "", err
	}
	newID, err := actions.RenameSong(ctx, a.ID, input)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Renamed to %s", newID), nil
}

func (a DeleteSongAction) Prompt() string {
	return fmt.Sprintf("Delete %q? It will be removed from every playlist.", a.ID)
}
func (a DeleteSongAction) NeedsInput() bool { return false }

func (a DeleteSongAction) Resolve(ctx context.Context, actions Actions, _ string) (string, error) {
	if err := actions.DeleteSong(ctx, a.ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Deleted %s", a.ID), nil
}

func (CreatePlaylistAction) Prompt() string { return "New playlist name:" }
func (CreatePlaylistAction) NeedsInput() bool { return true }

func (CreatePlaylistAction) Resolve(ctx context.Context, actions Actions, input string) (string, error) {
	name := strings.TrimSpace(input)
	if err := requireInput(name, "playlist name"); err != nil {
		return "", err
	}
	if err := actions.CreatePlaylist(ctx, name); err != nil {
		return "", err
	}
	return fmt.Sprintf("Created playlist %s", name), nil
}

func (a RenamePlaylistAction) Prompt() string { return fmt.Sprintf("Rename playlist %q to:", a.Name) }
func (a RenamePlaylistAction) NeedsInput() bool { return true }

func (a RenamePlaylistAction) Resolve(ctx context.Context, actions Actions, input string) (string, error) {
	name := strings.TrimSpace(input)
	if err := requireInput(name, "playlist name"); err != nil {
		return "", err
	}
	if err := actions.RenamePlaylist(ctx, a.Name, name); err != nil {
		return "", err
	}
	return fmt.Sprintf("Renamed playlist to %s", name), nil
}

func (a DeletePlaylistAction) Prompt() string { return fmt.Sprintf("Delete playlist %q?", a.Name) }
func (a DeletePlaylistAction) NeedsInput() bool { return false }

func (a DeletePlaylistAction) Resolve(ctx context.Context, actions Actions, _ string) (string, error) {
	if err := actions.DeletePlaylist(ctx, a.Name); err != nil {
		return "", err
	}
	return fmt.Sprintf("Deleted playlist %s", a.Name), nil
}

func (a AddToPlaylistAction) Prompt() string { return fmt.Sprintf("Add %q to playlist:", a.SongID) }
func (a AddToPlaylistAction) NeedsInput() bool { return true }

func (a AddToPlaylistAction) Resolve(ctx context.Context, actions Actions, input string) (string, error) {
	playlist := strings.TrimSpace(input)
	if err := requireInput(playlist, "playlist name"); err != nil {
		return "", err
	}
	added, err := actions.AddToPlaylist(ctx, playlist, a.SongID)
	if err != nil {
		return "", err
	}
	if !added {
		return fmt.Sprintf("%s is already in %s", a.SongID, playlist), nil
	}
	return fmt.Sprintf("Added %s to %s", a.SongID, playlist), nil
}

func (a RemoveFromPlaylistAction) Prompt() string {
	return fmt.Sprintf("Remove %q from %q?", a.SongID, a.Playlist)
}
func (a RemoveFromPlaylistAction) NeedsInput() bool { return false }

func (a RemoveFromPlaylistAction) Resolve(ctx context.Context, actions Actions, _ string) (string, error) {
	if _, err := actions.RemoveFromPlaylist(ctx, a.Playlist, a.SongID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Removed %s from %s", a.SongID, a.Playlist), nil
}

func requireInput(input, what string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("%w: %s", shared.ErrMissingArgument, what)
	}
	return nil
}
