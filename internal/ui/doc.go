// Package ui implements the terminal music player using bubbletea's Elm architecture.
//
// The TUI has three views:
//  1. [LibraryView] : Browse the catalog, narrowed by a fuzzy filter
//  2. [PlaylistsView] : Browse playlists
//  3. [PlaylistDetailView] : Songs of one playlist in playlist order
//
// A now-playing bar under every view shows the current song, elapsed time, the queue source and the
// shuffle and repeat indicators.
//
// All state lives in a [queue.State]; the (view) [Model] only renders it and translates keys into state
// mutations. Destructive or naming operations open a modal driven by a [queue.PendingAction], which is
// resolved against the library in a command. After every mutation, and whenever the library reports a
// change, the model re-fetches the canonical songs and playlists.
//
// Audio output is simulated by a deck that records when each song started. Songs with a known duration
// schedule an "ended" message tagged with the queue generation; a late message for a song the user already
// skipped is ignored by the queue.
//
// Keyboard navigation uses vim-style bindings with contextual help displayed via charmbracelet/bubbles/help.
package ui
