// Package models defines the library's domain entities and persistence interfaces.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): what the presentation layer sees
//   - [Song] : catalog entry keyed by its stable id (the stored filename)
//   - [PlaylistSongs] : playlist name with its ordered song ids
//
// 2. Persistent Entities: database-backed models with timestamps and validation
//   - [PersistedSong] : song metadata plus the immutable internal key playlists reference
//   - [PersistedPlaylist] : named playlist; membership lives in a separate ordered table
//
// All persistent entities implement the [Model] interface. The [Repository] interface defines
// the CRUD operations shared by the SQLite repositories.
package models
