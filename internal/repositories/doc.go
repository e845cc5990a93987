// Package repositories implements SQLite persistence for songs and playlists.
//
// Repositories are built over a [DBTX], so the same repository code runs against a *sql.DB for
// reads or a *sql.Tx when the library coordinator needs several writes to commit atomically.
//
// Key Implementations:
//   - [SongRepository] : song metadata keyed by external id, with an immutable internal key
//   - [PlaylistRepository] : playlists keyed by name
//   - [PlaylistSongRepository] : ordered, duplicate-free playlist membership
//
// Membership rows reference the song's internal key and the playlist's name through foreign keys
// declared ON UPDATE/ON DELETE CASCADE, so renames and deletes can never leave a dangling reference.
package repositories
