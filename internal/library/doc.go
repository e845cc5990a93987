// package library coordinates the song catalog, its audio blobs and the playlists that reference them.
//
// Every mutation runs in a single SQL transaction behind a lock scope:
//
//   - song uploads, renames, deletes and sweeps hold the catalog lock exclusively
//   - playlist mutations share the catalog lock and serialize per playlist name
//
// Playlist membership references a song's internal key, so a rename touches one row and every playlist
// observes the new id in the same commit. Deleting a song cascades it out of every playlist in the same
// transaction that removes its metadata.
//
// Metadata and blobs are ordered so a failed blob operation never leaves metadata pointing at a missing
// file: renames commit first and are reverted if the file cannot be moved, deletes remove the file before
// committing and roll back if that fails. [Library.Sweep] reconciles whatever a crash leaves behind.
package library
