// package storage keeps song audio on disk.
//
// Blobs live flat in one directory and are addressed by their filename, which doubles as the song's external id.
// Names are resolved through [Store.ResolvePath] so a crafted id can never reach outside the root.
package storage
