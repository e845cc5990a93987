// Package tasks runs long library jobs with real-time progress reporting.
//
// # Core Operations
//
// [Engine] offers two bulk operations:
//
//  1. [Engine.Import] : Local files → library
//     - Expands directories (optionally recursively) into audio files
//     - Uploads through a bounded worker pool paced by a rate limiter
//     - Reports one result per file; a failed file never stops its siblings
//     - Optionally collects the imported songs into a playlist in input order
//
//  2. [Engine.Export] : Playlists → files
//     - Resolves each playlist's song ids against the catalog
//     - Writes every playlist concurrently in the requested [formatter.Format]
//     - Writes a JSON manifest summarizing the run
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
