// package queue derives play order from the library and steps through it.
//
// [Queue] is the playback state machine: a song list, a pointer (-1 when unset) and a repeat mode.
// [State] is the presenter's single state container. It owns the queue together with the library
// view it is derived from (songs, playlists, selection, filter and shuffle flag) and exposes explicit
// mutation methods instead of shared variables.
//
// Toggling shuffle reorders the active queue and resets the pointer to -1 rather than tracking the
// current song through the new order. The next advance starts from the top of the reordered queue.
package queue
