// package events carries library change notifications to connected presenters.
//
// Events are deliberately thin: a kind and the subject it concerns. Receivers re-fetch canonical state
// rather than patching local copies, so a dropped event costs at most a stale view until the next one.
//
// A [Hub] fans events out to websocket clients of a single process. When several processes share a
// library, a [RedisPublisher] relays events over a Redis channel and [RedisPublisher.Subscribe] feeds
// them back into each process's hub.
package events
