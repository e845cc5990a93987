// Package server exposes the library over HTTP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [ChiRouter] implementation uses a chi mux internally, so path parameters such as /song/{id} are available
// through chi.URLParam.
//
// # Library API
//
// [LibraryHandler] registers the catalog and playlist routes. Mutations are POST requests with JSON bodies;
// failures carry a JSON body of the form {"error": "..."} and map error kinds onto status codes:
//
//   - NotFound → 404
//   - Conflict → 409
//   - InvalidInput → 400
//   - StorageFailure and anything unexpected → 500, with a generic message
//
// # Change Notifications
//
// GET /events upgrades to a websocket that streams library change events from the events hub. Clients re-fetch
// /songs and /playlists when they arrive.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
