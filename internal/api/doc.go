// Package api implements the HTTP status API and WebSocket stream for the
// bridge. Apart from requesting a sync pass it never changes state.
//
// This package provides:
//   - REST endpoints listing published accessories and recent sync passes
//   - an endpoint requesting an immediate sync pass
//   - a WebSocket pass stream: a snapshot on connect, then pass completions
//     and, on request, per-accessory changes
//   - middleware (request ID, logging, recovery)
//
// # Graceful Degradation
//
// The pass history and the health checks are optional. Without a history
// /passes answers 503; /health reports only the components it was given.
package api
