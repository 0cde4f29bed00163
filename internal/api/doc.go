// Package api implements the HTTP status API and WebSocket event stream of
// the Night Watch core.
//
// This package provides:
//   - Read endpoints for the live cycle status and the cycle journal
//   - An operator abort endpoint, token-protected and rate-limited
//   - A WebSocket hub that relays cycle, frame and health events
//   - System metrics as JSON and, when configured, Prometheus exposition
//   - Middleware stack (request ID, logging, recovery, body limit, auth)
//
// # Security
//
// Every endpoint except /api/v1/health and the metrics endpoints requires a
// bearer token minted with `nightwatch token`. Viewer tokens may read;
// only operator tokens may abort. WebSocket clients pass the token in the
// "token" query parameter.
//
// # Graceful Degradation
//
// The journal, MQTT status and Prometheus handler are optional. Without a
// journal the history endpoints answer 503; everything else keeps working.
package api
