// Package auth issues and verifies the bearer tokens that guard the status
// API's control endpoints.
//
// There are no user accounts. An operator mints a token with
// `nightwatch token` using the shared secret from the config file; the API
// validates it by signature only. Two roles exist:
//   - viewer: read cycle status and history
//   - operator: everything a viewer can do, plus abort the running cycle
package auth
