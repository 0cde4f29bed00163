package health

import "errors"

// ErrHealthCheckExhausted is returned when every attempt found the
// observatory not ready.
var ErrHealthCheckExhausted = errors.New("health: check exhausted")
