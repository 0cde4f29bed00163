package journal

import "errors"

// ErrCycleNotFound is returned when no cycle has the requested ID.
var ErrCycleNotFound = errors.New("journal: cycle not found")
