package shutdown

import "errors"

// ErrShutdownStep wraps every step failure reported in a Summary. It is
// never returned to callers as an error.
var ErrShutdownStep = errors.New("shutdown: step failed")
