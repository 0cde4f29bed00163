package sim

import (
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/nightwatch/internal/observatory"
)

// forever marks an injected failure that never clears.
const forever = -1

type failure struct {
	err       error
	remaining int
}

// recorder is the call log and failure injection shared by every device.
type recorder struct {
	mu    sync.Mutex
	calls []string
	fails map[string]*failure
}

// record logs a call and returns the injected error for method, if any.
// Must be called with mu held.
func (r *recorder) record(method string, args ...any) error {
	call := method
	if len(args) > 0 {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = fmt.Sprint(a)
		}
		call += "(" + strings.Join(parts, ",") + ")"
	}
	r.calls = append(r.calls, call)

	f, ok := r.fails[method]
	if !ok || f.remaining == 0 {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
	}
	return fmt.Errorf("%w: %s: %w", observatory.ErrHardwareUnavailable, method, f.err)
}

// Fail makes every later call to method return err.
func (r *recorder) Fail(method string, err error) {
	r.FailTimes(method, err, forever)
}

// FailTimes makes the next n calls to method return err.
func (r *recorder) FailTimes(method string, err error, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fails == nil {
		r.fails = make(map[string]*failure)
	}
	r.fails[method] = &failure{err: err, remaining: n}
}

// Calls returns a copy of the call log, e.g. "DisableAxis(0)".
func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Count returns how many calls were made to method, with any arguments.
func (r *recorder) Count(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == method || strings.HasPrefix(c, method+"(") {
			n++
		}
	}
	return n
}

// script yields scripted values in order, then repeats the fallback.
type script struct {
	values []bool
}

func (s *script) next(fallback bool) bool {
	if len(s.values) == 0 {
		return fallback
	}
	v := s.values[0]
	s.values = s.values[1:]
	return v
}
