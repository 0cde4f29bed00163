package plan

import (
	"errors"
	"fmt"
)

// ErrParse is wrapped by every plan parse failure.
var ErrParse = errors.New("plan: parse error")

// ParseError describes a malformed plan block.
type ParseError struct {
	// Line is the 1-based line number of the offending input, 0 at end of input.
	Line     int
	Expected string
	Actual   string
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("plan: at end of input: expected %s, got %s", e.Expected, e.Actual)
	}
	return fmt.Sprintf("plan: line %d: expected %s, got %q", e.Line, e.Expected, e.Actual)
}

// Unwrap makes errors.Is(err, ErrParse) hold for every ParseError.
func (e *ParseError) Unwrap() error {
	return ErrParse
}
