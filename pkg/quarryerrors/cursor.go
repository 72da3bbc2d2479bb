package quarryerrors

import (
	"errors"
	"fmt"
)

// CursorSyntaxError is returned when a serialized iterator cursor cannot be
// parsed. It carries the byte offset of the failure and the fragment that
// could not be recognized, so the caller can surface a useful query-level
// error instead of an opaque failure.
type CursorSyntaxError struct {
	error

	// Offset is the 0-indexed byte offset within the cursor at which parsing
	// failed.
	Offset int

	// Fragment is the portion of the cursor near the failure.
	Fragment string
}

// NewCursorSyntaxError creates a CursorSyntaxError at the given offset of the
// provided cursor text.
func NewCursorSyntaxError(cursor string, offset int, format string, args ...any) *CursorSyntaxError {
	fragment := cursor[min(offset, len(cursor)):]
	if len(fragment) > 32 {
		fragment = fragment[:32]
	}
	return &CursorSyntaxError{
		error:    fmt.Errorf("cursor syntax error at offset %d near %q: %s", offset, fragment, fmt.Sprintf(format, args...)),
		Offset:   offset,
		Fragment: fragment,
	}
}

// Unwrap returns the inner, wrapped error.
func (err *CursorSyntaxError) Unwrap() error {
	return err.error
}

// AsCursorSyntaxError returns the error as a CursorSyntaxError, if applicable.
func AsCursorSyntaxError(err error) (*CursorSyntaxError, bool) {
	var cerr *CursorSyntaxError
	if errors.As(err, &cerr) {
		return cerr, true
	}
	return nil, false
}
