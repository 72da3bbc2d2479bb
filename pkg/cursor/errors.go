package cursor

import (
	"errors"
)

// ErrNilCursor is returned as the base error when an empty token is provided
// to Decode.
var ErrNilCursor = errors.New("cursor token was empty")

// ErrHashMismatch is returned as the base error when a mismatching hash was given to the decoder.
var ErrHashMismatch = errors.New("the cursor provided does not have the same arguments as the original API call; please ensure you are making the same API call, with the exact same parameters (besides the cursor)")

// InvalidCursorError occurs when a cursor could not be decoded.
type InvalidCursorError struct {
	error
}

func (err InvalidCursorError) Unwrap() error {
	return err.error
}

// NewInvalidCursorErr creates and returns a new invalid cursor error.
func NewInvalidCursorErr(err error) error {
	return InvalidCursorError{err}
}
