// Package cursor wraps iterator freeze text into opaque, client-safe tokens.
// The token binds the cursor to the API call that produced it via a hash of
// the call name and its parameters, so a cursor handed back to a different
// call (or the same call with different parameters) is rejected instead of
// silently resuming the wrong traversal.
package cursor

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Public facing errors
const (
	errEncodeError = "error encoding cursor: %w"
	errDecodeError = "error decoding cursor: %w"
)

const tokenVersion = "v1"

// HashCall computes the call-and-parameters hash bound into encoded cursors.
// It should cover the calling API method's name and every parameter that
// shapes the result stream (besides the cursor itself).
func HashCall(call string, params ...string) string {
	h := xxhash.New()
	_, _ = h.WriteString(call)
	for _, param := range params {
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(param)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// Encode converts freeze text into an opaque token bound to the given call
// hash.
func Encode(frozen string, callAndParameterHash string) string {
	payload := tokenVersion + ":" + callAndParameterHash + ":" + frozen
	return base64.StdEncoding.EncodeToString([]byte(payload))
}

// Decode converts an opaque token back into freeze text, verifying that it
// was produced by a call with the same hash.
func Decode(token string, callAndParameterHash string) (string, error) {
	if token == "" {
		return "", NewInvalidCursorErr(fmt.Errorf(errDecodeError, ErrNilCursor))
	}

	decodedBytes, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", NewInvalidCursorErr(fmt.Errorf(errDecodeError, err))
	}

	version, rest, ok := strings.Cut(string(decodedBytes), ":")
	if !ok || version != tokenVersion {
		return "", NewInvalidCursorErr(fmt.Errorf(errDecodeError, fmt.Errorf("unsupported cursor version %q", version)))
	}
	hash, frozen, ok := strings.Cut(rest, ":")
	if !ok {
		return "", NewInvalidCursorErr(fmt.Errorf(errDecodeError, ErrNilCursor))
	}
	if hash != callAndParameterHash {
		return "", NewInvalidCursorErr(fmt.Errorf(errDecodeError, ErrHashMismatch))
	}
	return frozen, nil
}
