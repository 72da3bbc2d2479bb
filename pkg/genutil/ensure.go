package genutil

import (
	"github.com/ccoveille/go-safecast/v2"

	"github.com/quarry-db/quarry/pkg/quarryerrors"
)

// MustEnsureInt is a helper function that calls EnsureInt and panics on error.
func MustEnsureInt(value int64) int {
	ret, err := EnsureInt(value)
	if err != nil {
		panic(err)
	}
	return ret
}

// EnsureInt ensures that the specified value can be represented as an int.
func EnsureInt(value int64) (int, error) {
	ret, err := safecast.Convert[int](value)
	if err != nil {
		return 0, quarryerrors.MustBugf("specified value cannot be represented as an int: %v", err)
	}
	return ret, nil
}

// EnsureUInt64 ensures that the specified value can be represented as a uint64.
func EnsureUInt64(value int64) (uint64, error) {
	ret, err := safecast.Convert[uint64](value)
	if err != nil {
		return 0, quarryerrors.MustBugf("specified value cannot be represented as a uint64: %v", err)
	}
	return ret, nil
}

// MustEnsureInt64 is a helper function that calls EnsureInt64 and panics on error.
func MustEnsureInt64(value uint64) int64 {
	ret, err := EnsureInt64(value)
	if err != nil {
		panic(err)
	}
	return ret
}

// EnsureInt64 ensures that the specified value can be represented as an int64.
func EnsureInt64(value uint64) (int64, error) {
	ret, err := safecast.Convert[int64](value)
	if err != nil {
		return 0, quarryerrors.MustBugf("specified value cannot be represented as an int64: %v", err)
	}
	return ret, nil
}
