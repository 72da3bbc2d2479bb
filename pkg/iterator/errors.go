package iterator

import "errors"

var (
	// ErrSuspended is returned when an operation ran out of budget before
	// completing. The iterator retains its progress; calling again with more
	// budget resumes where the operation left off. This is a controlled,
	// expected outcome, never a failure.
	ErrSuspended = errors.New("iterator operation suspended: out of budget")

	// ErrNotFound is returned by Next and Find when enumeration is exhausted,
	// and by operations that definitively determined non-membership. It is
	// terminal for that call.
	ErrNotFound = errors.New("iterator: no matching primitive")

	// ErrAlready is returned when a requested rewrite or redirect produced no
	// change; the caller should proceed with the handle it has.
	ErrAlready = errors.New("iterator: no change")

	// ErrRedirect is returned when an iterator's dynamic type has changed
	// (for example an AND that committed down to a fixed set). The caller
	// must re-dispatch to the replacement.
	ErrRedirect = errors.New("iterator: evolved to a different type")

	// ErrTooHard is returned when an operation exceeded an absolute
	// time/complexity ceiling and was abandoned.
	ErrTooHard = errors.New("iterator: operation exceeded its complexity ceiling")

	// ErrResourceExhausted is returned when an allocation limit was hit while
	// building an iterator.
	ErrResourceExhausted = errors.New("iterator: resource limit exhausted")
)
