package iterator

import (
	"io"
	"math"

	"github.com/quarry-db/quarry/pkg/genutil"
)

// ID is an opaque, totally-ordered 64-bit primitive key. All iteration is
// bounded by a half-open range [low, high) and a direction.
type ID uint64

const (
	// IDMin is the smallest possible primitive ID.
	IDMin ID = 0

	// IDMax is one past the largest possible primitive ID; ranges that extend
	// "to the end" use it as their exclusive high bound.
	IDMax ID = math.MaxUint64
)

const maxInt64 = int64(math.MaxInt64)

// spanCount converts the half-open span [low, high) to a signed count,
// saturating at MaxInt64.
func spanCount(low, high ID) int64 {
	if high < low {
		return 0
	}
	span := uint64(high - low)
	if span > uint64(maxInt64) {
		return maxInt64
	}
	return genutil.MustEnsureInt64(span)
}

// Direction describes the order in which an iterator yields IDs.
type Direction int

const (
	// Forward yields IDs in strictly ascending order.
	Forward Direction = iota

	// Backward yields IDs in strictly descending order.
	Backward

	// Unordered yields each ID exactly once but promises nothing about order.
	Unordered

	// OrderingDriven defers ordering to a named external ordering; within
	// this package it behaves like Forward but carries the ordering label
	// through clones and cursors.
	OrderingDriven
)

// FreezeFlag selects which sections of an iterator's state are written by
// Freeze. The three sections are independent; Thaw accepts any combination
// that includes Set.
type FreezeFlag int

const (
	// FreezeSet writes the iterator's definition: direction, bounds, and the
	// recursive definitions of any children.
	FreezeSet FreezeFlag = 1 << iota

	// FreezePosition writes the iterator's coarse position: EOF flag, last
	// returned ID, pending resume target.
	FreezePosition

	// FreezeState writes the full internal state: per-child positions,
	// statistics or contest progress, cache contents.
	FreezeState

	// FreezeAll writes all three sections.
	FreezeAll = FreezeSet | FreezePosition | FreezeState
)

// Stats is the cost model for a single iterator, produced by Statistics.
//
// Costs are a completely made-up unit, relevant only to the source of the
// statistics. They are not portable between statistics sources and are only
// comparable to each other. Zero-cost operations are rare (and often
// useless), so a good value is on the range (1, MAXINT).
type Stats struct {
	// NextCost is the estimated cost of producing one result via Next.
	NextCost int64

	// CheckCost is the estimated cost of one membership Check.
	CheckCost int64

	// FindCost is the estimated cost of one Find. Only meaningful when
	// HasFindCost is set; unsorted iterators cannot seek.
	FindCost    int64
	HasFindCost bool

	// N is the estimated number of results this iterator will produce.
	N int64

	// Sorted is true when the iterator yields IDs in direction order.
	Sorted bool
}

// RangeEstimate is a best-effort bound on an iterator's output: every result
// lies in [Low, High), and there are at most N of them.
type RangeEstimate struct {
	Low  ID
	High ID
	N    int64
}

// Linkage names one of the fixed linkage fields of a primitive.
type Linkage int

const (
	LinkageTypeGUID Linkage = iota
	LinkageLeft
	LinkageRight
	LinkageScope
)

func (l Linkage) String() string {
	switch l {
	case LinkageTypeGUID:
		return "typeguid"
	case LinkageLeft:
		return "left"
	case LinkageRight:
		return "right"
	case LinkageScope:
		return "scope"
	default:
		return "unknown"
	}
}

// Summary is a primitive summary (psum): a best-effort description of which
// fixed linkage fields every result of an iterator is known to share. It
// drives the subsumption and VIP optimizer rewrites.
type Summary struct {
	HasTypeGUID bool
	TypeGUID    ID

	HasLeft bool
	Left    ID

	HasRight bool
	Right    ID

	HasScope bool
	Scope    ID

	// Complete is true when the iterator's output is exactly the set of
	// primitives matching the fields above, rather than a subset.
	Complete bool
}

// SubsetOf reports whether every primitive described by s necessarily
// belongs to the set described by o. It requires o to be Complete (o's set
// is exactly the primitives matching its fields) and s to guarantee every
// field o constrains, with matching values.
func (s Summary) SubsetOf(o Summary) bool {
	if !o.Complete {
		return false
	}
	if o.HasTypeGUID && (!s.HasTypeGUID || s.TypeGUID != o.TypeGUID) {
		return false
	}
	if o.HasLeft && (!s.HasLeft || s.Left != o.Left) {
		return false
	}
	if o.HasRight && (!s.HasRight || s.Right != o.Right) {
		return false
	}
	if o.HasScope && (!s.HasScope || s.Scope != o.Scope) {
		return false
	}
	return true
}

// Explain is a human-readable description of an iterator tree, used by
// query debugging output.
type Explain struct {
	Name       string
	Info       string
	SubExplain []Explain
}

// Iterator is the contract every concrete iterator implements. The AND
// iterator both implements it and calls it recursively on its children.
//
// Next, Find, Check, and Statistics may return ErrSuspended instead of
// completing; the iterator retains its progress and a repeated call with
// fresh budget resumes at the point of suspension.
type Iterator interface {
	// Next returns the next ID in direction order, or ErrNotFound when the
	// iterator is exhausted.
	Next(ctx *Context, budget *Budget) (ID, error)

	// Find returns the first ID on-or-after (Forward) or on-or-before
	// (Backward) the given id, repositioning the iterator there. Returns
	// ErrNotFound when no such ID exists.
	Find(ctx *Context, id ID, budget *Budget) (ID, error)

	// Check reports whether id is a member of the iterator's set. Check may
	// reposition the iterator.
	Check(ctx *Context, id ID, budget *Budget) (bool, error)

	// Statistics computes (if necessary) and returns the iterator's cost
	// model. For composite iterators this may involve substantial work.
	Statistics(ctx *Context, budget *Budget) (Stats, error)

	// Clone returns an independent handle sharing this iterator's definition
	// and carrying a copy of its current traversal position. Advancing the
	// clone does not move the original.
	Clone() Iterator

	// Reset rewinds the iterator to its initial position.
	Reset()

	// Freeze writes the selected sections of the iterator's state as a
	// textual cursor fragment.
	Freeze(w io.Writer, flags FreezeFlag) error

	// Explain describes the iterator tree for debugging.
	Explain() Explain

	// PrimitiveSummary returns the iterator's psum, if one is known.
	PrimitiveSummary() (Summary, bool)

	// RangeEstimate bounds the iterator's output.
	RangeEstimate() RangeEstimate

	// Direction returns the iterator's declared direction.
	Direction() Direction

	// Subiterators returns the iterator's children, if any. The returned
	// slice must not be mutated.
	Subiterators() []Iterator
}

// directionCmp returns a negative value when a precedes b in direction
// order, zero when equal, positive otherwise. Unordered and OrderingDriven
// iterate ascending internally.
func directionCmp(dir Direction, a, b ID) int {
	switch {
	case a == b:
		return 0
	case a < b:
		if dir == Backward {
			return 1
		}
		return -1
	default:
		if dir == Backward {
			return -1
		}
		return 1
	}
}
