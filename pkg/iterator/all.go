package iterator

import (
	"fmt"
	"io"
)

// All is the set of every primitive in [low, high), bounded at evaluation
// time by the storage horizon. ANDs with zero subconditions commit to an
// All; an All subcondition that coexists with any cheaper alternative is
// pruned by the optimizer.
type All struct {
	dir       Direction
	low, high ID

	last    ID
	started bool
	eof     bool
}

var _ Iterator = &All{}

// NewAll returns an iterator over every primitive in [low, high).
func NewAll(dir Direction, low, high ID) *All {
	return &All{dir: dir, low: low, high: high}
}

// bounds clamps the configured range to the storage horizon.
func (a *All) bounds(ctx *Context) (ID, ID) {
	high := a.high
	if ctx != nil && ctx.Storage != nil {
		if horizon := ctx.Storage.Horizon(); horizon < high {
			high = horizon
		}
	}
	return a.low, high
}

func (a *All) Next(ctx *Context, budget *Budget) (ID, error) {
	if err := budget.Check("all.next"); err != nil {
		return 0, suspended("all.next", err)
	}
	budget.Charge(1)

	low, high := a.bounds(ctx)
	if a.eof || low >= high {
		a.eof = true
		return 0, ErrNotFound
	}

	var next ID
	if a.dir == Backward {
		if !a.started {
			next = high - 1
		} else if a.last == low {
			a.eof = true
			return 0, ErrNotFound
		} else {
			next = a.last - 1
		}
	} else {
		if !a.started {
			next = low
		} else {
			next = a.last + 1
		}
	}

	if next < low || next >= high {
		a.eof = true
		return 0, ErrNotFound
	}
	a.started = true
	a.last = next
	return next, nil
}

func (a *All) Find(ctx *Context, id ID, budget *Budget) (ID, error) {
	if err := budget.Check("all.find"); err != nil {
		return 0, suspended("all.find", err)
	}
	budget.Charge(1)

	low, high := a.bounds(ctx)
	target := id
	if a.dir == Backward {
		if target >= high {
			target = high - 1
		}
		if high == low || target < low {
			a.eof = true
			return 0, ErrNotFound
		}
	} else {
		if target < low {
			target = low
		}
		if target >= high {
			a.eof = true
			return 0, ErrNotFound
		}
	}
	a.started = true
	a.eof = false
	a.last = target
	return target, nil
}

func (a *All) Check(ctx *Context, id ID, budget *Budget) (bool, error) {
	if err := budget.Check("all.check"); err != nil {
		return false, suspended("all.check", err)
	}
	budget.Charge(1)
	low, high := a.bounds(ctx)
	return id >= low && id < high, nil
}

func (a *All) Statistics(ctx *Context, budget *Budget) (Stats, error) {
	low, high := a.bounds(ctx)
	return Stats{NextCost: 1, CheckCost: 1, FindCost: 1, HasFindCost: true, N: spanCount(low, high), Sorted: true}, nil
}

func (a *All) Clone() Iterator {
	cloned := *a
	return &cloned
}

func (a *All) Reset() {
	a.started = false
	a.eof = false
	a.last = 0
}

func (a *All) Freeze(w io.Writer, flags FreezeFlag) error {
	return freezeSections(w, flags, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "all:%c%s", dirChar(a.dir), formatRange(a.low, a.high))
		return err
	}, func(w io.Writer) error {
		return writeLeafPosition(w, a.started, a.eof, a.last)
	}, nil)
}

func (a *All) Explain() Explain {
	return Explain{Name: "All", Info: fmt.Sprintf("All(%s)", formatRange(a.low, a.high))}
}

func (a *All) PrimitiveSummary() (Summary, bool) {
	return Summary{}, false
}

func (a *All) RangeEstimate() RangeEstimate {
	return RangeEstimate{Low: a.low, High: a.high, N: spanCount(a.low, a.high)}
}

func (a *All) Direction() Direction { return a.dir }

func (a *All) Subiterators() []Iterator { return nil }

func (a *All) String() string {
	return fmt.Sprintf("all[%s]", formatRange(a.low, a.high))
}
