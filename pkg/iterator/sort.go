package iterator

import (
	"fmt"
	"io"
	"slices"
)

// Sort imposes direction order on an unordered child by materializing its
// full output into a sorted buffer on first use. Materialization is
// budgeted and resumable: a suspended fill keeps the IDs collected so far
// and continues on the next call.
type Sort struct {
	dir   Direction
	child Iterator

	fill   []ID
	filled bool

	ids []ID // ascending, unique; valid once filled

	pos     int
	started bool
	eof     bool
}

var _ Iterator = &Sort{}

// NewSort returns an iterator yielding the child's output in dir order.
func NewSort(dir Direction, child Iterator) *Sort {
	s := &Sort{dir: dir, child: child}
	s.Reset()
	return s
}

// materialize drains the child into the sort buffer, charging the child's
// own costs against the budget.
func (s *Sort) materialize(ctx *Context, budget *Budget) error {
	if s.filled {
		return nil
	}
	for {
		id, err := s.child.Next(ctx, budget)
		if err == ErrNotFound {
			break
		}
		if err != nil {
			return suspended("sort.fill", err)
		}
		s.fill = append(s.fill, id)
	}
	slices.Sort(s.fill)
	s.ids = slices.Compact(s.fill)
	s.fill = nil
	s.filled = true
	s.resetPos()
	return nil
}

func (s *Sort) resetPos() {
	s.started = false
	s.eof = false
	if s.dir == Backward {
		s.pos = len(s.ids) - 1
	} else {
		s.pos = 0
	}
}

func (s *Sort) Next(ctx *Context, budget *Budget) (ID, error) {
	if err := s.materialize(ctx, budget); err != nil {
		return 0, err
	}
	if err := budget.Check("sort.next"); err != nil {
		return 0, suspended("sort.next", err)
	}
	budget.Charge(1)

	if s.eof {
		return 0, ErrNotFound
	}
	if s.started {
		if s.dir == Backward {
			s.pos--
		} else {
			s.pos++
		}
	}
	s.started = true
	if s.pos < 0 || s.pos >= len(s.ids) {
		s.eof = true
		return 0, ErrNotFound
	}
	return s.ids[s.pos], nil
}

func (s *Sort) Find(ctx *Context, id ID, budget *Budget) (ID, error) {
	if err := s.materialize(ctx, budget); err != nil {
		return 0, err
	}
	if err := budget.Check("sort.find"); err != nil {
		return 0, suspended("sort.find", err)
	}
	budget.Charge(1)

	i, _ := slices.BinarySearch(s.ids, id)
	if s.dir == Backward {
		if i >= len(s.ids) || s.ids[i] != id {
			i--
		}
		if i < 0 {
			s.eof = true
			return 0, ErrNotFound
		}
	} else if i >= len(s.ids) {
		s.eof = true
		return 0, ErrNotFound
	}
	s.pos = i
	s.started = true
	s.eof = false
	return s.ids[i], nil
}

func (s *Sort) Check(ctx *Context, id ID, budget *Budget) (bool, error) {
	if err := s.materialize(ctx, budget); err != nil {
		return false, err
	}
	if err := budget.Check("sort.check"); err != nil {
		return false, suspended("sort.check", err)
	}
	budget.Charge(1)
	_, found := slices.BinarySearch(s.ids, id)
	return found, nil
}

func (s *Sort) Statistics(ctx *Context, budget *Budget) (Stats, error) {
	if s.filled {
		return Stats{
			NextCost:    1,
			CheckCost:   2,
			FindCost:    2,
			HasFindCost: true,
			N:           int64(len(s.ids)),
			Sorted:      true,
		}, nil
	}
	st, err := s.child.Statistics(ctx, budget)
	if err != nil {
		return Stats{}, err
	}
	// The fill pass pays the child's full enumeration once, amortized here
	// over the expected results.
	next := st.NextCost + 1
	return Stats{
		NextCost:    next,
		CheckCost:   next,
		FindCost:    next,
		HasFindCost: true,
		N:           st.N,
		Sorted:      true,
	}, nil
}

func (s *Sort) Clone() Iterator {
	cloned := &Sort{
		dir:     s.dir,
		child:   s.child.Clone(),
		filled:  s.filled,
		ids:     s.ids,
		pos:     s.pos,
		started: s.started,
		eof:     s.eof,
	}
	if !s.filled {
		cloned.fill = slices.Clone(s.fill)
	}
	return cloned
}

func (s *Sort) Reset() {
	s.resetPos()
}

func (s *Sort) Freeze(w io.Writer, flags FreezeFlag) error {
	return freezeSections(w, flags, func(w io.Writer) error {
		if _, err := fmt.Fprintf(w, "sort:%c(", dirChar(s.dir)); err != nil {
			return err
		}
		if err := s.child.Freeze(w, FreezeSet); err != nil {
			return err
		}
		_, err := io.WriteString(w, ")")
		return err
	}, func(w io.Writer) error {
		var last ID
		if s.filled && s.started && !s.eof && s.pos >= 0 && s.pos < len(s.ids) {
			last = s.ids[s.pos]
		}
		return writeLeafPosition(w, s.filled && s.started, s.eof, last)
	}, nil)
}

func (s *Sort) Explain() Explain {
	return Explain{Name: "Sort", Info: "Sort", SubExplain: []Explain{s.child.Explain()}}
}

func (s *Sort) PrimitiveSummary() (Summary, bool) {
	return s.child.PrimitiveSummary()
}

func (s *Sort) RangeEstimate() RangeEstimate {
	if s.filled {
		if len(s.ids) == 0 {
			return RangeEstimate{}
		}
		return RangeEstimate{Low: s.ids[0], High: s.ids[len(s.ids)-1] + 1, N: int64(len(s.ids))}
	}
	return s.child.RangeEstimate()
}

func (s *Sort) Direction() Direction { return s.dir }

func (s *Sort) Subiterators() []Iterator { return []Iterator{s.child} }

func (s *Sort) String() string { return "sort" }
