package iterator

import (
	"fmt"
	"io"
	"slices"
	"sort"

	"github.com/google/uuid"
)

// Fixed is a fixed set of pre-computed primitive IDs, held sorted. It is the
// target of the small-set pre-evaluation rewrite, the merge target for
// duplicate fixed subconditions, and the workhorse of the test suite.
type Fixed struct {
	id  string
	dir Direction
	ids []ID // ascending, unique

	pos     int // index of the next ID to yield
	started bool
	eof     bool

	psum    Summary
	hasPsum bool
}

var _ Iterator = &Fixed{}

// NewFixed returns an iterator over the given set of IDs. The input is
// copied, sorted, and de-duplicated.
func NewFixed(dir Direction, ids ...ID) *Fixed {
	owned := make([]ID, len(ids))
	copy(owned, ids)
	slices.Sort(owned)
	owned = slices.Compact(owned)

	f := &Fixed{
		id:  uuid.NewString(),
		dir: dir,
		ids: owned,
	}
	f.Reset()
	return f
}

// SetSummary attaches a primitive summary, used when the set's members are
// known to share linkage fields (for example after a VIP pre-evaluation).
func (f *Fixed) SetSummary(psum Summary) {
	f.psum = psum
	f.hasPsum = true
}

// IDs returns the sorted members of the set. The slice must not be mutated.
func (f *Fixed) IDs() []ID { return f.ids }

func (f *Fixed) Next(ctx *Context, budget *Budget) (ID, error) {
	if err := budget.Check("fixed.next"); err != nil {
		return 0, suspended("fixed.next", err)
	}
	budget.Charge(1)

	if f.eof {
		return 0, ErrNotFound
	}
	if f.started {
		if f.dir == Backward {
			f.pos--
		} else {
			f.pos++
		}
	}
	f.started = true
	if f.pos < 0 || f.pos >= len(f.ids) {
		f.eof = true
		return 0, ErrNotFound
	}
	return f.ids[f.pos], nil
}

func (f *Fixed) Find(ctx *Context, id ID, budget *Budget) (ID, error) {
	if err := budget.Check("fixed.find"); err != nil {
		return 0, suspended("fixed.find", err)
	}
	budget.Charge(1)

	// First index with ids[i] >= id.
	i := sort.Search(len(f.ids), func(i int) bool { return f.ids[i] >= id })
	if f.dir == Backward {
		// On-or-before id.
		if i < len(f.ids) && f.ids[i] == id {
			// exact hit
		} else {
			i--
		}
		if i < 0 {
			f.eof = true
			return 0, ErrNotFound
		}
	} else {
		if i >= len(f.ids) {
			f.eof = true
			return 0, ErrNotFound
		}
	}
	f.pos = i
	f.started = true
	f.eof = false
	return f.ids[i], nil
}

func (f *Fixed) Check(ctx *Context, id ID, budget *Budget) (bool, error) {
	if err := budget.Check("fixed.check"); err != nil {
		return false, suspended("fixed.check", err)
	}
	budget.Charge(1)
	_, found := slices.BinarySearch(f.ids, id)
	return found, nil
}

func (f *Fixed) Statistics(ctx *Context, budget *Budget) (Stats, error) {
	return Stats{
		NextCost:    1,
		CheckCost:   2,
		FindCost:    2,
		HasFindCost: true,
		N:           int64(len(f.ids)),
		Sorted:      true,
	}, nil
}

func (f *Fixed) Clone() Iterator {
	return &Fixed{
		id:      uuid.NewString(),
		dir:     f.dir,
		ids:     f.ids,
		pos:     f.pos,
		started: f.started,
		eof:     f.eof,
		psum:    f.psum,
		hasPsum: f.hasPsum,
	}
}

func (f *Fixed) Reset() {
	f.started = false
	f.eof = false
	if f.dir == Backward {
		f.pos = len(f.ids) - 1
	} else {
		f.pos = 0
	}
}

func (f *Fixed) Freeze(w io.Writer, flags FreezeFlag) error {
	return freezeSections(w, flags, func(w io.Writer) error {
		if _, err := fmt.Fprintf(w, "fixed:%c%d:", dirChar(f.dir), len(f.ids)); err != nil {
			return err
		}
		for i, id := range f.ids {
			sep := ""
			if i > 0 {
				sep = ","
			}
			if _, err := fmt.Fprintf(w, "%s%d", sep, id); err != nil {
				return err
			}
		}
		return nil
	}, func(w io.Writer) error {
		var last ID
		if f.started && !f.eof && f.pos >= 0 && f.pos < len(f.ids) {
			last = f.ids[f.pos]
		}
		return writeLeafPosition(w, f.started, f.eof, last)
	}, nil)
}

func (f *Fixed) Explain() Explain {
	return Explain{Name: "Fixed", Info: fmt.Sprintf("Fixed[%s](%d ids)", f.id, len(f.ids))}
}

func (f *Fixed) PrimitiveSummary() (Summary, bool) {
	return f.psum, f.hasPsum
}

func (f *Fixed) RangeEstimate() RangeEstimate {
	if len(f.ids) == 0 {
		return RangeEstimate{}
	}
	return RangeEstimate{
		Low:  f.ids[0],
		High: f.ids[len(f.ids)-1] + 1,
		N:    int64(len(f.ids)),
	}
}

func (f *Fixed) Direction() Direction { return f.dir }

func (f *Fixed) Subiterators() []Iterator { return nil }

// ID returns the unique identity of this fixed set instance.
func (f *Fixed) ID() string { return f.id }

func (f *Fixed) String() string {
	return fmt.Sprintf("fixed[%d ids]", len(f.ids))
}

// intersectFixed returns the fixed set containing the IDs common to a and b.
func intersectFixed(a, b *Fixed) *Fixed {
	out := make([]ID, 0, min(len(a.ids), len(b.ids)))
	i, j := 0, 0
	for i < len(a.ids) && j < len(b.ids) {
		switch {
		case a.ids[i] == b.ids[j]:
			out = append(out, a.ids[i])
			i++
			j++
		case a.ids[i] < b.ids[j]:
			i++
		default:
			j++
		}
	}
	merged := NewFixed(a.dir, out...)
	return merged
}
