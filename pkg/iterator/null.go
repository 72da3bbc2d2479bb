package iterator

import (
	"fmt"
	"io"
)

// Null is the empty set. ANDs that are provably unsatisfiable commit down
// to a Null, preserving the external handle.
type Null struct {
	dir Direction
}

var _ Iterator = &Null{}

// NewNull returns an iterator over the empty set.
func NewNull(dir Direction) *Null {
	return &Null{dir: dir}
}

func (n *Null) Next(ctx *Context, budget *Budget) (ID, error) {
	return 0, ErrNotFound
}

func (n *Null) Find(ctx *Context, id ID, budget *Budget) (ID, error) {
	return 0, ErrNotFound
}

func (n *Null) Check(ctx *Context, id ID, budget *Budget) (bool, error) {
	return false, nil
}

func (n *Null) Statistics(ctx *Context, budget *Budget) (Stats, error) {
	return Stats{NextCost: 1, CheckCost: 1, FindCost: 1, HasFindCost: true, N: 0, Sorted: true}, nil
}

func (n *Null) Clone() Iterator {
	return &Null{dir: n.dir}
}

func (n *Null) Reset() {}

func (n *Null) Freeze(w io.Writer, flags FreezeFlag) error {
	return freezeSections(w, flags, func(w io.Writer) error {
		_, err := io.WriteString(w, "null:")
		return err
	}, nil, nil)
}

func (n *Null) Explain() Explain {
	return Explain{Name: "Null", Info: "Null"}
}

func (n *Null) PrimitiveSummary() (Summary, bool) {
	return Summary{}, false
}

func (n *Null) RangeEstimate() RangeEstimate {
	return RangeEstimate{Low: 0, High: 0, N: 0}
}

func (n *Null) Direction() Direction { return n.dir }

func (n *Null) Subiterators() []Iterator { return nil }

func (n *Null) String() string { return fmt.Sprintf("null[%d]", n.dir) }
