package iterator

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func testCtx(storage Storage) *Context {
	return NewContext(context.Background(), storage)
}

func unlimited() *Budget {
	return NewBudget(1 << 40)
}

// collectAll drains the iterator with an effectively unlimited budget.
func collectAll(t *testing.T, ctx *Context, it Iterator) []ID {
	t.Helper()
	var out []ID
	for {
		id, err := it.Next(ctx, unlimited())
		if err == ErrNotFound {
			return out
		}
		require.NoError(t, err)
		out = append(out, id)
	}
}

// collectResumable drains the iterator with repeated budgets of the given
// size, resuming across every suspension.
func collectResumable(t *testing.T, ctx *Context, it Iterator, grant int64) []ID {
	t.Helper()
	var out []ID
	for {
		id, err := it.Next(ctx, NewBudget(grant))
		if err == ErrSuspended {
			continue
		}
		if err == ErrNotFound {
			return out
		}
		require.NoError(t, err)
		out = append(out, id)
	}
}

// checkResumable answers a membership check with repeated small budgets.
func checkResumable(t *testing.T, ctx *Context, it Iterator, id ID, grant int64) bool {
	t.Helper()
	for {
		ok, err := it.Check(ctx, id, NewBudget(grant))
		if err == ErrSuspended {
			continue
		}
		require.NoError(t, err)
		return ok
	}
}

func commitAnd(t *testing.T, ctx *Context, dir Direction, children ...Iterator) Iterator {
	t.Helper()
	and := NewAnd(0, IDMin, IDMax, dir, "")
	for _, child := range children {
		require.NoError(t, and.AddSubcondition(child))
	}
	committed, err := and.Commit(ctx)
	require.NoError(t, err)
	return committed
}

func evens(n int) []ID {
	out := make([]ID, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, ID(2*(i+1)))
	}
	return out
}

func multiples(k, n int) []ID {
	out := make([]ID, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, ID(k*(i+1)))
	}
	return out
}

// everyNPolicy forces a suspension at every n-th suspension point, to
// deterministically walk the suspend/resume paths.
type everyNPolicy struct {
	n     int
	count int
}

func (p *everyNPolicy) ShouldSuspend(op string, remaining int64) bool {
	p.count++
	return p.count%p.n == 0
}

// scrambled is a test iterator yielding a fixed list of IDs in insertion
// order, deliberately unsorted.
type scrambled struct {
	ids []ID

	pos     int
	started bool
	eof     bool
}

var _ Iterator = &scrambled{}

func newScrambled(ids ...ID) *scrambled {
	return &scrambled{ids: ids}
}

func (s *scrambled) Next(ctx *Context, budget *Budget) (ID, error) {
	if err := budget.Check("scrambled.next"); err != nil {
		return 0, err
	}
	budget.Charge(1)
	if s.eof {
		return 0, ErrNotFound
	}
	if s.started {
		s.pos++
	}
	s.started = true
	if s.pos >= len(s.ids) {
		s.eof = true
		return 0, ErrNotFound
	}
	return s.ids[s.pos], nil
}

func (s *scrambled) Find(ctx *Context, id ID, budget *Budget) (ID, error) {
	return 0, ErrNotFound
}

func (s *scrambled) Check(ctx *Context, id ID, budget *Budget) (bool, error) {
	if err := budget.Check("scrambled.check"); err != nil {
		return false, err
	}
	budget.Charge(5)
	for _, v := range s.ids {
		if v == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *scrambled) Statistics(ctx *Context, budget *Budget) (Stats, error) {
	return Stats{NextCost: 1, CheckCost: 5, N: int64(len(s.ids)), Sorted: false}, nil
}

func (s *scrambled) Clone() Iterator {
	cloned := *s
	return &cloned
}

func (s *scrambled) Reset() {
	s.pos = 0
	s.started = false
	s.eof = false
}

func (s *scrambled) Freeze(w io.Writer, flags FreezeFlag) error {
	_, err := fmt.Fprintf(w, "test-scrambled:%d", len(s.ids))
	return err
}

func (s *scrambled) Explain() Explain {
	return Explain{Name: "scrambled"}
}

func (s *scrambled) PrimitiveSummary() (Summary, bool) { return Summary{}, false }

func (s *scrambled) RangeEstimate() RangeEstimate {
	if len(s.ids) == 0 {
		return RangeEstimate{}
	}
	low, high := s.ids[0], s.ids[0]
	for _, v := range s.ids {
		if v < low {
			low = v
		}
		if v > high {
			high = v
		}
	}
	return RangeEstimate{Low: low, High: high + 1, N: int64(len(s.ids))}
}

func (s *scrambled) Direction() Direction { return Unordered }

func (s *scrambled) Subiterators() []Iterator { return nil }
