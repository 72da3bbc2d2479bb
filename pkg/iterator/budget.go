package iterator

import (
	"time"

	"github.com/benbjohnson/clock"
)

// SuspendPolicy decides whether an operation should suspend at a suspension
// point even when budget remains. The production policy never forces a
// suspension; tests inject policies that do, to deterministically exercise
// every suspend/resume path.
type SuspendPolicy interface {
	// ShouldSuspend is consulted at each suspension point with the operation
	// name and the remaining budget.
	ShouldSuspend(op string, remaining int64) bool
}

// Budget is a caller-supplied counter of allowed work. Operations charge
// units against it as they run and return ErrSuspended once it is exhausted,
// retaining their progress for a later call.
type Budget struct {
	remaining int64
	policy    SuspendPolicy

	clk      clock.Clock
	deadline time.Time
}

// NewBudget returns a budget allowing n units of work.
func NewBudget(n int64) *Budget {
	return &Budget{remaining: n}
}

// WithPolicy attaches a suspend policy to the budget and returns it.
func (b *Budget) WithPolicy(policy SuspendPolicy) *Budget {
	b.policy = policy
	return b
}

// WithDeadline attaches an absolute ceiling to the budget: once the clock
// passes the deadline, budgeted operations abandon their work with
// ErrTooHard rather than suspending.
func (b *Budget) WithDeadline(clk clock.Clock, deadline time.Time) *Budget {
	b.clk = clk
	b.deadline = deadline
	return b
}

// Remaining returns the budget still available. May be negative: the last
// indivisible child operation is allowed to overdraw.
func (b *Budget) Remaining() int64 {
	return b.remaining
}

// Charge consumes n units.
func (b *Budget) Charge(n int64) {
	b.remaining -= n
}

// Refund returns n unspent units, used when a pooled sub-budget finishes
// with leftover work allowance.
func (b *Budget) Refund(n int64) {
	b.remaining += n
}

// Exhausted reports whether the budget has run out.
func (b *Budget) Exhausted() bool {
	return b.remaining <= 0
}

// Check is called at each suspension point. It returns ErrSuspended when the
// budget is exhausted or the attached policy forces a suspension, and
// ErrTooHard when the deadline has passed.
func (b *Budget) Check(op string) error {
	if b.clk != nil && !b.deadline.IsZero() && b.clk.Now().After(b.deadline) {
		return ErrTooHard
	}
	if b.remaining <= 0 {
		return ErrSuspended
	}
	if b.policy != nil && b.policy.ShouldSuspend(op, b.remaining) {
		return ErrSuspended
	}
	return nil
}

// Drain moves the entire remaining allowance out of the budget, returning
// the amount moved. Used by the contest engine to pool budget across calls.
func (b *Budget) Drain() int64 {
	n := b.remaining
	if n < 0 {
		n = 0
	}
	b.remaining -= n
	return n
}

// child returns a sub-budget of at most n units sharing this budget's policy
// and deadline. Spending is reconciled by the caller via Charge/Refund.
func (b *Budget) child(n int64) *Budget {
	return &Budget{
		remaining: n,
		policy:    b.policy,
		clk:       b.clk,
		deadline:  b.deadline,
	}
}
