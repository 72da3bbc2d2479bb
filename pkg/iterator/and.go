package iterator

import (
	"fmt"
	"io"

	"github.com/quarry-db/quarry/internal/logging"
	"github.com/quarry-db/quarry/pkg/quarryerrors"
)

// callState records which façade operation a handle suspended in, so a
// thawed cursor re-enters the right entry point.
type callState int

const (
	callNone callState = iota
	callNext
	callFind
	callCheck
	callStatistics
)

// subcondition is one child iterator of an AND plus its bookkeeping.
type subcondition struct {
	it       Iterator
	stats    Stats
	hasStats bool
}

// andPlan is the canonical owner of a structurally distinct AND: the
// subcondition definitions, check order, contest, cache, and statistics.
// It is shared by reference between the original and all clones; after
// Commit only the contest/cache/statistics sections mutate, and only under
// single-owner discipline (this package is single-threaded by design;
// callers adding real threads must add their own synchronization).
type andPlan struct {
	dir       Direction
	low, high ID
	nHint     int64
	pageHint  int64
	ordering  string

	subs []*subcondition

	checkOrder        []int // permutation of non-producer indices
	checkOrderVersion uint64

	producer  int // index of the producing subcondition, -1 until decided
	stats     Stats
	statsDone bool

	statsGatherIdx int
	savedPool      int64 // contest budget accumulated across calls
	contest        *contest

	cache *resultCache

	totalCount int64 // storage primitive count captured at commit

	committed   bool
	forcedEmpty bool
	replacement Iterator // set when Commit evolved the AND to another type
}

// maxSubconditions bounds a single conjunction; building past it fails with
// ErrResourceExhausted and the caller unwinds the partially-built list.
const maxSubconditions = 64

// And is the conjunction of independent subconditions. The first handle
// created is the original; Clone returns lightweight handles sharing the
// original's plan but owning their own traversal position.
type And struct {
	plan     *andPlan
	original bool

	// Traversal position. A handle reads from the shared cache while
	// cacheOffsetValid; once a Check or an uncached Find repositions it,
	// it owns a private process state instead.
	cacheOffset      int
	cacheOffsetValid bool
	ps               *processState

	lastID  ID
	hasLast bool
	eof     bool

	// pendingFind is the target of a Find that suspended, or a thawed
	// resume point.
	pendingFind    ID
	hasPendingFind bool

	// thawedLast is set when a thawed position said "last returned ID was
	// L" without cache context; the next advance resumes after it.
	thawedLast    ID
	hasThawedLast bool

	// dead is a range [deadLow, deadHigh) known to contain no match,
	// recorded by failed checks to shortcut nearby repeats.
	deadLow, deadHigh ID
	hasDead           bool

	slow  *slowCheck
	check *checkRun

	call callState
}

var _ Iterator = &And{}

// NewAnd creates an empty AND over [low, high) in the given direction.
// nHint is the caller's estimate of the result count (0 for unknown);
// pageHint is the expected page size for paginated reads (0 for unknown).
// The ordering label is carried for OrderingDriven directions.
func NewAnd(nHint int64, low, high ID, dir Direction, ordering string) *And {
	return &And{
		plan: &andPlan{
			dir:      dir,
			low:      low,
			high:     high,
			nHint:    nHint,
			ordering: ordering,
			producer: -1,
		},
		original:         true,
		cacheOffsetValid: true,
	}
}

// AddSubcondition adds a child iterator to an uncommitted AND, taking
// ownership of it. Nested ANDs are flattened, duplicate fixed sets are
// merged by intersection, and a provably empty conjunction is remembered so
// Commit can evolve to a Null.
func (a *And) AddSubcondition(child Iterator) error {
	p := a.plan
	if p.committed {
		return quarryerrors.MustBugf("AddSubcondition on a committed AND")
	}
	if p.replacement != nil {
		return ErrRedirect
	}

	switch c := child.(type) {
	case *Null:
		p.forcedEmpty = true
		return nil

	case *And:
		// Flatten: adopt the nested AND's subconditions directly.
		if c.plan.forcedEmpty {
			p.forcedEmpty = true
			return nil
		}
		for _, sub := range c.plan.subs {
			if err := a.AddSubcondition(sub.it); err != nil {
				return err
			}
		}
		return nil

	case *Fixed:
		for i, sub := range p.subs {
			if existing, ok := sub.it.(*Fixed); ok && existing.dir == c.dir {
				merged := intersectFixed(existing, c)
				if len(merged.ids) == 0 {
					p.forcedEmpty = true
				}
				p.subs[i] = &subcondition{it: merged}
				return nil
			}
		}
	}

	if len(p.subs) >= maxSubconditions {
		return ErrResourceExhausted
	}
	p.subs = append(p.subs, &subcondition{it: child})
	return nil
}

// Commit finalizes the AND's structure and runs the optimizer passes. The
// returned iterator may be of a different dynamic type (Null, All, Fixed, or
// a single remaining child); callers must use the returned value. Calling
// Commit again changes nothing and returns the same result alongside
// ErrAlready.
func (a *And) Commit(ctx *Context) (Iterator, error) {
	p := a.plan
	if p.committed {
		if p.replacement != nil {
			return p.replacement, ErrAlready
		}
		return a, ErrAlready
	}

	if p.forcedEmpty {
		p.committed = true
		p.replacement = NewNull(p.dir)
		return p.replacement, nil
	}
	if len(p.subs) == 0 {
		p.committed = true
		p.replacement = NewAll(p.dir, p.low, p.high)
		return p.replacement, nil
	}

	if ctx != nil && ctx.Storage != nil {
		p.totalCount = ctx.Storage.Count()
	}

	result, changed, err := a.applyPasses(ctx)
	if err != nil {
		return nil, err
	}
	p.committed = true
	p.checkOrder = p.orderExcluding(p.producer)
	if changed && result != Iterator(a) {
		p.replacement = result
		logging.Trace().Str("evolved", result.Explain().Name).Msg("AND committed to a different iterator type")
		return result, nil
	}
	return a, nil
}

// orderExcluding returns the natural-order permutation of subcondition
// indices with the given index left out (-1 excludes nothing).
func (p *andPlan) orderExcluding(excluded int) []int {
	order := make([]int, 0, len(p.subs))
	for i := range p.subs {
		if i != excluded {
			order = append(order, i)
		}
	}
	return order
}

func (a *And) Next(ctx *Context, budget *Budget) (ID, error) {
	p := a.plan
	if p.replacement != nil {
		return 0, ErrRedirect
	}
	if !p.committed {
		return 0, quarryerrors.MustBugf("Next on an uncommitted AND")
	}
	a.call = callNext

	if err := a.ensureStatistics(ctx, budget); err != nil {
		return 0, err
	}
	if a.eof {
		return 0, ErrNotFound
	}
	if a.hasThawedLast {
		// A thawed coarse position: resume strictly after the recorded ID.
		target := a.thawedLast
		a.hasThawedLast = false
		if p.dir == Backward {
			if target == IDMin {
				a.eof = true
				return 0, ErrNotFound
			}
			target--
		} else {
			target++
		}
		id, err := a.findImpl(ctx, target, budget)
		if err == nil {
			a.call = callNone
		}
		return id, err
	}

	if a.cacheOffsetValid {
		id, err := a.nextFromCache(ctx, budget)
		if err == nil {
			a.call = callNone
		}
		return id, err
	}

	if a.ps == nil {
		a.ps = p.cache.ps.clone()
	}
	id, err := a.runNext(ctx, a.ps, budget)
	switch err {
	case nil:
		a.lastID = id
		a.hasLast = true
		a.call = callNone
		return id, nil
	case ErrNotFound:
		a.eof = true
		return 0, ErrNotFound
	default:
		return 0, err
	}
}

// nextFromCache serves the handle's next ID from the shared cache,
// extending the cache through the run engine when the handle has caught up
// with the cached frontier.
func (a *And) nextFromCache(ctx *Context, budget *Budget) (ID, error) {
	p := a.plan
	c := p.cache
	for a.cacheOffset >= len(c.entries) {
		if c.eof {
			a.eof = true
			return 0, ErrNotFound
		}
		if err := a.extendCache(ctx, budget); err != nil {
			if err == ErrNotFound {
				a.eof = true
			}
			return 0, err
		}
	}
	if err := budget.Check("and.next"); err != nil {
		return 0, suspended("and.next", err)
	}
	budget.Charge(1)
	entry := c.entries[a.cacheOffset]
	a.cacheOffset++
	a.lastID = entry.id
	a.hasLast = true
	return entry.id, nil
}

func (a *And) Find(ctx *Context, id ID, budget *Budget) (ID, error) {
	p := a.plan
	if p.replacement != nil {
		return 0, ErrRedirect
	}
	if !p.committed {
		return 0, quarryerrors.MustBugf("Find on an uncommitted AND")
	}
	a.call = callFind
	a.pendingFind = id
	a.hasPendingFind = true

	if err := a.ensureStatistics(ctx, budget); err != nil {
		return 0, err
	}
	a.hasThawedLast = false
	found, err := a.findImpl(ctx, id, budget)
	if err == nil || err == ErrNotFound {
		a.hasPendingFind = false
		a.call = callNone
	}
	return found, err
}

func (a *And) findImpl(ctx *Context, id ID, budget *Budget) (ID, error) {
	p := a.plan
	c := p.cache

	// Serve from the cached prefix when the target falls inside it.
	if idx, within := c.search(p.dir, id); within {
		if err := budget.Check("and.find"); err != nil {
			return 0, suspended("and.find", err)
		}
		budget.Charge(1)
		a.cacheOffset = idx + 1
		a.cacheOffsetValid = true
		a.ps = nil
		a.eof = false
		a.lastID = c.entries[idx].id
		a.hasLast = true
		return a.lastID, nil
	}
	if c.eof {
		// The cache is the complete output; an uncached target has no
		// on-or-after match.
		a.eof = true
		return 0, ErrNotFound
	}

	// The target lies beyond the cached frontier: traverse privately.
	a.cacheOffsetValid = false
	if a.ps == nil || (a.ps.hasLast && directionCmp(p.dir, id, a.ps.lastID) <= 0) {
		a.ps = c.ps.clone()
	}
	if !a.ps.hasLast || directionCmp(p.dir, a.ps.lastID, id) < 0 {
		a.ps.resume = id
		a.ps.hasResume = true
		a.ps.state = runInit
	}
	for {
		found, err := a.runNext(ctx, a.ps, budget)
		if err == ErrNotFound {
			a.eof = true
			return 0, ErrNotFound
		}
		if err != nil {
			return 0, err
		}
		if directionCmp(p.dir, found, id) >= 0 {
			a.lastID = found
			a.hasLast = true
			a.eof = false
			return found, nil
		}
	}
}

func (a *And) Check(ctx *Context, id ID, budget *Budget) (bool, error) {
	p := a.plan
	if p.replacement != nil {
		return false, ErrRedirect
	}
	if !p.committed {
		return false, quarryerrors.MustBugf("Check on an uncommitted AND")
	}
	a.call = callCheck

	if id < p.low || id >= p.high {
		a.call = callNone
		return false, nil
	}
	if a.hasDead && id >= a.deadLow && id < a.deadHigh {
		a.call = callNone
		return false, nil
	}

	// Answer from the cached prefix when it covers the target.
	if p.statsDone {
		if ok, answered := p.cache.contains(p.dir, id); answered {
			a.call = callNone
			return ok, nil
		}
	}

	// A real check repositions the handle's child clones outside the cached
	// sequence.
	a.cacheOffsetValid = false

	var ok bool
	var err error
	if p.statsDone {
		ok, err = a.checkWithOrder(ctx, id, budget)
	} else {
		ok, err = a.slowCheckID(ctx, id, budget)
	}
	if err == nil {
		// The check repositioned this handle's child clones outside the
		// cached sequence; resynchronize before the next advance, either
		// by resuming after the last yielded ID or from the cache itself.
		a.ps = nil
		if a.hasLast {
			a.thawedLast = a.lastID
			a.hasThawedLast = true
		} else {
			a.cacheOffset = 0
			a.cacheOffsetValid = true
		}
		a.call = callNone
	}
	return ok, err
}

// Statistics runs (or resumes) the producer contest and returns the AND's
// derived cost model.
func (a *And) Statistics(ctx *Context, budget *Budget) (Stats, error) {
	p := a.plan
	if p.replacement != nil {
		return Stats{}, ErrRedirect
	}
	if !p.committed {
		return Stats{}, quarryerrors.MustBugf("Statistics on an uncommitted AND")
	}
	a.call = callStatistics
	if err := a.ensureStatistics(ctx, budget); err != nil {
		return Stats{}, err
	}
	a.call = callNone
	return p.stats, nil
}

// Clone returns a new handle sharing this AND's plan, duplicating the
// handle's traversal position.
func (a *And) Clone() Iterator {
	if a.plan.replacement != nil {
		return a.plan.replacement.Clone()
	}
	cloned := &And{
		plan:             a.plan,
		cacheOffset:      a.cacheOffset,
		cacheOffsetValid: a.cacheOffsetValid,
		lastID:           a.lastID,
		hasLast:          a.hasLast,
		eof:              a.eof,
		deadLow:          a.deadLow,
		deadHigh:         a.deadHigh,
		hasDead:          a.hasDead,
	}
	if a.ps != nil {
		cloned.ps = a.ps.clone()
	}
	return cloned
}

func (a *And) Reset() {
	a.cacheOffset = 0
	a.cacheOffsetValid = true
	a.ps = nil
	a.slow = nil
	a.check = nil
	a.lastID = 0
	a.hasLast = false
	a.eof = false
	a.hasPendingFind = false
	a.hasThawedLast = false
	a.hasDead = false
	a.call = callNone
}

func (a *And) Explain() Explain {
	p := a.plan
	subs := make([]Explain, len(p.subs))
	for i, sub := range p.subs {
		subs[i] = sub.it.Explain()
	}
	info := fmt.Sprintf("And(%d subconditions)", len(p.subs))
	if p.statsDone {
		info = fmt.Sprintf("And(%d subconditions, producer=%d, n=%d)", len(p.subs), p.producer, p.stats.N)
	}
	return Explain{Name: "And", Info: info, SubExplain: subs}
}

// PrimitiveSummary merges the guarantees of all subconditions: every result
// of the AND shares every field any child guarantees.
func (a *And) PrimitiveSummary() (Summary, bool) {
	merged := Summary{}
	any := false
	for _, sub := range a.plan.subs {
		psum, ok := sub.it.PrimitiveSummary()
		if !ok {
			continue
		}
		any = true
		if psum.HasTypeGUID {
			merged.HasTypeGUID = true
			merged.TypeGUID = psum.TypeGUID
		}
		if psum.HasLeft {
			merged.HasLeft = true
			merged.Left = psum.Left
		}
		if psum.HasRight {
			merged.HasRight = true
			merged.Right = psum.Right
		}
		if psum.HasScope {
			merged.HasScope = true
			merged.Scope = psum.Scope
		}
	}
	// The conjunction is a subset of each child, so the merged summary is
	// never Complete unless a single complete child fully describes it.
	return merged, any
}

func (a *And) RangeEstimate() RangeEstimate {
	p := a.plan
	est := RangeEstimate{Low: p.low, High: p.high, N: maxInt64}
	for _, sub := range p.subs {
		sube := sub.it.RangeEstimate()
		if sube.Low > est.Low {
			est.Low = sube.Low
		}
		if sube.High < est.High {
			est.High = sube.High
		}
		if sube.N < est.N {
			est.N = sube.N
		}
	}
	if p.statsDone && p.stats.N < est.N {
		est.N = p.stats.N
	}
	return est
}

func (a *And) Direction() Direction { return a.plan.dir }

func (a *And) Subiterators() []Iterator {
	subs := make([]Iterator, len(a.plan.subs))
	for i, sub := range a.plan.subs {
		subs[i] = sub.it
	}
	return subs
}

func (a *And) Freeze(w io.Writer, flags FreezeFlag) error {
	return a.freeze(w, flags)
}

func (a *And) String() string {
	return fmt.Sprintf("and[%d subs]", len(a.plan.subs))
}

// AndIsInstance reports whether the iterator is a live AND, returning its
// estimated result count and producer index when statistics are done.
// The producer is -1 before the contest has decided.
func AndIsInstance(it Iterator) (n int64, producer int, ok bool) {
	a, isAnd := it.(*And)
	if !isAnd || a.plan.replacement != nil {
		return 0, 0, false
	}
	n = a.plan.nHint
	if a.plan.statsDone {
		n = a.plan.stats.N
	}
	return n, a.plan.producer, true
}

// GetSubconstraint returns the i-th subcondition of an AND.
func GetSubconstraint(it Iterator, i int) (Iterator, error) {
	a, isAnd := it.(*And)
	if !isAnd {
		return nil, quarryerrors.MustBugf("GetSubconstraint on a non-AND iterator")
	}
	if i < 0 || i >= len(a.plan.subs) {
		return nil, ErrNotFound
	}
	return a.plan.subs[i].it, nil
}

// CheapestSubiterator returns the subcondition expected to be cheapest to
// enumerate whose estimated size is at least minSize, or nil when none
// qualifies. The request layer uses this to drive side-computations off the
// most tractable branch of a conjunction.
func CheapestSubiterator(it Iterator, minSize int64) Iterator {
	a, isAnd := it.(*And)
	if !isAnd {
		return nil
	}
	var best Iterator
	var bestCost int64
	for _, sub := range a.plan.subs {
		if !sub.hasStats || sub.stats.N < minSize {
			continue
		}
		cost := sub.stats.NextCost * sub.stats.N
		if best == nil || cost < bestCost {
			best = sub.it
			bestCost = cost
		}
	}
	return best
}
