package iterator

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/quarry-db/quarry/internal/logging"
)

// TypedOptimizerFunc is a pass that transforms an iterator of a specific
// type T into a potentially cheaper equivalent. It returns the resulting
// iterator, whether any rewrite was performed, and an error.
type TypedOptimizerFunc[T Iterator] func(ctx *Context, it T) (Iterator, bool, error)

// OptimizerFunc is a type-erased wrapper around TypedOptimizerFunc[T] so
// passes for different concrete iterator types can share one list.
type OptimizerFunc func(ctx *Context, it Iterator) (Iterator, bool, error)

// WrapOptimizer wraps a typed pass into a type-erased OptimizerFunc and
// tags it for the rewrite metrics.
func WrapOptimizer[T Iterator](name string, fn TypedOptimizerFunc[T]) OptimizerFunc {
	return func(ctx *Context, it Iterator) (Iterator, bool, error) {
		v, ok := it.(T)
		if !ok {
			return it, false, nil
		}
		out, changed, err := fn(ctx, v)
		if changed {
			optimizerRewritesCount.WithLabelValues(name).Inc()
			logging.Trace().Str("pass", name).Msg("AND optimizer rewrite applied")
		}
		return out, changed, err
	}
}

// commitOptimizations run at Commit time and again lazily after evolution;
// each may change the iterator's dynamic type, so the driver re-dispatches
// after every rewrite.
var commitOptimizations = []OptimizerFunc{
	WrapOptimizer("subsumption", removeSubsumedSubconditions),
	WrapOptimizer("vip", combineVIPSubconditions),
	WrapOptimizer("drop_all", dropRedundantAll),
	WrapOptimizer("preeval", preEvaluateSmallSets),
	WrapOptimizer("shrink", shrinkSingleChild),
}

const (
	// preEvalMaxN is the largest driving-child size the pre-evaluation pass
	// will attempt to fully materialize at commit time.
	preEvalMaxN = 16

	// preEvalBudget caps the work spent attempting a pre-evaluation.
	preEvalBudget = 2048

	// preEvalCeiling is the wall-clock ceiling on a pre-evaluation attempt.
	preEvalCeiling = 10 * time.Millisecond
)

// applyPasses runs the commit passes to a fixed point. The result may have
// a different dynamic type than the input AND.
func (a *And) applyPasses(ctx *Context) (Iterator, bool, error) {
	var current Iterator = a
	anyChanged := false
	for {
		changed := false
		for _, fn := range commitOptimizations {
			next, fnChanged, err := fn(ctx, current)
			if err != nil {
				return nil, false, err
			}
			if fnChanged {
				current = next
				changed = true
				anyChanged = true
				// The dynamic type may have changed; restart the pass list
				// against the new iterator.
				break
			}
		}
		if !changed {
			return current, anyChanged, nil
		}
	}
}

// removeSubsumedSubconditions drops any subcondition whose set provably
// contains another subcondition's output: if every result of child i is
// known (via primitive summaries) to satisfy child j, then j tests nothing.
func removeSubsumedSubconditions(ctx *Context, a *And) (Iterator, bool, error) {
	p := a.plan
	removed := make([]bool, len(p.subs))
	changed := false

	for i, subI := range p.subs {
		if removed[i] {
			continue
		}
		psumI, ok := subI.it.PrimitiveSummary()
		if !ok {
			continue
		}
		for j, subJ := range p.subs {
			if i == j || removed[j] || removed[i] {
				continue
			}
			psumJ, ok := subJ.it.PrimitiveSummary()
			if !ok {
				continue
			}
			if psumI.SubsetOf(psumJ) {
				removed[j] = true
				changed = true
			}
		}
	}

	if !changed {
		return a, false, nil
	}
	kept := p.subs[:0]
	for i, sub := range p.subs {
		if !removed[i] {
			kept = append(kept, sub)
		}
	}
	p.subs = kept
	return a, true, nil
}

// combineVIPSubconditions merges a typeguid constraint with a left/right
// endpoint constraint into a single indexed VIP iterator, dropping the
// now-redundant plain constraints.
func combineVIPSubconditions(ctx *Context, a *And) (Iterator, bool, error) {
	if ctx == nil || ctx.Storage == nil {
		return a, false, nil
	}
	p := a.plan

	typeIdx := -1
	endpointIdx := -1
	for i, sub := range p.subs {
		scan, ok := sub.it.(*LinkScan)
		if !ok {
			continue
		}
		switch scan.Field() {
		case LinkageTypeGUID:
			if typeIdx < 0 {
				typeIdx = i
			}
		case LinkageLeft, LinkageRight:
			if endpointIdx < 0 {
				endpointIdx = i
			}
		}
	}
	if typeIdx < 0 || endpointIdx < 0 {
		return a, false, nil
	}

	typeScan := p.subs[typeIdx].it.(*LinkScan)
	endScan := p.subs[endpointIdx].it.(*LinkScan)
	vip, ok, err := NewVIP(ctx, p.dir, endScan.Field(), endScan.Endpoint(), typeScan.Endpoint())
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return a, false, nil
	}

	kept := make([]*subcondition, 0, len(p.subs)-1)
	for i, sub := range p.subs {
		switch i {
		case endpointIdx:
			kept = append(kept, &subcondition{it: vip})
		case typeIdx:
			// covered by the VIP
		default:
			kept = append(kept, sub)
		}
	}
	p.subs = kept
	return a, true, nil
}

// dropRedundantAll removes an All subcondition whose range covers the whole
// AND, as long as a usable alternative remains: it can never reject a
// candidate the range bounds would not already reject.
func dropRedundantAll(ctx *Context, a *And) (Iterator, bool, error) {
	p := a.plan
	if len(p.subs) < 2 {
		return a, false, nil
	}
	for i, sub := range p.subs {
		all, ok := sub.it.(*All)
		if !ok {
			continue
		}
		if all.low <= p.low && all.high >= p.high {
			p.subs = append(p.subs[:i], p.subs[i+1:]...)
					return a, true, nil
		}
	}
	return a, false, nil
}

// preEvaluateSmallSets replaces the whole AND with a Fixed set when its
// projected result is small and cheap enough to enumerate right now. The
// attempt runs under a strict budget and wall-clock ceiling; blowing either
// abandons the rewrite without error.
func preEvaluateSmallSets(ctx *Context, a *And) (Iterator, bool, error) {
	p := a.plan
	if len(p.subs) < 2 {
		return a, false, nil
	}

	driver := -1
	var driverN int64
	var checkTotal int64
	for i, sub := range p.subs {
		if !sub.hasStats {
			st, err := sub.it.Statistics(ctx, NewBudget(preEvalBudget))
			if err != nil {
				// A child whose statistics are not immediate is not a
				// pre-evaluation candidate.
				return a, false, nil
			}
			sub.stats = st
			sub.hasStats = true
		}
		checkTotal += sub.stats.CheckCost
		if driver < 0 || sub.stats.N < driverN {
			driver = i
			driverN = sub.stats.N
		}
	}
	if driverN > preEvalMaxN ||
		saturatingMul(driverN, checkTotal+p.subs[driver].stats.NextCost) > preEvalBudget {
		return a, false, nil
	}

	clk := clock.New()
	budget := NewBudget(preEvalBudget).WithDeadline(clk, clk.Now().Add(preEvalCeiling))
	ps := p.newProcessState(driver)
	var ids []ID
	for {
		id, err := a.runNext(ctx, ps, budget)
		if err == ErrNotFound {
			break
		}
		if err != nil {
			// Suspended or over the ceiling: abandon the rewrite, the AND
			// stays as it is.
			return a, false, nil
		}
		ids = append(ids, id)
	}

	result := NewFixed(p.dir, ids...)
	if psum, ok := a.PrimitiveSummary(); ok {
		result.SetSummary(psum)
	}
	return result, true, nil
}

// shrinkSingleChild collapses an AND with a single remaining subcondition
// into that child directly, carrying ordering metadata.
func shrinkSingleChild(ctx *Context, a *And) (Iterator, bool, error) {
	p := a.plan
	if len(p.subs) != 1 {
		return a, false, nil
	}
	child := p.subs[0].it
	if p.dir != Unordered && child.Direction() == Unordered {
		return NewSort(p.dir, child), true, nil
	}
	return child, true, nil
}
