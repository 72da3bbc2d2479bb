package iterator

// checkRun is the resumable state of a post-statistics membership check:
// the target, the order snapshot (producer first, then the check order),
// and how far through it the check has gotten.
type checkRun struct {
	id    ID
	order []int
	pos   int
}

// checkWithOrder tests id against every subcondition, producer included,
// in check order. Uses the handle's private process-state clones; any
// checker Find that overshoots both answers "no" and leaves a dead zone.
func (a *And) checkWithOrder(ctx *Context, id ID, budget *Budget) (bool, error) {
	p := a.plan

	if a.ps == nil {
		a.ps = p.newProcessState(p.producer)
	}
	if a.check == nil || a.check.id != id {
		order := make([]int, 0, len(p.subs))
		order = append(order, p.producer)
		order = append(order, p.checkOrder...)
		a.check = &checkRun{id: id, order: order}
	}
	cr := a.check

	for cr.pos < len(cr.order) {
		if err := budget.Check("and.check"); err != nil {
			return false, suspended("and.check", err)
		}
		subIdx := cr.order[cr.pos]
		sub := p.subs[subIdx]
		it := a.ps.subIts[subIdx]

		if checkerPrefersFind(sub) {
			found, err := it.Find(ctx, id, budget)
			switch {
			case err == ErrSuspended:
				return false, suspended("and.check", err)
			case err == ErrNotFound:
				if p.dir == Backward {
					a.recordDeadZone(p.low, id+1)
				} else {
					a.recordDeadZone(id, p.high)
				}
				a.check = nil
				return false, nil
			case err != nil:
				return false, err
			case found != id:
				if found > id {
					a.recordDeadZone(id, found)
				} else {
					a.recordDeadZone(found+1, id+1)
				}
				a.check = nil
				return false, nil
			}
		} else {
			ok, err := it.Check(ctx, id, budget)
			if err != nil {
				return false, err
			}
			if !ok {
				a.recordDeadZone(id, id+1)
				a.check = nil
				return false, nil
			}
		}
		cr.pos++
	}

	a.check = nil
	return true, nil
}
