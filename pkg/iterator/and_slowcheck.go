package iterator

// The slow-check engine answers membership before statistics exist: no
// producer has been chosen, so every subcondition is consulted, with the
// remaining budget spread evenly across the children still in play each
// round. Progress survives suspension; a child that has answered "yes" is
// settled and costs nothing further.

type slowSlot struct {
	it          Iterator
	prefersFind bool
	confirmed   bool
}

type slowCheck struct {
	id     ID
	slots  []*slowSlot
	inPlay int
}

// slowSlotPrefersFind decides up front whether a slot tests membership via
// Find or Check: Find doubles as a membership test on sorted children and
// is preferred when its cost is within 2 units of a check plus a step.
func slowSlotPrefersFind(sub *subcondition) bool {
	if !sub.hasStats || !sub.stats.HasFindCost || !sub.stats.Sorted {
		return false
	}
	return sub.stats.FindCost <= sub.stats.CheckCost+sub.stats.NextCost+2
}

func (a *And) newSlowCheck(id ID) *slowCheck {
	p := a.plan
	sc := &slowCheck{id: id, inPlay: len(p.subs)}
	order := p.checkOrder
	if order == nil || len(order) != len(p.subs) {
		order = p.orderExcluding(-1)
	}
	for _, idx := range order {
		sub := p.subs[idx]
		sc.slots = append(sc.slots, &slowSlot{
			it:          sub.it.Clone(),
			prefersFind: slowSlotPrefersFind(sub),
		})
	}
	return sc
}

// slowCheckID tests id against every subcondition, dividing the budget
// evenly across the slots still in play each round. The first definitive
// "no" fails the whole test and caches a dead zone to shortcut nearby
// repeats.
func (a *And) slowCheckID(ctx *Context, id ID, budget *Budget) (bool, error) {
	p := a.plan
	if a.slow == nil || a.slow.id != id {
		slowChecksCount.Inc()
		a.slow = a.newSlowCheck(id)
	}
	sc := a.slow

	for sc.inPlay > 0 {
		if err := budget.Check("and.slowcheck"); err != nil {
			return false, suspended("and.slowcheck", err)
		}

		// ⌈budget / slots in play⌉ for each undecided child this round.
		slice := (budget.Remaining() + int64(sc.inPlay) - 1) / int64(sc.inPlay)
		progressed := false

		for _, slot := range sc.slots {
			if slot.confirmed {
				continue
			}
			sub := budget.child(slice)
			var yes bool
			var err error
			var found ID
			if slot.prefersFind {
				found, err = slot.it.Find(ctx, id, sub)
				yes = err == nil && found == id
			} else {
				yes, err = slot.it.Check(ctx, id, sub)
			}
			budget.Charge(slice - sub.Remaining())

			switch {
			case err == ErrSuspended:
				// Keep the slot in play; its iterator retains progress.
				continue
			case err == ErrNotFound:
				// Find ran off the end: nothing at-or-after id in direction
				// order can match.
				if p.dir == Backward {
					a.recordDeadZone(p.low, id+1)
				} else {
					a.recordDeadZone(id, p.high)
				}
				a.slow = nil
				return false, nil
			case err != nil:
				return false, err
			case yes:
				slot.confirmed = true
				sc.inPlay--
				progressed = true
			default:
				// Definitive no.
				switch {
				case slot.prefersFind && found > id:
					a.recordDeadZone(id, found)
				case slot.prefersFind && found < id:
					a.recordDeadZone(found+1, id+1)
				default:
					a.recordDeadZone(id, id+1)
				}
				a.slow = nil
				return false, nil
			}
		}

		if !progressed && budget.Exhausted() {
			return false, suspended("and.slowcheck", ErrSuspended)
		}
	}

	a.slow = nil
	return true, nil
}

// recordDeadZone remembers the ascending range [low, high) as containing no
// match, so Check can shortcut repeats near a miss.
func (a *And) recordDeadZone(low, high ID) {
	if low >= high {
		return
	}
	a.deadLow = low
	a.deadHigh = high
	a.hasDead = true
}
