package iterator

// The check order is a permutation of the non-producer subcondition indices,
// cheapest test first. It is re-sorted by insertion-style bubbling whenever
// statistics change, and versioned so in-flight process states can detect
// staleness and refresh between candidates.

// checkSelectivity estimates the probability that a check against the given
// subcondition passes, as the fraction of the primitive space it covers.
func (p *andPlan) checkSelectivity(sub *subcondition) (float64, bool) {
	if !sub.hasStats || p.totalCount <= 0 {
		return 0, false
	}
	sel := float64(sub.stats.N) / float64(p.totalCount)
	if sel > 1 {
		sel = 1
	}
	if sel <= 0 {
		sel = 1 / float64(p.totalCount)
	}
	return sel, true
}

// cheaperChecker reports whether subcondition a should be tested before b:
// the expected cost of testing a-then-b, cost(a) + P(a)*cost(b), against the
// mirrored order. Falls back to the smaller known check cost, then to
// sorted-beats-unsorted.
func (p *andPlan) cheaperChecker(a, b *subcondition) bool {
	pa, aok := p.checkSelectivity(a)
	pb, bok := p.checkSelectivity(b)
	if aok && bok {
		ca := float64(a.stats.CheckCost)
		cb := float64(b.stats.CheckCost)
		return ca+pa*cb < cb+pb*ca
	}
	if a.hasStats && b.hasStats {
		return a.stats.CheckCost < b.stats.CheckCost
	}
	if a.hasStats != b.hasStats {
		return a.hasStats
	}
	aSorted := a.it.Direction() != Unordered
	bSorted := b.it.Direction() != Unordered
	return aSorted && !bSorted
}

// resortCheckOrder bubbles the check order back into sorted position after
// a statistics change, bumping the version only when something moved.
func (p *andPlan) resortCheckOrder() {
	order := p.checkOrder
	changed := false
	for i := 1; i < len(order); i++ {
		for j := i; j > 0; j-- {
			if !p.cheaperChecker(p.subs[order[j]], p.subs[order[j-1]]) {
				break
			}
			order[j], order[j-1] = order[j-1], order[j]
			changed = true
		}
	}
	if changed {
		p.checkOrderVersion++
	}
}
