package iterator

import "github.com/quarry-db/quarry/pkg/quarryerrors"

// The run engine is the AND's producer/checker loop: pull a candidate from
// the producer, test it against every other subcondition in check order,
// yield it if all agree. Every call into a child iterator may suspend, so
// the loop is a numbered state machine with one resumption point per
// blocking call site rather than a single unconditional loop.

type runState int

const (
	// runInit refreshes the check-order snapshot and picks the first
	// producer state.
	runInit runState = iota

	// runProducerNext is about to pull the next candidate via producer.Next.
	runProducerNext

	// runProducerFind is about to seek the producer to the pending resume
	// target via producer.Find.
	runProducerFind

	// runCheckLoop is about to consult the checker at order[checkPos] via
	// Check.
	runCheckLoop

	// runCheckFind is about to consult the checker at order[checkPos] via
	// Find.
	runCheckFind
)

// processState is the movable state needed to resume the run engine: the
// producer choice, one cloned child iterator per subcondition, the candidate
// under test, and the explicit resumption tag.
type processState struct {
	producer int
	subIts   []Iterator // one clone per subcondition, same indexing as plan.subs

	state    runState
	checkPos int

	candidate    ID
	hasCandidate bool

	lastID  ID
	hasLast bool

	resume    ID
	hasResume bool

	order        []int // snapshot of the check order, excluding the producer
	orderVersion uint64

	producerCalls int64
	eof           bool
}

// newProcessState clones every subcondition definition and primes the
// resume target to the start of the AND's range.
func (p *andPlan) newProcessState(producer int) *processState {
	ps := &processState{
		producer: producer,
		subIts:   make([]Iterator, len(p.subs)),
		state:    runInit,
	}
	for i, sub := range p.subs {
		ps.subIts[i] = sub.it.Clone()
		ps.subIts[i].Reset()
	}
	// A direction-ordered AND must never be driven by an unordered producer:
	// the engine's resume targets and the cache's binary searches all assume
	// candidates arrive in direction order. Impose the order up front.
	if p.dir != Unordered && ps.subIts[producer].Direction() == Unordered {
		ps.subIts[producer] = NewSort(p.dir, ps.subIts[producer])
	}
	if p.dir == Backward {
		if p.high != IDMax {
			ps.resume = p.high - 1
			ps.hasResume = true
		}
	} else if p.low != IDMin {
		ps.resume = p.low
		ps.hasResume = true
	}
	return ps
}

func (ps *processState) clone() *processState {
	cloned := *ps
	cloned.subIts = make([]Iterator, len(ps.subIts))
	for i, it := range ps.subIts {
		cloned.subIts[i] = it.Clone()
	}
	cloned.order = append([]int(nil), ps.order...)
	return &cloned
}

// refreshOrder re-snapshots the plan's check order. Only called between
// candidates; reordering mid-loop would skip or repeat subconditions.
func (ps *processState) refreshOrder(p *andPlan) {
	if ps.order != nil && ps.orderVersion == p.checkOrderVersion {
		return
	}
	var src []int
	if p.checkOrder != nil && ps.producer == p.producer {
		src = p.checkOrder
	} else {
		src = p.orderExcluding(ps.producer)
	}
	ps.order = append(ps.order[:0], src...)
	ps.orderVersion = p.checkOrderVersion
}

// checkerPrefersFind decides whether testing a candidate via Find beats
// Check for the given subcondition: Find advances by the child's average
// step (range span over result count), so its cost per distance covered can
// undercut a check per candidate.
func checkerPrefersFind(sub *subcondition) bool {
	if !sub.hasStats || !sub.stats.HasFindCost || !sub.stats.Sorted {
		return false
	}
	est := sub.it.RangeEstimate()
	if est.N <= 0 {
		return true
	}
	avgStep := spanCount(est.Low, est.High) / est.N
	if avgStep < 1 {
		avgStep = 1
	}
	return sub.stats.FindCost < sub.stats.CheckCost*avgStep
}

// producerPrefersFind decides whether the producer should seek to the
// resume target rather than step toward it with repeated Next calls.
func producerPrefersFind(sub *subcondition, ps *processState) bool {
	if !sub.hasStats || !sub.stats.HasFindCost {
		return true // cannot estimate stepping; a single find is the safe bet
	}
	if !sub.stats.Sorted {
		return false
	}
	if !ps.hasLast {
		return true
	}
	var distance int64
	if ps.resume >= ps.lastID {
		distance = spanCount(ps.lastID, ps.resume)
	} else {
		distance = spanCount(ps.resume, ps.lastID)
	}
	est := sub.it.RangeEstimate()
	span := spanCount(est.Low, est.High)
	if est.N <= 0 || span <= 0 {
		return true
	}
	avgStep := span / est.N
	if avgStep < 1 {
		avgStep = 1
	}
	steps := distance / avgStep
	return sub.stats.FindCost < sub.stats.NextCost*(steps+1)
}

// runNext advances the given process state to the AND's next confirmed ID.
// It is used by cache extension, by off-cache handles, and (with a
// per-contestant producer) by the statistics contest.
func (a *And) runNext(ctx *Context, ps *processState, budget *Budget) (ID, error) {
	p := a.plan
	if ps.eof {
		return 0, ErrNotFound
	}

	for {
		switch ps.state {
		case runInit:
			ps.refreshOrder(p)
			ps.hasCandidate = false
			ps.checkPos = 0
			if ps.hasResume {
				ps.state = runProducerFind
			} else {
				ps.state = runProducerNext
			}

		case runProducerNext:
			if ps.hasResume && producerPrefersFind(p.subs[ps.producer], ps) {
				ps.state = runProducerFind
				continue
			}
			id, err := ps.subIts[ps.producer].Next(ctx, budget)
			if err != nil {
				if err == ErrNotFound {
					ps.eof = true
				}
				return 0, err
			}
			ps.producerCalls++
			if ps.hasResume && directionCmp(p.dir, id, ps.resume) < 0 {
				continue // still stepping toward the resume target
			}
			ps.hasResume = false
			if !a.acceptCandidate(ps, id) {
				return 0, ErrNotFound
			}

		case runProducerFind:
			id, err := ps.subIts[ps.producer].Find(ctx, ps.resume, budget)
			if err != nil {
				if err == ErrNotFound {
					ps.eof = true
				}
				return 0, err
			}
			ps.producerCalls++
			ps.hasResume = false
			if !a.acceptCandidate(ps, id) {
				return 0, ErrNotFound
			}

		case runCheckLoop:
			if ps.checkPos == 0 {
				ps.refreshOrder(p)
			}
			if ps.checkPos >= len(ps.order) {
				// All checkers agreed.
				ps.lastID = ps.candidate
				ps.hasLast = true
				ps.hasCandidate = false
				ps.state = runProducerNext
				return ps.candidate, nil
			}
			subIdx := ps.order[ps.checkPos]
			if checkerPrefersFind(p.subs[subIdx]) {
				ps.state = runCheckFind
				continue
			}
			ok, err := ps.subIts[subIdx].Check(ctx, ps.candidate, budget)
			if err != nil {
				return 0, err
			}
			if !ok {
				ps.hasCandidate = false
				ps.checkPos = 0
				ps.state = runProducerNext
				continue
			}
			ps.checkPos++

		case runCheckFind:
			subIdx := ps.order[ps.checkPos]
			found, err := ps.subIts[subIdx].Find(ctx, ps.candidate, budget)
			if err != nil {
				if err == ErrNotFound {
					// The checker has nothing at or beyond the candidate;
					// no further candidate can pass it either.
					ps.eof = true
				}
				return 0, err
			}
			if found == ps.candidate {
				ps.checkPos++
				ps.state = runCheckLoop
				continue
			}
			// Overshoot: the candidate is rejected, and the checker has
			// told us the nearest ID that could possibly match. Hand it to
			// the producer as the new resume target, short-circuiting the
			// rest of this round.
			ps.resume = found
			ps.hasResume = true
			ps.hasCandidate = false
			ps.checkPos = 0
			ps.state = runProducerNext

		default:
			return 0, errBadRunState(ps.state)
		}
	}
}

// acceptCandidate records a produced ID as the candidate under test,
// returning false when it falls outside the AND's range (which, in
// direction order, means enumeration is over).
func (a *And) acceptCandidate(ps *processState, id ID) bool {
	p := a.plan
	if id < p.low || id >= p.high {
		if p.dir == Backward {
			if id < p.low {
				ps.eof = true
				return false
			}
		} else if id >= p.high {
			ps.eof = true
			return false
		}
		// Out of range on the trailing side: skip by resuming at the range
		// boundary.
		if p.dir == Backward {
			ps.resume = p.high - 1
		} else {
			ps.resume = p.low
		}
		ps.hasResume = true
		ps.state = runProducerNext
		return true
	}
	ps.candidate = id
	ps.hasCandidate = true
	ps.checkPos = 0
	ps.state = runCheckLoop
	return true
}

func errBadRunState(s runState) error {
	return quarryerrors.MustBugf("run engine in unknown state %d", s)
}
