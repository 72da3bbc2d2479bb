package iterator

import (
	"github.com/quarry-db/quarry/internal/logging"
	"github.com/quarry-db/quarry/pkg/quarryerrors"
)

// The contest decides which subcondition becomes the AND's producer: each
// candidate is round-robined through the run engine as a trial producer,
// producing and filtering samples, until one is confidently cheapest or
// reaches the sample goal. The winner's trial state seeds the cache, so no
// contest work is wasted.

const (
	// contestSampleGoal is the number of confirmed results a contestant
	// tries to produce before its cost projection is trusted.
	contestSampleGoal = 5

	// contestMinBudget is the minimum pooled budget per competing
	// subcondition before any sampling work starts; smaller budgets are
	// saved up across calls.
	contestMinBudget = 16

	// contestLeadFactor is how many times cheaper the projected leader must
	// be before trailing rivals have their allowance squeezed.
	contestLeadFactor = 3

	// contestMaxEasyN bounds how large a sorted, fully-estimated
	// subcondition can be and still count as "easy".
	contestMaxEasyN = 1 << 20
)

type contestPhase int

const (
	contestSaving contestPhase = iota
	contestSampling
)

type contestant struct {
	subIdx int
	ps     *processState

	cost      int64
	samples   []ID
	allowance int64

	eof        bool
	eliminated bool
}

type contest struct {
	phase       contestPhase
	contestants []*contestant
}

func (c *contestant) done() bool {
	return c.eof || len(c.samples) >= contestSampleGoal
}

// projection estimates the contestant's total cost to exhaustion:
// cost so far, scaled by the fraction of its subcondition left to walk.
func (c *contestant) projection(subN int64) int64 {
	produced := int64(len(c.samples))
	if c.eof {
		return c.cost
	}
	if produced == 0 {
		if c.cost == 0 {
			return maxInt64
		}
		return saturatingMul(c.cost, subN)
	}
	return saturatingMul(c.cost, subN) / produced
}

func saturatingMul(a, b int64) int64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	if a > maxInt64/b {
		return maxInt64
	}
	return a * b
}

// ensureStatistics drives the contest to completion, suspending whenever
// the (pooled) budget runs out. It only ever mutates plan state, and is
// reached through any handle; the single-threaded ownership discipline
// makes that safe.
func (a *And) ensureStatistics(ctx *Context, budget *Budget) error {
	p := a.plan
	if p.statsDone {
		return nil
	}

	// Gather child statistics first; resumable by index.
	for p.statsGatherIdx < len(p.subs) {
		sub := p.subs[p.statsGatherIdx]
		if !sub.hasStats {
			st, err := sub.it.Statistics(ctx, budget)
			if err != nil {
				return suspended("and.statistics", err)
			}
			sub.stats = st
			sub.hasStats = true
		}
		p.statsGatherIdx++
	}

	if p.contest == nil {
		if p.totalCount == 0 && ctx != nil && ctx.Storage != nil {
			p.totalCount = ctx.Storage.Count()
		}
		p.contest = p.newContest()
	}
	c := p.contest

	if c.phase == contestSaving {
		p.savedPool += budget.Drain()
		if p.savedPool < contestMinBudget*int64(len(c.contestants)) {
			return suspended("and.statistics", ErrSuspended)
		}
		budget.Refund(p.savedPool)
		p.savedPool = 0
		c.phase = contestSampling
	}

	winner, err := a.runContest(ctx, c, budget)
	if err != nil {
		return err
	}
	a.finishContest(winner)
	return nil
}

// newContest selects the contestants: "easy" subconditions (sorted, fully
// estimated, tractable) compete only through their cheapest member, while
// every "hard" subcondition always competes.
func (p *andPlan) newContest() *contest {
	easiest := -1
	var easiestCost int64
	var hard []int

	for i, sub := range p.subs {
		if sub.stats.Sorted && sub.stats.N <= contestMaxEasyN {
			cost := saturatingMul(sub.stats.NextCost, sub.stats.N)
			if easiest < 0 || cost < easiestCost {
				easiest = i
				easiestCost = cost
			}
		} else {
			hard = append(hard, i)
		}
	}

	entrants := hard
	if easiest >= 0 {
		entrants = append([]int{easiest}, hard...)
	}

	c := &contest{phase: contestSaving}
	for _, idx := range entrants {
		c.contestants = append(c.contestants, &contestant{
			subIdx:    idx,
			ps:        p.newProcessState(idx),
			allowance: maxInt64,
		})
	}
	return c
}

// runContest round-robins the viable contestants through the run engine
// until a single winner remains.
func (a *And) runContest(ctx *Context, c *contest, budget *Budget) (*contestant, error) {
	p := a.plan

	for {
		viable := c.viable()
		if len(viable) == 0 {
			return nil, quarryerrors.MustBugf("producer contest eliminated every contestant")
		}
		if len(viable) == 1 && viable[0].done() {
			return viable[0], nil
		}
		allDone := true
		for _, cand := range viable {
			if !cand.done() {
				allDone = false
				break
			}
		}
		if allDone {
			return c.cheapest(p, viable), nil
		}

		if err := budget.Check("and.statistics"); err != nil {
			return nil, suspended("and.statistics", err)
		}

		// One sampling round: an even slice of the budget per contestant,
		// clipped to each rival's remaining allowance.
		active := 0
		for _, cand := range viable {
			if !cand.done() {
				active++
			}
		}
		slice := budget.Remaining() / int64(active)
		if slice < 1 {
			slice = 1
		}

		for _, cand := range viable {
			if cand.done() {
				continue
			}
			grant := slice
			if grant > cand.allowance {
				grant = cand.allowance
			}
			sub := budget.child(grant)
			for len(cand.samples) < contestSampleGoal {
				id, err := a.runNext(ctx, cand.ps, sub)
				if err == ErrNotFound {
					cand.eof = true
					break
				}
				if err == ErrSuspended {
					break
				}
				if err != nil {
					return nil, err
				}
				cand.samples = append(cand.samples, id)
			}
			spent := grant - sub.Remaining()
			cand.cost += spent
			if cand.allowance != maxInt64 {
				cand.allowance -= spent
			}
			budget.Charge(spent)
		}

		c.squeeze(p)
	}
}

func (c *contest) viable() []*contestant {
	var out []*contestant
	for _, cand := range c.contestants {
		if !cand.eliminated {
			out = append(out, cand)
		}
	}
	return out
}

func (c *contest) cheapest(p *andPlan, viable []*contestant) *contestant {
	best := viable[0]
	bestProj := best.projection(p.subs[best.subIdx].stats.N)
	for _, cand := range viable[1:] {
		proj := cand.projection(p.subs[cand.subIdx].stats.N)
		if proj < bestProj {
			best = cand
			bestProj = proj
		}
	}
	return best
}

// squeeze lowers the allowance of rivals trailing far behind the projected
// leader, eliminating any whose allowance has run dry.
func (c *contest) squeeze(p *andPlan) {
	viable := c.viable()
	if len(viable) < 2 {
		return
	}
	leader := c.cheapest(p, viable)
	leaderProj := leader.projection(p.subs[leader.subIdx].stats.N)
	if leaderProj == maxInt64 {
		return
	}
	ceiling := saturatingMul(leaderProj, contestLeadFactor)
	for _, cand := range viable {
		if cand == leader {
			continue
		}
		remaining := ceiling - cand.cost
		if remaining <= 0 {
			cand.eliminated = true
			cand.ps = nil
			continue
		}
		// Recomputed from scratch each round: the ceiling can rise as the
		// leader's own projection worsens, and a rival that overdrew its last
		// grant must get headroom back or it would starve unfinished.
		cand.allowance = remaining
	}
}

// finishContest commits the winner as producer, derives the AND's own cost
// model from the winner's sample, seeds the cache with the sampled IDs, and
// frees the losers' contest state.
func (a *And) finishContest(winner *contestant) {
	p := a.plan

	p.producer = winner.subIdx
	produced := int64(len(winner.samples))
	pulled := winner.ps.producerCalls

	subN := p.subs[winner.subIdx].stats.N
	selectivity := 1.0
	if pulled > 0 && produced < pulled {
		selectivity = float64(produced) / float64(pulled)
	}
	n := int64(float64(subN) * selectivity)
	if winner.eof {
		n = produced
	}
	if n < produced {
		n = produced
	}

	nextCost := int64(1)
	if produced > 0 {
		nextCost = winner.cost / produced
		if nextCost < 1 {
			nextCost = 1
		}
	} else if winner.cost > 0 {
		nextCost = winner.cost
	}

	var checkCost int64
	for _, sub := range p.subs {
		checkCost += sub.stats.CheckCost
	}
	findCost := checkCost
	hasFind := p.subs[winner.subIdx].stats.HasFindCost
	if hasFind {
		findCost += p.subs[winner.subIdx].stats.FindCost
	}

	p.stats = Stats{
		NextCost:    nextCost,
		CheckCost:   checkCost,
		FindCost:    findCost,
		HasFindCost: hasFind,
		N:           n,
		Sorted:      p.dir != Unordered || p.subs[winner.subIdx].stats.Sorted,
	}

	cache := &resultCache{ps: winner.ps, eof: winner.eof}
	for _, id := range winner.samples {
		cache.entries = append(cache.entries, cacheEntry{id: id, cost: nextCost})
	}
	p.cache = cache

	p.checkOrder = p.orderExcluding(p.producer)
	p.checkOrderVersion++
	p.resortCheckOrder()

	p.contest = nil
	p.statsDone = true
	contestsDecidedCount.Inc()

	logging.Trace().
		Int("producer", p.producer).
		Int64("n", n).
		Int64("nextCost", nextCost).
		Int("seeded", len(winner.samples)).
		Msg("AND producer contest decided")
}
