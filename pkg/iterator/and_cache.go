package iterator

import "sort"

// The cache is the append-only record of the AND's confirmed output, in
// producer order, with the marginal cost paid for each entry. It is owned by
// the plan; every handle reads through its own offset, and the run engine
// extends it lazily when a read outruns the cached frontier.

type cacheEntry struct {
	id   ID
	cost int64
}

type resultCache struct {
	entries []cacheEntry
	eof     bool

	// ps is the producer-side process state at the cached frontier; cache
	// extension and off-cache traversal both start from it.
	ps *processState
}

// search locates the first cached entry at-or-after id in direction order.
// The second return is false when the target lies beyond the cached
// frontier and therefore cannot be answered from the cache.
func (c *resultCache) search(dir Direction, id ID) (int, bool) {
	if c == nil || len(c.entries) == 0 {
		return 0, false
	}
	frontier := c.entries[len(c.entries)-1].id
	if directionCmp(dir, id, frontier) > 0 {
		return 0, false
	}
	idx := sort.Search(len(c.entries), func(i int) bool {
		return directionCmp(dir, c.entries[i].id, id) >= 0
	})
	if idx >= len(c.entries) {
		return 0, false
	}
	return idx, true
}

// contains answers membership for targets covered by the cached prefix. The
// second return is false when the cache cannot answer.
func (c *resultCache) contains(dir Direction, id ID) (bool, bool) {
	if c == nil {
		return false, false
	}
	if len(c.entries) == 0 {
		if c.eof {
			return false, true
		}
		return false, false
	}
	frontier := c.entries[len(c.entries)-1].id
	if directionCmp(dir, id, frontier) > 0 {
		if c.eof {
			return false, true
		}
		return false, false
	}
	idx := sort.Search(len(c.entries), func(i int) bool {
		return directionCmp(dir, c.entries[i].id, id) >= 0
	})
	return idx < len(c.entries) && c.entries[idx].id == id, true
}

// extendCache advances the cache's producer state by one confirmed ID,
// recording the marginal budget cost alongside it.
func (a *And) extendCache(ctx *Context, budget *Budget) error {
	c := a.plan.cache
	if c.eof {
		return ErrNotFound
	}
	before := budget.Remaining()
	id, err := a.runNext(ctx, c.ps, budget)
	if err != nil {
		if err == ErrNotFound {
			c.eof = true
		}
		return err
	}
	c.entries = append(c.entries, cacheEntry{id: id, cost: before - budget.Remaining()})
	return nil
}
