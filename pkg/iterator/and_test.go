package iterator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScenarioTwoFixedSets(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	it := commitAnd(t, nil, Forward,
		NewFixed(Forward, 1, 3, 5, 7),
		NewFixed(Forward, 3, 5, 9))

	id, err := it.Next(nil, unlimited())
	require.NoError(err)
	require.Equal(ID(3), id)

	id, err = it.Next(nil, unlimited())
	require.NoError(err)
	require.Equal(ID(5), id)

	_, err = it.Next(nil, unlimited())
	require.ErrorIs(err, ErrNotFound)
}

func TestScenarioTwoFixedSetsCheckAndFind(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	it := commitAnd(t, nil, Forward,
		NewFixed(Forward, 1, 3, 5, 7),
		NewFixed(Forward, 3, 5, 9))

	ok, err := it.Check(nil, 5, unlimited())
	require.NoError(err)
	require.True(ok)

	ok, err = it.Check(nil, 9, unlimited())
	require.NoError(err)
	require.False(ok)

	found, err := it.Find(nil, 4, unlimited())
	require.NoError(err)
	require.Equal(ID(5), found)
}

func conjunctionFixture(t *testing.T) (*Context, Iterator) {
	t.Helper()
	storage := NewMemStorage(1000, 1000).
		SetLinkage(LinkageLeft, 1, multiples(2, 50)...).
		SetLinkage(LinkageRight, 2, multiples(3, 40)...)
	ctx := testCtx(storage)
	it := commitAnd(t, ctx, Forward,
		NewLinkScan(Forward, LinkageLeft, 1),
		NewLinkScan(Forward, LinkageRight, 2))
	return ctx, it
}

func TestConjunctionCorrectness(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ctx, it := conjunctionFixture(t)
	// Intersection of multiples of 2 (≤100) and multiples of 3 (≤120).
	want := multiples(6, 16)
	require.Equal(want, collectAll(t, ctx, it.Clone()))

	for id := ID(0); id <= 130; id++ {
		ok, err := it.Check(ctx, id, unlimited())
		require.NoError(err)
		require.Equal(id%6 == 0 && id >= 6 && id <= 96, ok, "id %d", id)
	}
}

func TestMonotonicEnumeration(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ctx, it := conjunctionFixture(t)
	forward := collectAll(t, ctx, it)
	require.NotEmpty(forward)
	for i := 1; i < len(forward); i++ {
		require.Less(forward[i-1], forward[i])
	}

	storage := NewMemStorage(1000, 1000).
		SetLinkage(LinkageLeft, 1, multiples(2, 50)...).
		SetLinkage(LinkageRight, 2, multiples(3, 40)...)
	bctx := testCtx(storage)
	back := commitAnd(t, bctx, Backward,
		NewLinkScan(Backward, LinkageLeft, 1),
		NewLinkScan(Backward, LinkageRight, 2))
	backward := collectAll(t, bctx, back)
	require.Len(backward, len(forward))
	for i := 1; i < len(backward); i++ {
		require.Greater(backward[i-1], backward[i])
	}
}

func TestEnumerationSurvivesForcedSuspensions(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ctx, reference := conjunctionFixture(t)
	want := collectAll(t, ctx, reference)

	ctx2, it := conjunctionFixture(t)
	policy := &everyNPolicy{n: 3}
	var got []ID
	for {
		id, err := it.Next(ctx2, NewBudget(1<<30).WithPolicy(policy))
		if err == ErrSuspended {
			continue
		}
		if err == ErrNotFound {
			break
		}
		require.NoError(err)
		got = append(got, id)
	}
	require.Equal(want, got)
}

func TestShrinkEquivalence(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	storage := NewMemStorage(1000, 1000).
		SetLinkage(LinkageLeft, 1, multiples(2, 50)...)
	ctx := testCtx(storage)

	child := NewLinkScan(Forward, LinkageLeft, 1)
	it := commitAnd(t, ctx, Forward, child)
	// A single-child AND commits down to the child itself.
	require.Same(Iterator(child), it)

	plain := NewLinkScan(Forward, LinkageLeft, 1)
	require.Equal(collectAll(t, ctx, plain), collectAll(t, ctx, it))
}

func TestCommitWithNullChildYieldsNull(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	it := commitAnd(t, nil, Forward,
		NewFixed(Forward, 1, 2, 3),
		NewNull(Forward))
	require.IsType(&Null{}, it)
	require.Empty(collectAll(t, nil, it))
}

func TestCommitWithNoChildrenYieldsAll(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ctx := testCtx(NewMemStorage(3, 3))
	it := commitAnd(t, ctx, Forward)
	require.IsType(&All{}, it)
	require.Equal([]ID{0, 1, 2}, collectAll(t, ctx, it))
}

func TestStaleHandleRedirectsAfterEvolution(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	and := NewAnd(0, IDMin, IDMax, Forward, "")
	require.NoError(and.AddSubcondition(NewFixed(Forward, 1, 2, 3)))

	committed, err := and.Commit(nil)
	require.NoError(err)
	require.NotSame(Iterator(and), committed)

	_, err = and.Next(nil, unlimited())
	require.ErrorIs(err, ErrRedirect)
	_, err = and.Find(nil, 1, unlimited())
	require.ErrorIs(err, ErrRedirect)
	_, err = and.Check(nil, 1, unlimited())
	require.ErrorIs(err, ErrRedirect)

	// Committing again changes nothing: same replacement, ErrAlready.
	again, err := and.Commit(nil)
	require.ErrorIs(err, ErrAlready)
	require.Same(committed, again)
}

func TestRecommitReturnsAlready(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ctx, it := conjunctionFixture(t)
	again, err := it.(*And).Commit(ctx)
	require.ErrorIs(err, ErrAlready)
	require.Same(it, again)
}

func TestSubconditionLimit(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	and := NewAnd(0, IDMin, IDMax, Forward, "")
	for i := 0; i < maxSubconditions; i++ {
		require.NoError(and.AddSubcondition(newScrambled(1, 2, 3)))
	}
	require.ErrorIs(and.AddSubcondition(newScrambled(4, 5)), ErrResourceExhausted)
}

func TestNestedAndsAreFlattened(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	storage := NewMemStorage(1000, 1000).
		SetLinkage(LinkageLeft, 1, multiples(2, 50)...).
		SetLinkage(LinkageRight, 2, multiples(3, 40)...)
	ctx := testCtx(storage)

	inner := NewAnd(0, IDMin, IDMax, Forward, "")
	require.NoError(inner.AddSubcondition(NewLinkScan(Forward, LinkageLeft, 1)))
	require.NoError(inner.AddSubcondition(NewLinkScan(Forward, LinkageRight, 2)))

	outer := NewAnd(0, IDMin, IDMax, Forward, "")
	require.NoError(outer.AddSubcondition(inner))
	it, err := outer.Commit(ctx)
	require.NoError(err)

	require.Len(it.Subiterators(), 2)
	require.Equal(multiples(6, 16), collectAll(t, ctx, it))
}

func TestClonesShareCacheButAdvanceIndependently(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ctx, it := conjunctionFixture(t)
	a := it.(*And)

	first, err := it.Next(ctx, unlimited())
	require.NoError(err)
	require.Equal(ID(6), first)

	cloned := it.Clone()
	// Both continue from the same position, independently.
	id, err := cloned.Next(ctx, unlimited())
	require.NoError(err)
	require.Equal(ID(12), id)

	id, err = it.Next(ctx, unlimited())
	require.NoError(err)
	require.Equal(ID(12), id)

	// A fresh clone of a reset handle replays from the start off the cache.
	fresh := it.Clone()
	fresh.Reset()
	require.Equal(multiples(6, 16), collectAll(t, ctx, fresh))
	require.NotNil(a.plan.cache)
}

func TestCacheIsPrefixOfOutput(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ctx, it := conjunctionFixture(t)
	a := it.(*And)

	partial := it.Clone()
	for i := 0; i < 3; i++ {
		_, err := partial.Next(ctx, unlimited())
		require.NoError(err)
	}

	full := collectAll(t, ctx, it.Clone())
	cache := a.plan.cache
	require.NotNil(cache)
	require.LessOrEqual(len(cache.entries), len(full))
	for i, entry := range cache.entries {
		require.Equal(full[i], entry.id)
		require.Positive(entry.cost)
	}
	require.LessOrEqual(partial.(*And).cacheOffset, len(cache.entries))
}

func TestCheckThenNextContinuesInSequence(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ctx, it := conjunctionFixture(t)

	id, err := it.Next(ctx, unlimited())
	require.NoError(err)
	require.Equal(ID(6), id)

	ok, err := it.Check(ctx, 96, unlimited())
	require.NoError(err)
	require.True(ok)

	ok, err = it.Check(ctx, 7, unlimited())
	require.NoError(err)
	require.False(ok)

	id, err = it.Next(ctx, unlimited())
	require.NoError(err)
	require.Equal(ID(12), id)
}

func TestFindBeyondCachedFrontier(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ctx, it := conjunctionFixture(t)

	found, err := it.Find(ctx, 50, unlimited())
	require.NoError(err)
	require.Equal(ID(54), found)

	id, err := it.Next(ctx, unlimited())
	require.NoError(err)
	require.Equal(ID(60), id)

	_, err = it.Find(ctx, 97, unlimited())
	require.ErrorIs(err, ErrNotFound)
}

func TestAndRangeBoundsCheck(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	storage := NewMemStorage(1000, 1000).
		SetLinkage(LinkageLeft, 1, multiples(2, 50)...).
		SetLinkage(LinkageRight, 2, multiples(3, 40)...)
	ctx := testCtx(storage)
	and := NewAnd(0, 10, 50, Forward, "")
	require.NoError(and.AddSubcondition(NewLinkScan(Forward, LinkageLeft, 1)))
	require.NoError(and.AddSubcondition(NewLinkScan(Forward, LinkageRight, 2)))
	it, err := and.Commit(ctx)
	require.NoError(err)

	require.Equal([]ID{12, 18, 24, 30, 36, 42, 48}, collectAll(t, ctx, it.Clone()))

	ok, err := it.Check(ctx, 6, unlimited())
	require.NoError(err)
	require.False(ok)

	ok, err = it.Check(ctx, 54, unlimited())
	require.NoError(err)
	require.False(ok)
}

func TestAndIsInstanceAndAccessors(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ctx, it := conjunctionFixture(t)

	n, producer, ok := AndIsInstance(it)
	require.True(ok)
	require.Equal(int64(0), n)
	require.Equal(-1, producer)

	_, err := it.(*And).Statistics(ctx, unlimited())
	require.NoError(err)

	n, producer, ok = AndIsInstance(it)
	require.True(ok)
	require.Positive(n)
	require.GreaterOrEqual(producer, 0)

	child, err := GetSubconstraint(it, 0)
	require.NoError(err)
	require.IsType(&LinkScan{}, child)

	_, err = GetSubconstraint(it, 99)
	require.ErrorIs(err, ErrNotFound)

	cheapest := CheapestSubiterator(it, 1)
	require.NotNil(cheapest)

	require.Nil(CheapestSubiterator(NewFixed(Forward, 1), 1))
	_, _, ok = AndIsInstance(NewFixed(Forward, 1))
	require.False(ok)
}

func TestAndExplainAndRangeEstimate(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ctx, it := conjunctionFixture(t)
	_, err := it.(*And).Statistics(ctx, unlimited())
	require.NoError(err)

	exp := it.Explain()
	require.Equal("And", exp.Name)
	require.Len(exp.SubExplain, 2)

	est := it.RangeEstimate()
	require.LessOrEqual(est.Low, ID(6))
	require.LessOrEqual(est.N, int64(40))
}
