package iterator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptimizerIdempotence(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ctx, it := conjunctionFixture(t)
	a := it.(*And)

	result, changed, err := a.applyPasses(ctx)
	require.NoError(err)
	require.False(changed)
	require.Same(Iterator(a), result)
}

func TestVIPRewrite(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	storage := NewMemStorage(1000, 1000).
		SetLinkage(LinkageTypeGUID, 3, multiples(3, 40)...).
		SetLinkage(LinkageLeft, 7, multiples(2, 50)...).
		SetVIP(LinkageLeft, 7, 3, multiples(6, 16)...)
	ctx := testCtx(storage)

	it := commitAnd(t, ctx, Forward,
		NewLinkScan(Forward, LinkageTypeGUID, 3),
		NewLinkScan(Forward, LinkageLeft, 7))

	// Both scans collapse into the single indexed iterator.
	require.IsType(&VIP{}, it)
	require.Equal(multiples(6, 16), collectAll(t, ctx, it))
}

func TestVIPRewriteSkippedWithoutIndex(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	storage := NewMemStorage(1000, 1000).
		SetLinkage(LinkageTypeGUID, 3, multiples(3, 40)...).
		SetLinkage(LinkageLeft, 7, multiples(2, 50)...)
	ctx := testCtx(storage)

	it := commitAnd(t, ctx, Forward,
		NewLinkScan(Forward, LinkageTypeGUID, 3),
		NewLinkScan(Forward, LinkageLeft, 7))

	require.IsType(&And{}, it)
	require.Len(it.Subiterators(), 2)
	require.Equal(multiples(6, 16), collectAll(t, ctx, it))
}

func TestSubsumedCheckerIsDropped(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	storage := NewMemStorage(1000, 1000).
		SetLinkage(LinkageLeft, 7, multiples(2, 50)...).
		SetVIP(LinkageLeft, 7, 3, multiples(6, 20)...)
	ctx := testCtx(storage)

	vip, ok, err := NewVIP(ctx, Forward, LinkageLeft, 7, 3)
	require.NoError(err)
	require.True(ok)

	// The VIP already guarantees left=7, so the plain scan tests nothing.
	it := commitAnd(t, ctx, Forward,
		vip,
		NewLinkScan(Forward, LinkageLeft, 7))

	require.IsType(&VIP{}, it)
	require.Equal(multiples(6, 20), collectAll(t, ctx, it))
}

func TestRedundantAllIsDropped(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	storage := NewMemStorage(1000, 1000).
		SetLinkage(LinkageLeft, 1, multiples(2, 50)...).
		SetLinkage(LinkageRight, 2, multiples(3, 40)...)
	ctx := testCtx(storage)

	it := commitAnd(t, ctx, Forward,
		NewAll(Forward, IDMin, IDMax),
		NewLinkScan(Forward, LinkageLeft, 1),
		NewLinkScan(Forward, LinkageRight, 2))

	require.Len(it.Subiterators(), 2)
	require.Equal(multiples(6, 16), collectAll(t, ctx, it))
}

func TestSmallConjunctionIsPreEvaluated(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	storage := NewMemStorage(1000, 1000).
		SetLinkage(LinkageLeft, 1, multiples(2, 10)...).
		SetLinkage(LinkageRight, 2, multiples(3, 40)...)
	ctx := testCtx(storage)

	it := commitAnd(t, ctx, Forward,
		NewLinkScan(Forward, LinkageLeft, 1),
		NewLinkScan(Forward, LinkageRight, 2))

	// The 10-element scan is small enough to evaluate at commit time.
	require.IsType(&Fixed{}, it)
	require.Equal([]ID{6, 12, 18}, collectAll(t, ctx, it))
}

func TestUnorderedSingleChildGetsSorted(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	it := commitAnd(t, nil, Forward, newScrambled(30, 10, 20))
	require.IsType(&Sort{}, it)
	require.Equal([]ID{10, 20, 30}, collectAll(t, nil, it))
}
