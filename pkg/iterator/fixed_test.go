package iterator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFixedEnumeratesForward(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := NewFixed(Forward, 7, 3, 5, 3, 1)
	require.Equal([]ID{1, 3, 5, 7}, collectAll(t, nil, f))

	_, err := f.Next(nil, unlimited())
	require.ErrorIs(err, ErrNotFound)
}

func TestFixedEnumeratesBackward(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := NewFixed(Backward, 1, 3, 5, 7)
	require.Equal([]ID{7, 5, 3, 1}, collectAll(t, nil, f))
}

func TestFixedFindOnOrAfter(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := NewFixed(Forward, 1, 3, 5, 7)
	found, err := f.Find(nil, 4, unlimited())
	require.NoError(err)
	require.Equal(ID(5), found)

	_, err = f.Find(nil, 8, unlimited())
	require.ErrorIs(err, ErrNotFound)
}

func TestFixedFindOnOrBeforeBackward(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := NewFixed(Backward, 1, 3, 5, 7)
	found, err := f.Find(nil, 4, unlimited())
	require.NoError(err)
	require.Equal(ID(3), found)

	_, err = f.Find(nil, 0, unlimited())
	require.ErrorIs(err, ErrNotFound)
}

func TestFixedNextAfterFindYieldsFollowingElement(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := NewFixed(Forward, 1, 3, 5, 7)
	found, err := f.Find(nil, 3, unlimited())
	require.NoError(err)
	require.Equal(ID(3), found)

	next, err := f.Next(nil, unlimited())
	require.NoError(err)
	require.Equal(ID(5), next)
}

func TestFixedCheckDoesNotReposition(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := NewFixed(Forward, 1, 3, 5, 7)
	first, err := f.Next(nil, unlimited())
	require.NoError(err)
	require.Equal(ID(1), first)

	ok, err := f.Check(nil, 7, unlimited())
	require.NoError(err)
	require.True(ok)

	ok, err = f.Check(nil, 4, unlimited())
	require.NoError(err)
	require.False(ok)

	next, err := f.Next(nil, unlimited())
	require.NoError(err)
	require.Equal(ID(3), next)
}

func TestFixedClonePreservesPosition(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := NewFixed(Forward, 1, 3, 5, 7)
	_, err := f.Next(nil, unlimited())
	require.NoError(err)
	_, err = f.Next(nil, unlimited())
	require.NoError(err)

	cloned := f.Clone()
	require.Equal([]ID{5, 7}, collectAll(t, nil, cloned))
	require.Equal([]ID{5, 7}, collectAll(t, nil, f))
}

func TestFixedSuspendsWithoutBudget(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := NewFixed(Forward, 1, 2, 3)
	_, err := f.Next(nil, NewBudget(0))
	require.ErrorIs(err, ErrSuspended)

	// Progress was not lost.
	id, err := f.Next(nil, NewBudget(1))
	require.NoError(err)
	require.Equal(ID(1), id)
}

func TestIntersectFixed(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	merged := intersectFixed(NewFixed(Forward, 1, 3, 5, 7), NewFixed(Forward, 3, 5, 9))
	require.Equal([]ID{3, 5}, merged.IDs())

	empty := intersectFixed(NewFixed(Forward, 1, 2), NewFixed(Forward, 3, 4))
	require.Empty(empty.IDs())
}

func TestFixedExplainCarriesIdentity(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := NewFixed(Forward, 1, 3, 5)
	require.NotEmpty(f.ID())
	require.Contains(f.Explain().Info, f.ID())

	// Clones are distinct instances and say so.
	clone := f.Clone().(*Fixed)
	require.NotEqual(f.ID(), clone.ID())
	require.Contains(clone.Explain().Info, clone.ID())
}
