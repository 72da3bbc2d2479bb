package iterator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllClampsToHorizon(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ctx := testCtx(NewMemStorage(5, 5))
	all := NewAll(Forward, 0, IDMax)
	require.Equal([]ID{0, 1, 2, 3, 4}, collectAll(t, ctx, all))
}

func TestAllBackward(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ctx := testCtx(NewMemStorage(4, 4))
	all := NewAll(Backward, 0, IDMax)
	require.Equal([]ID{3, 2, 1, 0}, collectAll(t, ctx, all))
}

func TestAllFind(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ctx := testCtx(NewMemStorage(100, 100))
	all := NewAll(Forward, 10, 20)

	found, err := all.Find(ctx, 3, unlimited())
	require.NoError(err)
	require.Equal(ID(10), found)

	found, err = all.Find(ctx, 15, unlimited())
	require.NoError(err)
	require.Equal(ID(15), found)

	_, err = all.Find(ctx, 20, unlimited())
	require.ErrorIs(err, ErrNotFound)
}

func TestAllCheckRespectsBounds(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ctx := testCtx(NewMemStorage(100, 100))
	all := NewAll(Forward, 10, 20)

	for id, want := range map[ID]bool{9: false, 10: true, 19: true, 20: false} {
		got, err := all.Check(ctx, id, unlimited())
		require.NoError(err)
		require.Equal(want, got, "id %d", id)
	}
}

func TestAllClonePreservesPosition(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ctx := testCtx(NewMemStorage(10, 10))
	all := NewAll(Forward, 0, 4)
	_, err := all.Next(ctx, unlimited())
	require.NoError(err)

	cloned := all.Clone()
	require.Equal([]ID{1, 2, 3}, collectAll(t, ctx, cloned))
	require.Equal([]ID{1, 2, 3}, collectAll(t, ctx, all))
}
