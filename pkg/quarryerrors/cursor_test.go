package quarryerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCursorSyntaxError(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	err := NewCursorSyntaxError("and:>0:0:-(bogus)", 10, "unknown iterator kind %q", "bogus")
	require.Equal(10, err.Offset)
	require.Equal("(bogus)", err.Fragment)
	require.Contains(err.Error(), "offset 10")
	require.Contains(err.Error(), "bogus")
}

func TestCursorSyntaxErrorTruncatesFragment(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	long := "fixed:>64:"
	for i := 0; i < 64; i++ {
		long += fmt.Sprintf("%d,", i)
	}
	err := NewCursorSyntaxError(long, 0, "boom")
	require.Len(err.Fragment, 32)
}

func TestAsCursorSyntaxError(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	err := NewCursorSyntaxError("x", 0, "boom")
	wrapped := fmt.Errorf("decoding: %w", err)

	found, ok := AsCursorSyntaxError(wrapped)
	require.True(ok)
	require.Same(err, found)

	_, ok = AsCursorSyntaxError(errors.New("unrelated"))
	require.False(ok)
}

func TestOffsetPastEnd(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	err := NewCursorSyntaxError("ab", 10, "boom")
	require.Equal(10, err.Offset)
	require.Empty(err.Fragment)
}
