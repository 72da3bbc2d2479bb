package cursor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	hash := HashCall("ReadPrimitives", "scope=42", "page=100")
	token := Encode("and:>0:0:-(fixed:>2:1,5)/-", hash)

	frozen, err := Decode(token, hash)
	require.NoError(err)
	require.Equal("and:>0:0:-(fixed:>2:1,5)/-", frozen)
}

func TestDecodeRejectsMismatchedCall(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	token := Encode("all:>0", HashCall("ReadPrimitives", "scope=42"))

	_, err := Decode(token, HashCall("ReadPrimitives", "scope=43"))
	require.ErrorIs(err, ErrHashMismatch)
	require.ErrorAs(err, &InvalidCursorError{})
}

func TestDecodeRejectsEmptyToken(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	_, err := Decode("", HashCall("ReadPrimitives"))
	require.ErrorIs(err, ErrNilCursor)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	_, err := Decode("not base64!!!", HashCall("ReadPrimitives"))
	require.Error(err)
	require.ErrorAs(err, &InvalidCursorError{})
}

func TestHashCallIsOrderSensitive(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	require.NotEqual(HashCall("a", "b", "c"), HashCall("a", "c", "b"))
	require.NotEqual(HashCall("a", "bc"), HashCall("a", "b", "c"))
}
