package genutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureInt64(t *testing.T) {
	tcs := []struct {
		name  string
		value uint64
		want  int64
		err   bool
	}{
		{
			name:  "zero",
			value: 0,
			want:  0,
		},
		{
			name:  "max",
			value: uint64(math.MaxInt64),
			want:  math.MaxInt64,
		},
		{
			name:  "overflow",
			value: uint64(math.MaxInt64) + 1,
			err:   true,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err {
				assert.Panics(t, func() {
					_, _ = EnsureInt64(tc.value)
				}, "The code did not panic")
				return
			}

			got, err := EnsureInt64(tc.value)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestEnsureUInt64(t *testing.T) {
	tcs := []struct {
		name  string
		value int64
		want  uint64
		err   bool
	}{
		{
			name:  "zero",
			value: 0,
			want:  0,
		},
		{
			name:  "max",
			value: math.MaxInt64,
			want:  uint64(math.MaxInt64),
		},
		{
			name:  "negative",
			value: -1,
			err:   true,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err {
				assert.Panics(t, func() {
					_, _ = EnsureUInt64(tc.value)
				}, "The code did not panic")
				return
			}

			got, err := EnsureUInt64(tc.value)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestMustEnsureInt64(t *testing.T) {
	require.Equal(t, int64(42), MustEnsureInt64(42))
}

func TestMustEnsureInt(t *testing.T) {
	require.Equal(t, 42, MustEnsureInt(42))
}
