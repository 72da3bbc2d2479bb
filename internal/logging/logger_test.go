package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSetGlobalLogger(t *testing.T) {
	original := Logger
	t.Cleanup(func() { SetGlobalLogger(original) })

	var buf bytes.Buffer
	SetGlobalLogger(zerolog.New(&buf))

	Info().Str("key", "value").Msg("hello")
	require.Contains(t, buf.String(), `"key":"value"`)
	require.Contains(t, buf.String(), "hello")
}

func TestSetGlobalLoggerUpdatesContextDefault(t *testing.T) {
	original := Logger
	t.Cleanup(func() { SetGlobalLogger(original) })

	var buf bytes.Buffer
	SetGlobalLogger(zerolog.New(&buf))

	// A context without an attached logger falls back to the global one.
	Ctx(context.Background()).Info().Msg("from context")
	require.Contains(t, buf.String(), "from context")
}

func TestLevelHelpers(t *testing.T) {
	original := Logger
	t.Cleanup(func() { SetGlobalLogger(original) })

	var buf bytes.Buffer
	SetGlobalLogger(zerolog.New(&buf).Level(zerolog.WarnLevel))

	Debug().Msg("dropped")
	Warn().Msg("kept")

	out := buf.String()
	require.NotContains(t, out, "dropped")
	require.Contains(t, out, "kept")
}
