package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "chatty"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestInitReplacesGlobal(t *testing.T) {
	require.NoError(t, Init(Config{Level: "debug", Encoding: "json"}))
	first := Get()
	require.NoError(t, Init(Config{Level: "error", Encoding: "console"}))
	assert.NotSame(t, first, Get())
	assert.False(t, Get().Core().Enabled(-1), "debug must be disabled at error level")
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.WithValue(context.Background(), FileKey, "sweep.dat")
	ctx = context.WithValue(ctx, CommandKey, "inspect")
	assert.NotNil(t, WithContext(ctx))
}

func TestSetLevel(t *testing.T) {
	require.NoError(t, SetLevel("warn"))
	assert.Error(t, SetLevel("loud"))
}
