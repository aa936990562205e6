package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpansWithoutProviderAreNoop(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "databox.load")
	require.NotNil(t, ctx)
	span.SetAttribute("path", "sweep.dat")
	span.End(nil)
}

func TestInitializeExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Writer = &buf
	require.NoError(t, Initialize(cfg))

	_, span := StartSpan(context.Background(), "databox.save")
	span.SetAttribute("rows", 12)
	span.SetAttribute("binary", true)
	span.SetAttribute("dtype", Float32Name{})
	span.End(errors.New("disk full"))

	require.NoError(t, Shutdown(context.Background()))
	out := buf.String()
	assert.Contains(t, out, "databox.save")
	assert.Contains(t, out, "disk full")
	assert.Contains(t, out, "float32")

	// second shutdown is a no-op
	assert.NoError(t, Shutdown(context.Background()))
}

// Float32Name exercises the fmt fallback of SetAttribute.
type Float32Name struct{}

func (Float32Name) String() string { return "float32" }
