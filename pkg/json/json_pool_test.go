package json

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectWriterKeepsOrder(t *testing.T) {
	w := NewObjectWriter()
	w.WriteField("zeta", 1)
	w.WriteField("alpha", []float64{1.5, 2})
	w.WriteRawField("a \"quoted\" key", []byte(`null`))

	data, err := w.Bytes()
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":[1.5,2],"a \"quoted\" key":null}`, string(data))
}

func TestObjectWriterError(t *testing.T) {
	w := NewObjectWriter()
	w.WriteField("bad", make(chan int))
	w.WriteField("ignored", 1)

	_, err := w.Bytes()
	assert.Error(t, err)
}

func TestEmptyObject(t *testing.T) {
	data, err := NewObjectWriter().Bytes()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestStreamingEncoder(t *testing.T) {
	t.Run("array", func(t *testing.T) {
		var buf bytes.Buffer
		se, err := NewStreamingEncoder(&buf, true)
		require.NoError(t, err)
		require.NoError(t, se.Encode(map[string]int{"a": 1}))
		require.NoError(t, se.Encode(map[string]int{"a": 2}))
		require.NoError(t, se.Close())

		var out []map[string]int
		require.NoError(t, Unmarshal(buf.Bytes(), &out))
		assert.Equal(t, []map[string]int{{"a": 1}, {"a": 2}}, out)
	})

	t.Run("lines", func(t *testing.T) {
		var buf bytes.Buffer
		se, err := NewStreamingEncoder(&buf, false)
		require.NoError(t, err)
		require.NoError(t, se.Encode("x"))
		require.NoError(t, se.Encode("<y>"))
		require.NoError(t, se.Close())
		assert.Equal(t, "\"x\"\n\"<y>\"\n", buf.String())
	})
}

func TestBufferPool(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("leftover")
	PutBuffer(buf)
	assert.Equal(t, 0, GetBuffer().Len())
}
