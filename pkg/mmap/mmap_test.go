package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestOpen(t *testing.T) {
	path := writeTemp(t, "a\tb\n1\t2\n")

	m, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "a\tb\n1\t2\n", string(m.Bytes()))
	assert.Equal(t, 8, m.Len())

	require.NoError(t, m.Close())
	assert.Nil(t, m.Bytes())
	assert.NoError(t, m.Close())
}

func TestOpenEmpty(t *testing.T) {
	m, err := Open(writeTemp(t, ""))
	require.NoError(t, err)
	assert.Empty(t, m.Bytes())
	assert.NoError(t, m.Close())
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestReadFile(t *testing.T) {
	path := writeTemp(t, "x\n1\n")

	for _, threshold := range []int64{0, 1, 1 << 20} {
		data, release, err := ReadFile(path, threshold)
		require.NoError(t, err)
		assert.Equal(t, "x\n1\n", string(data), "threshold %d", threshold)
		release()
	}

	_, _, err := ReadFile(filepath.Join(t.TempDir(), "missing.txt"), 1)
	assert.True(t, os.IsNotExist(err))
}
