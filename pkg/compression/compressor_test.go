package compression

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = []byte("SPINMOB_BINARY\t'float64'\nlabel\t'sweep'\n\nx\ty\n" +
	"1.0\t2.0\n1.0\t2.0\n1.0\t2.0\n1.0\t2.0\n1.0\t2.0\n1.0\t2.0\n")

func TestRoundTrip(t *testing.T) {
	for _, alg := range []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2, Deflate} {
		t.Run(string(alg), func(t *testing.T) {
			comp, err := NewCompressor(&Config{Algorithm: alg, Level: Default})
			require.NoError(t, err)
			assert.Equal(t, alg, comp.Algorithm())

			packed, err := comp.Compress(sample)
			require.NoError(t, err)

			unpacked, err := comp.Decompress(packed)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(sample, unpacked))
		})
	}
}

func TestDetectAndDecompressAuto(t *testing.T) {
	for _, alg := range []Algorithm{Gzip, Snappy, LZ4, Zstd, S2} {
		t.Run(string(alg), func(t *testing.T) {
			comp, err := NewCompressor(&Config{Algorithm: alg, Level: Fastest})
			require.NoError(t, err)
			packed, err := comp.Compress(sample)
			require.NoError(t, err)

			assert.Equal(t, alg, Detect(packed))
			raw, got, err := DecompressAuto(packed)
			require.NoError(t, err)
			assert.Equal(t, alg, got)
			assert.Equal(t, sample, raw)
		})
	}

	raw, alg, err := DecompressAuto(sample)
	require.NoError(t, err)
	assert.Equal(t, None, alg)
	assert.Equal(t, sample, raw)
}

func TestForPath(t *testing.T) {
	tests := map[string]Algorithm{
		"sweep.dat":     None,
		"sweep.dat.gz":  Gzip,
		"sweep.DAT.ZST": Zstd,
		"a.lz4":         LZ4,
		"a.sz":          Snappy,
		"a.s2":          S2,
		"a.deflate":     Deflate,
	}
	for path, want := range tests {
		assert.Equal(t, want, ForPath(path), path)
		if want != None {
			assert.Equal(t, want, ForPath("x"+want.Extension()))
		}
	}
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := ParseAlgorithm("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, Zstd, alg)

	alg, err = ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, None, alg)

	_, err = ParseAlgorithm("brotli")
	assert.Error(t, err)

	_, err = NewCompressor(&Config{Algorithm: "brotli"})
	assert.Error(t, err)
}
