package databox

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnPadAndStrip(t *testing.T) {
	c := FloatColumn([]float64{1, 2})
	c.PadNaN(4)
	assert.Equal(t, 4, c.Len())
	assert.True(t, math.IsNaN(c.Floats()[3]))
	assert.Equal(t, 2, c.StripNaNs())
	assert.Equal(t, []float64{1, 2}, c.Floats())

	z := ComplexColumn([]complex128{1i})
	z.PadNaN(2)
	assert.Equal(t, 1, z.StripNaNs())

	s := StringColumn([]string{"a"})
	s.PadNaN(2)
	assert.Equal(t, []string{"a", "nan"}, s.Strings())
	assert.Equal(t, 0, s.StripNaNs())
}

func TestColumnAsType(t *testing.T) {
	c := FloatColumn([]float64{1.5, 0.1})

	f32, err := c.AsType(Float32)
	require.NoError(t, err)
	assert.Equal(t, float64(float32(0.1)), f32.Floats()[1])
	assert.Equal(t, 0.1, c.Floats()[1], "AsType copies")

	s, err := c.AsType(Str)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.5", "0.1"}, s.Strings())

	back, err := s.AsType(Float64)
	require.NoError(t, err)
	assert.True(t, back.Equal(c))

	_, err = StringColumn([]string{"x"}).AsType(Float64)
	assert.Error(t, err)

	z, err := c.AsType(Complex128)
	require.NoError(t, err)
	assert.Equal(t, []complex128{1.5, 0.1}, z.Complexes())

	r, err := ComplexColumn([]complex128{2, complex(math.NaN(), 0)}).AsType(Float64)
	require.NoError(t, err)
	assert.Equal(t, 2.0, r.Floats()[0])
}

func TestColumnPopAndAppend(t *testing.T) {
	c := FloatColumn([]float64{1, 2, 3})
	v, err := c.Pop(-1)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v.Float())
	_, err = c.Pop(5)
	assert.Error(t, err)

	require.NoError(t, c.Append(Complex(4)))
	assert.Error(t, c.Append(Complex(1i)))
	assert.Error(t, c.Append(String("x")))
	assert.Equal(t, []float64{1, 2, 4}, c.Floats())

	f16 := NewColumn(Float16)
	require.NoError(t, f16.Append(Float(0.1)))
	assert.InDelta(t, 0.1, f16.Floats()[0], 1e-3)
}

func TestColumnEqual(t *testing.T) {
	a := FloatColumn([]float64{1, math.NaN()})
	b := NewColumn(Float32)
	require.NoError(t, b.Append(Int(1)))
	require.NoError(t, b.Append(Float(math.NaN())))
	assert.True(t, a.Equal(b), "dtype is not compared")

	assert.True(t, a.Equal(ComplexColumn([]complex128{1, complex(math.NaN(), 0)})))
	assert.False(t, a.Equal(FloatColumn([]float64{1})))
	assert.False(t, a.Equal(nil))
}

func TestParseDType(t *testing.T) {
	for name, want := range map[string]DType{"float": Float64, "<f4": Float32, "f2": Float16, "complex": Complex128, "object": Str} {
		got, err := ParseDType(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, want, must(ParseDType(got.String())))
	}
	_, err := ParseDType("int8")
	assert.Error(t, err)
}

func must(dt DType, err error) DType {
	if err != nil {
		panic(err)
	}
	return dt
}
