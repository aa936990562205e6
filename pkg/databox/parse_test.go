package databox

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/labkit/databox/pkg/testutil"
)

func TestParseLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want Value
	}{
		{"3", Int(3)},
		{"-2.5", Float(-2.5)},
		{"1e3", Float(1000)},
		{"nan", Float(math.NaN())},
		{"-inf", Float(math.Inf(-1))},
		{"2j", Complex(2i)},
		{"(1+2j)", Complex(1 + 2i)},
		{"1-0.5j", Complex(1 - 0.5i)},
		{`'a\'b'`, String("a'b")},
		{`"double"`, String("double")},
		{`'tab\there'`, String("tab\there")},
		{"None", None},
		{"True", Bool(true)},
		{"[1, 2.0, 'x']", List(Int(1), Float(2), String("x"))},
		{"(1, 2)", List(Int(1), Int(2))},
		{"(7)", Int(7)},
		{"1, 2, 3", List(Int(1), Int(2), Int(3))},
		{"array([1.0, 2.0], dtype=float64)", List(Float(1), Float(2))},
		{"[[1, 2], [3, 4]]", List(List(Int(1), Int(2)), List(Int(3), Int(4)))},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLiteral(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got.Repr())
		})
	}
}

func TestParseLiteralRejects(t *testing.T) {
	for _, in := range []string{"", "'it''s'", "[1, 2", "'open", "label", "array[1]", "1 2"} {
		_, err := ParseLiteral(in)
		assert.Error(t, err, in)
	}
}

func TestReprParsesBack(t *testing.T) {
	values := []Value{
		Int(-4),
		Float(0.1),
		Float(3),
		Float(math.Inf(1)),
		Complex(-1.5 + 2i),
		Complex(3i),
		String("line one\nline 'two'\\"),
		List(Float(1), List(String("a"), None), Bool(false)),
	}
	for _, v := range values {
		got, err := ParseLiteral(v.Repr())
		require.NoError(t, err, v.Repr())
		assert.True(t, v.Equal(got), "%s became %s", v.Repr(), got.Repr())
	}
	assert.Equal(t, "3.0", Float(3).Repr())
	assert.Equal(t, "'a\\nb'", String("a\nb").Repr())
}

func TestValueShape(t *testing.T) {
	v, err := ParseLiteral("[[1, 2, 3], [4, 5, 6]]")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, v.Shape())
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, v.Flatten())
	assert.Nil(t, Float(1).Shape())
}

func TestResolveDelimiter(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"tab splits like whitespace", testutil.SweepTSV, Whitespace},
		{"tab with spaced header", "label\t'run 7'\nx\ty\n1\t2\n3\t4\n", "\t"},
		{"tab with empty fields", "a\tb\tc\n1\t\t3\n4\t5\t6\n", "\t"},
		{"comma", testutil.RaggedCSV, ","},
		{"whitespace", testutil.NoKeysWhitespace, Whitespace},
		{"ragged whitespace", testutil.RaggedWhitespace, Whitespace},
		{"semicolon", "a;b\n1;2\n3;4\n", ";"},
		{"single column", "x\n1\n2\n", Whitespace},
		{"single column comma", "x\n1,\n2,\n", ","},
		{"nothing numeric", testutil.HeaderOnly, Whitespace},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveDelimiter(splitLines(tt.text), nil, 0))
		})
	}

	forced := "|"
	assert.Equal(t, "|", ResolveDelimiter(splitLines(testutil.SweepTSV), &forced, 0))
}

func TestSplitLine(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "3"}, splitLine("  1 \t 2   3\r\n", Whitespace))
	assert.Equal(t, []string{"1", "", "3"}, splitLine("1, ,3,", ","))
	assert.Nil(t, splitLine("   ", ","))

	key, rest := splitKey("name  'two words'", Whitespace)
	assert.Equal(t, "name", key)
	assert.Equal(t, "'two words'", rest)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		line  string
		delim string
		kind  LineKind
		key   string
	}{
		{"", "\t", LineBlank, ""},
		{"1.0\t(2+3j)\tnan", "\t", LineData, ""},
		{"date\t'2024-03-01'", "\t", LineLiteralHeader, "date"},
		{"gain\t3.5", "\t", LineLiteralHeader, "gain"},
		{"gain\t1e400", "\t", LineLiteralHeader, "gain"},
		{"range\t1\t2\t3", "\t", LineArrayHeader, "range"},
		{"x\ty\tz", "\t", LineArrayHeader, "x"},
		{"comment", "\t", LineCandidateKeys, "comment"},
		{"x y", Whitespace, LineCandidateKeys, "x"},
		{"label\tfree text", "\t", LineCandidateKeys, "label"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			c := Classify(tt.line, tt.delim)
			assert.Equal(t, tt.kind, c.Kind, c.Kind.String())
			assert.Equal(t, tt.key, c.Key)
		})
	}

	c := Classify("range\t1\t2\t3", "\t")
	assert.True(t, List(Float(1), Float(2), Float(3)).Equal(c.Value))
	assert.True(t, c.IsKeyCandidate())

	c = Classify("x y", Whitespace)
	assert.Equal(t, String("y"), c.Value)
}

func TestDetectBoundary(t *testing.T) {
	log := zaptest.NewLogger(t)

	t.Run("column keys above data", func(t *testing.T) {
		lines := splitLines(testutil.SweepTSV)
		b := DetectBoundary(lines, "\t", -1, log)
		assert.Equal(t, 6, b.FirstDataLine)
		assert.Equal(t, []string{"f", "x", "y"}, b.CKeys)
		assert.Equal(t, 5, b.CKeysLine)
		assert.False(t, b.Synthetic)
		assert.Equal(t, []string{"date", "temperature", "gains", "frequencies"}, b.Headers.Keys())

		// every token of the first data line is numeric, every header line has
		// at least one token that is not
		assert.True(t, allNumeric(splitLine(lines[b.FirstDataLine], "\t")))
		for _, line := range lines[:b.FirstDataLine] {
			if tokens := splitLine(line, "\t"); len(tokens) > 0 {
				assert.False(t, allNumeric(tokens), line)
			}
		}
	})

	t.Run("synthetic keys", func(t *testing.T) {
		b := DetectBoundary(splitLines(testutil.NoKeysWhitespace), Whitespace, -1, log)
		assert.Equal(t, 1, b.FirstDataLine)
		assert.Equal(t, []string{"c0", "c1", "c2"}, b.CKeys)
		assert.True(t, b.Synthetic)
		assert.Equal(t, []string{"gain"}, b.Headers.Keys())
	})

	t.Run("key line too short", func(t *testing.T) {
		b := DetectBoundary(splitLines("a\tb\n1\t2\t3\n"), "\t", -1, log)
		assert.True(t, b.Synthetic)
		assert.Equal(t, []string{"c0", "c1", "c2"}, b.CKeys)
		assert.Equal(t, []string{"a"}, b.Headers.Keys(), "invalid key line stays a header")
	})

	t.Run("key line too long", func(t *testing.T) {
		b := DetectBoundary(splitLines("a\tb\tc\td\n1\t2\n"), "\t", -1, log)
		assert.Equal(t, []string{"a", "b"}, b.CKeys)
		assert.Equal(t, 2, b.Truncated)
		assert.Equal(t, 0, b.Headers.Len())
	})

	t.Run("key line separated by a blank line", func(t *testing.T) {
		b := DetectBoundary(splitLines("a\tb\n\n1\t2\n"), "\t", -1, log)
		assert.True(t, b.Synthetic)
	})

	t.Run("duplicate header keeps first", func(t *testing.T) {
		b := DetectBoundary(splitLines("gain\t1\ngain\t2\nx\ty\n1\t2\n"), "\t", -1, log)
		assert.Equal(t, []string{"gain"}, b.Duplicates)
		v, _ := b.Headers.Get("gain")
		assert.True(t, Int(1).Equal(v))
	})

	t.Run("duplicate column keys", func(t *testing.T) {
		b := DetectBoundary(splitLines("x\tx\ty\n1\t2\t3\n"), "\t", -1, log)
		assert.Equal(t, []string{"x", "x_1", "y"}, b.CKeys)
	})

	t.Run("no data", func(t *testing.T) {
		b := DetectBoundary(splitLines(testutil.HeaderOnly), Whitespace, -1, log)
		assert.Equal(t, NoData, b.FirstDataLine)
		assert.Equal(t, 2, b.Headers.Len())
	})

	t.Run("forced first data line", func(t *testing.T) {
		lines := splitLines("1\t2\n3\t4\nx\ty\n5\t6\n")
		b := DetectBoundary(lines, "\t", 3, log)
		assert.Equal(t, 3, b.FirstDataLine)
		assert.Equal(t, []string{"x", "y"}, b.CKeys)
		assert.Equal(t, []string{"1", "3"}, b.Headers.Keys())
	})
}

func TestAssembleRagged(t *testing.T) {
	lines := splitLines(testutil.RaggedCSV)
	b := DetectBoundary(lines, ",", -1, zaptest.NewLogger(t))
	cols := assembleColumns(lines, b.FirstDataLine, ",", b.CKeys)

	lengths := map[string]int{}
	for _, k := range cols.Keys() {
		c, _ := cols.Get(k)
		lengths[k] = c.Len()
	}
	assert.Equal(t, map[string]int{"t": 3, "v": 2, "i": 1}, lengths)

	assert.Equal(t, 3, padColumns(cols))
	i, _ := cols.Get("i")
	assert.Equal(t, 3, i.Len())
	assert.True(t, math.IsNaN(i.Floats()[2]))
}

func TestAssembleComplex(t *testing.T) {
	lines := splitLines(testutil.ComplexTSV)
	cols := assembleColumns(lines, 1, "\t", []string{"f", "z"})
	f, _ := cols.Get("f")
	z, _ := cols.Get("z")
	assert.Equal(t, Float64, f.DType())
	assert.Equal(t, Complex128, z.DType())
	assert.Equal(t, []complex128{1 + 2i, 3 - 4i}, z.Complexes())
}

func TestApplyRenames(t *testing.T) {
	cols := newOrdered[*Column]()
	cols.Insert("V", FloatColumn([]float64{1}), -1)
	cols.Insert("I", FloatColumn([]float64{2}), -1)
	cols.Insert("current", FloatColumn([]float64{3}), -1)

	applyRenames(cols, map[string]string{"V": "voltage", "I": "current"}, zaptest.NewLogger(t))
	assert.Equal(t, []string{"voltage", "I", "current"}, cols.Keys())
}

func TestSplitLinesDropsTrailingNewline(t *testing.T) {
	assert.Equal(t, []string{"a", "", "b"}, splitLines("a\n\nb\n"))
	assert.Len(t, splitLines(strings.Repeat("x\n", 3)), 3)
}
