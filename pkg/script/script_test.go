package script

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labkit/databox/pkg/errors"
)

// fakeSource serves fixed columns and headers.
type fakeSource struct {
	keys    []string
	columns map[string][]float64
	headers map[string]Value
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		keys: []string{"t", "v"},
		columns: map[string][]float64{
			"t": {0, 1, 2, 3},
			"v": {1, 2, 4, 8},
		},
		headers: map[string]Value{"gain": Number(2), "label": String("run 7")},
	}
}

func (s *fakeSource) Column(key any) (Value, error) {
	switch k := key.(type) {
	case string:
		if col, ok := s.columns[k]; ok {
			return Array(col), nil
		}
	case int:
		if k < 0 {
			k += len(s.keys)
		}
		if k >= 0 && k < len(s.keys) {
			return Array(s.columns[s.keys[k]]), nil
		}
	}
	return Undefined, errors.Newf(errors.ErrorTypeNotFound, "no column %v", key)
}

func (s *fakeSource) Header(key any) (Value, error) {
	if k, ok := key.(string); ok {
		if v, found := s.headers[k]; found {
			return v, nil
		}
	}
	return Undefined, errors.Newf(errors.ErrorTypeNotFound, "no header %v", key)
}

func (s *fakeSource) Len() int { return len(s.keys) }

func (s *fakeSource) HasColumn(name string) bool {
	_, ok := s.columns[name]
	return ok
}

func evalString(t *testing.T, src string) Value {
	t.Helper()
	v, err := NewEngine(newFakeSource()).Execute(src)
	require.NoError(t, err, src)
	return v
}

func TestTokenize(t *testing.T) {
	tokens, err := Tokenize("np.sin(x) ** 2 // 3 != 'a\\'b' and 2.5e-3j")
	require.NoError(t, err)

	var types []TokenType
	for _, tok := range tokens {
		types = append(types, tok.Type)
	}
	assert.Equal(t, []TokenType{IDENT, LPAREN, IDENT, RPAREN, POW, NUMBER, DSLASH, NUMBER, NEQ, STRING, AND, IMAG, EOF}, types)
	assert.Equal(t, "np.sin", tokens[0].Lexeme)
	assert.Equal(t, "a'b", tokens[9].Str)
	assert.Equal(t, 2.5e-3, tokens[11].Num)
	assert.Equal(t, 8, tokens[3].Pos)

	for _, bad := range []string{"1 $ 2", "'open", "3x", "a ! b"} {
		_, err := Tokenize(bad)
		assert.True(t, errors.IsType(err, errors.ErrorTypeScript), bad)
	}
}

func TestParseErrors(t *testing.T) {
	for _, bad := range []string{"", "1 +", "(1, 2", "x[]", "x[1:2:3:4]", "f(1 2)", "1 2"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"-2**2", -4},
		{"2**-1", 0.5},
		{"2**3**2", 512},
		{"7 // 2", 3},
		{"-7 // 2", -4},
		{"-7 % 3", 2},
		{"7 % -3", -2},
		{"1 < 2 and 2 < 1", 0},
		{"1 < 2 or 2 < 1", 1},
		{"not 0", 1},
		{"1 == 1.0", 1},
		{"pi / pi", 1},
		{"np.sqrt(16)", 4},
		{"numpy.abs(-3)", 3},
		{"_n.floor(2.7)", 2},
		{"abs(3 + 4j)", 5},
		{"real((1+2j) * (1-2j))", 5},
		{"round(2.5)", 2},
		{"round(3.14159, 2)", 3.14},
		{"h('gain') * 3", 6},
		{"len(c('t'))", 4},
		{"c(1)[-1]", 8},
		{"self['v'][2]", 4},
		{"self[0][1]", 1},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			v := evalString(t, tt.src)
			f, ok := v.Float()
			require.True(t, ok, "got %s", v)
			assert.InDelta(t, tt.want, f, 1e-12)
		})
	}
}

func TestArrays(t *testing.T) {
	tests := []struct {
		src  string
		want Value
	}{
		{"c('t') * 2", Array([]float64{0, 2, 4, 6})},
		{"c('v') - c('t')", Array([]float64{1, 1, 2, 5})},
		{"[1, 2] + [10]", Array([]float64{11, 12})},
		{"c('t')[1:3]", Array([]float64{1, 2})},
		{"c('t')[::-1]", Array([]float64{3, 2, 1, 0})},
		{"c('t')[::2]", Array([]float64{0, 2})},
		{"c('t')[[0, 3]]", Array([]float64{0, 3})},
		{"c('t') > 1", Array([]float64{0, 0, 1, 1})},
		{"where(c('t') > 1, c('v'), 0)", Array([]float64{0, 0, 4, 8})},
		{"cumsum(c('t'))", Array([]float64{0, 1, 3, 6})},
		{"diff(c('v'))", Array([]float64{1, 2, 4})},
		{"linspace(0, 1, 3)", Array([]float64{0, 0.5, 1})},
		{"arange(3)", Array([]float64{0, 1, 2})},
		{"arange(1, 2, 0.5)", Array([]float64{1, 1.5})},
		{"zeros(2) + ones(2)", Array([]float64{1, 1})},
		{"sort([3, 1, 2])", Array([]float64{1, 2, 3})},
		{"interp(1.5, c('t'), c('v'))", Number(3)},
		{"clip(c('v'), 2, 4)", Array([]float64{2, 2, 4, 4})},
		{"c('t') * 1j", ComplexArray([]complex128{0, 1i, 2i, 3i})},
		{"imag(c('t') * 1j)", Array([]float64{0, 1, 2, 3})},
		{"(1+1j) == (1+1j)", Number(1)},
		{"(1, 2)", Array([]float64{1, 2})},
		{"'ab' + 'c'", String("abc")},
		{"'ab' * 2", String("abab")},
		{"h('label')", String("run 7")},
		{"[1, 'a']", ListOf(Number(1), String("a"))},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got := evalString(t, tt.src)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestReductions(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"sum(c('v'))", 15},
		{"prod(c('v'))", 64},
		{"mean(c('t'))", 1.5},
		{"var(c('t'))", 1.25},
		{"std([2, 4, 4, 4, 5, 5, 7, 9])", 2},
		{"median([3, 1, 2])", 2},
		{"median([4, 1, 3, 2])", 2.5},
		{"min(c('v'))", 1},
		{"amax(c('v'))", 8},
		{"argmax(c('v'))", 3},
		{"argmin([3, 1, 2])", 1},
		{"sum([])", 0},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			f, ok := evalString(t, tt.src).Float()
			require.True(t, ok)
			assert.InDelta(t, tt.want, f, 1e-12)
		})
	}

	f, _ := evalString(t, "max([1, nan, 3])").Float()
	assert.True(t, math.IsNaN(f))
	f, _ = evalString(t, "median([nan, 1, 2])").Float()
	assert.True(t, math.IsNaN(f))

	assert.True(t, ComplexNumber(4+2i).Equal(evalString(t, "sum([1+1j, 3+1j])")))
}

func TestEvaluationErrors(t *testing.T) {
	e := NewEngine(newFakeSource())
	for _, bad := range []string{
		"undefined_name",
		"c('missing')",
		"h('missing')",
		"[1, 2, 3] + [1, 2]",
		"sin(1, 2)",
		"mean([])",
		"var(1j)",
		"c('t')[10]",
		"c('t')[1.5]",
		"c('t')[::0]",
		"'a' - 'b'",
		"3(1)",
		"round(1, 0.5)",
		"arange(1, 2, 0)",
		"len(3)",
		"1 +",
	} {
		v, err := e.Execute(bad)
		assert.True(t, v.IsUndefined(), bad)
		assert.True(t, errors.IsType(err, errors.ErrorTypeScript), "%s: %v", bad, err)
	}
}

func TestExecuteForms(t *testing.T) {
	e := NewEngine(newFakeSource())

	v, err := e.Execute(nil)
	require.NoError(t, err)
	assert.True(t, v.IsNone())

	v, err = e.Execute(1)
	require.NoError(t, err)
	assert.True(t, Array([]float64{1, 2, 4, 8}).Equal(v))

	v, err = e.Execute(-2)
	require.NoError(t, err)
	assert.True(t, Array([]float64{0, 1, 2, 3}).Equal(v))

	_, err = e.Execute(5)
	assert.True(t, errors.IsType(err, errors.ErrorTypeScript))

	// a bare column name is returned as is
	v, err = e.Execute("v")
	require.NoError(t, err)
	assert.True(t, Array([]float64{1, 2, 4, 8}).Equal(v))

	_, err = e.Execute(3.5)
	assert.True(t, errors.IsType(err, errors.ErrorTypeScript))
}

func TestListScripts(t *testing.T) {
	e := NewEngine(newFakeSource())

	v, err := e.Execute([]string{"1 + 1", "c(0)", "h('label')"})
	require.NoError(t, err)
	require.Equal(t, KindList, v.Kind())
	require.Len(t, v.Items(), 3)
	assert.True(t, Number(2).Equal(v.Items()[0]))
	assert.True(t, Array([]float64{0, 1, 2, 3}).Equal(v.Items()[1]))
	assert.Equal(t, "run 7", v.Items()[2].Str())

	v, err = e.Execute([]any{"nope", nil, 0, "also_nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors occurred")
	assert.True(t, v.Items()[0].IsUndefined())
	assert.True(t, v.Items()[1].IsNone())
	assert.True(t, Array([]float64{0, 1, 2, 3}).Equal(v.Items()[2]))
	assert.True(t, v.Items()[3].IsUndefined())
}

func TestWhereBindings(t *testing.T) {
	tests := []struct {
		src  string
		want Value
	}{
		{"x + y where x=1; y=2", Number(3)},
		{"y where x=3; y=x*2", Number(6)},
		{"a where a=b where b=4", Number(4)},
		{"x where x=c('v')", Array([]float64{1, 2, 4, 8})},
		{"x * gain where x=c(0); gain=h('gain')", Array([]float64{0, 2, 4, 6})},
		{"x where x=1;", Number(1)},
		{"x where x = 2 ", Number(2)},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got := evalString(t, tt.src)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	e := NewEngine(newFakeSource())
	for _, bad := range []string{"x where 1=2", "x where x", "x where x=undefined_name", "x where y=1"} {
		v, err := e.Execute(bad)
		assert.True(t, v.IsUndefined(), bad)
		assert.True(t, errors.IsType(err, errors.ErrorTypeScript), bad)
	}
}

func TestDepthCap(t *testing.T) {
	deep := "a where a=b where b=c where c=d where d=1"

	v, err := NewEngine(newFakeSource(), WithMaxDepth(2)).Execute(deep)
	assert.True(t, v.IsUndefined())
	assert.True(t, errors.IsType(err, errors.ErrorTypeRecursion))

	var asked []int
	hook := func(depth int, _ string) bool {
		asked = append(asked, depth)
		return true
	}
	v, err = NewEngine(newFakeSource(), WithMaxDepth(2), OnDepthExceeded(hook)).Execute(deep)
	require.NoError(t, err)
	assert.True(t, Number(1).Equal(v))
	assert.Equal(t, []int{3, 4}, asked)

	v, err = NewEngine(newFakeSource()).Execute(deep)
	require.NoError(t, err)
	assert.True(t, Number(1).Equal(v))
}

func TestGlobals(t *testing.T) {
	e := NewEngine(newFakeSource(), WithGlobals(map[string]Value{"offset": Number(10)}))
	v, err := e.Execute("c(0) + offset")
	require.NoError(t, err)
	assert.True(t, Array([]float64{10, 11, 12, 13}).Equal(v))

	// globals are shadowed by bindings
	v, err = e.Execute("offset where offset=1")
	require.NoError(t, err)
	assert.True(t, Number(1).Equal(v))
}

func TestEngineDoesNotMutateSource(t *testing.T) {
	src := newFakeSource()
	_, err := NewEngine(src).Execute("c('t') * 0 where x=c('v')")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3}, src.columns["t"])
	assert.Equal(t, []float64{1, 2, 4, 8}, src.columns["v"])
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "[1, 2.5]", Array([]float64{1, 2.5}).String())
	assert.Equal(t, "(1-2j)", ComplexNumber(1-2i).String())
	assert.Equal(t, "[nan, inf]", Array([]float64{math.NaN(), math.Inf(1)}).String())
	assert.Equal(t, `["a", None]`, ListOf(String("a"), None).String())
	assert.Equal(t, "<undefined>", Undefined.String())
}
