package databox

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labkit/databox/pkg/config"
	"github.com/labkit/databox/pkg/errors"
	"github.com/labkit/databox/pkg/script"
	"github.com/labkit/databox/pkg/testutil"
)

func TestRegressionScript(t *testing.T) {
	d := loadText(t, "regression.txt", testutil.Regression, LoadOptions{})
	before := d.Clone()

	v, err := d.ExecuteScript(testutil.RegressionScript)
	require.NoError(t, err)
	require.Equal(t, script.KindArray, v.Kind())

	got := make([]float64, 0, v.Len())
	for _, f := range v.Floats() {
		got = append(got, math.Round(f*10)/10)
	}
	assert.Equal(t, testutil.RegressionExpected, got)
	assert.True(t, d.Equal(before), "scripts never mutate the databox")
}

func TestScriptForms(t *testing.T) {
	d := loadText(t, "sweep.txt", testutil.SweepTSV, LoadOptions{})

	v, err := d.ExecuteScript(nil)
	require.NoError(t, err)
	assert.True(t, v.IsNone())

	v, err = d.ExecuteScript(0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, v.Floats())

	v, err = d.ExecuteScript("y")
	require.NoError(t, err)
	assert.Equal(t, []float64{-0.5, -0.25, -0.125}, v.Floats())

	v, err = d.ExecuteScript([]string{"c('x') + c('y')", "f", "h('temp')"})
	require.NoError(t, err)
	require.Len(t, v.Items(), 3)
	assert.Equal(t, []float64{0, 0, 0}, v.Items()[0].Floats())
	assert.Equal(t, []float64{1, 2, 3}, v.Items()[1].Floats())
	temp, ok := v.Items()[2].Float()
	assert.True(t, ok)
	assert.Equal(t, 4.2, temp)

	// bare column names are only visible as whole scripts
	v, err = d.ExecuteScript("x + 1")
	assert.True(t, v.IsUndefined())
	assert.True(t, errors.IsType(err, errors.ErrorTypeScript))
}

func TestScriptHeaders(t *testing.T) {
	d := loadText(t, "sweep.txt", testutil.SweepTSV, LoadOptions{})

	v, err := d.ExecuteScript("h('gains') * c('f')")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 5, 30}, v.Floats())

	v, err = d.ExecuteScript("h('freq')[1]")
	require.NoError(t, err)
	f, _ := v.Float()
	assert.Equal(t, 200.0, f)

	v, err = d.ExecuteScript("h(0)")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", v.Str())
}

func TestScriptComplexColumn(t *testing.T) {
	d := loadText(t, "complex.txt", testutil.ComplexTSV, LoadOptions{})

	v, err := d.ExecuteScript("abs(c('z'))")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{math.Sqrt(5), 5}, v.Floats(), 1e-12)

	v, err = d.ExecuteScript("real(z * conj(z)) where z=c(1)")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{5, 25}, v.Floats(), 1e-12)
}

func TestScriptConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Script.Globals = map[string]float64{"scale": 10}
	cfg.Script.MaxDepth = 1

	d := New(WithConfig(cfg), WithLogger(testutil.TestLogger(t)))
	require.NoError(t, d.InsertColumn("x", []float64{1, 2}, -1))

	v, err := d.ExecuteScript("c(0) * scale")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20}, v.Floats())

	_, err = d.ExecuteScript("a where a=b where b=1")
	assert.True(t, errors.IsType(err, errors.ErrorTypeRecursion))

	v, err = d.ExecuteScript("a where a=b where b=1", script.WithMaxDepth(5))
	require.NoError(t, err)
	f, _ := v.Float()
	assert.Equal(t, 1.0, f)
}

func TestHeaderValue(t *testing.T) {
	assert.True(t, script.None.Equal(HeaderValue(None)))
	assert.True(t, script.Number(1).Equal(HeaderValue(Bool(true))))
	assert.True(t, script.ComplexNumber(2i).Equal(HeaderValue(Complex(2i))))
	assert.True(t, script.Array([]float64{1, 2}).Equal(HeaderValue(List(Int(1), Float(2)))))
	assert.True(t, script.ComplexArray([]complex128{1, 1i}).Equal(HeaderValue(List(Int(1), Complex(1i)))))

	mixed := HeaderValue(List(Int(1), String("a")))
	assert.Equal(t, script.KindList, mixed.Kind())
}
