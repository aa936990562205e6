package databox

import (
	"math"
	"math/cmplx"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow/float16"

	"github.com/labkit/databox/pkg/errors"
)

// DType tags the element type of a Column.
type DType int

const (
	Float64 DType = iota
	Float32
	Float16
	Complex128
	Str
)

var dtypeNames = map[DType]string{
	Float64:    "float64",
	Float32:    "float32",
	Float16:    "float16",
	Complex128: "complex128",
	Str:        "str",
}

// String returns the name written into binary blocks.
func (d DType) String() string {
	if n, ok := dtypeNames[d]; ok {
		return n
	}
	return "unknown"
}

// IsReal reports whether d holds real floating-point values.
func (d DType) IsReal() bool { return d == Float64 || d == Float32 || d == Float16 }

// ParseDType maps a dtype name to a DType. "complex" and "complex64" map to
// Complex128, "float" to Float64.
func ParseDType(name string) (DType, error) {
	switch name {
	case "float64", "float", "f8", "<f8":
		return Float64, nil
	case "float32", "f4", "<f4":
		return Float32, nil
	case "float16", "f2", "<f2":
		return Float16, nil
	case "complex128", "complex", "complex64", "c16", "<c16":
		return Complex128, nil
	case "str", "string", "object":
		return Str, nil
	}
	return Float64, errors.Newf(errors.ErrorTypeValidation, "unknown dtype %q", name)
}

// Column is a typed array. Real dtypes keep their values in a float64 slice
// where every element is exactly representable in the dtype.
type Column struct {
	dtype DType
	reals []float64
	cplx  []complex128
	strs  []string
}

// NewColumn returns an empty column of the given dtype.
func NewColumn(dt DType) *Column {
	return &Column{dtype: dt}
}

// FloatColumn copies values into a Float64 column.
func FloatColumn(values []float64) *Column {
	return &Column{dtype: Float64, reals: append([]float64(nil), values...)}
}

// ComplexColumn copies values into a Complex128 column.
func ComplexColumn(values []complex128) *Column {
	return &Column{dtype: Complex128, cplx: append([]complex128(nil), values...)}
}

// StringColumn copies values into a Str column.
func StringColumn(values []string) *Column {
	return &Column{dtype: Str, strs: append([]string(nil), values...)}
}

// DType returns the element type.
func (c *Column) DType() DType { return c.dtype }

// Len returns the number of elements.
func (c *Column) Len() int {
	switch {
	case c.dtype == Complex128:
		return len(c.cplx)
	case c.dtype == Str:
		return len(c.strs)
	default:
		return len(c.reals)
	}
}

// At returns element i as a Value.
func (c *Column) At(i int) Value {
	switch {
	case c.dtype == Complex128:
		return Complex(c.cplx[i])
	case c.dtype == Str:
		return String(c.strs[i])
	default:
		return Float(c.reals[i])
	}
}

// Floats returns a copy of the real values. Complex columns yield their real
// parts and string columns parse each element, NaN on failure.
func (c *Column) Floats() []float64 {
	out := make([]float64, c.Len())
	switch {
	case c.dtype == Complex128:
		for i, v := range c.cplx {
			out[i] = real(v)
		}
	case c.dtype == Str:
		for i, s := range c.strs {
			f, ok := ParseFloat(s)
			if !ok {
				f = math.NaN()
			}
			out[i] = f
		}
	default:
		copy(out, c.reals)
	}
	return out
}

// Complexes returns a copy of the values widened to complex128.
func (c *Column) Complexes() []complex128 {
	if c.dtype == Complex128 {
		return append([]complex128(nil), c.cplx...)
	}
	fs := c.Floats()
	out := make([]complex128, len(fs))
	for i, f := range fs {
		out[i] = complex(f, 0)
	}
	return out
}

// Strings returns the values formatted as text.
func (c *Column) Strings() []string {
	if c.dtype == Str {
		return append([]string(nil), c.strs...)
	}
	out := make([]string, c.Len())
	for i := range out {
		out[i] = c.format(i)
	}
	return out
}

// format renders element i as an ASCII data token.
func (c *Column) format(i int) string {
	switch {
	case c.dtype == Complex128:
		return FormatComplex(c.cplx[i])
	case c.dtype == Str:
		return c.strs[i]
	default:
		f := c.reals[i]
		if math.IsNaN(f) {
			return "nan"
		}
		if math.IsInf(f, 0) {
			return FormatFloat(f)
		}
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

// Append adds one element, converting it to the column dtype.
func (c *Column) Append(v Value) error {
	switch {
	case c.dtype == Complex128:
		if !v.IsNumeric() {
			return errors.Newf(errors.ErrorTypeValidation, "cannot append %s to complex column", v.Kind())
		}
		c.cplx = append(c.cplx, v.AsComplex())
	case c.dtype == Str:
		c.strs = append(c.strs, v.String())
	default:
		if v.Kind() == KindComplex && imag(v.AsComplex()) != 0 {
			return errors.Newf(errors.ErrorTypeValidation, "cannot append complex value to %s column", c.dtype)
		}
		if !v.IsNumeric() {
			return errors.Newf(errors.ErrorTypeValidation, "cannot append %s to %s column", v.Kind(), c.dtype)
		}
		c.reals = append(c.reals, roundTo(c.dtype, v.Float()))
	}
	return nil
}

// Pop removes and returns element i. Negative indices count from the end.
func (c *Column) Pop(i int) (Value, error) {
	n := c.Len()
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return None, errors.Newf(errors.ErrorTypeNotFound, "row %d out of range for length %d", i, n)
	}
	v := c.At(i)
	switch {
	case c.dtype == Complex128:
		c.cplx = append(c.cplx[:i], c.cplx[i+1:]...)
	case c.dtype == Str:
		c.strs = append(c.strs[:i], c.strs[i+1:]...)
	default:
		c.reals = append(c.reals[:i], c.reals[i+1:]...)
	}
	return v, nil
}

// PadNaN extends the column with NaN until it has n elements. String
// columns are padded with "nan".
func (c *Column) PadNaN(n int) {
	for c.Len() < n {
		switch {
		case c.dtype == Complex128:
			c.cplx = append(c.cplx, complex(math.NaN(), 0))
		case c.dtype == Str:
			c.strs = append(c.strs, "nan")
		default:
			c.reals = append(c.reals, math.NaN())
		}
	}
}

// StripNaNs removes every NaN element. String columns are left alone.
func (c *Column) StripNaNs() int {
	removed := 0
	switch {
	case c.dtype == Complex128:
		kept := c.cplx[:0]
		for _, v := range c.cplx {
			if cmplx.IsNaN(v) {
				removed++
				continue
			}
			kept = append(kept, v)
		}
		c.cplx = kept
	case c.dtype == Str:
	default:
		kept := c.reals[:0]
		for _, v := range c.reals {
			if math.IsNaN(v) {
				removed++
				continue
			}
			kept = append(kept, v)
		}
		c.reals = kept
	}
	return removed
}

// AsType returns a copy converted to dt. Complex values with a non-zero
// imaginary part cannot become real.
func (c *Column) AsType(dt DType) (*Column, error) {
	if dt == c.dtype {
		return c.Clone(), nil
	}
	out := NewColumn(dt)
	switch {
	case dt == Str:
		out.strs = c.Strings()
	case dt == Complex128:
		if c.dtype == Str {
			out.cplx = make([]complex128, len(c.strs))
			for i, s := range c.strs {
				v, _, ok := parseNumeric(s)
				if !ok {
					return nil, errors.Newf(errors.ErrorTypeValidation, "cannot convert %q to complex128", s)
				}
				out.cplx[i] = v
			}
			break
		}
		out.cplx = c.Complexes()
	default:
		switch c.dtype {
		case Complex128:
			out.reals = make([]float64, len(c.cplx))
			for i, v := range c.cplx {
				if imag(v) != 0 && !cmplx.IsNaN(v) {
					return nil, errors.Newf(errors.ErrorTypeValidation,
						"cannot convert complex value %s to %s", FormatComplex(v), dt)
				}
				out.reals[i] = roundTo(dt, real(v))
			}
		case Str:
			out.reals = make([]float64, len(c.strs))
			for i, s := range c.strs {
				f, ok := ParseFloat(s)
				if !ok {
					return nil, errors.Newf(errors.ErrorTypeValidation, "cannot convert %q to %s", s, dt)
				}
				out.reals[i] = roundTo(dt, f)
			}
		default:
			out.reals = make([]float64, len(c.reals))
			for i, f := range c.reals {
				out.reals[i] = roundTo(dt, f)
			}
		}
	}
	return out, nil
}

// Clone returns a deep copy.
func (c *Column) Clone() *Column {
	return &Column{
		dtype: c.dtype,
		reals: append([]float64(nil), c.reals...),
		cplx:  append([]complex128(nil), c.cplx...),
		strs:  append([]string(nil), c.strs...),
	}
}

// Equal compares element values. Dtypes may differ; NaN equals NaN.
func (c *Column) Equal(o *Column) bool {
	if c == nil || o == nil {
		return c == o
	}
	n := c.Len()
	if n != o.Len() {
		return false
	}
	if c.dtype == Str || o.dtype == Str {
		a, b := c.Strings(), o.Strings()
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}
	if c.dtype.IsReal() && o.dtype.IsReal() {
		for i := 0; i < n; i++ {
			if !floatEqual(c.reals[i], o.reals[i]) {
				return false
			}
		}
		return true
	}
	a, b := c.Complexes(), o.Complexes()
	for i := range a {
		if !complexEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// roundTo rounds f to the nearest value representable in dt.
func roundTo(dt DType, f float64) float64 {
	switch dt {
	case Float32:
		return float64(float32(f))
	case Float16:
		return float64(float16.New(float32(f)).Float32())
	}
	return f
}
