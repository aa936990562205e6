package databox

import (
	"math"
	"math/cmplx"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindComplex
	KindString
	KindList
)

// String returns the kind name used in diagnostics.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindComplex:
		return "complex"
	case KindString:
		return "string"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is a header value: a scalar, a string, or a (possibly nested) list.
// Nested lists carry N-dimensional arrays.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	c    complex128
	s    string
	list []Value
}

// None is the absent value.
var None = Value{kind: KindNone}

func Bool(b bool) Value          { return Value{kind: KindBool, b: b} }
func Int(i int64) Value          { return Value{kind: KindInt, i: i} }
func Float(f float64) Value      { return Value{kind: KindFloat, f: f} }
func Complex(c complex128) Value { return Value{kind: KindComplex, c: c} }
func String(s string) Value      { return Value{kind: KindString, s: s} }
func List(items ...Value) Value  { return Value{kind: KindList, list: items} }

// Floats builds a list of floats.
func Floats(fs []float64) Value {
	items := make([]Value, len(fs))
	for i, f := range fs {
		items[i] = Float(f)
	}
	return List(items...)
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNone() bool   { return v.kind == KindNone }
func (v Value) Bool() bool     { return v.b }
func (v Value) Int() int64     { return v.i }
func (v Value) Str() string    { return v.s }
func (v Value) Items() []Value { return v.list }

// IsNumeric reports whether v is a real or complex scalar.
func (v Value) IsNumeric() bool {
	switch v.kind {
	case KindInt, KindFloat, KindComplex, KindBool:
		return true
	}
	return false
}

// Float returns the real part of a numeric value; NaN otherwise.
func (v Value) Float() float64 {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt:
		return float64(v.i)
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindComplex:
		return real(v.c)
	}
	return math.NaN()
}

// AsComplex widens any numeric value to complex128.
func (v Value) AsComplex() complex128 {
	if v.kind == KindComplex {
		return v.c
	}
	return complex(v.Float(), 0)
}

// Shape returns the dimensions of a rectangular nested list. Scalars have an
// empty shape. Ragged lists report the length of their first level only.
func (v Value) Shape() []int {
	if v.kind != KindList {
		return nil
	}
	shape := []int{len(v.list)}
	if len(v.list) == 0 {
		return shape
	}
	inner := v.list[0].Shape()
	for _, item := range v.list[1:] {
		if !equalInts(inner, item.Shape()) {
			return shape
		}
	}
	return append(shape, inner...)
}

// Flatten returns the numeric leaves of v in row-major order.
func (v Value) Flatten() []float64 {
	if v.kind != KindList {
		return []float64{v.Float()}
	}
	out := make([]float64, 0, len(v.list))
	for _, item := range v.list {
		out = append(out, item.Flatten()...)
	}
	return out
}

// Equal compares values structurally. NaN equals NaN, and numeric kinds
// compare by value so Int(1) equals Float(1).
func (v Value) Equal(o Value) bool {
	if v.IsNumeric() && o.IsNumeric() {
		return complexEqual(v.AsComplex(), o.AsComplex())
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNone:
		return true
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func floatEqual(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return a == b
}

func complexEqual(a, b complex128) bool {
	return floatEqual(real(a), real(b)) && floatEqual(imag(a), imag(b))
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Repr renders v as a literal that ParseLiteral reads back.
func (v Value) Repr() string {
	var sb strings.Builder
	v.writeRepr(&sb)
	return sb.String()
}

// String implements fmt.Stringer. Strings print unquoted.
func (v Value) String() string {
	if v.kind == KindString {
		return v.s
	}
	return v.Repr()
}

func (v Value) writeRepr(sb *strings.Builder) {
	switch v.kind {
	case KindNone:
		sb.WriteString("None")
	case KindBool:
		if v.b {
			sb.WriteString("True")
		} else {
			sb.WriteString("False")
		}
	case KindInt:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		sb.WriteString(FormatFloat(v.f))
	case KindComplex:
		sb.WriteString(FormatComplex(v.c))
	case KindString:
		sb.WriteString(quote(v.s))
	case KindList:
		sb.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.writeRepr(sb)
		}
		sb.WriteByte(']')
	}
}

// FormatFloat renders f with the shortest representation that round-trips,
// keeping a trailing ".0" on integral values.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// FormatComplex renders c as "(re+imj)". A zero real part is omitted.
func FormatComplex(c complex128) string {
	re, im := real(c), imag(c)
	imStr := strconv.FormatFloat(im, 'g', -1, 64)
	switch {
	case math.IsNaN(im):
		imStr = "nan"
	case math.IsInf(im, 1):
		imStr = "inf"
	case math.IsInf(im, -1):
		imStr = "-inf"
	}
	if re == 0 && !math.Signbit(re) {
		return imStr + "j"
	}
	sign := "+"
	if strings.HasPrefix(imStr, "-") {
		sign = ""
	}
	reStr := strconv.FormatFloat(re, 'g', -1, 64)
	if math.IsNaN(re) || math.IsInf(re, 0) {
		reStr = FormatFloat(re)
	}
	return "(" + reStr + sign + imStr + "j)"
}

func quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '\'':
			sb.WriteString(`\'`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}

// isNaNValue reports whether v is a real or complex NaN.
func isNaNValue(v Value) bool {
	return v.IsNumeric() && cmplx.IsNaN(v.AsComplex())
}
