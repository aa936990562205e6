package script

import (
	"math"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNone Kind = iota
	KindUndefined
	KindNumber
	KindComplex
	KindArray
	KindComplexArray
	KindString
	KindTable
	KindList
	KindFunc
)

var kindNames = [...]string{"None", "undefined", "number", "complex", "array", "complex array", "string", "table", "list", "function"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Source is the read-only view of a databox the engine evaluates against.
type Source interface {
	// Column returns a column by name or index as an array value.
	Column(key any) (Value, error)
	// Header returns a header by key fragment or index.
	Header(key any) (Value, error)
	// Len returns the number of columns.
	Len() int
	// HasColumn reports whether name is exactly a column key.
	HasColumn(name string) bool
}

// Builtin is a native function callable from scripts.
type Builtin struct {
	Name string
	Call func(args []Value) (Value, error)
}

// Value is a script value: a real or complex scalar, a real or complex
// array, a string, a list, the self table, a function, None, or Undefined
// for a result that could not be computed.
type Value struct {
	kind  Kind
	num   float64
	cpx   complex128
	arr   []float64
	carr  []complex128
	str   string
	list  []Value
	table Source
	fn    *Builtin
}

var (
	// None is the result of a nil script.
	None = Value{kind: KindNone}
	// Undefined is the result of a script that could not be evaluated.
	Undefined = Value{kind: KindUndefined}
)

func Number(f float64) Value             { return Value{kind: KindNumber, num: f} }
func ComplexNumber(c complex128) Value   { return Value{kind: KindComplex, cpx: c} }
func Array(fs []float64) Value           { return Value{kind: KindArray, arr: fs} }
func ComplexArray(cs []complex128) Value { return Value{kind: KindComplexArray, carr: cs} }
func String(s string) Value              { return Value{kind: KindString, str: s} }
func ListOf(items ...Value) Value        { return Value{kind: KindList, list: items} }
func Table(src Source) Value             { return Value{kind: KindTable, table: src} }
func Func(name string, call func([]Value) (Value, error)) Value {
	return Value{kind: KindFunc, fn: &Builtin{Name: name, Call: call}}
}

func (v Value) Kind() Kind              { return v.kind }
func (v Value) IsUndefined() bool       { return v.kind == KindUndefined }
func (v Value) IsNone() bool            { return v.kind == KindNone }
func (v Value) Str() string             { return v.str }
func (v Value) Items() []Value          { return v.list }
func (v Value) Complexes() []complex128 { return toComplexes(v) }

// IsScalar reports whether v is a real or complex number.
func (v Value) IsScalar() bool { return v.kind == KindNumber || v.kind == KindComplex }

// IsNumeric reports whether v is a number or numeric array.
func (v Value) IsNumeric() bool {
	switch v.kind {
	case KindNumber, KindComplex, KindArray, KindComplexArray:
		return true
	}
	return false
}

func (v Value) isComplex() bool { return v.kind == KindComplex || v.kind == KindComplexArray }

// Float returns a real scalar.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindComplex:
		if imag(v.cpx) == 0 {
			return real(v.cpx), true
		}
	case KindArray:
		if len(v.arr) == 1 {
			return v.arr[0], true
		}
	}
	return 0, false
}

// Floats returns the real values of v; scalars become one-element slices.
func (v Value) Floats() []float64 {
	switch v.kind {
	case KindNumber:
		return []float64{v.num}
	case KindArray:
		return v.arr
	case KindComplex:
		return []float64{real(v.cpx)}
	case KindComplexArray:
		out := make([]float64, len(v.carr))
		for i, c := range v.carr {
			out[i] = real(c)
		}
		return out
	case KindList:
		out := make([]float64, 0, len(v.list))
		for _, item := range v.list {
			out = append(out, item.Floats()...)
		}
		return out
	}
	return nil
}

func toComplexes(v Value) []complex128 {
	switch v.kind {
	case KindComplex:
		return []complex128{v.cpx}
	case KindComplexArray:
		return v.carr
	}
	fs := v.Floats()
	out := make([]complex128, len(fs))
	for i, f := range fs {
		out[i] = complex(f, 0)
	}
	return out
}

// Len returns the element count of arrays, lists, and strings, and the
// column count of a table. Scalars have length 1.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindComplexArray:
		return len(v.carr)
	case KindList:
		return len(v.list)
	case KindString:
		return len(v.str)
	case KindTable:
		return v.table.Len()
	case KindNone, KindUndefined:
		return 0
	}
	return 1
}

// Equal compares values; NaN equals NaN.
func (v Value) Equal(o Value) bool {
	if v.IsNumeric() && o.IsNumeric() {
		a, b := toComplexes(v), toComplexes(o)
		if len(a) != len(b) || v.IsScalar() != o.IsScalar() {
			return false
		}
		for i := range a {
			if !sameFloat(real(a[i]), real(b[i])) || !sameFloat(imag(a[i]), imag(b[i])) {
				return false
			}
		}
		return true
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
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
	case KindTable:
		return v.table == o.table
	case KindFunc:
		return v.fn == o.fn
	}
	return true
}

func sameFloat(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

func (v Value) String() string {
	var sb strings.Builder
	v.write(&sb)
	return sb.String()
}

func (v Value) write(sb *strings.Builder) {
	switch v.kind {
	case KindNone:
		sb.WriteString("None")
	case KindUndefined:
		sb.WriteString("<undefined>")
	case KindNumber:
		sb.WriteString(formatFloat(v.num))
	case KindComplex:
		sb.WriteString(formatComplex(v.cpx))
	case KindArray:
		sb.WriteByte('[')
		for i, f := range v.arr {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(formatFloat(f))
		}
		sb.WriteByte(']')
	case KindComplexArray:
		sb.WriteByte('[')
		for i, c := range v.carr {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(formatComplex(c))
		}
		sb.WriteByte(']')
	case KindString:
		sb.WriteString(strconv.Quote(v.str))
	case KindList:
		sb.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.write(sb)
		}
		sb.WriteByte(']')
	case KindTable:
		sb.WriteString("<self: ")
		sb.WriteString(strconv.Itoa(v.table.Len()))
		sb.WriteString(" columns>")
	case KindFunc:
		sb.WriteString("<function ")
		sb.WriteString(v.fn.Name)
		sb.WriteByte('>')
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatComplex(c complex128) string {
	im := formatFloat(imag(c))
	if !strings.HasPrefix(im, "-") {
		im = "+" + im
	}
	return "(" + formatFloat(real(c)) + im + "j)"
}

// normalize folds complex results with no imaginary part back to reals.
func normalize(v Value) Value {
	switch v.kind {
	case KindComplex:
		if imag(v.cpx) == 0 {
			return Number(real(v.cpx))
		}
	case KindComplexArray:
		for _, c := range v.carr {
			if imag(c) != 0 {
				return v
			}
		}
		out := make([]float64, len(v.carr))
		for i, c := range v.carr {
			out[i] = real(c)
		}
		return Array(out)
	}
	return v
}
