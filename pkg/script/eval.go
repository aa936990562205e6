package script

import (
	"math"
	"math/cmplx"
	"strings"

	"github.com/labkit/databox/pkg/errors"
)

// Env is one scope of name bindings. Lookups walk up to the root.
type Env struct {
	parent *Env
	vars   map[string]Value
}

// NewEnv creates a scope whose lookups fall back to parent.
func NewEnv(parent *Env) *Env {
	return &Env{parent: parent, vars: make(map[string]Value)}
}

// Define binds name in this scope.
func (e *Env) Define(name string, v Value) { e.vars[name] = v }

// Lookup finds name in this scope or an enclosing one.
func (e *Env) Lookup(name string) (Value, bool) {
	for env := e; env != nil; env = env.parent {
		if v, ok := env.vars[name]; ok {
			return v, true
		}
	}
	return Undefined, false
}

// moduleAliases let scripts written against numpy call np.sin and friends.
var moduleAliases = []string{"np.", "numpy.", "_n."}

// Eval evaluates a parsed expression in env.
func Eval(n Node, env *Env) (Value, error) {
	switch n := n.(type) {
	case *NumberLit:
		return Number(n.Value), nil
	case *ImagLit:
		return ComplexNumber(complex(0, n.Value)), nil
	case *StringLit:
		return String(n.Value), nil
	case *Ident:
		if v, ok := env.Lookup(n.Name); ok {
			return v, nil
		}
		for _, prefix := range moduleAliases {
			if name, ok := strings.CutPrefix(n.Name, prefix); ok {
				if v, found := env.Lookup(name); found {
					return v, nil
				}
			}
		}
		return Undefined, evalErrorf(n, "name %q is not defined", n.Name)
	case *ListLit:
		items := make([]Value, len(n.Items))
		for i, item := range n.Items {
			v, err := Eval(item, env)
			if err != nil {
				return Undefined, err
			}
			items[i] = v
		}
		return packList(items), nil
	case *Unary:
		x, err := Eval(n.X, env)
		if err != nil {
			return Undefined, err
		}
		return unaryOp(n, x)
	case *Binary:
		l, err := Eval(n.L, env)
		if err != nil {
			return Undefined, err
		}
		r, err := Eval(n.R, env)
		if err != nil {
			return Undefined, err
		}
		return binaryOp(n, l, r)
	case *Call:
		fn, err := Eval(n.Fn, env)
		if err != nil {
			return Undefined, err
		}
		if fn.kind != KindFunc {
			return Undefined, evalErrorf(n, "%s is not callable", fn.kind)
		}
		args := make([]Value, len(n.Args))
		for i, a := range n.Args {
			if args[i], err = Eval(a, env); err != nil {
				return Undefined, err
			}
		}
		v, err := fn.fn.Call(args)
		if err != nil {
			return Undefined, errors.Wrap(err, errors.ErrorTypeScript, "call to "+fn.fn.Name+" failed").
				WithDetail("position", n.At)
		}
		return v, nil
	case *Subscript:
		x, err := Eval(n.X, env)
		if err != nil {
			return Undefined, err
		}
		if s, ok := n.Index.(*Slice); ok {
			return sliceValue(s, x, env)
		}
		idx, err := Eval(n.Index, env)
		if err != nil {
			return Undefined, err
		}
		return index(n, x, idx)
	case *Slice:
		return Undefined, evalErrorf(n, "slice outside a subscript")
	}
	return Undefined, errors.Newf(errors.ErrorTypeInternal, "unknown node %T", n)
}

func evalErrorf(n Node, format string, args ...interface{}) error {
	return errors.Newf(errors.ErrorTypeScript, format, args...).WithDetail("position", n.Pos())
}

// packList turns a list of numeric scalars into an array and keeps
// anything else as a list.
func packList(items []Value) Value {
	complexSeen := false
	for _, item := range items {
		if !item.IsScalar() {
			return ListOf(items...)
		}
		complexSeen = complexSeen || item.kind == KindComplex
	}
	if complexSeen {
		out := make([]complex128, len(items))
		for i, item := range items {
			out[i] = toComplexes(item)[0]
		}
		return ComplexArray(out)
	}
	out := make([]float64, len(items))
	for i, item := range items {
		out[i] = item.num
	}
	return Array(out)
}

func unaryOp(n *Unary, x Value) (Value, error) {
	switch n.Op {
	case MINUS:
		return mapNumeric(x, func(f float64) float64 { return -f }, func(c complex128) complex128 { return -c })
	case PLUS:
		if !x.IsNumeric() {
			return Undefined, evalErrorf(n, "bad operand type for unary +: %s", x.kind)
		}
		return x, nil
	case NOT:
		return mapNumeric(x, func(f float64) float64 { return boolFloat(f == 0) }, nil)
	}
	return Undefined, evalErrorf(n, "unknown unary operator %s", n.Op)
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// mapNumeric applies an element-wise function. A nil cf rejects complex
// input.
func mapNumeric(x Value, rf func(float64) float64, cf func(complex128) complex128) (Value, error) {
	switch x.kind {
	case KindNumber:
		return Number(rf(x.num)), nil
	case KindArray:
		out := make([]float64, len(x.arr))
		for i, f := range x.arr {
			out[i] = rf(f)
		}
		return Array(out), nil
	case KindComplex, KindComplexArray:
		if cf == nil {
			return Undefined, errors.Newf(errors.ErrorTypeScript, "operation not supported for %s", x.kind)
		}
		if x.kind == KindComplex {
			return ComplexNumber(cf(x.cpx)), nil
		}
		out := make([]complex128, len(x.carr))
		for i, c := range x.carr {
			out[i] = cf(c)
		}
		return ComplexArray(out), nil
	case KindList:
		return mapNumeric(packList(x.list), rf, cf)
	}
	return Undefined, errors.Newf(errors.ErrorTypeScript, "expected a number or array, got %s", x.kind)
}

// broadcastLen returns the element count two operands broadcast to, and
// whether the result is an array.
func broadcastLen(l, r Value) (int, bool, error) {
	la, ra := !l.IsScalar(), !r.IsScalar()
	ln, rn := l.Len(), r.Len()
	switch {
	case !la && !ra:
		return 1, false, nil
	case !la:
		return rn, true, nil
	case !ra:
		return ln, true, nil
	case ln == rn:
		return ln, true, nil
	case ln == 1:
		return rn, true, nil
	case rn == 1:
		return ln, true, nil
	}
	return 0, false, errors.Newf(errors.ErrorTypeScript,
		"operands could not be broadcast together with shapes (%d,) (%d,)", ln, rn)
}

func at[T any](xs []T, i int) T {
	if len(xs) == 1 {
		return xs[0]
	}
	return xs[i]
}

// broadcast applies an element-wise binary function with numpy broadcasting.
// A nil cf rejects complex operands.
func broadcast(l, r Value, rf func(a, b float64) float64, cf func(a, b complex128) complex128) (Value, error) {
	if l.kind == KindList {
		l = packList(l.list)
	}
	if r.kind == KindList {
		r = packList(r.list)
	}
	if !l.IsNumeric() || !r.IsNumeric() {
		return Undefined, errors.Newf(errors.ErrorTypeScript, "unsupported operand types %s and %s", l.kind, r.kind)
	}
	n, isArray, err := broadcastLen(l, r)
	if err != nil {
		return Undefined, err
	}

	if l.isComplex() || r.isComplex() {
		if cf == nil {
			return Undefined, errors.New(errors.ErrorTypeScript, "operation not supported for complex values")
		}
		a, b := toComplexes(l), toComplexes(r)
		out := make([]complex128, n)
		for i := range out {
			out[i] = cf(at(a, i), at(b, i))
		}
		if !isArray {
			return ComplexNumber(out[0]), nil
		}
		return ComplexArray(out), nil
	}

	a, b := l.Floats(), r.Floats()
	out := make([]float64, n)
	for i := range out {
		out[i] = rf(at(a, i), at(b, i))
	}
	if !isArray {
		return Number(out[0]), nil
	}
	return Array(out), nil
}

func binaryOp(n *Binary, l, r Value) (Value, error) {
	if l.kind == KindString || r.kind == KindString {
		return stringOp(n, l, r)
	}
	var (
		rf func(a, b float64) float64
		cf func(a, b complex128) complex128
	)
	switch n.Op {
	case PLUS:
		rf = func(a, b float64) float64 { return a + b }
		cf = func(a, b complex128) complex128 { return a + b }
	case MINUS:
		rf = func(a, b float64) float64 { return a - b }
		cf = func(a, b complex128) complex128 { return a - b }
	case STAR:
		rf = func(a, b float64) float64 { return a * b }
		cf = func(a, b complex128) complex128 { return a * b }
	case SLASH:
		rf = func(a, b float64) float64 { return a / b }
		cf = func(a, b complex128) complex128 { return a / b }
	case DSLASH:
		rf = func(a, b float64) float64 { return math.Floor(a / b) }
	case PERCENT:
		rf = pyMod
	case POW:
		rf = math.Pow
		cf = cmplx.Pow
	case EQ:
		rf = func(a, b float64) float64 { return boolFloat(a == b) }
		cf = func(a, b complex128) complex128 { return complex(boolFloat(a == b), 0) }
	case NEQ:
		rf = func(a, b float64) float64 { return boolFloat(a != b) }
		cf = func(a, b complex128) complex128 { return complex(boolFloat(a != b), 0) }
	case LT:
		rf = func(a, b float64) float64 { return boolFloat(a < b) }
	case LTE:
		rf = func(a, b float64) float64 { return boolFloat(a <= b) }
	case GT:
		rf = func(a, b float64) float64 { return boolFloat(a > b) }
	case GTE:
		rf = func(a, b float64) float64 { return boolFloat(a >= b) }
	case AND:
		rf = func(a, b float64) float64 { return boolFloat(a != 0 && b != 0) }
	case OR:
		rf = func(a, b float64) float64 { return boolFloat(a != 0 || b != 0) }
	default:
		return Undefined, evalErrorf(n, "unknown operator %s", n.Op)
	}
	v, err := broadcast(l, r, rf, cf)
	if err != nil {
		return Undefined, errors.Wrap(err, errors.ErrorTypeScript, "bad operands for "+n.Op.String()).
			WithDetail("position", n.At)
	}
	if n.Op == EQ || n.Op == NEQ {
		// comparisons of complex operands still yield real truth values
		return normalize(v), nil
	}
	return v, nil
}

// pyMod is the floored modulo: the result takes the sign of b.
func pyMod(a, b float64) float64 {
	m := math.Mod(a, b)
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}

func stringOp(n *Binary, l, r Value) (Value, error) {
	if l.kind == KindString && r.kind == KindString {
		switch n.Op {
		case PLUS:
			return String(l.str + r.str), nil
		case EQ:
			return Number(boolFloat(l.str == r.str)), nil
		case NEQ:
			return Number(boolFloat(l.str != r.str)), nil
		}
	}
	if n.Op == STAR {
		s, count := l, r
		if s.kind != KindString {
			s, count = r, l
		}
		if k, ok := count.Float(); ok && count.kind == KindNumber {
			return String(strings.Repeat(s.str, max(int(k), 0))), nil
		}
	}
	return Undefined, evalErrorf(n, "unsupported operand types for %s: %s and %s", n.Op, l.kind, r.kind)
}

func index(n Node, x, idx Value) (Value, error) {
	if x.kind == KindTable {
		switch idx.kind {
		case KindString:
			return x.table.Column(idx.str)
		case KindNumber:
			i, err := wholeIndex(n, idx)
			if err != nil {
				return Undefined, err
			}
			return x.table.Column(i)
		}
		return Undefined, evalErrorf(n, "self must be indexed by a column name or index, got %s", idx.kind)
	}

	if idx.kind == KindArray || idx.kind == KindList {
		positions := idx.Floats()
		items := make([]Value, len(positions))
		for k, p := range positions {
			v, err := index(n, x, Number(p))
			if err != nil {
				return Undefined, err
			}
			items[k] = v
		}
		return packList(items), nil
	}

	i, err := wholeIndex(n, idx)
	if err != nil {
		return Undefined, err
	}
	length := x.Len()
	if x.IsScalar() || x.kind == KindNone || x.kind == KindUndefined || x.kind == KindFunc {
		return Undefined, evalErrorf(n, "%s is not subscriptable", x.kind)
	}
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		return Undefined, evalErrorf(n, "index %d out of range for length %d", i, length)
	}
	switch x.kind {
	case KindArray:
		return Number(x.arr[i]), nil
	case KindComplexArray:
		return ComplexNumber(x.carr[i]), nil
	case KindList:
		return x.list[i], nil
	case KindString:
		return String(x.str[i : i+1]), nil
	}
	return Undefined, evalErrorf(n, "%s is not subscriptable", x.kind)
}

func wholeIndex(n Node, idx Value) (int, error) {
	f, ok := idx.Float()
	if !ok || idx.kind != KindNumber || f != math.Trunc(f) {
		return 0, evalErrorf(n, "indices must be integers, got %s", idx)
	}
	return int(f), nil
}

func sliceValue(s *Slice, x Value, env *Env) (Value, error) {
	bound := func(part Node) (int, bool, error) {
		if part == nil {
			return 0, false, nil
		}
		v, err := Eval(part, env)
		if err != nil {
			return 0, false, err
		}
		i, err := wholeIndex(part, v)
		return i, true, err
	}
	start, hasStart, err := bound(s.Start)
	if err != nil {
		return Undefined, err
	}
	stop, hasStop, err := bound(s.Stop)
	if err != nil {
		return Undefined, err
	}
	step, hasStep, err := bound(s.Step)
	if err != nil {
		return Undefined, err
	}
	if !hasStep {
		step = 1
	}
	if step == 0 {
		return Undefined, evalErrorf(s, "slice step cannot be zero")
	}

	if x.kind == KindTable {
		items := make([]Value, x.table.Len())
		for i := range items {
			col, err := x.table.Column(i)
			if err != nil {
				return Undefined, err
			}
			items[i] = col
		}
		x = ListOf(items...)
	}
	positions := slicePositions(x.Len(), start, stop, step, hasStart, hasStop)
	switch x.kind {
	case KindArray:
		out := make([]float64, len(positions))
		for k, i := range positions {
			out[k] = x.arr[i]
		}
		return Array(out), nil
	case KindComplexArray:
		out := make([]complex128, len(positions))
		for k, i := range positions {
			out[k] = x.carr[i]
		}
		return ComplexArray(out), nil
	case KindList:
		out := make([]Value, len(positions))
		for k, i := range positions {
			out[k] = x.list[i]
		}
		return ListOf(out...), nil
	case KindString:
		var sb strings.Builder
		for _, i := range positions {
			sb.WriteByte(x.str[i])
		}
		return String(sb.String()), nil
	}
	return Undefined, evalErrorf(s, "%s cannot be sliced", x.kind)
}

// slicePositions resolves start:stop:step against length the way Python
// does, clamping out-of-range bounds.
func slicePositions(length, start, stop, step int, hasStart, hasStop bool) []int {
	clamp := func(i, lo, hi int) int {
		if i < 0 {
			i += length
		}
		return min(max(i, lo), hi)
	}
	var out []int
	if step > 0 {
		lo, hi := 0, length
		if hasStart {
			lo = clamp(start, 0, length)
		}
		if hasStop {
			hi = clamp(stop, 0, length)
		}
		for i := lo; i < hi; i += step {
			out = append(out, i)
		}
		return out
	}
	lo, hi := length-1, -1
	if hasStart {
		lo = clamp(start, -1, length-1)
	}
	if hasStop {
		hi = clamp(stop, -1, length-1)
	}
	for i := lo; i > hi; i += step {
		out = append(out, i)
	}
	return out
}
