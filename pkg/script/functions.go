package script

import (
	"math"
	"math/cmplx"
	"sort"

	"github.com/labkit/databox/pkg/errors"
)

// Constants returns the numeric constants every script sees.
func Constants() map[string]Value {
	return map[string]Value{
		"pi":  Number(math.Pi),
		"e":   Number(math.E),
		"nan": Number(math.NaN()),
		"NaN": Number(math.NaN()),
		"inf": Number(math.Inf(1)),
		"j":   ComplexNumber(1i),
	}
}

// Builtins returns the numeric function namespace.
func Builtins() map[string]Value {
	fns := map[string]Value{}
	def := func(name string, call func([]Value) (Value, error)) {
		fns[name] = Func(name, call)
	}

	elementwise := map[string]struct {
		rf func(float64) float64
		cf func(complex128) complex128
	}{
		"sin":     {math.Sin, cmplx.Sin},
		"cos":     {math.Cos, cmplx.Cos},
		"tan":     {math.Tan, cmplx.Tan},
		"arcsin":  {math.Asin, cmplx.Asin},
		"arccos":  {math.Acos, cmplx.Acos},
		"arctan":  {math.Atan, cmplx.Atan},
		"sinh":    {math.Sinh, cmplx.Sinh},
		"cosh":    {math.Cosh, cmplx.Cosh},
		"tanh":    {math.Tanh, cmplx.Tanh},
		"exp":     {math.Exp, cmplx.Exp},
		"log":     {math.Log, cmplx.Log},
		"log10":   {math.Log10, cmplx.Log10},
		"log2":    {math.Log2, nil},
		"sqrt":    {math.Sqrt, cmplx.Sqrt},
		"floor":   {math.Floor, nil},
		"ceil":    {math.Ceil, nil},
		"conj":    {func(f float64) float64 { return f }, cmplx.Conj},
		"isnan":   {func(f float64) float64 { return boolFloat(math.IsNaN(f)) }, nil},
		"isinf":   {func(f float64) float64 { return boolFloat(math.IsInf(f, 0)) }, nil},
		"degrees": {func(f float64) float64 { return f * 180 / math.Pi }, nil},
		"radians": {func(f float64) float64 { return f * math.Pi / 180 }, nil},
		"sign": {func(f float64) float64 {
			switch {
			case f > 0:
				return 1
			case f < 0:
				return -1
			}
			return f
		}, nil},
	}
	for name, f := range elementwise {
		def(name, func(args []Value) (Value, error) {
			if err := arity(name, args, 1, 1); err != nil {
				return Undefined, err
			}
			return mapNumeric(args[0], f.rf, f.cf)
		})
	}
	fns["conjugate"] = fns["conj"]

	// complex parts always come back real
	parts := map[string]func(complex128) float64{
		"real":  func(c complex128) float64 { return real(c) },
		"imag":  func(c complex128) float64 { return imag(c) },
		"abs":   cmplx.Abs,
		"angle": cmplx.Phase,
	}
	for name, f := range parts {
		def(name, func(args []Value) (Value, error) {
			if err := arity(name, args, 1, 1); err != nil {
				return Undefined, err
			}
			return complexPart(args[0], f)
		})
	}
	fns["absolute"] = fns["abs"]

	def("round", func(args []Value) (Value, error) {
		if err := arity("round", args, 1, 2); err != nil {
			return Undefined, err
		}
		scale := 1.0
		if len(args) == 2 {
			n, err := intArg("round", args[1])
			if err != nil {
				return Undefined, err
			}
			scale = math.Pow(10, float64(n))
		}
		return mapNumeric(args[0], func(f float64) float64 { return math.RoundToEven(f*scale) / scale }, nil)
	})
	def("arctan2", func(args []Value) (Value, error) {
		if err := arity("arctan2", args, 2, 2); err != nil {
			return Undefined, err
		}
		return broadcast(args[0], args[1], math.Atan2, nil)
	})
	def("hypot", func(args []Value) (Value, error) {
		if err := arity("hypot", args, 2, 2); err != nil {
			return Undefined, err
		}
		return broadcast(args[0], args[1], math.Hypot, nil)
	})
	def("clip", func(args []Value) (Value, error) {
		if err := arity("clip", args, 3, 3); err != nil {
			return Undefined, err
		}
		lower, err := broadcast(args[0], args[1], math.Max, nil)
		if err != nil {
			return Undefined, err
		}
		return broadcast(lower, args[2], math.Min, nil)
	})
	def("where", whereFn)

	def("sum", reduceFn("sum", func(xs []float64) float64 {
		s := 0.0
		for _, x := range xs {
			s += x
		}
		return s
	}, func(xs []complex128) complex128 {
		var s complex128
		for _, x := range xs {
			s += x
		}
		return s
	}))
	def("prod", reduceFn("prod", func(xs []float64) float64 {
		p := 1.0
		for _, x := range xs {
			p *= x
		}
		return p
	}, func(xs []complex128) complex128 {
		p := complex(1, 0)
		for _, x := range xs {
			p *= x
		}
		return p
	}))
	def("mean", reduceFn("mean", mean, func(xs []complex128) complex128 {
		var s complex128
		for _, x := range xs {
			s += x
		}
		return s / complex(float64(len(xs)), 0)
	}))
	def("var", reduceFn("var", variance, nil))
	def("std", reduceFn("std", func(xs []float64) float64 { return math.Sqrt(variance(xs)) }, nil))
	def("median", reduceFn("median", median, nil))
	def("min", reduceFn("min", extremum(func(a, b float64) bool { return a < b }), nil))
	def("max", reduceFn("max", extremum(func(a, b float64) bool { return a > b }), nil))
	def("argmin", reduceFn("argmin", argExtremum(func(a, b float64) bool { return a < b }), nil))
	def("argmax", reduceFn("argmax", argExtremum(func(a, b float64) bool { return a > b }), nil))
	fns["amin"], fns["amax"] = fns["min"], fns["max"]

	def("cumsum", func(args []Value) (Value, error) {
		if err := arity("cumsum", args, 1, 1); err != nil {
			return Undefined, err
		}
		if args[0].isComplex() {
			cs := args[0].Complexes()
			out := make([]complex128, len(cs))
			var s complex128
			for i, c := range cs {
				s += c
				out[i] = s
			}
			return ComplexArray(out), nil
		}
		xs := args[0].Floats()
		out := make([]float64, len(xs))
		s := 0.0
		for i, x := range xs {
			s += x
			out[i] = s
		}
		return Array(out), nil
	})
	def("diff", func(args []Value) (Value, error) {
		if err := arity("diff", args, 1, 1); err != nil {
			return Undefined, err
		}
		if args[0].isComplex() {
			cs := args[0].Complexes()
			out := make([]complex128, max(len(cs)-1, 0))
			for i := range out {
				out[i] = cs[i+1] - cs[i]
			}
			return ComplexArray(out), nil
		}
		xs := args[0].Floats()
		out := make([]float64, max(len(xs)-1, 0))
		for i := range out {
			out[i] = xs[i+1] - xs[i]
		}
		return Array(out), nil
	})
	def("len", func(args []Value) (Value, error) {
		if err := arity("len", args, 1, 1); err != nil {
			return Undefined, err
		}
		if args[0].IsScalar() {
			return Undefined, errors.Newf(errors.ErrorTypeScript, "len() of a %s", args[0].kind)
		}
		return Number(float64(args[0].Len())), nil
	})
	fns["size"] = fns["len"]
	def("array", func(args []Value) (Value, error) {
		if err := arity("array", args, 1, 1); err != nil {
			return Undefined, err
		}
		switch v := args[0]; v.kind {
		case KindNumber:
			return Array([]float64{v.num}), nil
		case KindComplex:
			return ComplexArray([]complex128{v.cpx}), nil
		case KindList:
			return packList(v.list), nil
		}
		return args[0], nil
	})
	fns["asarray"] = fns["array"]
	def("real_if_close", func(args []Value) (Value, error) {
		if err := arity("real_if_close", args, 1, 1); err != nil {
			return Undefined, err
		}
		return normalize(args[0]), nil
	})
	def("linspace", func(args []Value) (Value, error) {
		if err := arity("linspace", args, 2, 3); err != nil {
			return Undefined, err
		}
		start, err := floatArg("linspace", args[0])
		if err != nil {
			return Undefined, err
		}
		stop, err := floatArg("linspace", args[1])
		if err != nil {
			return Undefined, err
		}
		num := 50
		if len(args) == 3 {
			if num, err = intArg("linspace", args[2]); err != nil {
				return Undefined, err
			}
		}
		if num < 0 {
			return Undefined, errors.Newf(errors.ErrorTypeScript, "linspace: number of samples %d must be non-negative", num)
		}
		out := make([]float64, num)
		for i := range out {
			if num == 1 {
				out[i] = start
				break
			}
			out[i] = start + (stop-start)*float64(i)/float64(num-1)
		}
		return Array(out), nil
	})
	def("arange", func(args []Value) (Value, error) {
		if err := arity("arange", args, 1, 3); err != nil {
			return Undefined, err
		}
		bounds := make([]float64, len(args))
		for i, a := range args {
			f, err := floatArg("arange", a)
			if err != nil {
				return Undefined, err
			}
			bounds[i] = f
		}
		start, stop, step := 0.0, bounds[0], 1.0
		if len(bounds) > 1 {
			start, stop = bounds[0], bounds[1]
		}
		if len(bounds) > 2 {
			step = bounds[2]
		}
		if step == 0 {
			return Undefined, errors.New(errors.ErrorTypeScript, "arange: step cannot be zero")
		}
		n := int(math.Max(0, math.Ceil((stop-start)/step)))
		out := make([]float64, n)
		for i := range out {
			out[i] = start + float64(i)*step
		}
		return Array(out), nil
	})
	filled := func(name string, fill float64) {
		def(name, func(args []Value) (Value, error) {
			if err := arity(name, args, 1, 1); err != nil {
				return Undefined, err
			}
			n, err := intArg(name, args[0])
			if err != nil {
				return Undefined, err
			}
			out := make([]float64, max(n, 0))
			for i := range out {
				out[i] = fill
			}
			return Array(out), nil
		})
	}
	filled("zeros", 0)
	filled("ones", 1)
	def("sort", func(args []Value) (Value, error) {
		if err := arity("sort", args, 1, 1); err != nil {
			return Undefined, err
		}
		out := append([]float64(nil), args[0].Floats()...)
		sort.Float64s(out)
		return Array(out), nil
	})
	def("interp", func(args []Value) (Value, error) {
		if err := arity("interp", args, 3, 3); err != nil {
			return Undefined, err
		}
		return interp(args[0], args[1].Floats(), args[2].Floats())
	})
	return fns
}

func arity(name string, args []Value, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		if lo == hi {
			return errors.Newf(errors.ErrorTypeScript, "%s() takes %d argument(s), got %d", name, lo, len(args))
		}
		return errors.Newf(errors.ErrorTypeScript, "%s() takes %d to %d arguments, got %d", name, lo, hi, len(args))
	}
	return nil
}

func floatArg(name string, v Value) (float64, error) {
	f, ok := v.Float()
	if !ok {
		return 0, errors.Newf(errors.ErrorTypeScript, "%s() expects a real number, got %s", name, v.kind)
	}
	return f, nil
}

func intArg(name string, v Value) (int, error) {
	f, err := floatArg(name, v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, errors.Newf(errors.ErrorTypeScript, "%s() expects an integer, got %s", name, formatFloat(f))
	}
	return int(f), nil
}

func complexPart(v Value, f func(complex128) float64) (Value, error) {
	if v.kind == KindList {
		v = packList(v.list)
	}
	if !v.IsNumeric() {
		return Undefined, errors.Newf(errors.ErrorTypeScript, "expected a number or array, got %s", v.kind)
	}
	cs := toComplexes(v)
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = f(c)
	}
	if v.IsScalar() {
		return Number(out[0]), nil
	}
	return Array(out), nil
}

// reduceFn wraps a reduction over all elements. A nil cf rejects complex
// input.
func reduceFn(name string, rf func([]float64) float64, cf func([]complex128) complex128) func([]Value) (Value, error) {
	return func(args []Value) (Value, error) {
		if err := arity(name, args, 1, 1); err != nil {
			return Undefined, err
		}
		v := args[0]
		if v.kind == KindList {
			v = packList(v.list)
		}
		if !v.IsNumeric() {
			return Undefined, errors.Newf(errors.ErrorTypeScript, "%s() expects numbers, got %s", name, v.kind)
		}
		if v.isComplex() {
			if cf == nil {
				return Undefined, errors.Newf(errors.ErrorTypeScript, "%s() is not defined for complex values", name)
			}
			return ComplexNumber(cf(toComplexes(v))), nil
		}
		xs := v.Floats()
		if len(xs) == 0 && name != "sum" && name != "prod" {
			return Undefined, errors.Newf(errors.ErrorTypeScript, "%s() of an empty array", name)
		}
		return Number(rf(xs)), nil
	}
}

func mean(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func variance(xs []float64) float64 {
	m := mean(xs)
	s := 0.0
	for _, x := range xs {
		s += (x - m) * (x - m)
	}
	return s / float64(len(xs))
}

func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	if math.IsNaN(sorted[0]) {
		return math.NaN()
	}
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// extremum propagates NaN like numpy's min and max.
func extremum(better func(a, b float64) bool) func([]float64) float64 {
	return func(xs []float64) float64 {
		best := xs[0]
		for _, x := range xs {
			if math.IsNaN(x) {
				return x
			}
			if better(x, best) {
				best = x
			}
		}
		return best
	}
}

func argExtremum(better func(a, b float64) bool) func([]float64) float64 {
	return func(xs []float64) float64 {
		bi := 0
		for i, x := range xs {
			if math.IsNaN(x) {
				return float64(i)
			}
			if better(x, xs[bi]) {
				bi = i
			}
		}
		return float64(bi)
	}
}

func whereFn(args []Value) (Value, error) {
	if err := arity("where", args, 3, 3); err != nil {
		return Undefined, err
	}
	cond, a, b := args[0], args[1], args[2]
	if cond.kind == KindList {
		cond = packList(cond.list)
	}
	n := 1
	for _, v := range []Value{cond, a, b} {
		if !v.IsNumeric() && v.kind != KindList {
			return Undefined, errors.Newf(errors.ErrorTypeScript, "where() expects numbers, got %s", v.kind)
		}
		if !v.IsScalar() {
			if n != 1 && v.Len() != 1 && v.Len() != n {
				return Undefined, errors.Newf(errors.ErrorTypeScript,
					"operands could not be broadcast together with shapes (%d,) (%d,)", n, v.Len())
			}
			n = max(n, v.Len())
		}
	}
	c := cond.Floats()
	if a.isComplex() || b.isComplex() {
		av, bv := toComplexes(a), toComplexes(b)
		out := make([]complex128, n)
		for i := range out {
			if at(c, i) != 0 {
				out[i] = at(av, i)
			} else {
				out[i] = at(bv, i)
			}
		}
		if cond.IsScalar() && a.IsScalar() && b.IsScalar() {
			return ComplexNumber(out[0]), nil
		}
		return ComplexArray(out), nil
	}
	av, bv := a.Floats(), b.Floats()
	out := make([]float64, n)
	for i := range out {
		if at(c, i) != 0 {
			out[i] = at(av, i)
		} else {
			out[i] = at(bv, i)
		}
	}
	if cond.IsScalar() && a.IsScalar() && b.IsScalar() {
		return Number(out[0]), nil
	}
	return Array(out), nil
}

// interp is linear interpolation of x over increasing sample points xp.
func interp(x Value, xp, fp []float64) (Value, error) {
	if len(xp) != len(fp) || len(xp) == 0 {
		return Undefined, errors.New(errors.ErrorTypeScript, "interp() needs sample points and values of the same non-zero length")
	}
	eval := func(v float64) float64 {
		if v <= xp[0] {
			return fp[0]
		}
		if v >= xp[len(xp)-1] {
			return fp[len(fp)-1]
		}
		i := sort.SearchFloat64s(xp, v)
		if xp[i] == v {
			return fp[i]
		}
		t := (v - xp[i-1]) / (xp[i] - xp[i-1])
		return fp[i-1] + t*(fp[i]-fp[i-1])
	}
	return mapNumeric(x, eval, nil)
}
