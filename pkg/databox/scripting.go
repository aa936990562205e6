package databox

import (
	"github.com/labkit/databox/pkg/script"
)

// scriptSource exposes a databox to the script engine read-only.
type scriptSource struct {
	d *Databox
}

func (s *scriptSource) Column(key any) (script.Value, error) {
	col, err := s.d.C(key)
	if err != nil {
		return script.Undefined, err
	}
	return ColumnValue(col), nil
}

func (s *scriptSource) Header(key any) (script.Value, error) {
	v, err := s.d.H(key)
	if err != nil {
		return script.Undefined, err
	}
	return HeaderValue(v), nil
}

func (s *scriptSource) Len() int { return s.d.Len() }

func (s *scriptSource) HasColumn(name string) bool { return s.d.columns.Has(name) }

// ColumnValue converts a column to a script array.
func ColumnValue(c *Column) script.Value {
	switch c.DType() {
	case Complex128:
		return script.ComplexArray(c.Complexes())
	case Str:
		items := make([]script.Value, c.Len())
		for i, s := range c.strs {
			items[i] = script.String(s)
		}
		return script.ListOf(items...)
	}
	return script.Array(c.Floats())
}

// HeaderValue converts a header value for use in scripts. Numeric lists
// become arrays.
func HeaderValue(v Value) script.Value {
	switch v.Kind() {
	case KindNone:
		return script.None
	case KindBool, KindInt, KindFloat:
		return script.Number(v.Float())
	case KindComplex:
		return script.ComplexNumber(v.AsComplex())
	case KindString:
		return script.String(v.Str())
	}
	items := make([]script.Value, len(v.Items()))
	numeric, complexSeen := true, false
	for i, item := range v.Items() {
		items[i] = HeaderValue(item)
		numeric = numeric && item.IsNumeric()
		complexSeen = complexSeen || item.Kind() == KindComplex
	}
	switch {
	case numeric && complexSeen:
		cs := make([]complex128, len(items))
		for i, item := range v.Items() {
			cs[i] = item.AsComplex()
		}
		return script.ComplexArray(cs)
	case numeric:
		fs := make([]float64, len(items))
		for i, item := range v.Items() {
			fs[i] = item.Float()
		}
		return script.Array(fs)
	}
	return script.ListOf(items...)
}

// ScriptEngine returns an engine bound to d, configured from the databox
// settings. Extra options are applied last.
func (d *Databox) ScriptEngine(opts ...script.Option) *script.Engine {
	base := []script.Option{
		script.WithConfig(d.cfg.Script),
		script.WithLogger(d.logger.Named("script")),
	}
	return script.NewEngine(&scriptSource{d: d}, append(base, opts...)...)
}

// ExecuteScript evaluates a script against the columns and headers of d.
// See script.Engine.Execute for the accepted forms.
func (d *Databox) ExecuteScript(s any, opts ...script.Option) (script.Value, error) {
	return d.ScriptEngine(opts...).Execute(s)
}
