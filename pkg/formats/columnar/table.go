package columnar

import (
	"math"
	"strings"

	"github.com/labkit/databox/pkg/databox"
	"github.com/labkit/databox/pkg/errors"
	jsonpool "github.com/labkit/databox/pkg/json"
)

type fieldKind int

const (
	kindFloat64 fieldKind = iota
	kindFloat32
	kindString
)

func (k fieldKind) String() string {
	switch k {
	case kindFloat32:
		return "float32"
	case kindString:
		return "string"
	default:
		return "float64"
	}
}

// exportField is one output column. Complex columns produce two fields.
// A field shorter than the table is padded with nulls.
type exportField struct {
	name    string
	source  string
	kind    fieldKind
	floats  []float64
	strings []string
}

func (f *exportField) len() int {
	if f.kind == kindString {
		return len(f.strings)
	}
	return len(f.floats)
}

// header is one databox header with its value encoded as JSON.
type header struct {
	key  string
	json []byte
}

// table is the format-neutral view of a databox.
type table struct {
	fields  []exportField
	rows    int
	headers []header
}

func newTable(d *databox.Databox) (*table, error) {
	if d == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "nil databox")
	}
	if d.Len() == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "databox has no columns to export")
	}

	t := &table{rows: d.Rows()}
	seen := make(map[string]bool)
	add := func(f exportField) error {
		if seen[f.name] {
			return errors.Newf(errors.ErrorTypeConflict, "export field %q appears twice", f.name)
		}
		seen[f.name] = true
		t.fields = append(t.fields, f)
		return nil
	}

	for _, key := range d.Ckeys() {
		c, err := d.C(key)
		if err != nil {
			return nil, err
		}
		var fields []exportField
		switch c.DType() {
		case databox.Float64:
			fields = []exportField{{name: key, source: key, kind: kindFloat64, floats: c.Floats()}}
		case databox.Float32, databox.Float16:
			fields = []exportField{{name: key, source: key, kind: kindFloat32, floats: c.Floats()}}
		case databox.Complex128:
			zs := c.Complexes()
			re := make([]float64, len(zs))
			im := make([]float64, len(zs))
			for i, z := range zs {
				re[i], im[i] = real(z), imag(z)
			}
			fields = []exportField{
				{name: key + ".real", source: key, kind: kindFloat64, floats: re},
				{name: key + ".imag", source: key, kind: kindFloat64, floats: im},
			}
		case databox.Str:
			fields = []exportField{{name: key, source: key, kind: kindString, strings: c.Strings()}}
		default:
			return nil, errors.Newf(errors.ErrorTypeCapability, "column %q has unsupported dtype %s", key, c.DType())
		}
		for _, f := range fields {
			if err := add(f); err != nil {
				return nil, err
			}
		}
	}

	for _, key := range d.Hkeys() {
		v, err := d.H(key)
		if err != nil {
			return nil, err
		}
		data, err := jsonpool.Marshal(HeaderJSON(v))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "encoding header "+key)
		}
		t.headers = append(t.headers, header{key: key, json: data})
	}
	return t, nil
}

// layout identifies the field names and kinds, which must not change
// between databoxes written to one file.
func (t *table) layout() string {
	var sb strings.Builder
	for _, f := range t.fields {
		sb.WriteString(f.name)
		sb.WriteByte(':')
		sb.WriteString(f.kind.String())
		sb.WriteByte(';')
	}
	return sb.String()
}

func checkLayout(want string, t *table) error {
	if got := t.layout(); got != want {
		return errors.New(errors.ErrorTypeConflict, "databox columns differ from the ones already written").
			WithDetail("expected", want).
			WithDetail("got", got)
	}
	return nil
}

// headersObject renders the headers as one JSON object in header order.
func (t *table) headersObject() ([]byte, error) {
	obj := jsonpool.NewObjectWriter()
	for _, h := range t.headers {
		obj.WriteRawField(h.key, h.json)
	}
	return obj.Bytes()
}

// HeaderJSON maps a header value onto a JSON-encodable value. NaN,
// infinities and complex numbers become their literal text.
func HeaderJSON(v databox.Value) interface{} {
	switch v.Kind() {
	case databox.KindBool:
		return v.Bool()
	case databox.KindInt:
		return v.Int()
	case databox.KindFloat:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return v.Repr()
		}
		return f
	case databox.KindComplex:
		return v.Repr()
	case databox.KindString:
		return v.Str()
	case databox.KindList:
		items := make([]interface{}, len(v.Items()))
		for i, item := range v.Items() {
			items[i] = HeaderJSON(item)
		}
		return items
	default:
		return nil
	}
}

// jsonFloat returns nil for values JSON has no number for.
func jsonFloat(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}
