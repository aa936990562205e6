package databox

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/labkit/databox/pkg/config"
	"github.com/labkit/databox/pkg/errors"
	"github.com/labkit/databox/pkg/logger"
)

// Databox is an ordered set of headers plus an ordered set of named columns.
// It is not safe for concurrent mutation.
type Databox struct {
	path      string
	delimiter string
	headers   *HeaderStore
	columns   *ColumnStore
	dtypes    map[string]DType
	cfg       *config.Config
	logger    *zap.Logger
	report    LoadReport
}

// Option configures a Databox.
type Option func(*Databox)

// WithConfig sets the parse, save, script and legacy settings.
func WithConfig(cfg *config.Config) Option {
	return func(d *Databox) {
		if cfg != nil {
			d.cfg = cfg
		}
	}
}

// WithLogger sets the logger for diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(d *Databox) {
		if log != nil {
			d.logger = log
		}
	}
}

// WithDelimiter fixes the delimiter used when saving.
func WithDelimiter(delimiter string) Option {
	return func(d *Databox) { d.delimiter = delimiter }
}

// New creates an empty databox.
func New(opts ...Option) *Databox {
	d := &Databox{
		delimiter: Whitespace,
		headers:   newOrdered[Value](),
		columns:   newOrdered[*Column](),
		dtypes:    make(map[string]DType),
		report:    LoadReport{FirstDataLine: NoData},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.cfg == nil {
		d.cfg = config.Default()
	}
	if d.logger == nil {
		d.logger = logger.Get().Named("databox")
	}
	return d
}

// Path returns the file last loaded or saved.
func (d *Databox) Path() string { return d.path }

// Delimiter returns the resolved delimiter; Whitespace means runs of blanks.
func (d *Databox) Delimiter() string { return d.delimiter }

// SetDelimiter changes the delimiter used by the next save.
func (d *Databox) SetDelimiter(delimiter string) { d.delimiter = delimiter }

// Config returns the settings the databox was built with.
func (d *Databox) Config() *config.Config { return d.cfg }

// Logger returns the databox logger.
func (d *Databox) Logger() *zap.Logger { return d.logger }

// LastReport describes the most recent LoadFile.
func (d *Databox) LastReport() LoadReport { return d.report }

// Len returns the number of columns.
func (d *Databox) Len() int { return d.columns.Len() }

// Rows returns the length of the longest column.
func (d *Databox) Rows() int {
	rows := 0
	for _, key := range d.columns.keys {
		if n := d.columns.values[key].Len(); n > rows {
			rows = n
		}
	}
	return rows
}

// Ckeys returns the column names in order.
func (d *Databox) Ckeys() []string { return d.columns.Keys() }

// Hkeys returns the header keys in order.
func (d *Databox) Hkeys() []string { return d.headers.Keys() }

// C returns the column named by a string key or an int index. Negative
// indices count from the end.
func (d *Databox) C(key any) (*Column, error) {
	name, err := d.columns.resolve(key)
	if err != nil {
		return nil, err
	}
	return d.columns.values[name], nil
}

// Get is C.
func (d *Databox) Get(key any) (*Column, error) { return d.C(key) }

// H returns a header by exact key, else by the first key containing the
// fragment, or by int index.
func (d *Databox) H(key any) (Value, error) {
	if s, ok := key.(string); ok {
		name, found := d.headers.fragment(s)
		if !found {
			return None, errors.Newf(errors.ErrorTypeNotFound, "no header key contains %q", s).
				WithDetail("hkeys", d.headers.Keys())
		}
		return d.headers.values[name], nil
	}
	name, err := d.headers.resolve(key)
	if err != nil {
		return None, err
	}
	return d.headers.values[name], nil
}

// HeaderKey resolves a fragment or index to the full header key.
func (d *Databox) HeaderKey(key any) (string, error) {
	if s, ok := key.(string); ok {
		if name, found := d.headers.fragment(s); found {
			return name, nil
		}
		return "", errors.Newf(errors.ErrorTypeNotFound, "no header key contains %q", s)
	}
	return d.headers.resolve(key)
}

// InsertHeader sets key to the converted value, appending new keys.
func (d *Databox) InsertHeader(key string, value any) error {
	return d.InsertHeaderAt(key, value, -1)
}

// InsertHeaderAt sets key, placing a new key at index.
func (d *Databox) InsertHeaderAt(key string, value any, index int) error {
	if key == "" {
		return errors.New(errors.ErrorTypeValidation, "header key cannot be empty")
	}
	v, err := ValueOf(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "unsupported header value").WithDetail("key", key)
	}
	d.headers.Insert(key, v, index)
	return nil
}

// SetHeaders inserts every entry of values in key order.
func (d *Databox) SetHeaders(values map[string]any) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := d.InsertHeader(k, values[k]); err != nil {
			return err
		}
	}
	return nil
}

// PopHeader removes a header by key or index and returns its value.
func (d *Databox) PopHeader(key any) (Value, error) {
	name, err := d.headers.resolve(key)
	if err != nil {
		return None, err
	}
	v, _ := d.headers.Pop(name)
	return v, nil
}

// RenameHeader changes a header key in place.
func (d *Databox) RenameHeader(oldKey any, newKey string) error {
	name, err := d.headers.resolve(oldKey)
	if err != nil {
		return err
	}
	return d.headers.Rename(name, newKey)
}

// InsertColumn adds data as a column named key. index < 0 appends; an
// existing key is replaced in place.
func (d *Databox) InsertColumn(key string, data any, index int) error {
	if key == "" {
		return errors.New(errors.ErrorTypeValidation, "column key cannot be empty")
	}
	col, err := ToColumn(data)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "unsupported column data").WithDetail("key", key)
	}
	d.columns.Insert(key, col, index)
	return nil
}

// Set assigns a column by name or by index. An index past the end appends
// a column under a fresh name. It returns the name used.
func (d *Databox) Set(key any, data any) (string, error) {
	switch k := key.(type) {
	case string:
		return k, d.InsertColumn(k, data, -1)
	case int:
		if name, err := d.columns.resolve(k); err == nil {
			return name, d.InsertColumn(name, data, -1)
		}
		if k < 0 {
			return "", errors.Newf(errors.ErrorTypeNotFound, "index %d out of range for %d columns", k, d.Len())
		}
		name := d.freshColumnName()
		return name, d.InsertColumn(name, data, -1)
	}
	return "", errors.Newf(errors.ErrorTypeValidation, "column key must be a string or int, got %T", key)
}

func (d *Databox) freshColumnName() string {
	for n := d.columns.Len(); ; n++ {
		name := "_column" + strconv.Itoa(n)
		if !d.columns.Has(name) {
			return name
		}
	}
}

// PopColumn removes a column by key or index and returns it.
func (d *Databox) PopColumn(key any) (*Column, error) {
	name, err := d.columns.resolve(key)
	if err != nil {
		return nil, err
	}
	col, _ := d.columns.Pop(name)
	delete(d.dtypes, name)
	return col, nil
}

// RenameColumn changes a column name in place.
func (d *Databox) RenameColumn(oldKey any, newKey string) error {
	name, err := d.columns.resolve(oldKey)
	if err != nil {
		return err
	}
	if err := d.columns.Rename(name, newKey); err != nil {
		return err
	}
	if dt, ok := d.dtypes[name]; ok {
		delete(d.dtypes, name)
		d.dtypes[newKey] = dt
	}
	return nil
}

// PopRow removes element n from every column and returns the removed values
// in column order. Negative n counts from the end of each column.
func (d *Databox) PopRow(n int) ([]Value, error) {
	for _, key := range d.columns.keys {
		l := d.columns.values[key].Len()
		if i := normalizeIndex(n, l); i < 0 || i >= l {
			return nil, errors.Newf(errors.ErrorTypeNotFound, "row %d out of range for column %q of length %d", n, key, l)
		}
	}
	row := make([]Value, 0, d.columns.Len())
	for _, key := range d.columns.keys {
		v, err := d.columns.values[key].Pop(n)
		if err != nil {
			return nil, err
		}
		row = append(row, v)
	}
	return row, nil
}

func normalizeIndex(i, n int) int {
	if i < 0 {
		return i + n
	}
	return i
}

// AppendRow adds one value to the end of every column.
func (d *Databox) AppendRow(values ...any) error {
	if len(values) != d.columns.Len() {
		return errors.Newf(errors.ErrorTypeValidation, "row has %d values, databox has %d columns",
			len(values), d.columns.Len())
	}
	row := make([]Value, len(values))
	for i, raw := range values {
		v, err := ValueOf(raw)
		if err != nil {
			return err
		}
		row[i] = v
	}
	for i, key := range d.columns.keys {
		if err := d.columns.values[key].Append(row[i]); err != nil {
			return errors.Wrap(err, errors.ErrorTypeValidation, "cannot append to column "+strconv.Quote(key))
		}
	}
	return nil
}

// StripNaNs removes NaN elements from the named columns, or from every
// column when no key is given. Each column shrinks independently.
func (d *Databox) StripNaNs(keys ...any) error {
	names := d.columns.keys
	if len(keys) > 0 {
		names = make([]string, 0, len(keys))
		for _, k := range keys {
			name, err := d.columns.resolve(k)
			if err != nil {
				return err
			}
			names = append(names, name)
		}
	}
	for _, name := range names {
		if removed := d.columns.values[name].StripNaNs(); removed > 0 {
			d.logger.Debug("stripped NaNs", zap.String("column", name), zap.Int("removed", removed))
		}
	}
	return nil
}

// SetDType fixes the dtype a column is written with in binary mode. The
// in-memory values are rounded to the new dtype.
func (d *Databox) SetDType(key any, dt DType) error {
	name, err := d.columns.resolve(key)
	if err != nil {
		return err
	}
	converted, err := d.columns.values[name].AsType(dt)
	if err != nil {
		return err
	}
	d.columns.values[name] = converted
	d.dtypes[name] = dt
	return nil
}

// DTypeOf returns the binary dtype recorded for a column, if any.
func (d *Databox) DTypeOf(key string) (DType, bool) {
	dt, ok := d.dtypes[key]
	return dt, ok
}

// CopyHeaders replaces every header in d with a copy of other's headers.
func (d *Databox) CopyHeaders(other *Databox) {
	if other == d {
		return
	}
	d.headers.Clear()
	for _, key := range other.headers.keys {
		d.headers.Insert(key, other.headers.values[key], -1)
	}
}

// CopyColumns replaces every column in d with a copy of other's columns.
func (d *Databox) CopyColumns(other *Databox) {
	if other == d {
		return
	}
	d.ClearColumns()
	for _, key := range other.columns.keys {
		d.columns.Insert(key, other.columns.values[key].Clone(), -1)
	}
	for key, dt := range other.dtypes {
		d.dtypes[key] = dt
	}
}

// CopyAll copies headers, columns and the delimiter from other.
func (d *Databox) CopyAll(other *Databox) {
	d.CopyHeaders(other)
	d.CopyColumns(other)
	d.delimiter = other.delimiter
}

// Clone returns a deep copy sharing configuration and logger.
func (d *Databox) Clone() *Databox {
	out := New(WithConfig(d.cfg), WithLogger(d.logger))
	out.CopyAll(d)
	out.path = d.path
	return out
}

// Clear removes every header and column.
func (d *Databox) Clear() {
	d.ClearHeaders()
	d.ClearColumns()
}

// ClearHeaders removes every header.
func (d *Databox) ClearHeaders() { d.headers.Clear() }

// ClearColumns removes every column and any recorded dtypes.
func (d *Databox) ClearColumns() {
	d.columns.Clear()
	d.dtypes = make(map[string]DType)
}

// Summary renders a short human-readable description.
func (d *Databox) Summary() string {
	var sb strings.Builder
	if d.path != "" {
		fmt.Fprintf(&sb, "%s\n", d.path)
	}
	fmt.Fprintf(&sb, "%d headers, %d columns, %d rows, delimiter %s\n",
		d.headers.Len(), d.columns.Len(), d.Rows(), describeDelimiter(d.delimiter))
	for _, key := range d.headers.keys {
		fmt.Fprintf(&sb, "  %s = %s\n", key, d.headers.values[key].Repr())
	}
	for _, key := range d.columns.keys {
		col := d.columns.values[key]
		nans := 0
		for _, f := range col.Floats() {
			if math.IsNaN(f) {
				nans++
			}
		}
		fmt.Fprintf(&sb, "  [%s] %s len=%d nan=%d\n", key, col.DType(), col.Len(), nans)
	}
	return sb.String()
}

// ValueOf converts a Go value to a header Value.
func ValueOf(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return None, nil
	case Value:
		return v, nil
	case bool:
		return Bool(v), nil
	case int:
		return Int(int64(v)), nil
	case int32:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case float32:
		return Float(float64(v)), nil
	case float64:
		return Float(v), nil
	case complex128:
		return Complex(v), nil
	case string:
		return String(v), nil
	case []float64:
		return Floats(v), nil
	case []int:
		items := make([]Value, len(v))
		for i, n := range v {
			items[i] = Int(int64(n))
		}
		return List(items...), nil
	case []complex128:
		items := make([]Value, len(v))
		for i, c := range v {
			items[i] = Complex(c)
		}
		return List(items...), nil
	case []string:
		items := make([]Value, len(v))
		for i, s := range v {
			items[i] = String(s)
		}
		return List(items...), nil
	case []Value:
		return List(v...), nil
	case []any:
		items := make([]Value, len(v))
		for i, item := range v {
			iv, err := ValueOf(item)
			if err != nil {
				return None, err
			}
			items[i] = iv
		}
		return List(items...), nil
	}
	return None, errors.Newf(errors.ErrorTypeValidation, "cannot convert %T to a header value", x)
}

// ToColumn converts column data to a Column. Columns are cloned.
func ToColumn(data any) (*Column, error) {
	switch v := data.(type) {
	case *Column:
		return v.Clone(), nil
	case []float64:
		return FloatColumn(v), nil
	case []float32:
		col := NewColumn(Float32)
		col.reals = make([]float64, len(v))
		for i, f := range v {
			col.reals[i] = float64(f)
		}
		return col, nil
	case []int:
		fs := make([]float64, len(v))
		for i, n := range v {
			fs[i] = float64(n)
		}
		return FloatColumn(fs), nil
	case []complex128:
		return ComplexColumn(v), nil
	case []string:
		return StringColumn(v), nil
	case Value:
		return columnFromValue(v)
	case []Value:
		return columnFromValue(List(v...))
	}
	return nil, errors.Newf(errors.ErrorTypeValidation, "cannot convert %T to a column", data)
}

func columnFromValue(v Value) (*Column, error) {
	if v.Kind() != KindList {
		v = List(v)
	}
	dt := Float64
	for _, item := range v.Items() {
		switch {
		case item.Kind() == KindString:
			dt = Str
		case item.Kind() == KindComplex && dt != Str:
			dt = Complex128
		case item.Kind() == KindList || item.Kind() == KindNone:
			return nil, errors.Newf(errors.ErrorTypeValidation, "column elements must be scalars, got %s", item.Kind())
		}
	}
	col := NewColumn(dt)
	for _, item := range v.Items() {
		if err := col.Append(item); err != nil {
			return nil, err
		}
	}
	return col, nil
}
