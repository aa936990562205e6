package columnar

import (
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/linkedin/goavro/v2"

	"github.com/labkit/databox/pkg/databox"
	"github.com/labkit/databox/pkg/errors"
	jsonpool "github.com/labkit/databox/pkg/json"
)

// avroWriter implements Writer for Avro object container files. Column
// names that are not valid Avro names are rewritten; the original name is
// kept in the field's doc.
type avroWriter struct {
	writer      io.Writer
	config      *WriterConfig
	compression string
	names       []string
	layout      string
	codec       *goavro.Codec
	ocfWriter   *goavro.OCFWriter
	rows        int64
	mu          sync.Mutex
}

type avroField struct {
	Name    string      `json:"name"`
	Type    []string    `json:"type"`
	Default interface{} `json:"default"`
	Doc     string      `json:"doc,omitempty"`
}

type avroRecord struct {
	Type      string      `json:"type"`
	Name      string      `json:"name"`
	Namespace string      `json:"namespace"`
	Fields    []avroField `json:"fields"`
}

func newAvroWriter(w io.Writer, config *WriterConfig) (*avroWriter, error) {
	compression, err := avroCompression(config.Compression)
	if err != nil {
		return nil, err
	}
	return &avroWriter{
		writer:      w,
		config:      config,
		compression: compression,
	}, nil
}

func (aw *avroWriter) Write(d *databox.Databox) error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	t, err := newTable(d)
	if err != nil {
		return err
	}

	if aw.ocfWriter == nil {
		if err := aw.open(t); err != nil {
			return err
		}
	} else if err := checkLayout(aw.layout, t); err != nil {
		return err
	}

	batch := make([]interface{}, 0, t.rows)
	for r := 0; r < t.rows; r++ {
		datum := make(map[string]interface{}, len(t.fields))
		for i := range t.fields {
			datum[aw.names[i]] = avroValue(&t.fields[i], r)
		}
		batch = append(batch, datum)
	}
	if err := aw.ocfWriter.Append(batch); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to append Avro records")
	}
	aw.rows += int64(t.rows)
	return nil
}

func (aw *avroWriter) open(t *table) error {
	aw.names = avroNames(t)
	aw.layout = t.layout()

	record := avroRecord{Type: "record", Name: "databox", Namespace: "labkit", Fields: make([]avroField, len(t.fields))}
	for i, f := range t.fields {
		field := avroField{Name: aw.names[i], Type: []string{"null", avroType(f.kind)}}
		if aw.names[i] != f.name {
			field.Doc = f.name
		}
		record.Fields[i] = field
	}
	schema, err := jsonpool.Marshal(record)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode Avro schema")
	}
	codec, err := goavro.NewCodec(string(schema))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to create Avro codec")
	}

	headers, err := t.headersObject()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode headers")
	}

	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               aw.writer,
		Codec:           codec,
		CompressionName: aw.compression,
		MetaData:        map[string][]byte{AvroHeadersKey: headers},
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create Avro writer")
	}
	aw.codec = codec
	aw.ocfWriter = ocfWriter
	return nil
}

// Close is a no-op beyond bookkeeping: every Append already wrote a block.
func (aw *avroWriter) Close() error {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	aw.ocfWriter = nil
	return nil
}

func (aw *avroWriter) Format() Format { return Avro }

func (aw *avroWriter) RowsWritten() int64 { return aw.rows }

func avroType(k fieldKind) string {
	switch k {
	case kindFloat32:
		return "float"
	case kindString:
		return "string"
	default:
		return "double"
	}
}

func avroValue(f *exportField, row int) interface{} {
	if row >= f.len() {
		return nil
	}
	switch f.kind {
	case kindFloat32:
		return goavro.Union("float", float32(f.floats[row]))
	case kindString:
		return goavro.Union("string", f.strings[row])
	default:
		return goavro.Union("double", f.floats[row])
	}
}

// avroNames maps field names onto [A-Za-z_][A-Za-z0-9_]*, suffixing
// duplicates with a counter.
func avroNames(t *table) []string {
	names := make([]string, len(t.fields))
	used := make(map[string]bool, len(t.fields))
	for i, f := range t.fields {
		var sb strings.Builder
		for j, r := range f.name {
			switch {
			case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
				sb.WriteRune(r)
			case r >= '0' && r <= '9':
				if j == 0 {
					sb.WriteByte('_')
				}
				sb.WriteRune(r)
			default:
				sb.WriteByte('_')
			}
		}
		name := sb.String()
		if name == "" {
			name = "_"
		}
		base := name
		for n := 1; used[name]; n++ {
			name = base + "_" + strconv.Itoa(n)
		}
		used[name] = true
		names[i] = name
	}
	return names
}

func avroCompression(name string) (string, error) {
	switch strings.ToLower(name) {
	case "", "none", "null":
		return goavro.CompressionNullLabel, nil
	case "deflate", "gzip":
		return goavro.CompressionDeflateLabel, nil
	case "snappy":
		return goavro.CompressionSnappyLabel, nil
	default:
		return "", errors.Newf(errors.ErrorTypeCapability, "avro does not support %q compression", name)
	}
}
