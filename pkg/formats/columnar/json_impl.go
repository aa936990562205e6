package columnar

import (
	"bytes"
	"io"
	"sync"

	"github.com/labkit/databox/pkg/compression"
	"github.com/labkit/databox/pkg/databox"
	"github.com/labkit/databox/pkg/errors"
	jsonpool "github.com/labkit/databox/pkg/json"
)

// jsonWriter writes one JSON object per databox, newline separated:
//
//	{"path":"...","headers":{...},"columns":{"t":[0,1],...},"dtypes":{"t":"float64",...}}
//
// Columns keep their own lengths and NaN is written as null. With a
// compression algorithm set the whole document is buffered and compressed
// on Close.
type jsonWriter struct {
	writer     io.Writer
	config     *WriterConfig
	compressor compression.Compressor
	buffer     *bytes.Buffer
	layout     string
	rows       int64
	mu         sync.Mutex
}

func newJSONWriter(w io.Writer, config *WriterConfig) (*jsonWriter, error) {
	alg, err := compression.ParseAlgorithm(config.Compression)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCapability, "json export")
	}
	jw := &jsonWriter{writer: w, config: config}
	if alg != compression.None {
		comp, err := compression.NewCompressor(&compression.Config{Algorithm: alg, Level: compression.Default})
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeCapability, "json export")
		}
		jw.compressor = comp
		jw.buffer = new(bytes.Buffer)
	}
	return jw, nil
}

func (jw *jsonWriter) Write(d *databox.Databox) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	t, err := newTable(d)
	if err != nil {
		return err
	}
	if jw.layout == "" {
		jw.layout = t.layout()
	} else if err := checkLayout(jw.layout, t); err != nil {
		return err
	}

	doc, err := documentJSON(d.Path(), t)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode JSON document")
	}
	if jw.config.Pretty {
		var indented bytes.Buffer
		if err := jsonpool.Indent(&indented, doc, "", "  "); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to indent JSON document")
		}
		doc = indented.Bytes()
	}
	doc = append(doc, '\n')

	out := jw.writer
	if jw.buffer != nil {
		out = jw.buffer
	}
	if _, err := out.Write(doc); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write JSON document")
	}
	jw.rows += int64(t.rows)
	return nil
}

func (jw *jsonWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.buffer == nil || jw.buffer.Len() == 0 {
		return nil
	}
	data, err := jw.compressor.Compress(jw.buffer.Bytes())
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to compress JSON output")
	}
	jw.buffer.Reset()
	if _, err := jw.writer.Write(data); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write JSON output")
	}
	return nil
}

func (jw *jsonWriter) Format() Format { return JSON }

func (jw *jsonWriter) RowsWritten() int64 { return jw.rows }

func documentJSON(path string, t *table) ([]byte, error) {
	headers, err := t.headersObject()
	if err != nil {
		return nil, err
	}

	columns := jsonpool.NewObjectWriter()
	dtypes := jsonpool.NewObjectWriter()
	for i := range t.fields {
		f := &t.fields[i]
		if f.kind == kindString {
			columns.WriteField(f.name, f.strings)
		} else {
			values := make([]interface{}, len(f.floats))
			for r, v := range f.floats {
				values[r] = jsonFloat(v)
			}
			columns.WriteField(f.name, values)
		}
		dtypes.WriteField(f.name, f.kind.String())
	}
	columnsJSON, err := columns.Bytes()
	if err != nil {
		_, _ = dtypes.Bytes()
		return nil, err
	}
	dtypesJSON, err := dtypes.Bytes()
	if err != nil {
		return nil, err
	}

	doc := jsonpool.NewObjectWriter()
	if path != "" {
		doc.WriteField("path", path)
	}
	doc.WriteRawField("headers", headers)
	doc.WriteRawField("columns", columnsJSON)
	doc.WriteRawField("dtypes", dtypesJSON)
	return doc.Bytes()
}
