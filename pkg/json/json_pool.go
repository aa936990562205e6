// Package json wraps goccy/go-json with pooled buffers and an ordered object
// writer, used for JSON export and the command line's --json output.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 { // Don't pool very large buffers
		return
	}
	bufferPool.Put(buf)
}

// Marshal is a drop-in replacement for json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// MarshalIndent is a drop-in replacement for json.MarshalIndent
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// Indent appends an indented form of src to dst.
func Indent(dst *bytes.Buffer, src []byte, prefix, indent string) error {
	return gojson.Indent(dst, src, prefix, indent)
}

// NewEncoder returns an encoder that leaves HTML characters alone.
func NewEncoder(w io.Writer) *gojson.Encoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// MarshalToWriter marshals v directly to a writer, followed by a newline.
func MarshalToWriter(w io.Writer, v interface{}) error {
	return NewEncoder(w).Encode(v)
}

// ObjectWriter builds a JSON object field by field, keeping insertion order.
// Go maps lose the order of headers and columns, so exporters use this
// instead of marshalling a map.
type ObjectWriter struct {
	buf    *bytes.Buffer
	fields int
	err    error
}

// NewObjectWriter starts an empty object in a pooled buffer.
func NewObjectWriter() *ObjectWriter {
	buf := GetBuffer()
	buf.WriteByte('{')
	return &ObjectWriter{buf: buf}
}

// WriteField appends key and the marshalled value.
func (w *ObjectWriter) WriteField(key string, value interface{}) {
	if w.err != nil {
		return
	}
	data, err := gojson.Marshal(value)
	if err != nil {
		w.err = err
		return
	}
	w.WriteRawField(key, data)
}

// WriteRawField appends key and an already encoded value.
func (w *ObjectWriter) WriteRawField(key string, raw []byte) {
	if w.err != nil {
		return
	}
	name, err := gojson.Marshal(key)
	if err != nil {
		w.err = err
		return
	}
	if w.fields > 0 {
		w.buf.WriteByte(',')
	}
	w.buf.Write(name)
	w.buf.WriteByte(':')
	w.buf.Write(raw)
	w.fields++
}

// Bytes closes the object and returns a copy of it. The writer must not be
// used afterwards.
func (w *ObjectWriter) Bytes() ([]byte, error) {
	defer PutBuffer(w.buf)
	if w.err != nil {
		return nil, w.err
	}
	w.buf.WriteByte('}')
	out := make([]byte, w.buf.Len())
	copy(out, w.buf.Bytes())
	return out, nil
}

// StreamingEncoder writes values either as one JSON array or as
// line-delimited JSON.
type StreamingEncoder struct {
	writer      io.Writer
	encoder     *gojson.Encoder
	firstRecord bool
	isArray     bool
	pretty      bool
}

// NewStreamingEncoder creates a new streaming encoder
func NewStreamingEncoder(w io.Writer, isArray bool) (*StreamingEncoder, error) {
	se := &StreamingEncoder{
		writer:      w,
		encoder:     NewEncoder(w),
		firstRecord: true,
		isArray:     isArray,
	}
	if isArray {
		if _, err := w.Write([]byte{'['}); err != nil {
			return nil, err
		}
	}
	return se, nil
}

// SetPretty enables pretty printing
func (se *StreamingEncoder) SetPretty(pretty bool, indent string) {
	se.pretty = pretty
	if pretty {
		se.encoder.SetIndent("", indent)
	}
}

// Encode encodes a single value
func (se *StreamingEncoder) Encode(v interface{}) error {
	if se.isArray && !se.firstRecord {
		if _, err := se.writer.Write([]byte{','}); err != nil {
			return err
		}
	}
	se.firstRecord = false
	return se.encoder.Encode(v)
}

// Close finalizes the encoding
func (se *StreamingEncoder) Close() error {
	if se.isArray {
		_, err := se.writer.Write([]byte{']', '\n'})
		return err
	}
	return nil
}
