package columnar

import (
	"io"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/labkit/databox/pkg/databox"
	"github.com/labkit/databox/pkg/errors"
)

// arrowWriter implements Writer for Arrow IPC files
type arrowWriter struct {
	writer      io.Writer
	config      *WriterConfig
	options     []ipc.Option
	arrowSchema *arrow.Schema
	layout      string
	fileWriter  *ipc.FileWriter
	rows        int64
	mu          sync.Mutex
	pool        memory.Allocator
}

func newArrowWriter(w io.Writer, config *WriterConfig) (*arrowWriter, error) {
	pool := memory.NewGoAllocator()
	options := []ipc.Option{ipc.WithAllocator(pool)}

	switch strings.ToLower(config.Compression) {
	case "", "none":
	case "lz4":
		options = append(options, ipc.WithLZ4())
	case "zstd":
		options = append(options, ipc.WithZstd())
	default:
		return nil, errors.Newf(errors.ErrorTypeCapability, "arrow does not support %q compression", config.Compression)
	}

	return &arrowWriter{
		writer:  w,
		config:  config,
		options: options,
		pool:    pool,
	}, nil
}

func (aw *arrowWriter) Write(d *databox.Databox) error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	t, err := newTable(d)
	if err != nil {
		return err
	}

	if aw.fileWriter == nil {
		aw.arrowSchema = arrowSchema(t)
		aw.layout = t.layout()
		opts := append([]ipc.Option{ipc.WithSchema(aw.arrowSchema)}, aw.options...)
		fw, err := ipc.NewFileWriter(aw.writer, opts...)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to create Arrow writer")
		}
		aw.fileWriter = fw
	} else if err := checkLayout(aw.layout, t); err != nil {
		return err
	}

	rec := buildRecord(aw.pool, aw.arrowSchema, t)
	defer rec.Release()

	if err := writeBatches(rec, aw.config.BatchSize, aw.fileWriter.Write); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write Arrow record")
	}
	aw.rows += int64(t.rows)
	return nil
}

func (aw *arrowWriter) Close() error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	if aw.fileWriter == nil {
		return nil
	}
	if err := aw.fileWriter.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close Arrow writer")
	}
	aw.fileWriter = nil
	return nil
}

func (aw *arrowWriter) Format() Format { return Arrow }

func (aw *arrowWriter) RowsWritten() int64 { return aw.rows }

// arrowSchema builds nullable fields for t with the headers as metadata.
func arrowSchema(t *table) *arrow.Schema {
	fields := make([]arrow.Field, len(t.fields))
	for i, f := range t.fields {
		fields[i] = arrow.Field{Name: f.name, Type: arrowType(f.kind), Nullable: true}
	}

	keys := make([]string, len(t.headers))
	values := make([]string, len(t.headers))
	for i, h := range t.headers {
		keys[i] = h.key
		values[i] = string(h.json)
	}
	md := arrow.NewMetadata(keys, values)
	return arrow.NewSchema(fields, &md)
}

func arrowType(k fieldKind) arrow.DataType {
	switch k {
	case kindFloat32:
		return arrow.PrimitiveTypes.Float32
	case kindString:
		return arrow.BinaryTypes.String
	default:
		return arrow.PrimitiveTypes.Float64
	}
}

// buildRecord copies the table into one Arrow record. Rows past the end of
// a short field are null.
func buildRecord(pool memory.Allocator, schema *arrow.Schema, t *table) arrow.Record {
	b := array.NewRecordBuilder(pool, schema)
	defer b.Release()

	for i := range t.fields {
		f := &t.fields[i]
		n := f.len()
		switch fb := b.Field(i).(type) {
		case *array.Float64Builder:
			fb.Reserve(t.rows)
			for r := 0; r < t.rows; r++ {
				if r < n {
					fb.Append(f.floats[r])
				} else {
					fb.AppendNull()
				}
			}
		case *array.Float32Builder:
			fb.Reserve(t.rows)
			for r := 0; r < t.rows; r++ {
				if r < n {
					fb.Append(float32(f.floats[r]))
				} else {
					fb.AppendNull()
				}
			}
		case *array.StringBuilder:
			fb.Reserve(t.rows)
			for r := 0; r < t.rows; r++ {
				if r < n {
					fb.Append(f.strings[r])
				} else {
					fb.AppendNull()
				}
			}
		}
	}
	return b.NewRecord()
}

// writeBatches hands rec to write in slices of at most size rows.
func writeBatches(rec arrow.Record, size int, write func(arrow.Record) error) error {
	rows := rec.NumRows()
	if size <= 0 || rows <= int64(size) {
		return write(rec)
	}
	for start := int64(0); start < rows; start += int64(size) {
		end := start + int64(size)
		if end > rows {
			end = rows
		}
		slice := rec.NewSlice(start, end)
		err := write(slice)
		slice.Release()
		if err != nil {
			return err
		}
	}
	return nil
}
