package columnar

import (
	"io"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/labkit/databox/pkg/databox"
	"github.com/labkit/databox/pkg/errors"
)

// parquetWriter implements Writer for Parquet format. Headers become the
// file's key-value metadata.
type parquetWriter struct {
	writer      io.Writer
	config      *WriterConfig
	props       *parquet.WriterProperties
	arrowSchema *arrow.Schema
	layout      string
	fileWriter  *pqarrow.FileWriter
	rows        int64
	mu          sync.Mutex
	pool        memory.Allocator
}

// sinkOnly hides Close so the Parquet writer cannot close the caller's file.
type sinkOnly struct{ io.Writer }

func newParquetWriter(w io.Writer, config *WriterConfig) (*parquetWriter, error) {
	codec, err := parquetCompression(config.Compression)
	if err != nil {
		return nil, err
	}

	opts := []parquet.WriterProperty{parquet.WithCompression(codec)}
	if config.BatchSize > 0 {
		opts = append(opts, parquet.WithMaxRowGroupLength(int64(config.BatchSize)))
	}

	return &parquetWriter{
		writer: sinkOnly{w},
		config: config,
		props:  parquet.NewWriterProperties(opts...),
		pool:   memory.NewGoAllocator(),
	}, nil
}

func (pw *parquetWriter) Write(d *databox.Databox) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	t, err := newTable(d)
	if err != nil {
		return err
	}

	if pw.fileWriter == nil {
		pw.arrowSchema = arrowSchema(t)
		pw.layout = t.layout()
		arrowProps := pqarrow.NewArrowWriterProperties(
			pqarrow.WithAllocator(pw.pool),
			pqarrow.WithStoreSchema(),
		)
		fw, err := pqarrow.NewFileWriter(pw.arrowSchema, pw.writer, pw.props, arrowProps)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to create Parquet writer")
		}
		pw.fileWriter = fw
	} else if err := checkLayout(pw.layout, t); err != nil {
		return err
	}

	rec := buildRecord(pw.pool, pw.arrowSchema, t)
	defer rec.Release()

	if err := pw.fileWriter.Write(rec); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write Parquet row group")
	}
	pw.rows += int64(t.rows)
	return nil
}

func (pw *parquetWriter) Close() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if pw.fileWriter == nil {
		return nil
	}
	if err := pw.fileWriter.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close Parquet writer")
	}
	pw.fileWriter = nil
	return nil
}

func (pw *parquetWriter) Format() Format { return Parquet }

func (pw *parquetWriter) RowsWritten() int64 { return pw.rows }

func parquetCompression(name string) (compress.Compression, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	default:
		return compress.Codecs.Uncompressed, errors.Newf(errors.ErrorTypeCapability, "parquet does not support %q compression", name)
	}
}
