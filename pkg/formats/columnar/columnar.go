// Package columnar exports databoxes to columnar and self-describing formats:
// Apache Arrow IPC files, Apache Parquet, Avro object container files and
// JSON documents.
//
// Every format carries the databox headers alongside the columns. Arrow and
// Parquet store them as schema metadata with one JSON-encoded value per
// header key, Avro stores one JSON object under the file metadata key
// "databox.headers", and JSON writes a "headers" object.
package columnar

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/labkit/databox/pkg/databox"
	"github.com/labkit/databox/pkg/errors"
	"github.com/labkit/databox/pkg/metrics"
	"github.com/labkit/databox/pkg/observability"
)

// Format represents an export format
type Format string

const (
	// Arrow is the Apache Arrow IPC file format
	Arrow Format = "arrow"
	// Parquet is Apache Parquet format
	Parquet Format = "parquet"
	// Avro is an Apache Avro object container file
	Avro Format = "avro"
	// JSON is a JSON document per databox
	JSON Format = "json"
)

// AvroHeadersKey is the OCF metadata key holding the headers.
const AvroHeadersKey = "databox.headers"

// Writer exports databoxes. Every databox written to one Writer must have
// the same column layout; the headers of the first one are kept for formats
// that carry them once per file.
type Writer interface {
	// Write appends the columns of d
	Write(d *databox.Databox) error
	// Close flushes buffered data and finalizes the file footer
	Close() error
	// Format returns the export format
	Format() Format
	// RowsWritten returns rows written so far
	RowsWritten() int64
}

// WriterConfig configures export writers
type WriterConfig struct {
	Format Format
	// Compression names a codec understood by the format: lz4 or zstd for
	// Arrow, snappy, gzip, zstd, brotli or none for Parquet, deflate or
	// snappy for Avro, and any pkg/compression algorithm for JSON.
	Compression string
	// BatchSize bounds the rows per Arrow record batch or Parquet row group;
	// zero writes each databox as one batch.
	BatchSize int
	// Pretty indents JSON output
	Pretty bool
}

// DefaultWriterConfig returns default writer configuration
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		Format:    Arrow,
		BatchSize: 64 * 1024,
	}
}

// NewWriter creates a writer for config.Format on top of w. The caller
// still owns w and closes it after the Writer.
func NewWriter(w io.Writer, config *WriterConfig) (Writer, error) {
	if config == nil {
		config = DefaultWriterConfig()
	}
	if config.BatchSize < 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "batch size cannot be negative")
	}

	switch config.Format {
	case Arrow:
		return newArrowWriter(w, config)
	case Parquet:
		return newParquetWriter(w, config)
	case Avro:
		return newAvroWriter(w, config)
	case JSON:
		return newJSONWriter(w, config)
	default:
		return nil, errors.Newf(errors.ErrorTypeCapability, "unsupported export format: %q", config.Format)
	}
}

// Export writes d to w as a single-databox file.
func Export(ctx context.Context, w io.Writer, d *databox.Databox, config *WriterConfig) (err error) {
	if config == nil {
		config = DefaultWriterConfig()
	}
	_, span := observability.StartSpan(ctx, "databox.export")
	span.SetAttribute("format", string(config.Format))
	start := time.Now()
	defer func() {
		metrics.ObserveExport(string(config.Format), metrics.Status(err), time.Since(start))
		span.End(err)
	}()

	cw, err := NewWriter(w, config)
	if err != nil {
		return err
	}
	if err = cw.Write(d); err != nil {
		_ = cw.Close()
		return err
	}
	span.SetAttribute("rows", cw.RowsWritten())
	return cw.Close()
}

// ParseFormat resolves a format name, accepting a few common aliases.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "arrow", "ipc", "feather":
		return Arrow, nil
	case "parquet", "pq":
		return Parquet, nil
	case "avro", "ocf":
		return Avro, nil
	case "json":
		return JSON, nil
	}
	return "", errors.Newf(errors.ErrorTypeCapability, "unknown export format %q", name)
}

// FormatForPath picks a format from a file extension.
func FormatForPath(path string) (Format, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range Formats() {
		info := GetFormatInfo(f)
		for _, known := range info.Extensions {
			if ext == known {
				return f, true
			}
		}
	}
	return "", false
}

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{Arrow, Parquet, Avro, JSON}
}

// FormatInfo provides information about export formats
type FormatInfo struct {
	Format           Format
	Name             string
	Description      string
	Extensions       []string
	MIMEType         string
	SupportsCompress bool
	SupportsBatches  bool
}

// GetFormatInfo returns information about an export format
func GetFormatInfo(format Format) *FormatInfo {
	switch format {
	case Arrow:
		return &FormatInfo{
			Format:           Arrow,
			Name:             "Apache Arrow",
			Description:      "Arrow IPC file, one record batch per databox or batch",
			Extensions:       []string{".arrow", ".feather", ".ipc"},
			MIMEType:         "application/vnd.apache.arrow.file",
			SupportsCompress: true,
			SupportsBatches:  true,
		}
	case Parquet:
		return &FormatInfo{
			Format:           Parquet,
			Name:             "Apache Parquet",
			Description:      "Columnar storage format optimized for analytics",
			Extensions:       []string{".parquet", ".pq"},
			MIMEType:         "application/x-parquet",
			SupportsCompress: true,
			SupportsBatches:  true,
		}
	case Avro:
		return &FormatInfo{
			Format:           Avro,
			Name:             "Apache Avro",
			Description:      "Row-oriented object container file",
			Extensions:       []string{".avro"},
			MIMEType:         "application/avro",
			SupportsCompress: true,
		}
	case JSON:
		return &FormatInfo{
			Format:           JSON,
			Name:             "JSON",
			Description:      "One object per databox with headers and columns",
			Extensions:       []string{".json", ".jsonl"},
			MIMEType:         "application/json",
			SupportsCompress: true,
		}
	default:
		return nil
	}
}
