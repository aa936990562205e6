package databox

import (
	"bytes"
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/labkit/databox/pkg/compression"
	"github.com/labkit/databox/pkg/errors"
	"github.com/labkit/databox/pkg/metrics"
	"github.com/labkit/databox/pkg/observability"
)

// SaveOptions controls SaveFile.
type SaveOptions struct {
	// Binary selects float16, float32 or float64 column blocks; empty
	// falls back to the configured mode, which defaults to ASCII rows
	Binary string
	// ForceOverwrite replaces an existing file instead of renaming it to
	// <path>.backup
	ForceOverwrite bool
	// Delimiter overrides the databox delimiter for this save
	Delimiter *string
	// PadToken fills short columns in ASCII rows; defaults to the
	// configured token
	PadToken string
	// Chooser supplies a path when SaveFile is called with an empty one
	Chooser PathChooser
	// Compression forces an algorithm; by default the path extension decides
	Compression compression.Algorithm
}

// SaveFile writes the databox to path and returns the path written. An empty
// path asks opts.Chooser; a declined choice is an aborted error.
func (d *Databox) SaveFile(path string, opts SaveOptions) (string, error) {
	return d.SaveFileContext(context.Background(), path, opts)
}

// SaveFileContext is SaveFile with tracing.
func (d *Databox) SaveFileContext(ctx context.Context, path string, opts SaveOptions) (string, error) {
	_, span := observability.StartSpan(ctx, "databox.save")
	timer := metrics.NewTimer("save")
	if opts.Binary == "" {
		opts.Binary = d.cfg.Save.Binary
	}
	mode := opts.Binary
	if mode == "" {
		mode = "ascii"
	}

	written, err := d.save(path, opts)
	status := metrics.Status(err)
	if errors.IsType(err, errors.ErrorTypeAborted) {
		status = "aborted"
	}
	metrics.ObserveSave(mode, status, timer.Stop())
	span.SetAttribute("path", written)
	span.SetAttribute("mode", mode)
	span.SetAttribute("columns", d.Len())
	span.End(err)
	return written, err
}

func (d *Databox) save(path string, opts SaveOptions) (string, error) {
	if path == "" && opts.Chooser != nil {
		if chosen, ok := opts.Chooser(); ok {
			path = chosen
		}
	}
	if path == "" {
		d.logger.Info("save aborted, no path chosen")
		return "", errors.New(errors.ErrorTypeAborted, "no path chosen for save")
	}

	delimiter := d.delimiter
	if opts.Delimiter != nil {
		delimiter = *opts.Delimiter
	}
	if delimiter == Whitespace {
		delimiter = d.cfg.Save.SaveDelimiter()
	}

	var (
		body []byte
		err  error
	)
	if opts.Binary != "" {
		body, err = d.encodeBinary(delimiter, opts.Binary)
	} else {
		pad := opts.PadToken
		if pad == "" {
			pad = d.cfg.Save.PadToken
		}
		body = d.encodeASCII(delimiter, pad)
	}
	if err != nil {
		return path, err
	}

	alg := opts.Compression
	if alg == "" {
		alg = compression.ForPath(path)
	}
	if alg != compression.None {
		comp, err := compression.NewCompressor(&compression.Config{Algorithm: alg, Level: compression.Default})
		if err != nil {
			return path, errors.Wrap(err, errors.ErrorTypeCapability, "unsupported compression")
		}
		if body, err = comp.Compress(body); err != nil {
			return path, errors.Wrap(err, errors.ErrorTypeFile, "failed to compress databox")
		}
	}

	force := opts.ForceOverwrite || d.cfg.Save.ForceOverwrite
	if _, statErr := os.Stat(path); statErr == nil && !force {
		backup := path + ".backup"
		if err := os.Rename(path, backup); err != nil {
			return path, errors.Wrap(err, errors.ErrorTypeFile, "failed to back up existing file")
		}
		d.logger.Info("existing file backed up", zap.String("path", path), zap.String("backup", backup))
	}

	start := time.Now()
	if err := os.WriteFile(path, body, 0o644); err != nil { //nolint:gosec // data files are meant to be shared
		return path, errors.Wrap(err, errors.ErrorTypeFile, "failed to write databox file").
			WithDetail("path", path)
	}
	d.path = path
	d.logger.Debug("databox saved",
		zap.String("path", path),
		zap.String("mode", opts.Binary),
		zap.String("compression", string(alg)),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)))
	return path, nil
}

// writeHeaders writes one "key<delim>repr" line per header, skipping the
// binary marker, then the blank separator line.
func (d *Databox) writeHeaders(buf *bytes.Buffer, delimiter string) {
	for _, key := range d.headers.keys {
		if key == BinaryKey {
			continue
		}
		buf.WriteString(key)
		buf.WriteString(delimiter)
		buf.WriteString(d.headers.values[key].Repr())
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
}

// encodeASCII renders the text layout: headers, a blank line, the column
// key line, then one row per index with short columns padded.
func (d *Databox) encodeASCII(delimiter, pad string) []byte {
	var buf bytes.Buffer
	d.writeHeaders(&buf, delimiter)
	if d.columns.Len() == 0 {
		return buf.Bytes()
	}

	for i, key := range d.columns.keys {
		if i > 0 {
			buf.WriteString(delimiter)
		}
		buf.WriteString(key)
	}
	buf.WriteByte('\n')

	rows := d.Rows()
	for r := 0; r < rows; r++ {
		for i, key := range d.columns.keys {
			if i > 0 {
				buf.WriteString(delimiter)
			}
			col := d.columns.values[key]
			if r < col.Len() {
				buf.WriteString(col.format(r))
			} else {
				buf.WriteString(pad)
			}
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// encodeBinary renders the marker line, the headers, and one raw block per
// column. Per-column dtypes set with SetDType override the uniform one.
func (d *Databox) encodeBinary(delimiter, dtypeName string) ([]byte, error) {
	uniform, err := ParseDType(dtypeName)
	if err != nil || !uniform.IsReal() {
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"binary dtype must be float16, float32 or float64, got %q", dtypeName)
	}

	var buf bytes.Buffer
	buf.WriteString(BinaryKey)
	buf.WriteString(delimiter)
	buf.WriteString(String(uniform.String()).Repr())
	buf.WriteByte('\n')
	d.writeHeaders(&buf, delimiter)

	for _, key := range d.columns.keys {
		dt := uniform
		override, overridden := d.dtypes[key]
		if overridden {
			dt = override
		}
		col := d.columns.values[key]
		if overridden && col.dtype == Complex128 && dt.IsReal() {
			converted, err := col.AsType(dt)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeValidation, "cannot store column "+key+" as "+dt.String())
			}
			col = converted
		}
		raw, written, err := encodeColumn(col, dt)
		if err != nil {
			return nil, err
		}
		writeBlock(&buf, key, delimiter, raw, written)
	}
	return buf.Bytes(), nil
}
