package databox

import (
	"bytes"
	"context"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/labkit/databox/pkg/compression"
	"github.com/labkit/databox/pkg/errors"
	"github.com/labkit/databox/pkg/metrics"
	"github.com/labkit/databox/pkg/mmap"
	"github.com/labkit/databox/pkg/observability"
)

// PathChooser stands in for a file dialog: it returns a path, or false when
// the user cancels.
type PathChooser func() (string, bool)

// LoadOptions controls LoadFile.
type LoadOptions struct {
	// FirstDataLine fixes the 0-based index of the first data row; nil
	// detects it
	FirstDataLine *int
	// HeaderOnly reads the headers and skips the columns
	HeaderOnly bool
	// Delimiter forces the token delimiter; nil resolves it from the file
	Delimiter *string
	// Chooser supplies a path when LoadFile is called with an empty one
	Chooser PathChooser
}

// Line returns a pointer to n for LoadOptions.FirstDataLine.
func Line(n int) *int { return &n }

// Delim returns a pointer to d for the Delimiter options.
func Delim(d string) *string { return &d }

// LoadReport describes what the last load found. The recoverable conditions
// it lists are also logged as warnings.
type LoadReport struct {
	Path          string
	Delimiter     string
	Binary        bool
	Compression   compression.Algorithm
	FirstDataLine int
	NoData        bool
	SyntheticKeys bool
	DuplicateKeys []string
	TruncatedKeys int
	Rows          int
}

// Load reads a databox file with default options.
func Load(path string, opts ...Option) (*Databox, error) {
	return New(opts...).LoadFile(path, LoadOptions{})
}

// LoadFile clears d and fills it from path. It returns nil and an aborted
// error when no path is chosen or the file does not exist; a malformed binary
// block is a decode error. Every other irregularity is recovered and logged.
func (d *Databox) LoadFile(path string, opts LoadOptions) (*Databox, error) {
	return d.LoadFileContext(context.Background(), path, opts)
}

// LoadFileContext is LoadFile with tracing.
func (d *Databox) LoadFileContext(ctx context.Context, path string, opts LoadOptions) (*Databox, error) {
	_, span := observability.StartSpan(ctx, "databox.load")
	timer := metrics.NewTimer("load")

	err := d.load(path, opts)

	mode := "ascii"
	if d.report.Binary {
		mode = "binary"
	}
	status := metrics.Status(err)
	if errors.IsType(err, errors.ErrorTypeAborted) {
		status = "aborted"
	}
	metrics.ObserveLoad(mode, status, timer.Stop(), d.Rows(), d.Len())
	span.SetAttribute("path", d.report.Path)
	span.SetAttribute("mode", mode)
	span.SetAttribute("rows", d.Rows())
	span.SetAttribute("columns", d.Len())
	span.End(err)

	if err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Databox) load(path string, opts LoadOptions) error {
	d.report = LoadReport{FirstDataLine: NoData}
	if path == "" && opts.Chooser != nil {
		if chosen, ok := opts.Chooser(); ok {
			path = chosen
		}
	}
	if path == "" {
		d.logger.Info("load aborted, no path chosen")
		return errors.New(errors.ErrorTypeAborted, "no path chosen for load")
	}
	d.report.Path = path

	raw, release, err := mmap.ReadFile(path, d.cfg.Parse.MmapThreshold)
	if err != nil {
		if os.IsNotExist(err) {
			d.logger.Warn("file does not exist, load aborted", zap.String("path", path))
			return errors.Wrap(err, errors.ErrorTypeAborted, "file does not exist").WithDetail("path", path)
		}
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to read databox file").WithDetail("path", path)
	}
	// parsed values are copied out of raw, so the mapping can go once
	// load returns
	defer release()

	data, alg, err := compression.DecompressAuto(raw)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeDecode, "failed to decompress "+string(alg)+" file").
			WithDetail("path", path)
	}
	d.report.Compression = alg

	d.Clear()
	d.path = path
	log := d.logger.With(zap.String("path", path))

	if delimiter, ok := binaryMarker(data); ok {
		return d.loadBinary(data, delimiter, opts, log)
	}
	return d.loadASCII(string(data), opts, log)
}

// binaryMarker reports whether the first non-blank line starts with the
// binary key and returns the delimiter that follows it.
func binaryMarker(data []byte) (string, bool) {
	trimmed := bytes.TrimLeft(data, "\r\n\t ")
	if !bytes.HasPrefix(trimmed, []byte(BinaryKey)) {
		return "", false
	}
	rest := trimmed[len(BinaryKey):]
	if len(rest) == 0 {
		return "", false
	}
	switch rest[0] {
	case ' ':
		return Whitespace, true
	case '\n', '\r':
		return "", false
	}
	return string(rest[0]), true
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

func (d *Databox) loadASCII(text string, opts LoadOptions, log *zap.Logger) error {
	lines := splitLines(text)
	forced := opts.Delimiter
	if forced == nil && d.cfg.Parse.Delimiter != "" {
		forced = &d.cfg.Parse.Delimiter
	}
	d.delimiter = ResolveDelimiter(lines, forced, d.cfg.Parse.SampleLines)
	d.report.Delimiter = d.delimiter
	log.Debug("delimiter resolved", zap.String("delimiter", describeDelimiter(d.delimiter)))

	first := -1
	if opts.FirstDataLine != nil {
		first = *opts.FirstDataLine
	}
	b := DetectBoundary(lines, d.delimiter, first, log)
	d.headers = b.Headers
	d.report.FirstDataLine = b.FirstDataLine
	d.report.DuplicateKeys = b.Duplicates
	d.report.TruncatedKeys = b.Truncated

	if b.FirstDataLine == NoData {
		d.report.NoData = true
		log.Warn("no data line found, databox holds headers only", zap.Int("headers", d.headers.Len()))
		metrics.Diagnostic("no_data")
		return nil
	}
	d.report.SyntheticKeys = b.Synthetic
	if opts.HeaderOnly {
		return nil
	}

	d.columns = assembleColumns(lines, b.FirstDataLine, d.delimiter, b.CKeys)
	applyRenames(d.columns, d.cfg.Legacy.ColumnRenames, log)
	d.report.Rows = padColumns(d.columns)
	log.Debug("databox loaded",
		zap.Int("headers", d.headers.Len()),
		zap.Int("columns", d.columns.Len()),
		zap.Int("rows", d.report.Rows))
	return nil
}

func (d *Databox) loadBinary(data []byte, delimiter string, opts LoadOptions, log *zap.Logger) error {
	d.report.Binary = true
	d.delimiter = delimiter
	d.report.Delimiter = delimiter

	// header section ends at the first blank line after the marker
	pos := 0
	var lines []string
	for pos < len(data) {
		end := bytes.IndexByte(data[pos:], '\n')
		if end < 0 {
			lines = append(lines, string(data[pos:]))
			pos = len(data)
			break
		}
		line := string(data[pos : pos+end])
		pos += end + 1
		if strings.TrimSpace(line) == "" {
			if len(lines) > 0 {
				break
			}
			continue
		}
		lines = append(lines, line)
	}

	b := DetectBoundary(lines, delimiter, len(lines), log)
	d.headers = b.Headers
	d.report.DuplicateKeys = b.Duplicates
	marker, _ := d.headers.Pop(BinaryKey)
	log.Debug("binary databox", zap.String("dtype", marker.String()))

	if opts.HeaderOnly {
		return nil
	}
	columns, err := readBlocks(data[pos:], delimiter)
	if err != nil {
		log.Error("malformed binary block", zap.Error(err))
		return err
	}
	d.columns = columns
	for _, key := range columns.keys {
		d.dtypes[key] = columns.values[key].dtype
	}
	applyRenames(d.columns, d.cfg.Legacy.ColumnRenames, log)
	d.report.Rows = padColumns(d.columns)
	if d.columns.Len() > 0 {
		d.report.FirstDataLine = len(lines) + 1
	} else {
		d.report.NoData = true
	}
	return nil
}
