package databox

import (
	"bytes"
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/float16"

	"github.com/labkit/databox/pkg/errors"
)

// BinaryKey is the header key that marks a file as carrying raw column
// blocks. Its value names the default dtype of the blocks.
const BinaryKey = "SPINMOB_BINARY"

// encodeColumn renders c as little-endian bytes of dtype dt.
func encodeColumn(c *Column, dt DType) ([]byte, DType, error) {
	switch {
	case c.dtype == Str || dt == Str:
		items := make([]Value, c.Len())
		for i, s := range c.Strings() {
			items[i] = String(s)
		}
		return []byte(List(items...).Repr()), Str, nil
	case c.dtype == Complex128 || dt == Complex128:
		vals := c.Complexes()
		buf := make([]byte, 16*len(vals))
		for i, v := range vals {
			binary.LittleEndian.PutUint64(buf[16*i:], math.Float64bits(real(v)))
			binary.LittleEndian.PutUint64(buf[16*i+8:], math.Float64bits(imag(v)))
		}
		return buf, Complex128, nil
	}

	vals := c.reals
	switch dt {
	case Float16:
		buf := make([]byte, 2*len(vals))
		for i, v := range vals {
			binary.LittleEndian.PutUint16(buf[2*i:], float16.New(float32(v)).Uint16())
		}
		return buf, Float16, nil
	case Float32:
		buf := make([]byte, 4*len(vals))
		for i, v := range vals {
			binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(v)))
		}
		return buf, Float32, nil
	default:
		buf := make([]byte, 8*len(vals))
		for i, v := range vals {
			binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
		}
		return buf, Float64, nil
	}
}

// decodeColumn is the inverse of encodeColumn.
func decodeColumn(raw []byte, dt DType) (*Column, error) {
	width := map[DType]int{Float16: 2, Float32: 4, Float64: 8, Complex128: 16}[dt]
	if dt != Str && len(raw)%width != 0 {
		return nil, errors.Newf(errors.ErrorTypeDecode,
			"%d bytes is not a whole number of %s elements", len(raw), dt)
	}

	col := NewColumn(dt)
	switch dt {
	case Str:
		v, err := ParseLiteral(string(raw))
		if err != nil || v.Kind() != KindList {
			return nil, errors.New(errors.ErrorTypeDecode, "string block is not a list literal")
		}
		col.strs = make([]string, len(v.Items()))
		for i, item := range v.Items() {
			col.strs[i] = item.String()
		}
	case Complex128:
		col.cplx = make([]complex128, len(raw)/16)
		for i := range col.cplx {
			re := math.Float64frombits(binary.LittleEndian.Uint64(raw[16*i:]))
			im := math.Float64frombits(binary.LittleEndian.Uint64(raw[16*i+8:]))
			col.cplx[i] = complex(re, im)
		}
	case Float16:
		col.reals = make([]float64, len(raw)/2)
		for i := range col.reals {
			col.reals[i] = float64(float16.FromBits(binary.LittleEndian.Uint16(raw[2*i:])).Float32())
		}
	case Float32:
		col.reals = make([]float64, len(raw)/4)
		for i := range col.reals {
			col.reals[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:])))
		}
	default:
		col.reals = make([]float64, len(raw)/8)
		for i := range col.reals {
			col.reals[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
		}
	}
	return col, nil
}

// writeBlock appends "<key><delim><nbytes><delim><dtype>\n<raw>\n".
func writeBlock(buf *bytes.Buffer, key, delimiter string, raw []byte, dt DType) {
	buf.WriteString(key)
	buf.WriteString(delimiter)
	buf.WriteString(strconv.Itoa(len(raw)))
	buf.WriteString(delimiter)
	buf.WriteString(dt.String())
	buf.WriteByte('\n')
	buf.Write(raw)
	buf.WriteByte('\n')
}

// readBlocks decodes every column block in data, which starts right after
// the blank line that ends the header section.
func readBlocks(data []byte, delimiter string) (*ColumnStore, error) {
	columns := newOrdered[*Column]()
	pos := 0
	for {
		for pos < len(data) && (data[pos] == '\n' || data[pos] == '\r') {
			pos++
		}
		if pos >= len(data) {
			return columns, nil
		}

		end := bytes.IndexByte(data[pos:], '\n')
		if end < 0 {
			return nil, errors.Newf(errors.ErrorTypeDecode, "column block header at byte %d has no newline", pos)
		}
		line := strings.TrimRight(string(data[pos:pos+end]), "\r")
		pos += end + 1

		key, nbytes, dt, err := parseBlockHeader(line, delimiter)
		if err != nil {
			return nil, err
		}
		if pos+nbytes > len(data) {
			return nil, errors.Newf(errors.ErrorTypeDecode,
				"column %q needs %d bytes, only %d remain", key, nbytes, len(data)-pos).
				WithDetail("column", key)
		}
		col, err := decodeColumn(data[pos:pos+nbytes], dt)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeDecode, "failed to decode column "+strconv.Quote(key))
		}
		pos += nbytes
		if pos < len(data) && data[pos] != '\n' {
			return nil, errors.Newf(errors.ErrorTypeDecode, "column %q block is not newline-terminated", key)
		}
		if columns.Has(key) {
			return nil, errors.Newf(errors.ErrorTypeDecode, "column %q appears twice", key)
		}
		columns.Insert(key, col, -1)
	}
}

// parseBlockHeader splits "<key><delim><nbytes><delim><dtype>" from the
// right so keys may contain the delimiter.
func parseBlockHeader(line, delimiter string) (string, int, DType, error) {
	tokens := splitLine(line, delimiter)
	if len(tokens) < 3 {
		return "", 0, Float64, errors.Newf(errors.ErrorTypeDecode, "malformed column block header %q", line)
	}
	n := len(tokens)
	nbytes, err := strconv.Atoi(tokens[n-2])
	if err != nil || nbytes < 0 {
		return "", 0, Float64, errors.Newf(errors.ErrorTypeDecode, "bad byte count in block header %q", line)
	}
	dt, err := ParseDType(tokens[n-1])
	if err != nil {
		return "", 0, Float64, errors.Wrap(err, errors.ErrorTypeDecode, "bad dtype in block header")
	}
	sep := delimiter
	if sep == Whitespace {
		sep = " "
	}
	return strings.Join(tokens[:n-2], sep), nbytes, dt, nil
}
