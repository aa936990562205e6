package databox

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/labkit/databox/pkg/metrics"
)

// NoData is the FirstDataLine of a Boundary when no data line was found.
const NoData = -1

// Boundary is the result of scanning a file for its header/data split.
type Boundary struct {
	// FirstDataLine is the index of the first data row, or NoData
	FirstDataLine int
	// Headers holds every header entry above the data, in file order
	Headers *HeaderStore
	// CKeys names the columns, one per token of the first data row
	CKeys []string
	// CKeysLine is the index of the line CKeys came from, or -1 if synthetic
	CKeysLine int
	// Synthetic is set when CKeys were generated as c0, c1, ...
	Synthetic bool
	// Duplicates lists header keys seen more than once
	Duplicates []string
	// Truncated counts column-key tokens dropped beyond the data width
	Truncated int
}

type detectState int

const (
	scanningHeader detectState = iota
	foundData
)

type keyCandidate struct {
	line     int
	tokens   []string
	key      string
	inserted bool
}

// DetectBoundary classifies lines top-down until the first data row. When
// firstData is non-negative the scan stops there instead. The last column-key
// candidate is accepted only if it sits directly above the data and has at
// least as many tokens as the data row.
func DetectBoundary(lines []string, delimiter string, firstData int, log *zap.Logger) Boundary {
	if log == nil {
		log = zap.NewNop()
	}
	b := Boundary{FirstDataLine: NoData, Headers: newOrdered[Value](), CKeysLine: -1}

	var candidate *keyCandidate
	state := scanningHeader
	for i := 0; i < len(lines) && state == scanningHeader; i++ {
		if firstData >= 0 && i == firstData {
			b.FirstDataLine = i
			state = foundData
			break
		}

		c := Classify(lines[i], delimiter)
		switch c.Kind {
		case LineBlank:
			continue
		case LineData:
			if firstData < 0 {
				b.FirstDataLine = i
				state = foundData
				continue
			}
		}
		if c.Kind == LineData {
			// data above a forced boundary is kept as an unnamed header row
			c.Key, c.Value = c.Tokens[0], tokenList(c.Tokens[1:])
		}

		inserted := false
		if b.Headers.Has(c.Key) {
			b.Duplicates = append(b.Duplicates, c.Key)
			log.Warn("duplicate header key, keeping first value",
				zap.String("key", c.Key), zap.Int("line", i+1))
			metrics.Diagnostic("duplicate_header")
		} else {
			b.Headers.Insert(c.Key, c.Value, -1)
			inserted = true
		}
		if c.IsKeyCandidate() {
			candidate = &keyCandidate{line: i, tokens: c.Tokens, key: c.Key, inserted: inserted}
		}
	}

	if state != foundData || b.FirstDataLine >= len(lines) {
		b.FirstDataLine = NoData
		return b
	}

	width := len(splitLine(lines[b.FirstDataLine], delimiter))
	if candidate != nil && candidate.line == b.FirstDataLine-1 && len(candidate.tokens) >= width {
		if extra := len(candidate.tokens) - width; extra > 0 {
			b.Truncated = extra
			log.Warn("column key line longer than data, truncating",
				zap.Int("line", candidate.line+1), zap.Int("extra_keys", extra))
			metrics.Diagnostic("truncated_keys")
		}
		b.CKeys = uniqueKeys(candidate.tokens[:width])
		b.CKeysLine = candidate.line
		if candidate.inserted {
			b.Headers.Pop(candidate.key)
		}
		return b
	}

	b.CKeys = syntheticKeys(width)
	b.Synthetic = true
	log.Warn("no valid column key line, using synthetic names",
		zap.Int("first_data_line", b.FirstDataLine+1), zap.Int("columns", width))
	metrics.Diagnostic("synthetic_keys")
	return b
}

func syntheticKeys(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = "c" + strconv.Itoa(i)
	}
	return keys
}

// uniqueKeys suffixes repeated names with _1, _2, ...
func uniqueKeys(keys []string) []string {
	out := make([]string, len(keys))
	taken := make(map[string]bool, len(keys))
	for i, k := range keys {
		name := k
		for n := 1; taken[name]; n++ {
			name = k + "_" + strconv.Itoa(n)
		}
		taken[name] = true
		out[i] = name
	}
	return out
}
