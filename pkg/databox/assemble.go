package databox

import (
	"go.uber.org/zap"

	"github.com/labkit/databox/pkg/metrics"
)

type columnBuffer struct {
	values    []complex128
	isComplex bool
}

// assembleColumns reads every line from first to the end into one column per
// key. Token m goes to column m; tokens that are not numbers are skipped,
// which is what makes columns ragged.
func assembleColumns(lines []string, first int, delimiter string, ckeys []string) *ColumnStore {
	buffers := make([]columnBuffer, len(ckeys))
	for _, line := range lines[first:] {
		tokens := splitLine(line, delimiter)
		for m := 0; m < len(tokens) && m < len(ckeys); m++ {
			v, isComplex, ok := parseNumeric(tokens[m])
			if !ok {
				continue
			}
			buffers[m].values = append(buffers[m].values, v)
			buffers[m].isComplex = buffers[m].isComplex || isComplex
		}
	}

	store := newOrdered[*Column]()
	for m, key := range ckeys {
		store.Insert(key, narrow(buffers[m]), -1)
	}
	return store
}

// narrow picks the smallest dtype that holds the buffer exactly.
func narrow(buf columnBuffer) *Column {
	if buf.isComplex {
		return &Column{dtype: Complex128, cplx: buf.values}
	}
	reals := make([]float64, len(buf.values))
	for i, v := range buf.values {
		reals[i] = real(v)
	}
	return &Column{dtype: Float64, reals: reals}
}

// applyRenames maps legacy column names to canonical ones in place. A rename
// is skipped when the canonical name is already taken.
func applyRenames(columns *ColumnStore, renames map[string]string, log *zap.Logger) {
	for _, key := range columns.Keys() {
		canonical, ok := renames[key]
		if !ok || canonical == key {
			continue
		}
		if columns.Has(canonical) {
			log.Warn("legacy column name kept, canonical name already present",
				zap.String("column", key), zap.String("canonical", canonical))
			continue
		}
		_ = columns.Rename(key, canonical)
		log.Info("renamed legacy column", zap.String("from", key), zap.String("to", canonical))
		metrics.Diagnostic("legacy_rename")
	}
}

// padColumns extends every column with NaN to the longest length and
// returns that length.
func padColumns(columns *ColumnStore) int {
	longest := 0
	for _, key := range columns.keys {
		if n := columns.values[key].Len(); n > longest {
			longest = n
		}
	}
	for _, key := range columns.keys {
		columns.values[key].PadNaN(longest)
	}
	return longest
}
