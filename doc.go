// Package databox reads, scripts and rewrites the text files laboratory
// instruments produce: a block of "key value" header lines followed by
// delimited columns of numbers.
//
// # Quick Start
//
// Load a file, evaluate a script over its columns and save it as binary:
//
//	import (
//	    "fmt"
//
//	    "github.com/labkit/databox/pkg/databox"
//	)
//
//	d, err := databox.New().LoadFile("sweep.txt", databox.LoadOptions{})
//	if err != nil {
//	    return err
//	}
//	power, err := d.ExecuteScript("c('x')**2 + c('y')**2")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(power)
//
//	_, err = d.SaveFile("sweep.bin", databox.SaveOptions{Binary: "float32"})
//
// # Key Packages
//
//	pkg/databox           - Headers, ragged columns, ASCII and SPINMOB_BINARY I/O
//	pkg/script            - "expr where a=...; b=..." evaluator over a databox
//	pkg/formats/columnar  - Arrow IPC, Parquet, Avro and JSON export
//	pkg/compression       - Compressed files, detected by extension and magic bytes
//	pkg/mmap              - Memory-mapped reads of large files
//	pkg/config            - Configuration passed to constructors
//	pkg/errors            - Typed errors with details
//	pkg/logger            - zap logging
//	pkg/metrics           - Prometheus counters and histograms
//	pkg/observability     - OpenTelemetry tracing
//
// # File Layout
//
// A databox file starts with header lines, one key and one Python-style
// literal each. The first line whose tokens are all numbers, and whose
// neighbor agrees on the token count, begins the data. The line above it
// names the columns when it has the same number of tokens; otherwise the
// columns are called c0, c1 and so on. Columns may be ragged: short columns
// are padded with nan (or _) on save and trimmed on load.
//
// A file whose first header is SPINMOB_BINARY stores each column as a
// "key dtype length" line followed by raw little-endian values.
//
// # Command Line
//
// cmd/databox wraps the packages in a cobra CLI with inspect, eval,
// convert, export and compare subcommands. Configuration is layered from
// defaults, a YAML file, DATABOX_* environment variables and flags.
package databox
