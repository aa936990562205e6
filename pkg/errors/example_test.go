// Package errors provides examples of structured error handling in databox.
package errors_test

import (
	"fmt"
	"io"

	"github.com/labkit/databox/pkg/errors"
)

// Example demonstrates basic error creation and wrapping.
func Example() {
	err := errors.New(errors.ErrorTypeDecode, "binary block truncated")

	err = err.WithDetail("column", "voltage").
		WithDetail("expected_bytes", 800)

	fmt.Println(err.Error())

	// Output:
	// decode: binary block truncated
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	originalErr := io.ErrUnexpectedEOF

	err := errors.Wrap(originalErr, errors.ErrorTypeFile, "failed to read databox file").
		WithDetail("file", "sweep.dat")

	if errors.IsType(err, errors.ErrorTypeFile) {
		fmt.Println("This is a file error")
	}
	fmt.Println(err.Error())

	// Output:
	// This is a file error
	// file: failed to read databox file: unexpected EOF
}

// ExampleTypeOf demonstrates recovering the category of an error.
func ExampleTypeOf() {
	scriptErr := errors.Newf(errors.ErrorTypeScript, "could not evaluate %q", "c(9)")
	fmt.Println(errors.TypeOf(scriptErr))
	fmt.Println(errors.TypeOf(io.EOF))

	// Output:
	// script
	// internal
}
