//go:build !linux && !darwin

package mmap

import "github.com/labkit/databox/pkg/errors"

const (
	supported = false

	ProtRead       = 0
	MapShared      = 0
	MadvSequential = 0
)

func mmap(int, int64, int, int, int) ([]byte, error) {
	return nil, errors.New(errors.ErrorTypeCapability, "memory mapping is not supported on this platform")
}

func munmap([]byte) error { return nil }

func madvise([]byte, int) error { return nil }
