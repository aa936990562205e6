//go:build linux

package mmap

import (
	"syscall"
)

// mmap maps length bytes of fd starting at offset.
func mmap(fd int, offset int64, length int, prot int, flags int) ([]byte, error) {
	return syscall.Mmap(fd, offset, length, prot, flags)
}

// munmap releases a mapping.
func munmap(b []byte) error {
	return syscall.Munmap(b)
}

// madvise passes an access pattern hint to the kernel.
func madvise(b []byte, advice int) error {
	return syscall.Madvise(b, advice)
}

// Protection, sharing and advice flags passed to the syscalls.
const (
	supported = true

	ProtRead       = syscall.PROT_READ
	MapShared      = syscall.MAP_SHARED
	MadvSequential = syscall.MADV_SEQUENTIAL
)
