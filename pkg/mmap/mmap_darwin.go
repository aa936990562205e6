//go:build darwin

package mmap

import (
	"syscall"
	"unsafe"
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
	if len(b) == 0 {
		return nil
	}
	_, _, err := syscall.Syscall(syscall.SYS_MADVISE, uintptr(unsafe.Pointer(&b[0])), uintptr(len(b)), uintptr(advice))
	if err != 0 {
		return err
	}
	return nil
}

// Protection, sharing and advice flags passed to the syscalls. The syscall
// package has no MADV constants on darwin.
const (
	supported = true

	ProtRead       = syscall.PROT_READ
	MapShared      = syscall.MAP_SHARED
	MadvSequential = 2
)
