// Package mmap maps whole files read-only so large data files can be parsed
// without first copying them onto the heap.
package mmap

import (
	"os"
	"sync"

	"github.com/labkit/databox/pkg/errors"
)

// File is a read-only memory mapping of an entire file. The slice returned
// by Bytes is valid until Close.
type File struct {
	mu   sync.Mutex
	file *os.File
	data []byte
}

// Open maps path into memory. Empty files are not mapped; Bytes returns an
// empty slice for them.
func Open(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is chosen by the caller
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat file").WithDetail("path", path)
	}
	size := stat.Size()
	if size == 0 {
		return &File{file: f, data: []byte{}}, nil
	}
	if int64(int(size)) != size {
		_ = f.Close()
		return nil, errors.Newf(errors.ErrorTypeFile, "file of %d bytes is too large to map", size).WithDetail("path", path)
	}

	data, err := mmap(int(f.Fd()), 0, int(size), ProtRead, MapShared)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to mmap file").WithDetail("path", path)
	}
	// advisory only
	_ = madvise(data, MadvSequential)

	return &File{file: f, data: data}, nil
}

// Bytes returns the mapped contents.
func (m *File) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}

// Len returns the mapped size in bytes.
func (m *File) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// Close unmaps the file and closes it. Calling Close twice is a no-op.
func (m *File) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if len(m.data) > 0 {
		err = munmap(m.data)
	}
	m.data = nil

	if m.file != nil {
		if closeErr := m.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		m.file = nil
	}
	return err
}

// ReadFile returns the contents of path, mapping it when it is at least
// threshold bytes long and the platform supports mapping. The release func
// must be called once the returned slice is no longer referenced. A
// threshold of 0 always reads.
func ReadFile(path string, threshold int64) ([]byte, func(), error) {
	if threshold > 0 && supported {
		if stat, err := os.Stat(path); err == nil && stat.Size() >= threshold {
			m, err := Open(path)
			if err != nil {
				return nil, nil, err
			}
			return m.Bytes(), func() { _ = m.Close() }, nil
		}
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is chosen by the caller
	if err != nil {
		return nil, nil, err
	}
	return data, func() {}, nil
}
