package mmap

import (
	"io"
	"os"
	"sync/atomic"
)

// Mapping represents a memory-mapped file.
// It owns the underlying byte slice and is responsible for unmapping it.
type Mapping struct {
	f      *os.File // retained only for writable mappings
	data   []byte
	size   int
	write  bool
	closed atomic.Bool
	// unmap is the platform-specific function to unmap the memory.
	unmap func([]byte) error
}

// Open maps the file at path into memory.
// The file is mapped as read-only.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := fi.Size()
	if size == 0 {
		return &Mapping{data: nil, size: 0}, nil
	}
	if size < 0 {
		return nil, ErrInvalidSize
	}

	// Platform-specific mapping
	data, unmapFunc, err := osMap(f, int(size))
	if err != nil {
		return nil, err
	}

	m := &Mapping{
		data:  data,
		size:  int(size),
		unmap: unmapFunc,
	}

	return m, nil
}

// Create opens (or creates) the file at path, extends it to size bytes and
// maps it read-write. The file descriptor is retained so the mapping can
// grow later. size must be positive.
func Create(path string, size int) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}

	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, err
	}

	data, unmapFunc, err := osMapRW(f, size)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Mapping{
		f:     f,
		data:  data,
		size:  size,
		write: true,
		unmap: unmapFunc,
	}, nil
}

// Grow extends a writable mapping to newSize bytes. The previous byte slice
// is invalid afterwards; callers must refetch via Bytes(). The caller is
// responsible for excluding concurrent access during the remap.
func (m *Mapping) Grow(newSize int) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if !m.write {
		return ErrReadOnly
	}
	if newSize <= m.size {
		return ErrInvalidSize
	}

	if err := osSync(m.data); err != nil {
		return err
	}
	if err := m.unmap(m.data); err != nil {
		return err
	}
	// The old view is gone at this point. A failure below leaves the mapping
	// unusable, so mark it closed before returning the error.
	if err := m.f.Truncate(int64(newSize)); err != nil {
		m.closed.Store(true)
		m.f.Close()
		return err
	}

	data, unmapFunc, err := osMapRW(m.f, newSize)
	if err != nil {
		m.closed.Store(true)
		m.f.Close()
		return err
	}

	m.data = data
	m.size = newSize
	m.unmap = unmapFunc
	return nil
}

// Sync flushes modified pages of a writable mapping to the backing file.
// It is a no-op for read-only mappings.
func (m *Mapping) Sync() error {
	if m.closed.Load() {
		return ErrClosed
	}
	if !m.write || m.data == nil {
		return nil
	}
	return osSync(m.data)
}

// Close unmaps the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil // Already closed
	}
	var err error
	if m.unmap != nil && m.data != nil {
		err = m.unmap(m.data)
		m.data = nil
	}
	if m.f != nil {
		if cerr := m.f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		m.f = nil
	}
	return err
}

// Bytes returns the underlying byte slice.
// Warning: The slice is valid only until Close() or Grow() is called.
// Accessing the slice after Close() results in undefined behavior (likely a crash).
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return m.size
}

// Writable reports whether the mapping was created read-write.
func (m *Mapping) Writable() bool {
	return m.write
}

// Advise provides hints to the kernel about how the memory will be accessed.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.data == nil {
		return nil
	}
	return osAdvise(m.data, pattern)
}

// ReadAt implements io.ReaderAt.
func (m *Mapping) ReadAt(p []byte, off int64) (n int, err error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrInvalidOffset
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n = copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
