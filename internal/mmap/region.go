package mmap

// Region is a window into a mapping. It does not own the memory; the
// parent Mapping does. The Region stays usable across Grow, but any slice
// obtained from Bytes is invalidated when the parent grows or closes.
type Region struct {
	parent *Mapping
	offset int
	size   int
}

// Region creates a window covering [offset, offset+size) of the mapping.
func (m *Mapping) Region(offset, size int) (*Region, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if offset < 0 || size < 0 || offset+size > m.size {
		return nil, ErrOutOfBounds
	}
	return &Region{
		parent: m,
		offset: offset,
		size:   size,
	}, nil
}

// Bytes returns the byte slice for this region, or nil once the parent
// mapping has been closed.
func (r *Region) Bytes() []byte {
	if r.parent.closed.Load() {
		return nil
	}
	return r.parent.data[r.offset : r.offset+r.size]
}

// Size returns the region length in bytes.
func (r *Region) Size() int {
	return r.size
}

// Advise hints the kernel about the access pattern for this region only.
func (r *Region) Advise(pattern AccessPattern) error {
	if r.parent.closed.Load() {
		return ErrClosed
	}
	data := r.parent.data[r.offset : r.offset+r.size]
	return osAdvise(data, pattern)
}
