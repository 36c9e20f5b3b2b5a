// Package mmap provides memory-mapped file access for zero-copy I/O.
//
// # Overview
//
// Memory mapping allows direct access to file contents without copying data
// through kernel buffers. This is essential for staging edge pairs on disk,
// where the spill file can grow to gigabytes while the working set stays
// page-cache resident.
//
// # Usage
//
//	m, err := mmap.Open("graph.sgm")
//	if err != nil { ... }
//	defer m.Close()
//
//	// Zero-copy access to file contents
//	data := m.Bytes()
//
//	// Create a view into a specific region
//	region, _ := m.Region(offset, size)
//
//	// Provide kernel hints for access patterns
//	m.Advise(mmap.AccessSequential)
//
// # Writable Mappings
//
// Create() maps a file read-write and keeps the descriptor so the mapping
// can later Grow(). Grow remaps; any slice obtained from Bytes() before the
// call is invalid afterwards. Sync() flushes dirty pages to the backing file.
//
// # Platform Support
//
// The package provides a unified API across platforms:
//
//   - Unix (Linux, macOS, BSD): Uses mmap(2) with madvise(2) for access hints
//   - Windows: Uses CreateFileMapping/MapViewOfFile (madvise is a no-op)
//
// # Thread Safety
//
// Mapping and Region are safe for concurrent read access. The Close() method
// is idempotent and protected by atomic operations. However, callers must
// ensure no goroutines access Bytes() after Close() or across a Grow().
package mmap
