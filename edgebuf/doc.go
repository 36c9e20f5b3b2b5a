// Package edgebuf stages candidate graph edges on disk while the tile scan
// runs.
//
// A Buffer is an append-only store of (row, col) index pairs backed by a
// memory-mapped scratch file. It is sized upfront from the expected edge
// count and doubles its backing file when the estimate proves too small;
// growth is reported to the caller through AppendResult rather than treated
// as a failure. Dirty pages are flushed at a bounded interval so a crash
// cannot lose more than one flush window.
//
// Finalize freezes the buffer and exposes the exact written prefix as a
// read-only View for assembly. Close unmaps and always removes the scratch
// file; callers defer it right after Create so no spill file survives the
// build on any path.
package edgebuf
