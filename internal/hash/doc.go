// Package hash provides the checksum used for artifact integrity.
//
// All checksums in simgraph use CRC32-Castagnoli (CRC32C): the matrix
// artifact trailer, the id list digest in the manifest, and the publish
// verification step all share it. CRC32C is hardware accelerated on x86
// (SSE4.2) and ARM (CRC extension) and detects all single-bit, double-bit,
// and odd-bit errors, plus burst errors up to 32 bits.
//
// For one-shot checksums:
//
//	checksum := hash.CRC32C(data)
//
// For streaming checksums over chunked writes:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	checksum := h.Sum32()
//
// The polynomial table is computed once at package init; Go's crc32
// package picks hardware instructions automatically when available.
package hash
