package hash

import (
	"fmt"
	"hash"
	"hash/crc32"
	"io"
)

// crc32cTable is pre-computed for the CRC32-Castagnoli polynomial.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// NewCRC32C returns a new CRC32-Castagnoli hash.Hash32 for streaming use.
func NewCRC32C() hash.Hash32 {
	return crc32.New(crc32cTable)
}

// SumReader consumes r to EOF and returns the CRC32C of everything read.
func SumReader(r io.Reader) (uint32, error) {
	h := NewCRC32C()
	if _, err := io.Copy(h, r); err != nil {
		return 0, fmt.Errorf("checksum: %w", err)
	}
	return h.Sum32(), nil
}
