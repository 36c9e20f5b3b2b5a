package sparse

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/simgraph/internal/conv"
	"github.com/hupe1980/simgraph/internal/hash"
)

// binaryMagic identifies native matrix artifacts.
const binaryMagic = "SGM1"

// binaryVersion is the current native format version.
const binaryVersion = 1

// maxBlockBytes is the raw payload size per compressed block. Bounding it
// keeps decode memory flat regardless of matrix size.
const maxBlockBytes = 4 << 20

// CompressionType selects the block compression of the native format.
type CompressionType uint8

const (
	// CompressionNone stores blocks raw.
	CompressionNone CompressionType = 0
	// CompressionLZ4 is the default: fast with a decent ratio on index data.
	CompressionLZ4 CompressionType = 1
	// CompressionZstd trades encode speed for a better ratio.
	CompressionZstd CompressionType = 2
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression maps a config string to a CompressionType.
func ParseCompression(name string) (CompressionType, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4", "":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, name)
	}
}

var (
	// ErrInvalidMagic is returned when an artifact does not start with the
	// native magic.
	ErrInvalidMagic = errors.New("sparse: invalid artifact magic")

	// ErrInvalidVersion is returned for artifacts written by a newer format
	// version.
	ErrInvalidVersion = errors.New("sparse: unsupported artifact version")

	// ErrUnknownCompression is returned for an unrecognized compression id.
	ErrUnknownCompression = errors.New("sparse: unknown compression")

	// ErrCorrupted is returned when the checksum trailer does not match the
	// artifact contents.
	ErrCorrupted = errors.New("sparse: artifact corrupted (checksum mismatch)")
)

// zstd encoder/decoder pools, shared across writes and reads.
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// binaryHeaderSize covers magic, version, compression, reserved padding,
// rows, cols and nnz.
const binaryHeaderSize = 24

// WriteBinary writes m in the native block-compressed format: a fixed
// header, the indptr, indices and data arrays as length-prefixed blocks,
// and a CRC32C trailer over everything before it.
func WriteBinary(w io.Writer, m *CSR, compression CompressionType) error {
	if compression > CompressionZstd {
		return fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(compression))
	}

	rows, err := conv.IntToUint32(m.Rows)
	if err != nil {
		return fmt.Errorf("write artifact header: %w", err)
	}
	cols, err := conv.IntToUint32(m.Cols)
	if err != nil {
		return fmt.Errorf("write artifact header: %w", err)
	}
	nnz, err := conv.IntToUint64(m.NNZ())
	if err != nil {
		return fmt.Errorf("write artifact header: %w", err)
	}

	h := hash.NewCRC32C()
	mw := io.MultiWriter(w, h)

	var header [binaryHeaderSize]byte
	copy(header[0:4], binaryMagic)
	header[4] = binaryVersion
	header[5] = byte(compression)
	binary.LittleEndian.PutUint32(header[8:12], rows)
	binary.LittleEndian.PutUint32(header[12:16], cols)
	binary.LittleEndian.PutUint64(header[16:24], nnz)
	if _, err := mw.Write(header[:]); err != nil {
		return fmt.Errorf("write artifact header: %w", err)
	}

	bw := newBlockWriter(mw, compression)
	if err := bw.writeInt32s(m.Indptr); err != nil {
		return fmt.Errorf("write indptr: %w", err)
	}
	if err := bw.writeInt32s(m.Indices); err != nil {
		return fmt.Errorf("write indices: %w", err)
	}
	if err := bw.writeInt8s(m.Data); err != nil {
		return fmt.Errorf("write weights: %w", err)
	}

	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], h.Sum32())
	if _, err := w.Write(trailer[:]); err != nil {
		return fmt.Errorf("write artifact trailer: %w", err)
	}
	return nil
}

// ReadBinary decodes a native artifact and verifies its checksum trailer.
func ReadBinary(r io.Reader) (*CSR, error) {
	h := hash.NewCRC32C()
	tr := io.TeeReader(r, h)

	var header [binaryHeaderSize]byte
	if _, err := io.ReadFull(tr, header[:]); err != nil {
		return nil, fmt.Errorf("read artifact header: %w", err)
	}
	if string(header[0:4]) != binaryMagic {
		return nil, ErrInvalidMagic
	}
	if header[4] > binaryVersion {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, header[4])
	}
	compression := CompressionType(header[5])
	if compression > CompressionZstd {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, header[5])
	}

	rows := binary.LittleEndian.Uint32(header[8:12])
	cols := binary.LittleEndian.Uint32(header[12:16])
	nnz := binary.LittleEndian.Uint64(header[16:24])
	if rows > math.MaxInt32 || cols > math.MaxInt32 || nnz > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %d x %d with %d entries", ErrInvalidMatrix, rows, cols, nnz)
	}

	br := newBlockReader(tr, compression)
	indptr, err := br.readInt32s(int(rows) + 1)
	if err != nil {
		return nil, fmt.Errorf("read indptr: %w", err)
	}
	indices, err := br.readInt32s(int(nnz))
	if err != nil {
		return nil, fmt.Errorf("read indices: %w", err)
	}
	data, err := br.readInt8s(int(nnz))
	if err != nil {
		return nil, fmt.Errorf("read weights: %w", err)
	}

	sum := h.Sum32()
	var trailer [4]byte
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		return nil, fmt.Errorf("read artifact trailer: %w", err)
	}
	if binary.LittleEndian.Uint32(trailer[:]) != sum {
		return nil, ErrCorrupted
	}

	m := &CSR{Rows: int(rows), Cols: int(cols), Indptr: indptr, Indices: indices, Data: data}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// blockWriter emits length-prefixed blocks, reusing its scratch buffers
// across calls. Block layout: rawLen uint32, compLen uint32 (zero when the
// payload is stored raw), payload.
type blockWriter struct {
	w           io.Writer
	compression CompressionType
	raw         []byte
	comp        []byte
}

func newBlockWriter(w io.Writer, compression CompressionType) *blockWriter {
	return &blockWriter{w: w, compression: compression}
}

func (bw *blockWriter) writeInt32s(values []int32) error {
	const perBlock = maxBlockBytes / 4

	for lo := 0; lo < len(values); lo += perBlock {
		hi := min(lo+perBlock, len(values))
		chunk := values[lo:hi]

		bw.raw = bw.raw[:0]
		for _, v := range chunk {
			bw.raw = binary.LittleEndian.AppendUint32(bw.raw, uint32(v))
		}
		if err := bw.writeBlock(bw.raw); err != nil {
			return err
		}
	}
	return nil
}

func (bw *blockWriter) writeInt8s(values []int8) error {
	for lo := 0; lo < len(values); lo += maxBlockBytes {
		hi := min(lo+maxBlockBytes, len(values))
		chunk := values[lo:hi]

		bw.raw = bw.raw[:0]
		for _, v := range chunk {
			bw.raw = append(bw.raw, byte(v))
		}
		if err := bw.writeBlock(bw.raw); err != nil {
			return err
		}
	}
	return nil
}

func (bw *blockWriter) writeBlock(raw []byte) error {
	payload, compLen, err := bw.compress(raw)
	if err != nil {
		return err
	}

	var head [8]byte
	binary.LittleEndian.PutUint32(head[0:4], uint32(len(raw)))
	binary.LittleEndian.PutUint32(head[4:8], compLen)
	if _, err := bw.w.Write(head[:]); err != nil {
		return err
	}
	_, err = bw.w.Write(payload)
	return err
}

// compress returns the block payload and its compressed length, zero when
// the block is stored raw. Incompressible blocks fall back to raw storage
// so the format never inflates badly.
func (bw *blockWriter) compress(raw []byte) ([]byte, uint32, error) {
	if bw.compression == CompressionNone || len(raw) == 0 {
		return raw, 0, nil
	}

	switch bw.compression {
	case CompressionLZ4:
		bound := lz4.CompressBlockBound(len(raw))
		if cap(bw.comp) < bound {
			bw.comp = make([]byte, bound)
		}
		n, err := lz4.CompressBlock(raw, bw.comp[:bound], nil)
		if err != nil {
			return nil, 0, err
		}
		if n == 0 || float64(n) > float64(len(raw))*0.9 {
			return raw, 0, nil
		}
		return bw.comp[:n], uint32(n), nil

	case CompressionZstd:
		enc := getZstdEncoder()
		defer putZstdEncoder(enc)

		bw.comp = enc.EncodeAll(raw, bw.comp[:0])
		if float64(len(bw.comp)) > float64(len(raw))*0.9 {
			return raw, 0, nil
		}
		return bw.comp, uint32(len(bw.comp)), nil

	default:
		return raw, 0, nil
	}
}

// blockReader decodes the block stream written by blockWriter.
type blockReader struct {
	r           io.Reader
	compression CompressionType
	raw         []byte
	comp        []byte
}

func newBlockReader(r io.Reader, compression CompressionType) *blockReader {
	return &blockReader{r: r, compression: compression}
}

func (br *blockReader) readInt32s(count int) ([]int32, error) {
	out := make([]int32, count)

	filled := 0
	for filled < count {
		raw, err := br.readBlock((count - filled) * 4)
		if err != nil {
			return nil, err
		}
		if len(raw)%4 != 0 {
			return nil, fmt.Errorf("%w: block length %d not int32 aligned", ErrInvalidMatrix, len(raw))
		}
		for i := 0; i+4 <= len(raw); i += 4 {
			out[filled] = int32(binary.LittleEndian.Uint32(raw[i:]))
			filled++
		}
	}
	return out, nil
}

func (br *blockReader) readInt8s(count int) ([]int8, error) {
	out := make([]int8, count)

	filled := 0
	for filled < count {
		raw, err := br.readBlock(count - filled)
		if err != nil {
			return nil, err
		}
		for _, b := range raw {
			out[filled] = int8(b)
			filled++
		}
	}
	return out, nil
}

// readBlock returns one block's raw payload, valid until the next call.
// remaining bounds the acceptable raw length.
func (br *blockReader) readBlock(remaining int) ([]byte, error) {
	var head [8]byte
	if _, err := io.ReadFull(br.r, head[:]); err != nil {
		return nil, err
	}
	rawLen := int(binary.LittleEndian.Uint32(head[0:4]))
	compLen := int(binary.LittleEndian.Uint32(head[4:8]))

	if rawLen == 0 || rawLen > maxBlockBytes || rawLen > remaining {
		return nil, fmt.Errorf("%w: block raw length %d", ErrInvalidMatrix, rawLen)
	}
	if compLen >= rawLen {
		return nil, fmt.Errorf("%w: block compressed length %d for raw %d", ErrInvalidMatrix, compLen, rawLen)
	}

	if cap(br.raw) < rawLen {
		br.raw = make([]byte, rawLen)
	}
	br.raw = br.raw[:rawLen]

	if compLen == 0 {
		if _, err := io.ReadFull(br.r, br.raw); err != nil {
			return nil, err
		}
		return br.raw, nil
	}

	if cap(br.comp) < compLen {
		br.comp = make([]byte, compLen)
	}
	br.comp = br.comp[:compLen]
	if _, err := io.ReadFull(br.r, br.comp); err != nil {
		return nil, err
	}

	switch br.compression {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(br.comp, br.raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupted, err)
		}
		if n != rawLen {
			return nil, fmt.Errorf("%w: decompressed %d bytes, want %d", ErrCorrupted, n, rawLen)
		}
		return br.raw, nil

	case CompressionZstd:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)

		decoded, err := dec.DecodeAll(br.comp, br.raw[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupted, err)
		}
		if len(decoded) != rawLen {
			return nil, fmt.Errorf("%w: decompressed %d bytes, want %d", ErrCorrupted, len(decoded), rawLen)
		}
		return decoded, nil

	default:
		return nil, fmt.Errorf("%w: compressed block in uncompressed artifact", ErrInvalidMatrix)
	}
}
