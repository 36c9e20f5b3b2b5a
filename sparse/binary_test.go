package sparse

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinary_RoundTrip(t *testing.T) {
	want := testMatrix(t, 60, 800, 11)

	for _, compression := range []CompressionType{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteBinary(&buf, want, compression))

			got, err := ReadBinary(&buf)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestBinary_RoundTripEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBinary(&buf, NewCSR(9), CompressionLZ4))

	got, err := ReadBinary(&buf)
	require.NoError(t, err)
	assert.Equal(t, 9, got.Rows)
	assert.Equal(t, 0, got.NNZ())
	assert.Equal(t, make([]int32, 10), got.Indptr)
}

func writeArtifact(t *testing.T, m *CSR, compression CompressionType) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, WriteBinary(&buf, m, compression))
	return buf.Bytes()
}

func TestReadBinary_ChecksumMismatch(t *testing.T) {
	raw := writeArtifact(t, testMatrix(t, 20, 100, 4), CompressionNone)

	t.Run("trailer flipped", func(t *testing.T) {
		bad := bytes.Clone(raw)
		bad[len(bad)-1] ^= 0xff

		_, err := ReadBinary(bytes.NewReader(bad))
		assert.ErrorIs(t, err, ErrCorrupted)
	})

	t.Run("payload flipped", func(t *testing.T) {
		// Flip one weight byte. The arrays still decode, the trailer does not
		// match anymore.
		bad := bytes.Clone(raw)
		bad[len(bad)-6] ^= 0xff

		_, err := ReadBinary(bytes.NewReader(bad))
		assert.ErrorIs(t, err, ErrCorrupted)
	})
}

func TestReadBinary_Truncated(t *testing.T) {
	raw := writeArtifact(t, testMatrix(t, 20, 100, 4), CompressionLZ4)

	// A cut exactly between blocks surfaces as io.EOF, anywhere else as
	// io.ErrUnexpectedEOF. Either way the reader must fail, never hand back
	// a partial matrix.
	for _, cut := range []int{0, 4, binaryHeaderSize, binaryHeaderSize + 3, len(raw) - 2} {
		m, err := ReadBinary(bytes.NewReader(raw[:cut]))
		assert.Error(t, err, "cut at %d", cut)
		assert.Nil(t, m, "cut at %d", cut)
	}
}

func TestReadBinary_HeaderValidation(t *testing.T) {
	raw := writeArtifact(t, testMatrix(t, 8, 20, 4), CompressionNone)

	tests := []struct {
		name    string
		mutate  func(b []byte)
		wantErr error
	}{
		{
			name:    "bad magic",
			mutate:  func(b []byte) { b[0] = 'X' },
			wantErr: ErrInvalidMagic,
		},
		{
			name:    "future version",
			mutate:  func(b []byte) { b[4] = 9 },
			wantErr: ErrInvalidVersion,
		},
		{
			name:    "unknown compression",
			mutate:  func(b []byte) { b[5] = 7 },
			wantErr: ErrUnknownCompression,
		},
		{
			name:    "oversized rows",
			mutate:  func(b []byte) { binary.LittleEndian.PutUint32(b[8:12], 1<<31) },
			wantErr: ErrInvalidMatrix,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := bytes.Clone(raw)
			tt.mutate(bad)

			_, err := ReadBinary(bytes.NewReader(bad))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestReadBinary_CompressedBlockInRawArtifact(t *testing.T) {
	// An artifact claiming CompressionNone must not contain compressed
	// blocks. Hand-build one block that does.
	var buf bytes.Buffer

	var header [binaryHeaderSize]byte
	copy(header[0:4], binaryMagic)
	header[4] = binaryVersion
	header[5] = byte(CompressionNone)
	binary.LittleEndian.PutUint32(header[8:12], 1)
	binary.LittleEndian.PutUint32(header[12:16], 1)
	binary.LittleEndian.PutUint64(header[16:24], 0)
	buf.Write(header[:])

	var head [8]byte
	binary.LittleEndian.PutUint32(head[0:4], 8)
	binary.LittleEndian.PutUint32(head[4:8], 4)
	buf.Write(head[:])
	buf.Write([]byte{1, 2, 3, 4})

	_, err := ReadBinary(&buf)
	assert.ErrorIs(t, err, ErrInvalidMatrix)
}

func TestWriteBinary_UnknownCompression(t *testing.T) {
	var buf bytes.Buffer
	err := WriteBinary(&buf, NewCSR(2), CompressionType(9))
	assert.ErrorIs(t, err, ErrUnknownCompression)
}

func TestBlockWriter_SplitsLargeArrays(t *testing.T) {
	const perBlock = maxBlockBytes / 4

	values := make([]int32, perBlock+3)
	for i := range values {
		values[i] = int32(i % 1000)
	}

	var buf bytes.Buffer
	bw := newBlockWriter(&buf, CompressionNone)
	require.NoError(t, bw.writeInt32s(values))

	// Two raw blocks: a full one and the 3-value remainder, 8 header bytes
	// each.
	assert.Equal(t, 8+maxBlockBytes+8+12, buf.Len())

	br := newBlockReader(&buf, CompressionNone)
	got, err := br.readInt32s(len(values))
	require.NoError(t, err)
	assert.Equal(t, values, got)
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		name string
		want CompressionType
	}{
		{name: "", want: CompressionLZ4},
		{name: "lz4", want: CompressionLZ4},
		{name: "none", want: CompressionNone},
		{name: "zstd", want: CompressionZstd},
	}

	for _, tt := range tests {
		got, err := ParseCompression(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, err := ParseCompression("brotli")
	assert.ErrorIs(t, err, ErrUnknownCompression)

	assert.Equal(t, "zstd", CompressionZstd.String())
	assert.Equal(t, "unknown(9)", CompressionType(9).String())
}
