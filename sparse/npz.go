package sparse

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/klauspost/compress/flate"
)

// ErrInvalidNPZ is returned when an NPZ artifact cannot be decoded.
var ErrInvalidNPZ = errors.New("sparse: invalid npz artifact")

// npyMagic opens every NPY member.
var npyMagic = []byte("\x93NUMPY")

// npyAlign pads NPY headers so array data starts on a 64-byte boundary,
// matching what numpy writes.
const npyAlign = 64

// WriteNPZ writes m as an NPZ archive that scipy.sparse.load_npz accepts:
// DEFLATE-compressed NPY members format, shape, data, indices and indptr.
func WriteNPZ(w io.Writer, m *CSR) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestSpeed)
	})

	members := []struct {
		name  string
		descr string
		shape []int
		data  []byte
	}{
		{name: "format.npy", descr: "|S3", shape: nil, data: []byte("csr")},
		{name: "shape.npy", descr: "<i8", shape: []int{2}, data: encodeInt64s([]int64{int64(m.Rows), int64(m.Cols)})},
		{name: "data.npy", descr: "|i1", shape: []int{len(m.Data)}, data: encodeInt8s(m.Data)},
		{name: "indices.npy", descr: "<i4", shape: []int{len(m.Indices)}, data: encodeInt32s(m.Indices)},
		{name: "indptr.npy", descr: "<i4", shape: []int{len(m.Indptr)}, data: encodeInt32s(m.Indptr)},
	}

	for _, member := range members {
		mw, err := zw.Create(member.name)
		if err != nil {
			return fmt.Errorf("write npz member %s: %w", member.name, err)
		}
		if err := writeNPY(mw, member.descr, member.shape, member.data); err != nil {
			return fmt.Errorf("write npz member %s: %w", member.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("write npz: %w", err)
	}
	return nil
}

// ReadNPZ decodes an NPZ artifact produced by WriteNPZ or by
// scipy.sparse.save_npz.
func ReadNPZ(r io.ReaderAt, size int64) (*CSR, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidNPZ, err)
	}
	zr.RegisterDecompressor(zip.Deflate, func(in io.Reader) io.ReadCloser {
		return flate.NewReader(in)
	})

	members := make(map[string]*npyArray, len(zr.File))
	for _, f := range zr.File {
		arr, err := readNPYMember(f)
		if err != nil {
			return nil, fmt.Errorf("npz member %s: %w", f.Name, err)
		}
		members[strings.TrimSuffix(f.Name, ".npy")] = arr
	}

	format, ok := members["format"]
	if !ok {
		return nil, fmt.Errorf("%w: missing format member", ErrInvalidNPZ)
	}
	// String dtypes pad with NULs; a '<U3' writer interleaves them.
	name := string(bytes.ReplaceAll(format.data, []byte{0}, nil))
	if name != "csr" {
		return nil, fmt.Errorf("%w: matrix format %q, want csr", ErrInvalidNPZ, name)
	}

	shape, err := requireMember(members, "shape")
	if err != nil {
		return nil, err
	}
	dims, err := shape.int64s()
	if err != nil {
		return nil, fmt.Errorf("npz member shape: %w", err)
	}
	if len(dims) != 2 || dims[0] != dims[1] || dims[0] < 0 || dims[0] > math.MaxInt32 {
		return nil, fmt.Errorf("%w: shape %v", ErrInvalidNPZ, dims)
	}
	n := int(dims[0])

	indptrArr, err := requireMember(members, "indptr")
	if err != nil {
		return nil, err
	}
	indptr, err := indptrArr.int32s()
	if err != nil {
		return nil, fmt.Errorf("npz member indptr: %w", err)
	}

	indicesArr, err := requireMember(members, "indices")
	if err != nil {
		return nil, err
	}
	indices, err := indicesArr.int32s()
	if err != nil {
		return nil, fmt.Errorf("npz member indices: %w", err)
	}

	dataArr, err := requireMember(members, "data")
	if err != nil {
		return nil, err
	}
	data, err := dataArr.int8s()
	if err != nil {
		return nil, fmt.Errorf("npz member data: %w", err)
	}

	m := &CSR{Rows: n, Cols: n, Indptr: indptr, Indices: indices, Data: data}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func requireMember(members map[string]*npyArray, name string) (*npyArray, error) {
	arr, ok := members[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s member", ErrInvalidNPZ, name)
	}
	return arr, nil
}

// writeNPY writes one NPY v1.0 array: magic, padded header dict, raw data.
func writeNPY(w io.Writer, descr string, shape []int, data []byte) error {
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }", descr, pyShape(shape))

	// Total prefix is magic(6) + version(2) + headerLen(2) + header; numpy
	// pads the header with spaces to a 64-byte boundary, newline last.
	unpadded := 10 + len(dict) + 1
	pad := 0
	if rem := unpadded % npyAlign; rem != 0 {
		pad = npyAlign - rem
	}
	header := dict + strings.Repeat(" ", pad) + "\n"

	var prefix bytes.Buffer
	prefix.Write(npyMagic)
	prefix.WriteByte(1)
	prefix.WriteByte(0)

	var hlen [2]byte
	binary.LittleEndian.PutUint16(hlen[:], uint16(len(header)))
	prefix.Write(hlen[:])
	prefix.WriteString(header)

	if _, err := w.Write(prefix.Bytes()); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func pyShape(shape []int) string {
	switch len(shape) {
	case 0:
		return "()"
	case 1:
		return fmt.Sprintf("(%d,)", shape[0])
	default:
		parts := make([]string, len(shape))
		for i, d := range shape {
			parts[i] = strconv.Itoa(d)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
}

// npyArray is one decoded NPY member.
type npyArray struct {
	descr string
	shape []int
	data  []byte
}

func readNPYMember(f *zip.File) (*npyArray, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return readNPY(rc)
}

// readNPY parses an NPY v1.x or v2.x array from r.
func readNPY(r io.Reader) (*npyArray, error) {
	var head [8]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidNPZ, err)
	}
	if !bytes.Equal(head[:6], npyMagic) {
		return nil, fmt.Errorf("%w: bad npy magic", ErrInvalidNPZ)
	}

	var headerLen int
	switch major := head[6]; major {
	case 1:
		var hlen [2]byte
		if _, err := io.ReadFull(r, hlen[:]); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidNPZ, err)
		}
		headerLen = int(binary.LittleEndian.Uint16(hlen[:]))
	case 2, 3:
		var hlen [4]byte
		if _, err := io.ReadFull(r, hlen[:]); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidNPZ, err)
		}
		headerLen = int(binary.LittleEndian.Uint32(hlen[:]))
	default:
		return nil, fmt.Errorf("%w: npy version %d", ErrInvalidNPZ, major)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidNPZ, err)
	}

	if strings.Contains(string(header), "'fortran_order': True") {
		return nil, fmt.Errorf("%w: fortran order arrays not supported", ErrInvalidNPZ)
	}

	descr, err := pyDictString(string(header), "descr")
	if err != nil {
		return nil, err
	}
	shape, err := pyDictShape(string(header))
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidNPZ, err)
	}

	return &npyArray{descr: descr, shape: shape, data: data}, nil
}

// pyDictString extracts a single-quoted value for key from a Python dict
// literal.
func pyDictString(header, key string) (string, error) {
	marker := "'" + key + "':"
	at := strings.Index(header, marker)
	if at < 0 {
		return "", fmt.Errorf("%w: header missing %s", ErrInvalidNPZ, key)
	}
	rest := header[at+len(marker):]
	open := strings.IndexByte(rest, '\'')
	if open < 0 {
		return "", fmt.Errorf("%w: header missing %s value", ErrInvalidNPZ, key)
	}
	rest = rest[open+1:]
	end := strings.IndexByte(rest, '\'')
	if end < 0 {
		return "", fmt.Errorf("%w: header missing %s value", ErrInvalidNPZ, key)
	}
	return rest[:end], nil
}

// pyDictShape extracts the shape tuple from a Python dict literal.
func pyDictShape(header string) ([]int, error) {
	at := strings.Index(header, "'shape':")
	if at < 0 {
		return nil, fmt.Errorf("%w: header missing shape", ErrInvalidNPZ)
	}
	rest := header[at:]
	open := strings.IndexByte(rest, '(')
	end := strings.IndexByte(rest, ')')
	if open < 0 || end < open {
		return nil, fmt.Errorf("%w: header missing shape tuple", ErrInvalidNPZ)
	}

	var shape []int
	for _, part := range strings.Split(rest[open+1:end], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: shape dimension %q", ErrInvalidNPZ, part)
		}
		shape = append(shape, d)
	}
	return shape, nil
}

func (a *npyArray) count() int {
	n := 1
	for _, d := range a.shape {
		n *= d
	}
	return n
}

// int32s decodes the array as int32, accepting the int64 layout scipy
// falls back to for very large matrices when every value fits.
func (a *npyArray) int32s() ([]int32, error) {
	n := a.count()
	switch a.descr {
	case "<i4":
		if len(a.data) != n*4 {
			return nil, fmt.Errorf("%w: %d bytes for %d int32 values", ErrInvalidNPZ, len(a.data), n)
		}
		out := make([]int32, n)
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(a.data[i*4:]))
		}
		return out, nil
	case "<i8":
		wide, err := a.int64s()
		if err != nil {
			return nil, err
		}
		out := make([]int32, len(wide))
		for i, v := range wide {
			if v < math.MinInt32 || v > math.MaxInt32 {
				return nil, fmt.Errorf("%w: value %d overflows int32", ErrInvalidNPZ, v)
			}
			out[i] = int32(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: dtype %s, want <i4", ErrInvalidNPZ, a.descr)
	}
}

func (a *npyArray) int64s() ([]int64, error) {
	n := a.count()
	if a.descr != "<i8" {
		return nil, fmt.Errorf("%w: dtype %s, want <i8", ErrInvalidNPZ, a.descr)
	}
	if len(a.data) != n*8 {
		return nil, fmt.Errorf("%w: %d bytes for %d int64 values", ErrInvalidNPZ, len(a.data), n)
	}
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(a.data[i*8:]))
	}
	return out, nil
}

func (a *npyArray) int8s() ([]int8, error) {
	n := a.count()
	switch a.descr {
	case "|i1", "|u1", "<i1":
		if len(a.data) != n {
			return nil, fmt.Errorf("%w: %d bytes for %d int8 values", ErrInvalidNPZ, len(a.data), n)
		}
		out := make([]int8, n)
		for i, b := range a.data {
			out[i] = int8(b)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: dtype %s, want |i1", ErrInvalidNPZ, a.descr)
	}
}

func encodeInt32s(values []int32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(v))
	}
	return out
}

func encodeInt64s(values []int64) []byte {
	out := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(out[i*8:], uint64(v))
	}
	return out
}

func encodeInt8s(values []int8) []byte {
	out := make([]byte, len(values))
	for i, v := range values {
		out[i] = byte(v)
	}
	return out
}
