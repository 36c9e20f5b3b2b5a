package sparse

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/hupe1980/simgraph/edgebuf"
)

// DefaultChunkPairs bounds the pairs materialized per assembly step.
const DefaultChunkPairs = 10_000_000

var (
	// ErrOutOfBounds is returned when an edge references a row or column
	// outside the matrix.
	ErrOutOfBounds = errors.New("sparse: index out of bounds")

	// ErrTooLarge is returned when the matrix would exceed the int32 index
	// space of the CSR layout.
	ErrTooLarge = errors.New("sparse: matrix exceeds int32 index space")

	// ErrInvalidMatrix is returned when decoded CSR arrays are mutually
	// inconsistent.
	ErrInvalidMatrix = errors.New("sparse: inconsistent matrix arrays")
)

// CSR is a compressed sparse row matrix with int8 presence weights. Column
// indices within each row are sorted and unique.
type CSR struct {
	Rows    int
	Cols    int
	Indptr  []int32
	Indices []int32
	Data    []int8
}

// NewCSR returns an empty n x n matrix.
func NewCSR(n int) *CSR {
	return &CSR{
		Rows:   n,
		Cols:   n,
		Indptr: make([]int32, n+1),
	}
}

// NNZ returns the number of stored entries.
func (m *CSR) NNZ() int {
	return len(m.Indices)
}

// At returns the entry at (i, j), zero when not stored.
func (m *CSR) At(i, j int) int8 {
	start, end := m.Indptr[i], m.Indptr[i+1]
	row := m.Indices[start:end]

	k, found := slices.BinarySearch(row, int32(j))
	if !found {
		return 0
	}
	return m.Data[int(start)+k]
}

// RowIndices returns the column indices of row i, aliased.
func (m *CSR) RowIndices(i int) []int32 {
	return m.Indices[m.Indptr[i]:m.Indptr[i+1]]
}

// Validate checks the structural consistency of the CSR arrays. Decoders
// call it before handing a matrix to callers.
func (m *CSR) Validate() error {
	if len(m.Indptr) != m.Rows+1 {
		return fmt.Errorf("%w: indptr length %d for %d rows", ErrInvalidMatrix, len(m.Indptr), m.Rows)
	}
	nnz := int(m.Indptr[m.Rows])
	if len(m.Indices) != nnz || len(m.Data) != nnz {
		return fmt.Errorf("%w: %d indices, %d weights, indptr claims %d", ErrInvalidMatrix, len(m.Indices), len(m.Data), nnz)
	}
	prev := int32(0)
	for _, p := range m.Indptr {
		if p < prev {
			return fmt.Errorf("%w: indptr not monotonic", ErrInvalidMatrix)
		}
		prev = p
	}
	for _, j := range m.Indices {
		if j < 0 || int(j) >= m.Cols {
			return fmt.Errorf("%w: column %d outside %d x %d", ErrInvalidMatrix, j, m.Rows, m.Cols)
		}
	}
	return nil
}

// IsSymmetric reports whether every stored entry has an equal mirror. It
// walks the whole matrix and is meant for tests and inspection, not hot
// paths.
func (m *CSR) IsSymmetric() bool {
	if m.Rows != m.Cols {
		return false
	}
	for i := 0; i < m.Rows; i++ {
		for k := m.Indptr[i]; k < m.Indptr[i+1]; k++ {
			j := int(m.Indices[k])
			if m.At(j, i) != m.Data[k] {
				return false
			}
		}
	}
	return true
}

// Source is the edge stream assembly consumes. *edgebuf.View satisfies it.
type Source interface {
	Len() int
	Pairs(lo, hi int, dst []edgebuf.Pair) []edgebuf.Pair
}

// Options configures assembly.
type Options struct {
	// ChunkPairs is the number of pairs decoded per step.
	ChunkPairs int
}

// DefaultOptions returns the default assembly options.
func DefaultOptions() Options {
	return Options{ChunkPairs: DefaultChunkPairs}
}

// Assemble folds the edge stream into a symmetric n x n CSR matrix.
// Duplicate coordinates are summed. The result is independent of the
// chunk size; only peak memory depends on it.
func Assemble(ctx context.Context, src Source, n int, optFns ...func(o *Options)) (*CSR, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ChunkPairs <= 0 {
		opts.ChunkPairs = DefaultChunkPairs
	}

	total := src.Len()
	// Symmetrization doubles the entry count.
	if int64(total)*2 > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %d pairs", ErrTooLarge, total)
	}

	upper, err := foldChunks(ctx, src, n, opts.ChunkPairs)
	if err != nil {
		return nil, err
	}

	return Symmetrize(upper), nil
}

// foldChunks accumulates the raw directed pairs into CSR form. Two passes
// over the stream: one to size the rows, one to place the columns.
func foldChunks(ctx context.Context, src Source, n, chunkPairs int) (*CSR, error) {
	total := src.Len()

	m := NewCSR(n)

	var scratch []edgebuf.Pair
	for lo := 0; lo < total; lo += chunkPairs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		hi := min(lo+chunkPairs, total)
		scratch = src.Pairs(lo, hi, scratch)
		for _, p := range scratch {
			if p.Row < 0 || int(p.Row) >= n || p.Col < 0 || int(p.Col) >= n {
				return nil, fmt.Errorf("%w: pair (%d, %d) in %d x %d matrix", ErrOutOfBounds, p.Row, p.Col, n, n)
			}
			m.Indptr[p.Row+1]++
		}
	}

	for i := 0; i < n; i++ {
		m.Indptr[i+1] += m.Indptr[i]
	}

	nnz := int(m.Indptr[n])
	m.Indices = make([]int32, nnz)
	m.Data = make([]int8, nnz)

	cursor := make([]int32, n)
	copy(cursor, m.Indptr[:n])

	for lo := 0; lo < total; lo += chunkPairs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		hi := min(lo+chunkPairs, total)
		scratch = src.Pairs(lo, hi, scratch)
		for _, p := range scratch {
			pos := cursor[p.Row]
			m.Indices[pos] = p.Col
			m.Data[pos] = 1
			cursor[p.Row]++
		}
	}

	m.compactRows()
	return m, nil
}

// compactRows sorts each row's columns and merges duplicates by summing
// their weights, in place.
func (m *CSR) compactRows() {
	out := int32(0)
	newIndptr := make([]int32, len(m.Indptr))

	for i := 0; i < m.Rows; i++ {
		start, end := int(m.Indptr[i]), int(m.Indptr[i+1])
		sortRow(m.Indices[start:end], m.Data[start:end])

		rowStart := out
		for k := start; k < end; k++ {
			if out > rowStart && m.Indices[out-1] == m.Indices[k] {
				m.Data[out-1] += m.Data[k]
				continue
			}
			m.Indices[out] = m.Indices[k]
			m.Data[out] = m.Data[k]
			out++
		}
		newIndptr[i+1] = out
	}

	m.Indptr = newIndptr
	m.Indices = m.Indices[:out]
	m.Data = m.Data[:out]
}

// sortRow orders one row's columns ascending, carrying the weights along.
func sortRow(indices []int32, data []int8) {
	sort.Sort(&rowSorter{indices: indices, data: data})
}

type rowSorter struct {
	indices []int32
	data    []int8
}

func (s *rowSorter) Len() int           { return len(s.indices) }
func (s *rowSorter) Less(i, j int) bool { return s.indices[i] < s.indices[j] }
func (s *rowSorter) Swap(i, j int) {
	s.indices[i], s.indices[j] = s.indices[j], s.indices[i]
	s.data[i], s.data[j] = s.data[j], s.data[i]
}

// Symmetrize returns m + transpose(m). Overlapping coordinates sum, so a
// strict upper-triangular input yields a symmetric matrix with the same
// weights mirrored and a zero diagonal.
func Symmetrize(m *CSR) *CSR {
	t := Transpose(m)
	return Add(m, t)
}

// Transpose returns the transpose of m. Row order of the input guarantees
// sorted columns in the output without an extra sort.
func Transpose(m *CSR) *CSR {
	t := &CSR{
		Rows:    m.Cols,
		Cols:    m.Rows,
		Indptr:  make([]int32, m.Cols+1),
		Indices: make([]int32, m.NNZ()),
		Data:    make([]int8, m.NNZ()),
	}

	for _, j := range m.Indices {
		t.Indptr[j+1]++
	}
	for i := 0; i < t.Rows; i++ {
		t.Indptr[i+1] += t.Indptr[i]
	}

	cursor := make([]int32, t.Rows)
	copy(cursor, t.Indptr[:t.Rows])

	for i := 0; i < m.Rows; i++ {
		for k := m.Indptr[i]; k < m.Indptr[i+1]; k++ {
			j := m.Indices[k]
			pos := cursor[j]
			t.Indices[pos] = int32(i)
			t.Data[pos] = m.Data[k]
			cursor[j]++
		}
	}

	return t
}

// Add returns a + b, merging sorted rows and summing shared coordinates.
func Add(a, b *CSR) *CSR {
	sum := &CSR{
		Rows:    a.Rows,
		Cols:    a.Cols,
		Indptr:  make([]int32, a.Rows+1),
		Indices: make([]int32, 0, a.NNZ()+b.NNZ()),
		Data:    make([]int8, 0, a.NNZ()+b.NNZ()),
	}

	for i := 0; i < a.Rows; i++ {
		ka, enda := a.Indptr[i], a.Indptr[i+1]
		kb, endb := b.Indptr[i], b.Indptr[i+1]

		for ka < enda || kb < endb {
			switch {
			case kb >= endb || (ka < enda && a.Indices[ka] < b.Indices[kb]):
				sum.Indices = append(sum.Indices, a.Indices[ka])
				sum.Data = append(sum.Data, a.Data[ka])
				ka++
			case ka >= enda || b.Indices[kb] < a.Indices[ka]:
				sum.Indices = append(sum.Indices, b.Indices[kb])
				sum.Data = append(sum.Data, b.Data[kb])
				kb++
			default:
				sum.Indices = append(sum.Indices, a.Indices[ka])
				sum.Data = append(sum.Data, a.Data[ka]+b.Data[kb])
				ka++
				kb++
			}
		}
		sum.Indptr[i+1] = int32(len(sum.Indices))
	}

	return sum
}
