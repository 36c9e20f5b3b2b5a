package sparse

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/simgraph/edgebuf"
)

// pairSource adapts an in-memory pair slice to the assembly Source.
type pairSource []edgebuf.Pair

func (s pairSource) Len() int { return len(s) }

func (s pairSource) Pairs(lo, hi int, dst []edgebuf.Pair) []edgebuf.Pair {
	n := hi - lo
	if cap(dst) < n {
		dst = make([]edgebuf.Pair, n)
	}
	dst = dst[:n]
	copy(dst, s[lo:hi])
	return dst
}

func randomPairs(n, count int, seed int64) pairSource {
	rng := rand.New(rand.NewSource(seed))
	pairs := make(pairSource, count)
	for i := range pairs {
		row := rng.Int31n(int32(n - 1))
		col := row + 1 + rng.Int31n(int32(n)-row-1)
		pairs[i] = edgebuf.Pair{Row: row, Col: col}
	}
	return pairs
}

func TestAssemble_Basic(t *testing.T) {
	src := pairSource{
		{Row: 0, Col: 1},
		{Row: 0, Col: 2},
		{Row: 2, Col: 3},
	}

	m, err := Assemble(context.Background(), src, 4)
	require.NoError(t, err)

	assert.Equal(t, 4, m.Rows)
	assert.Equal(t, 4, m.Cols)
	assert.Equal(t, 6, m.NNZ())
	assert.True(t, m.IsSymmetric())

	for _, p := range src {
		assert.Equal(t, int8(1), m.At(int(p.Row), int(p.Col)))
		assert.Equal(t, int8(1), m.At(int(p.Col), int(p.Row)))
	}
	for i := 0; i < 4; i++ {
		assert.Equal(t, int8(0), m.At(i, i))
	}
	assert.Equal(t, int8(0), m.At(1, 2))
}

func TestAssemble_DuplicatesSummed(t *testing.T) {
	src := pairSource{
		{Row: 0, Col: 1},
		{Row: 0, Col: 1},
		{Row: 0, Col: 2},
	}

	m, err := Assemble(context.Background(), src, 3)
	require.NoError(t, err)

	assert.Equal(t, int8(2), m.At(0, 1))
	assert.Equal(t, int8(2), m.At(1, 0))
	assert.Equal(t, int8(1), m.At(0, 2))
	assert.Equal(t, 4, m.NNZ())
}

func TestAssemble_RowsSorted(t *testing.T) {
	src := pairSource{
		{Row: 0, Col: 3},
		{Row: 0, Col: 1},
		{Row: 0, Col: 2},
	}

	m, err := Assemble(context.Background(), src, 4)
	require.NoError(t, err)

	assert.Equal(t, []int32{1, 2, 3}, m.RowIndices(0))
	require.NoError(t, m.Validate())
}

func TestAssemble_ChunkIndependence(t *testing.T) {
	src := randomPairs(50, 1000, 5)

	want, err := Assemble(context.Background(), src, 50)
	require.NoError(t, err)
	require.NoError(t, want.Validate())

	for _, chunk := range []int{1, 7, 256, 1 << 20} {
		got, err := Assemble(context.Background(), src, 50, func(o *Options) {
			o.ChunkPairs = chunk
		})
		require.NoError(t, err)
		assert.Equal(t, want, got, "chunk size %d", chunk)
	}
}

func TestAssemble_Empty(t *testing.T) {
	m, err := Assemble(context.Background(), pairSource{}, 5)
	require.NoError(t, err)

	assert.Equal(t, 0, m.NNZ())
	assert.Equal(t, make([]int32, 6), m.Indptr)
	require.NoError(t, m.Validate())
}

func TestAssemble_OutOfBounds(t *testing.T) {
	src := pairSource{{Row: 0, Col: 7}}

	_, err := Assemble(context.Background(), src, 4)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	src = pairSource{{Row: -1, Col: 2}}
	_, err = Assemble(context.Background(), src, 4)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestAssemble_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Assemble(ctx, randomPairs(10, 50, 1), 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTranspose(t *testing.T) {
	src := pairSource{
		{Row: 0, Col: 1},
		{Row: 0, Col: 2},
		{Row: 1, Col: 2},
	}

	upper, err := foldChunks(context.Background(), src, 3, 100)
	require.NoError(t, err)

	tr := Transpose(upper)
	assert.Equal(t, int8(1), tr.At(1, 0))
	assert.Equal(t, int8(1), tr.At(2, 0))
	assert.Equal(t, int8(1), tr.At(2, 1))
	assert.Equal(t, int8(0), tr.At(0, 1))
	assert.Equal(t, upper.NNZ(), tr.NNZ())
	require.NoError(t, tr.Validate())
}

func TestAdd_SharedCoordinatesSum(t *testing.T) {
	a, err := foldChunks(context.Background(), pairSource{{Row: 0, Col: 1}, {Row: 1, Col: 2}}, 3, 100)
	require.NoError(t, err)
	b, err := foldChunks(context.Background(), pairSource{{Row: 0, Col: 1}, {Row: 0, Col: 2}}, 3, 100)
	require.NoError(t, err)

	sum := Add(a, b)
	assert.Equal(t, int8(2), sum.At(0, 1))
	assert.Equal(t, int8(1), sum.At(0, 2))
	assert.Equal(t, int8(1), sum.At(1, 2))
	assert.Equal(t, 3, sum.NNZ())
	require.NoError(t, sum.Validate())
}

func TestSymmetrize_ZeroDiagonal(t *testing.T) {
	src := randomPairs(30, 200, 9)

	m, err := Assemble(context.Background(), src, 30)
	require.NoError(t, err)

	assert.True(t, m.IsSymmetric())
	for i := 0; i < 30; i++ {
		assert.Equal(t, int8(0), m.At(i, i))
	}
	assert.LessOrEqual(t, m.NNZ(), 30*29)
}

func TestCSR_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *CSR)
	}{
		{name: "short indptr", mutate: func(m *CSR) { m.Indptr = m.Indptr[:len(m.Indptr)-1] }},
		{name: "nnz mismatch", mutate: func(m *CSR) { m.Indices = m.Indices[:len(m.Indices)-1] }},
		{name: "non-monotonic indptr", mutate: func(m *CSR) { m.Indptr[1] = 100 }},
		{name: "column out of range", mutate: func(m *CSR) { m.Indices[0] = 99 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Assemble(context.Background(), randomPairs(10, 40, 2), 10)
			require.NoError(t, err)
			require.NoError(t, m.Validate())

			tt.mutate(m)
			assert.ErrorIs(t, m.Validate(), ErrInvalidMatrix)
		})
	}
}
