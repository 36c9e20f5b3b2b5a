package corpus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVectorSet(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		set, err := NewVectorSet([]string{"a", "b"}, []float32{1, 2, 3, 4}, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, set.Len())
		assert.Equal(t, 2, set.Dim())
		assert.Equal(t, []float32{3, 4}, set.Row(1))
	})

	t.Run("empty", func(t *testing.T) {
		set, err := NewVectorSet(nil, nil, 0)
		require.NoError(t, err)
		assert.Equal(t, 0, set.Len())
	})

	t.Run("shape mismatch", func(t *testing.T) {
		_, err := NewVectorSet([]string{"a"}, []float32{1, 2, 3}, 2)
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("negative dimension", func(t *testing.T) {
		_, err := NewVectorSet([]string{"a"}, []float32{1}, -1)
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})
}

func TestVectorSet_Rows(t *testing.T) {
	set, err := NewVectorSet([]string{"a", "b", "c"}, []float32{1, 2, 3, 4, 5, 6}, 2)
	require.NoError(t, err)

	assert.Equal(t, []float32{3, 4, 5, 6}, set.Rows(1, 3))
	assert.Equal(t, []float32{1, 2}, set.Rows(0, 1))
	assert.Empty(t, set.Rows(1, 1))
}

func TestVectorSet_RowAliasesMatrix(t *testing.T) {
	set, err := NewVectorSet([]string{"a", "b"}, []float32{1, 2, 3, 4}, 2)
	require.NoError(t, err)

	set.Row(0)[1] = 99
	assert.Equal(t, float32(99), set.Matrix()[1])
}
