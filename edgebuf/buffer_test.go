package edgebuf

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_AppendAndView(t *testing.T) {
	b, err := Create(t.TempDir(), 1024)
	require.NoError(t, err)
	defer b.Close()

	want := []Pair{
		{Row: 0, Col: 3},
		{Row: 1, Col: 7},
		{Row: 2, Col: 2},
		{Row: 5, Col: 0},
	}
	res, err := b.Append(want)
	require.NoError(t, err)
	assert.False(t, res.Grown)
	assert.Equal(t, 1024, res.Capacity)
	assert.Equal(t, 4, b.Len())

	v, err := b.Finalize()
	require.NoError(t, err)
	require.Equal(t, 4, v.Len())

	for i, p := range want {
		assert.Equal(t, p, v.Pair(i))
	}

	got := v.Pairs(1, 3, nil)
	assert.Equal(t, want[1:3], got)

	// A preallocated destination is reused.
	dst := make([]Pair, 0, 8)
	got = v.Pairs(0, 4, dst)
	assert.Equal(t, want, got)
}

func TestBuffer_Growth(t *testing.T) {
	b, err := Create(t.TempDir(), 1)
	require.NoError(t, err)
	defer b.Close()

	// Requested capacity is clamped up to one page of pairs.
	assert.Equal(t, 512, b.Cap())

	rng := rand.New(rand.NewSource(1))
	batch := make([]Pair, 100)

	var grew bool
	for i := 0; i < 12; i++ {
		for j := range batch {
			batch[j] = Pair{Row: rng.Int31n(1000), Col: rng.Int31n(1000)}
		}
		res, err := b.Append(batch)
		require.NoError(t, err)
		grew = grew || res.Grown
	}

	assert.True(t, grew)
	assert.Equal(t, 1200, b.Len())
	assert.Equal(t, 2048, b.Cap())
	assert.Equal(t, int64(2), b.Stats().Grows)

	// The backing file tracks the doubled capacity.
	info, err := os.Stat(b.Path())
	require.NoError(t, err)
	assert.Equal(t, int64(2048*PairBytes), info.Size())
}

func TestBuffer_GrowthPreservesPairs(t *testing.T) {
	b, err := Create(t.TempDir(), 1)
	require.NoError(t, err)
	defer b.Close()

	rng := rand.New(rand.NewSource(7))
	want := make([]Pair, 3000)
	for i := range want {
		want[i] = Pair{Row: rng.Int31(), Col: rng.Int31()}
	}

	for lo := 0; lo < len(want); lo += 256 {
		hi := min(lo+256, len(want))
		_, err := b.Append(want[lo:hi])
		require.NoError(t, err)
	}

	v, err := b.Finalize()
	require.NoError(t, err)
	require.Equal(t, len(want), v.Len())
	assert.Equal(t, want, v.Pairs(0, v.Len(), nil))
}

func TestBuffer_FlushEvery(t *testing.T) {
	b, err := Create(t.TempDir(), 1024, func(o *Options) {
		o.FlushEvery = 4
	})
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Append([]Pair{{0, 1}, {0, 2}, {0, 3}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Stats().Flushes)

	_, err = b.Append([]Pair{{1, 2}, {1, 3}, {1, 4}})
	require.NoError(t, err)

	stats := b.Stats()
	assert.Equal(t, int64(1), stats.Flushes)
	assert.Equal(t, int64(6*PairBytes), stats.FlushedBytes)

	// An explicit flush with nothing pending is a no-op.
	require.NoError(t, b.Flush())
	assert.Equal(t, int64(1), b.Stats().Flushes)
}

func TestBuffer_AppendAfterFinalize(t *testing.T) {
	b, err := Create(t.TempDir(), 64)
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Append([]Pair{{0, 1}})
	require.NoError(t, err)

	_, err = b.Finalize()
	require.NoError(t, err)

	_, err = b.Append([]Pair{{1, 2}})
	assert.ErrorIs(t, err, ErrFinalized)
}

func TestBuffer_UseAfterClose(t *testing.T) {
	b, err := Create(t.TempDir(), 64)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, err = b.Append([]Pair{{0, 1}})
	assert.ErrorIs(t, err, ErrClosed)

	_, err = b.Finalize()
	assert.ErrorIs(t, err, ErrClosed)

	assert.ErrorIs(t, b.Flush(), ErrClosed)

	// Closing again is a no-op.
	require.NoError(t, b.Close())
}

func TestBuffer_CloseRemovesScratchFile(t *testing.T) {
	t.Run("without finalize", func(t *testing.T) {
		b, err := Create(t.TempDir(), 64)
		require.NoError(t, err)

		_, err = b.Append([]Pair{{0, 1}})
		require.NoError(t, err)

		path := b.Path()
		require.FileExists(t, path)

		require.NoError(t, b.Close())
		assert.NoFileExists(t, path)
	})

	t.Run("after finalize", func(t *testing.T) {
		b, err := Create(t.TempDir(), 64)
		require.NoError(t, err)

		_, err = b.Append([]Pair{{0, 1}})
		require.NoError(t, err)
		_, err = b.Finalize()
		require.NoError(t, err)

		path := b.Path()
		require.NoError(t, b.Close())
		assert.NoFileExists(t, path)
	})
}

func TestBuffer_ViewAfterCloseIsInert(t *testing.T) {
	b, err := Create(t.TempDir(), 64)
	require.NoError(t, err)

	_, err = b.Append([]Pair{{0, 1}})
	require.NoError(t, err)

	v, err := b.Finalize()
	require.NoError(t, err)
	require.NoError(t, b.Close())

	assert.Equal(t, 1, v.Len())
}

func TestBuffer_ScratchNamePattern(t *testing.T) {
	b, err := Create(t.TempDir(), 64, func(o *Options) {
		o.Pattern = "scan-*.spill"
	})
	require.NoError(t, err)
	defer b.Close()

	name := filepath.Base(b.Path())
	assert.True(t, strings.HasPrefix(name, "scan-"))
	assert.True(t, strings.HasSuffix(name, ".spill"))
}

func TestCreate_BadDir(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "missing"), 64)
	assert.Error(t, err)
}
