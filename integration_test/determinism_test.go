package integration_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/simgraph"
	"github.com/hupe1980/simgraph/internal/fs"
	"github.com/hupe1980/simgraph/sparse"
)

// buildMatrix builds the corpus at vectorsPath and returns the decoded
// matrix artifact.
func buildMatrix(t *testing.T, vectorsPath, outPrefix string, opts ...simgraph.Option) (*sparse.CSR, *simgraph.Result) {
	t.Helper()

	res, err := simgraph.Build(context.Background(), vectorsPath, outPrefix, opts...)
	require.NoError(t, err)

	m, err := sparse.Load(fs.Default, res.MatrixPath)
	require.NoError(t, err)
	return m, res
}

func TestDeterminism_WorkerCount(t *testing.T) {
	dir := t.TempDir()
	vectorsPath, _, _ := writeClusteredCorpus(t, dir, 150, 24, 5)

	// A tight budget makes hot tiles raise their threshold, so worker
	// invariance covers the adaptive path, not just the plain filter.
	opts := []simgraph.Option{
		simgraph.WithBaseThreshold(0.3),
		simgraph.WithTileSize(48),
		simgraph.WithTargetSparsity(0.05),
	}

	base, baseRes := buildMatrix(t, vectorsPath, filepath.Join(dir, "w1"),
		append(opts, simgraph.WithWorkers(1))...)
	require.Positive(t, base.NNZ())

	for _, workers := range []int{2, 4, 8} {
		m, res := buildMatrix(t, vectorsPath, filepath.Join(dir, fmt.Sprintf("w%d", workers)),
			append(opts, simgraph.WithWorkers(workers))...)

		assert.Equal(t, base.Indptr, m.Indptr, "workers=%d", workers)
		assert.Equal(t, base.Indices, m.Indices, "workers=%d", workers)
		assert.Equal(t, base.Data, m.Data, "workers=%d", workers)
		assert.Equal(t, baseRes.Stats.RetainedEdges, res.Stats.RetainedEdges, "workers=%d", workers)
	}
}

func TestDeterminism_TileSize(t *testing.T) {
	dir := t.TempDir()
	vectorsPath, _, _ := writeClusteredCorpus(t, dir, 90, 16, 3)

	// A budget above the tile area keeps every tile on the base threshold,
	// so the retained set is a pure filter and cannot depend on tiling.
	opts := []simgraph.Option{
		simgraph.WithBaseThreshold(0.7),
		simgraph.WithTargetSparsity(0.5),
	}

	base, _ := buildMatrix(t, vectorsPath, filepath.Join(dir, "t500"),
		append(opts, simgraph.WithTileSize(500))...)
	require.Positive(t, base.NNZ())

	for _, tile := range []int{16, 33, 90} {
		m, _ := buildMatrix(t, vectorsPath, filepath.Join(dir, fmt.Sprintf("t%d", tile)),
			append(opts, simgraph.WithTileSize(tile))...)

		assert.Equal(t, base.Indptr, m.Indptr, "tile=%d", tile)
		assert.Equal(t, base.Indices, m.Indices, "tile=%d", tile)
		assert.Equal(t, base.Data, m.Data, "tile=%d", tile)
	}
}

func TestDeterminism_Rebuild(t *testing.T) {
	dir := t.TempDir()
	vectorsPath, _, _ := writeClusteredCorpus(t, dir, 80, 16, 4)

	opts := []simgraph.Option{
		simgraph.WithBaseThreshold(0.8),
		simgraph.WithWorkers(4),
	}

	first, err := simgraph.Build(context.Background(), vectorsPath, filepath.Join(dir, "a"), opts...)
	require.NoError(t, err)
	second, err := simgraph.Build(context.Background(), vectorsPath, filepath.Join(dir, "b"), opts...)
	require.NoError(t, err)

	// Matrix and id artifacts are byte-identical across reruns. Only the
	// manifest differs, through its run id and timestamps.
	firstMatrix, err := os.ReadFile(first.MatrixPath)
	require.NoError(t, err)
	secondMatrix, err := os.ReadFile(second.MatrixPath)
	require.NoError(t, err)
	assert.Equal(t, firstMatrix, secondMatrix)

	firstIDs, err := os.ReadFile(first.IDsPath)
	require.NoError(t, err)
	secondIDs, err := os.ReadFile(second.IDsPath)
	require.NoError(t, err)
	assert.Equal(t, firstIDs, secondIDs)

	assert.NotEqual(t, first.RunID, second.RunID)
}
