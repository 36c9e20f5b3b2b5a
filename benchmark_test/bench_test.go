package benchmark_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hupe1980/simgraph"
	"github.com/hupe1980/simgraph/blobstore"
	"github.com/hupe1980/simgraph/sparse"
	"github.com/hupe1980/simgraph/testutil"
)

func BenchmarkBuild_Workers1(b *testing.B) {
	benchmarkBuild(b, 1, sparse.FormatNPZ)
}

func BenchmarkBuild_Workers4(b *testing.B) {
	benchmarkBuild(b, 4, sparse.FormatNPZ)
}

func BenchmarkBuild_BinaryFormat(b *testing.B) {
	benchmarkBuild(b, 4, sparse.FormatBinary)
}

// benchmarkBuild runs the full pipeline on a clustered corpus: scan,
// spill, assemble, persist.
func benchmarkBuild(b *testing.B, workers int, format sparse.Format) {
	b.ReportAllocs()

	r := testutil.NewRNG(1)
	set := r.ClusteredSet(2000, 64, 20, 0.05)
	dir := b.TempDir()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := simgraph.BuildFromSet(context.Background(), set, filepath.Join(dir, "graph"),
			simgraph.WithBaseThreshold(0.8),
			simgraph.WithTileSize(256),
			simgraph.WithWorkers(workers),
			simgraph.WithMatrixFormat(format),
			simgraph.WithScratchDir(dir),
		)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPublish(b *testing.B) {
	b.ReportAllocs()

	r := testutil.NewRNG(1)
	set := r.ClusteredSet(500, 32, 10, 0.05)
	dir := b.TempDir()

	res, err := simgraph.BuildFromSet(context.Background(), set, filepath.Join(dir, "graph"),
		simgraph.WithBaseThreshold(0.8),
		simgraph.WithScratchDir(dir),
	)
	if err != nil {
		b.Fatal(err)
	}

	store := blobstore.NewMemoryStore()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := simgraph.Publish(context.Background(), store, res); err != nil {
			b.Fatal(err)
		}
	}
}
