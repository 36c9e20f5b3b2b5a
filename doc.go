// Package simgraph builds document similarity graphs from dense embedding
// vectors.
//
// Simgraph scores every document pair in tiles, keeps only pairs above an
// adaptive similarity threshold, and assembles the survivors into a
// symmetric sparse matrix. The scan is blocked and bounded: it never
// materializes the dense N x N grid, candidate edges spill to a scratch
// file, and per-tile thresholds adapt so the retained edge count tracks a
// target sparsity.
//
// # Quick Start
//
//	ctx := context.Background()
//	res, _ := simgraph.Build(ctx, "embeddings.tsv", "out/graph")
//	fmt.Println(res.N, res.NNZ, res.MatrixPath)
//
// Tuning:
//
//	res, _ := simgraph.Build(ctx, "embeddings.tsv", "out/graph",
//	    simgraph.WithBaseThreshold(12),
//	    simgraph.WithTargetSparsity(0.01),
//	    simgraph.WithWorkers(8),
//	)
//
// # Pipeline
//
// A build runs four phases:
//
//	load      parse the TSV corpus into a row-major float32 matrix
//	scan      score tiles, adapt thresholds, spill retained pairs
//	assemble  sort, deduplicate and mirror pairs into CSR form
//	persist   write matrix, id list and run manifest atomically
//
// Phase names prefix every pipeline error, so callers can tell a malformed
// input row from a scratch-disk failure.
//
// # Artifacts
//
// A build with prefix "out/graph" writes:
//
//	out/graph.npz            sparse matrix (SciPy-compatible NPZ, default)
//	out/graph.ids.txt        document ids, one per row index
//	out/graph.manifest.json  run manifest with config, stats and checksums
//
// WithMatrixFormat(sparse.FormatBinary) switches the matrix to the compact
// SGM1 container with LZ4 or Zstandard block compression.
//
// # Key Features
//
//   - Tile-wise scoring with SIMD-accelerated dot products
//   - Threshold adaptation from per-tile score percentiles
//   - Hard edge budget with deterministic tile skipping
//   - Disk-backed edge buffer, memory use independent of edge count
//   - NPZ and SGM1 matrix formats with CRC32C integrity checks
//   - Neo4j bulk-import CSV export and S3/MinIO artifact publishing
package simgraph
