// Package engine implements the tiled upper-triangular similarity scan.
//
// The corpus matrix is partitioned into row blocks of TileSize rows. For
// every block pair (i, j) with i <= j the scanner computes the dense dot
// score block, applies the threshold policy, and emits the surviving
// (row, col) index pairs to an edge sink. Peak memory per worker is one
// score block, so the scan never materializes anything close to the full
// N x N score space.
//
// Tiles whose candidate count exceeds the per-tile edge budget even after
// the percentile adjustment are skipped whole. That is a deliberate
// approximation: the policy trades completeness for a hard memory and
// throughput bound, and every skip is visible in the returned Stats.
//
// Tile pairs are independent, so Scan fans them out across a configurable
// number of workers. The emitted edge set is identical for any worker
// count; only the append order varies, and downstream assembly does not
// depend on order.
package engine
