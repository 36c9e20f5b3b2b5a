// Package simd provides the float32 dot-product kernels used by the tile
// scanner.
//
// # Operations
//
//   - Dot: single pair
//   - DotBatch: one query against a flattened batch
//   - DotBlock: all pairs between two flattened vector groups (one score
//     block per tile pair)
//
// # Dispatch
//
// Kernels dispatch through package-level function pointers that default to
// portable Go implementations. Platform-specific init() functions can
// override them with vectorized versions; the generic path is the reference
// semantics either way.
package simd
