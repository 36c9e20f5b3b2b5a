// Package testutil provides testing utilities for simgraph.
//
// This package is intended for use in tests and benchmarks only.
// It provides a deterministic, thread-safe RNG and helpers for generating
// corpora: flat row-major matrices, clustered vector sets and the TSV input
// files the loader consumes.
//
// # Random Matrix Generation
//
//	rng := testutil.NewRNG(seed)
//	m := rng.ClusteredMatrix(1000, 128, 10, 0.1) // hot tiles for scan tests
//	u := rng.UnitMatrix(100, 128)                // dot products in [-1, 1]
//
// # Corpus Files
//
//	ids := testutil.DocIDs(1000)
//	err := testutil.WriteVectorsTSV(path, ids, m, 128)
package testutil
