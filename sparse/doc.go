// Package sparse assembles the retained edge stream into the final
// adjacency matrix and persists it.
//
// Assembly streams the finalized edge view in bounded chunks, folds the
// pairs into CSR form with duplicate coordinates summed, and symmetrizes
// the result by adding its transpose. The scan emits only the strict
// upper triangle; symmetrization restores the mirror half, so the
// persisted matrix is symmetric with a zero diagonal and weight 1 per
// undirected edge.
//
// Two artifact formats are supported. The default NPZ format is a zip
// archive of NPY members that round-trips with scipy.sparse.load_npz, for
// downstream tooling in the Python ecosystem. The native binary format
// trades that interoperability for block compression and a checksum
// trailer. Load sniffs the leading magic to pick the decoder.
package sparse
