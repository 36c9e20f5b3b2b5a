package engine

import (
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

// Stats is the fold result of one scan. Scan returns it by value; nothing
// in the package keeps run counters in globals.
type Stats struct {
	// TilesScored counts tile pairs whose edges were emitted.
	TilesScored int64

	// TilesSkipped counts tile pairs dropped whole because their candidate
	// count exceeded the budget even at the raised threshold.
	TilesSkipped int64

	// PairsScored counts computed dot products.
	PairsScored int64

	// CandidateEdges counts block entries at or above the effective
	// threshold, before the diagonal filter, over all tiles including
	// skipped ones.
	CandidateEdges int64

	// RetainedEdges counts pairs emitted to the sink.
	RetainedEdges int64

	// BufferGrows counts sink reallocations observed during the scan.
	BufferGrows int64

	// ConnectedDocs is the number of distinct documents appearing in at
	// least one retained edge.
	ConnectedDocs int64

	// Duration is the wall time of the scan.
	Duration time.Duration
}

// AchievedSparsity returns the retained fraction of the full n x n score
// grid, comparable to Config.TargetSparsity. Retained edges cover the
// upper triangle only, before symmetrization.
func (s Stats) AchievedSparsity(n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(s.RetainedEdges) / (float64(n) * float64(n))
}

// workerStats accumulates per-worker counters merged after the scan. The
// endpoint bitmap tracks distinct rows and cols of retained edges.
type workerStats struct {
	tilesScored    int64
	tilesSkipped   int64
	pairsScored    int64
	candidateEdges int64
	retainedEdges  int64
	bufferGrows    int64
	endpoints      *roaring.Bitmap
}

func newWorkerStats() *workerStats {
	return &workerStats{endpoints: roaring.New()}
}

// fold merges all worker counters into one Stats and one endpoint bitmap.
func fold(workers []*workerStats) Stats {
	var s Stats

	merged := roaring.New()
	for _, w := range workers {
		s.TilesScored += w.tilesScored
		s.TilesSkipped += w.tilesSkipped
		s.PairsScored += w.pairsScored
		s.CandidateEdges += w.candidateEdges
		s.RetainedEdges += w.retainedEdges
		s.BufferGrows += w.bufferGrows
		merged.Or(w.endpoints)
	}
	s.ConnectedDocs = int64(merged.GetCardinality())

	return s
}
