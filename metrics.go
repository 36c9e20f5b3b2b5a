package simgraph

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    scanHistogram prometheus.Histogram
//	    edgesCounter  prometheus.Counter
//	}
//
//	func (p *PrometheusCollector) RecordScan(scored, skipped, edges, grows, flushes int64, duration time.Duration, err error) {
//	    p.scanHistogram.Observe(duration.Seconds())
//	    p.edgesCounter.Add(float64(edges))
//	}
type MetricsCollector interface {
	// RecordLoad is called after the vector load phase.
	// rows is the number of documents loaded, err is nil if successful.
	RecordLoad(rows int, duration time.Duration, err error)

	// RecordScan is called after the tile scan phase with the folded
	// counters: tiles scored, tiles skipped, edges appended, buffer grows
	// and buffer flushes.
	RecordScan(scored, skipped, edges, grows, flushes int64, duration time.Duration, err error)

	// RecordAssemble is called after matrix assembly.
	// nnz is the number of stored entries in the symmetric matrix.
	RecordAssemble(nnz int, duration time.Duration, err error)

	// RecordPersist is called once per written artifact.
	RecordPersist(bytes int64, duration time.Duration, err error)

	// RecordPublish is called once per uploaded artifact.
	RecordPublish(bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordLoad(int, time.Duration, error)                               {}
func (NoopMetricsCollector) RecordScan(int64, int64, int64, int64, int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordAssemble(int, time.Duration, error)                           {}
func (NoopMetricsCollector) RecordPersist(int64, time.Duration, error)                          {}
func (NoopMetricsCollector) RecordPublish(int64, time.Duration, error)                          {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	LoadCount      atomic.Int64
	LoadErrors     atomic.Int64
	RowsLoaded     atomic.Int64
	ScanCount      atomic.Int64
	ScanErrors     atomic.Int64
	ScanTotalNanos atomic.Int64
	TilesScored    atomic.Int64
	TilesSkipped   atomic.Int64
	EdgesAppended  atomic.Int64
	BufferGrows    atomic.Int64
	BufferFlushes  atomic.Int64
	AssembleCount  atomic.Int64
	AssembleErrors atomic.Int64
	StoredEntries  atomic.Int64
	PersistCount   atomic.Int64
	PersistErrors  atomic.Int64
	ArtifactBytes  atomic.Int64
	PublishCount   atomic.Int64
	PublishErrors  atomic.Int64
	PublishedBytes atomic.Int64
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(rows int, duration time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
		return
	}
	b.RowsLoaded.Add(int64(rows))
}

// RecordScan implements MetricsCollector.
func (b *BasicMetricsCollector) RecordScan(scored, skipped, edges, grows, flushes int64, duration time.Duration, err error) {
	b.ScanCount.Add(1)
	b.ScanTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ScanErrors.Add(1)
		return
	}
	b.TilesScored.Add(scored)
	b.TilesSkipped.Add(skipped)
	b.EdgesAppended.Add(edges)
	b.BufferGrows.Add(grows)
	b.BufferFlushes.Add(flushes)
}

// RecordAssemble implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAssemble(nnz int, duration time.Duration, err error) {
	b.AssembleCount.Add(1)
	if err != nil {
		b.AssembleErrors.Add(1)
		return
	}
	b.StoredEntries.Add(int64(nnz))
}

// RecordPersist implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPersist(bytes int64, duration time.Duration, err error) {
	b.PersistCount.Add(1)
	if err != nil {
		b.PersistErrors.Add(1)
		return
	}
	b.ArtifactBytes.Add(bytes)
}

// RecordPublish implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPublish(bytes int64, duration time.Duration, err error) {
	b.PublishCount.Add(1)
	if err != nil {
		b.PublishErrors.Add(1)
		return
	}
	b.PublishedBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		LoadCount:      b.LoadCount.Load(),
		LoadErrors:     b.LoadErrors.Load(),
		RowsLoaded:     b.RowsLoaded.Load(),
		ScanCount:      b.ScanCount.Load(),
		ScanErrors:     b.ScanErrors.Load(),
		ScanAvgNanos:   b.getAvgScanNanos(),
		TilesScored:    b.TilesScored.Load(),
		TilesSkipped:   b.TilesSkipped.Load(),
		EdgesAppended:  b.EdgesAppended.Load(),
		BufferGrows:    b.BufferGrows.Load(),
		BufferFlushes:  b.BufferFlushes.Load(),
		AssembleCount:  b.AssembleCount.Load(),
		AssembleErrors: b.AssembleErrors.Load(),
		StoredEntries:  b.StoredEntries.Load(),
		PersistCount:   b.PersistCount.Load(),
		PersistErrors:  b.PersistErrors.Load(),
		ArtifactBytes:  b.ArtifactBytes.Load(),
		PublishCount:   b.PublishCount.Load(),
		PublishErrors:  b.PublishErrors.Load(),
		PublishedBytes: b.PublishedBytes.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgScanNanos() int64 {
	count := b.ScanCount.Load()
	if count == 0 {
		return 0
	}
	return b.ScanTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	LoadCount      int64
	LoadErrors     int64
	RowsLoaded     int64
	ScanCount      int64
	ScanErrors     int64
	ScanAvgNanos   int64
	TilesScored    int64
	TilesSkipped   int64
	EdgesAppended  int64
	BufferGrows    int64
	BufferFlushes  int64
	AssembleCount  int64
	AssembleErrors int64
	StoredEntries  int64
	PersistCount   int64
	PersistErrors  int64
	ArtifactBytes  int64
	PublishCount   int64
	PublishErrors  int64
	PublishedBytes int64
}
