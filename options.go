package simgraph

import (
	"log/slog"
	"time"

	"github.com/hupe1980/simgraph/edgebuf"
	"github.com/hupe1980/simgraph/engine"
	"github.com/hupe1980/simgraph/internal/fs"
	"github.com/hupe1980/simgraph/resource"
	"github.com/hupe1980/simgraph/sparse"
)

type options struct {
	engineCfg        engine.Config
	flushEvery       int
	format           sparse.Format
	compression      sparse.CompressionType
	scratchDir       string
	fsys             fs.FileSystem
	logger           *Logger
	metricsCollector MetricsCollector
	controller       *resource.Controller
	progressEvery    time.Duration
}

// Option configures a build.
type Option func(*options)

// WithTileSize sets the tile width T. Each worker holds one dense T x T
// float32 score block while a tile pair is in flight. Default 500.
func WithTileSize(n int) Option {
	return func(o *options) {
		o.engineCfg.TileSize = n
	}
}

// WithBaseThreshold sets the minimum dot score for an edge candidate.
// Default 9.5.
func WithBaseThreshold(t float32) Option {
	return func(o *options) {
		o.engineCfg.BaseThreshold = t
	}
}

// WithTargetSparsity sets the expected retained fraction of the N x N score
// grid. It sizes the edge buffer and the per-tile candidate budget.
// Default 0.02.
func WithTargetSparsity(s float64) Option {
	return func(o *options) {
		o.engineCfg.TargetSparsity = s
	}
}

// WithMaxEdgesMultiplier sets the slack factor over the per-tile target
// before the percentile adjustment kicks in. Default 4.
func WithMaxEdgesMultiplier(m float64) Option {
	return func(o *options) {
		o.engineCfg.MaxEdgesMultiplier = m
	}
}

// WithPercentileCap sets the percentile (0-100) a hot tile's threshold is
// raised to. Default 95.
func WithPercentileCap(p float64) Option {
	return func(o *options) {
		o.engineCfg.PercentileCap = p
	}
}

// WithWorkers sets the number of goroutines scoring tile pairs. The
// retained edge set is identical for any worker count. Default 1.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.engineCfg.Workers = n
	}
}

// WithFlushEvery sets how many unsynced pairs the edge buffer accumulates
// before an msync flush.
func WithFlushEvery(pairs int) Option {
	return func(o *options) {
		o.flushEvery = pairs
	}
}

// WithMatrixFormat selects the matrix artifact encoding.
// Default sparse.FormatNPZ.
func WithMatrixFormat(f sparse.Format) Option {
	return func(o *options) {
		o.format = f
	}
}

// WithCompression selects the block compression of the native matrix
// format. Ignored for NPZ. Default sparse.CompressionLZ4.
func WithCompression(c sparse.CompressionType) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithScratchDir sets the directory for the edge spill file. Default is the
// system temp directory.
func WithScratchDir(dir string) Option {
	return func(o *options) {
		o.scratchDir = dir
	}
}

// WithFS configures the file system used for artifact writes.
//
// If nil is passed, the local file system is used.
func WithFS(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys == nil {
			fsys = fs.Default
		}
		o.fsys = fsys
	}
}

// WithLogger configures structured logging for the pipeline phases.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring the
// build. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &simgraph.BasicMetricsCollector{}
//	result, _ := simgraph.Build(ctx, "vectors.tsv", "out/graph",
//	    simgraph.WithMetricsCollector(metrics))
//	stats := metrics.GetStats()
//	fmt.Printf("Edges: %d, Skipped tiles: %d\n", stats.EdgesAppended, stats.TilesSkipped)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithResourceController bounds score-block memory and flush IO throughput.
// A nil controller enforces nothing.
func WithResourceController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

// WithProgressEvery sets the minimum interval between scan progress log
// lines. Zero disables progress logging. Default 10s.
func WithProgressEvery(d time.Duration) Option {
	return func(o *options) {
		o.progressEvery = d
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		engineCfg:        engine.DefaultConfig(),
		flushEvery:       edgebuf.DefaultOptions().FlushEvery,
		format:           sparse.FormatNPZ,
		compression:      sparse.CompressionLZ4,
		fsys:             fs.Default,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		progressEvery:    10 * time.Second,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
