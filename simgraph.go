package simgraph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hupe1980/simgraph/corpus"
	"github.com/hupe1980/simgraph/edgebuf"
	"github.com/hupe1980/simgraph/engine"
	"github.com/hupe1980/simgraph/manifest"
	"github.com/hupe1980/simgraph/sparse"
)

// Version is the module release tag recorded in run manifests.
const Version = "0.1.0"

// Artifact filename suffixes appended to the output prefix.
const (
	IDsSuffix      = ".ids.txt"
	ManifestSuffix = ".manifest.json"
)

// Result describes one completed build.
type Result struct {
	// Stats is the folded scan outcome.
	Stats engine.Stats

	// Artifact locations.
	MatrixPath   string
	IDsPath      string
	ManifestPath string

	// RunID identifies the run in the manifest.
	RunID string

	// N is the number of documents, Dim their vector width, NNZ the stored
	// entry count of the symmetric matrix.
	N   int
	Dim int
	NNZ int
}

// Builder runs the similarity-graph pipeline with a fixed configuration.
type Builder struct {
	opts options
}

// NewBuilder validates the options and returns a reusable Builder.
func NewBuilder(optFns ...Option) (*Builder, error) {
	opts := applyOptions(optFns)
	if err := opts.engineCfg.Validate(); err != nil {
		return nil, translateError(err)
	}
	if opts.flushEvery < 1 {
		return nil, fmt.Errorf("%w: flush every must be positive, got %d", ErrInvalidConfig, opts.flushEvery)
	}
	return &Builder{opts: opts}, nil
}

// Build loads the vector corpus at vectorsPath and builds the graph
// artifacts under outPrefix. See Builder.Build.
func Build(ctx context.Context, vectorsPath, outPrefix string, optFns ...Option) (*Result, error) {
	b, err := NewBuilder(optFns...)
	if err != nil {
		return nil, err
	}
	return b.Build(ctx, vectorsPath, outPrefix)
}

// BuildFromSet builds the graph artifacts from vectors already in memory.
// See Builder.BuildFromSet.
func BuildFromSet(ctx context.Context, set *corpus.VectorSet, outPrefix string, optFns ...Option) (*Result, error) {
	b, err := NewBuilder(optFns...)
	if err != nil {
		return nil, err
	}
	return b.BuildFromSet(ctx, set, outPrefix)
}

// Build runs the full pipeline: load, scan, assemble, persist. It writes
// three artifacts: the sparse matrix (outPrefix plus the format extension),
// the id list (outPrefix + ".ids.txt") and the run manifest (outPrefix +
// ".manifest.json").
func (b *Builder) Build(ctx context.Context, vectorsPath, outPrefix string) (*Result, error) {
	runID := uuid.NewString()
	log := b.opts.logger.WithRun(runID)

	start := time.Now()
	set, err := corpus.Load(ctx, vectorsPath, func(o *corpus.Options) {
		o.FS = b.opts.fsys
	})
	if err != nil {
		b.opts.metricsCollector.RecordLoad(0, time.Since(start), err)
		log.LogLoad(ctx, vectorsPath, 0, 0, err)
		return nil, phaseError("load", err)
	}
	b.opts.metricsCollector.RecordLoad(set.Len(), time.Since(start), nil)
	log.LogLoad(ctx, vectorsPath, set.Len(), set.Dim(), nil)

	return b.build(ctx, set, vectorsPath, outPrefix, runID, log)
}

// BuildFromSet runs the pipeline on an in-memory vector set, skipping the
// load phase. The manifest's input field is left empty.
func (b *Builder) BuildFromSet(ctx context.Context, set *corpus.VectorSet, outPrefix string) (*Result, error) {
	runID := uuid.NewString()
	return b.build(ctx, set, "", outPrefix, runID, b.opts.logger.WithRun(runID))
}

func (b *Builder) build(ctx context.Context, set *corpus.VectorSet, inputPath, outPrefix, runID string, log *Logger) (*Result, error) {
	n := set.Len()

	// The scan never materializes the dense N x N grid; the spill buffer on
	// disk is the only edge storage and it starts at the expected retained
	// size.
	initialPairs := int(float64(n) * float64(n) * b.opts.engineCfg.TargetSparsity)
	buf, err := edgebuf.Create(b.opts.scratchDir, initialPairs, func(o *edgebuf.Options) {
		o.FlushEvery = b.opts.flushEvery
		o.Controller = b.opts.controller
	})
	if err != nil {
		return nil, phaseError("scan", err)
	}
	defer buf.Close()

	scanner, err := engine.NewScanner(set, func(o *engine.Options) {
		o.Config = b.opts.engineCfg
		o.Controller = b.opts.controller
		o.Progress = b.progressFunc(ctx, log.WithPhase("scan"))
	})
	if err != nil {
		return nil, phaseError("scan", err)
	}

	scanStart := time.Now()
	stats, err := scanner.Scan(ctx, buf)
	bufStats := buf.Stats()
	b.opts.metricsCollector.RecordScan(stats.TilesScored, stats.TilesSkipped, stats.RetainedEdges,
		stats.BufferGrows, bufStats.Flushes, time.Since(scanStart), err)
	log.LogScan(ctx, stats.TilesScored, stats.TilesSkipped, stats.RetainedEdges, stats.Duration, err)
	if err != nil {
		return nil, phaseError("scan", err)
	}

	view, err := buf.Finalize()
	if err != nil {
		return nil, phaseError("scan", err)
	}

	asmStart := time.Now()
	m, err := sparse.Assemble(ctx, view, n)
	if err != nil {
		b.opts.metricsCollector.RecordAssemble(0, time.Since(asmStart), err)
		log.LogAssemble(ctx, n, 0, err)
		return nil, phaseError("assemble", err)
	}
	b.opts.metricsCollector.RecordAssemble(m.NNZ(), time.Since(asmStart), nil)
	log.LogAssemble(ctx, n, m.NNZ(), nil)

	matrixPath := outPrefix + b.opts.format.Ext()
	idsPath := outPrefix + IDsSuffix
	manifestPath := outPrefix + ManifestSuffix

	matrixArt, err := b.persistArtifact(ctx, log, matrixPath, manifest.KindMatrix, func() error {
		return sparse.SaveMatrix(b.opts.fsys, matrixPath, m, b.opts.format, b.opts.compression)
	})
	if err != nil {
		return nil, err
	}
	idsArt, err := b.persistArtifact(ctx, log, idsPath, manifest.KindIDs, func() error {
		return sparse.SaveIDs(b.opts.fsys, idsPath, set.IDs())
	})
	if err != nil {
		return nil, err
	}

	man := manifest.New("simgraph/" + Version)
	man.RunID = runID
	man.Input = inputPath
	man.Docs = n
	man.Dim = set.Dim()
	man.Config = b.manifestConfig()
	man.Stats = manifestStats(stats, bufStats, m.NNZ(), n)
	man.Artifacts = []manifest.Artifact{matrixArt, idsArt}

	if err := manifest.Write(b.opts.fsys, manifestPath, man); err != nil {
		log.LogArtifact(ctx, manifestPath, 0, err)
		return nil, &ErrIO{Phase: "persist", Op: "write", Path: manifestPath, cause: err}
	}
	var manifestBytes int64
	if info, err := b.opts.fsys.Stat(manifestPath); err == nil {
		manifestBytes = info.Size()
	}
	log.LogArtifact(ctx, manifestPath, manifestBytes, nil)

	return &Result{
		Stats:        stats,
		MatrixPath:   matrixPath,
		IDsPath:      idsPath,
		ManifestPath: manifestPath,
		RunID:        runID,
		N:            n,
		Dim:          set.Dim(),
		NNZ:          m.NNZ(),
	}, nil
}

// progressFunc builds the rate-limited scan progress callback, or nil when
// progress logging is disabled.
func (b *Builder) progressFunc(ctx context.Context, log *Logger) func(p engine.Progress) {
	if b.opts.progressEvery <= 0 {
		return nil
	}
	lim := rate.NewLimiter(rate.Every(b.opts.progressEvery), 1)
	return func(p engine.Progress) {
		if p.TilesDone == p.TilesTotal || lim.Allow() {
			log.LogScanProgress(ctx, int(p.TilesDone), int(p.TilesTotal), p.Edges)
		}
	}
}

// persistArtifact saves one artifact, then stats and checksums it for the
// manifest. Failures surface as ErrIO after the save's own temp cleanup.
func (b *Builder) persistArtifact(ctx context.Context, log *Logger, path, kind string, save func() error) (manifest.Artifact, error) {
	start := time.Now()
	if err := save(); err != nil {
		b.opts.metricsCollector.RecordPersist(0, time.Since(start), err)
		log.LogArtifact(ctx, path, 0, err)
		return manifest.Artifact{}, &ErrIO{Phase: "persist", Op: "write", Path: path, cause: err}
	}

	art, err := manifest.DescribeArtifact(b.opts.fsys, path, kind)
	if err != nil {
		b.opts.metricsCollector.RecordPersist(0, time.Since(start), err)
		log.LogArtifact(ctx, path, 0, err)
		return manifest.Artifact{}, &ErrIO{Phase: "persist", Op: "checksum", Path: path, cause: err}
	}

	b.opts.metricsCollector.RecordPersist(art.Bytes, time.Since(start), nil)
	log.LogArtifact(ctx, path, art.Bytes, nil)
	return art, nil
}

func (b *Builder) manifestConfig() manifest.Config {
	cfg := manifest.Config{
		TileSize:           b.opts.engineCfg.TileSize,
		BaseThreshold:      b.opts.engineCfg.BaseThreshold,
		TargetSparsity:     b.opts.engineCfg.TargetSparsity,
		MaxEdgesMultiplier: b.opts.engineCfg.MaxEdgesMultiplier,
		PercentileCap:      b.opts.engineCfg.PercentileCap,
		Workers:            b.opts.engineCfg.Workers,
		Format:             b.opts.format.String(),
	}
	if b.opts.format == sparse.FormatBinary {
		cfg.Compression = b.opts.compression.String()
	}
	return cfg
}

func manifestStats(stats engine.Stats, bufStats edgebuf.Stats, nnz, n int) manifest.Stats {
	var sparsity float64
	if n > 0 {
		sparsity = float64(nnz) / (float64(n) * float64(n))
	}
	return manifest.Stats{
		TilesScored:      stats.TilesScored,
		TilesSkipped:     stats.TilesSkipped,
		PairsScored:      stats.PairsScored,
		CandidateEdges:   stats.CandidateEdges,
		RetainedEdges:    stats.RetainedEdges,
		BufferGrows:      stats.BufferGrows,
		BufferFlushes:    bufStats.Flushes,
		ConnectedDocs:    stats.ConnectedDocs,
		NNZ:              int64(nnz),
		AchievedSparsity: sparsity,
		DurationMS:       stats.Duration.Milliseconds(),
	}
}
