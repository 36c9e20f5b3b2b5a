package engine

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/simgraph/corpus"
	"github.com/hupe1980/simgraph/edgebuf"
	"github.com/hupe1980/simgraph/internal/simd"
	"github.com/hupe1980/simgraph/resource"
)

// Sink receives retained edge pairs. *edgebuf.Buffer satisfies it. Append
// must be safe for concurrent use when the scan runs with multiple workers.
type Sink interface {
	Append(pairs []edgebuf.Pair) (edgebuf.AppendResult, error)
}

// Progress is a point-in-time snapshot handed to the progress callback
// after each completed tile pair.
type Progress struct {
	TilesDone  int64
	TilesTotal int64
	Edges      int64
}

// Options configures a Scanner beyond its Config.
type Options struct {
	// Config holds the scan parameters.
	Config Config

	// Controller bounds score-block memory across workers. Nil enforces
	// nothing.
	Controller *resource.Controller

	// Progress, if set, is invoked after every tile pair. It is called
	// from worker goroutines and must be safe for concurrent use.
	Progress func(p Progress)
}

// DefaultOptions returns the default scanner options.
func DefaultOptions() Options {
	return Options{Config: DefaultConfig()}
}

// Scanner walks the upper-triangular tile pairs of one corpus. The vector
// set is read-only for the scanner's lifetime and is shared across workers
// without locking.
type Scanner struct {
	set      *corpus.VectorSet
	cfg      Config
	policy   ThresholdPolicy
	ctrl     *resource.Controller
	progress func(p Progress)
}

// NewScanner creates a scanner over the given vector set.
func NewScanner(set *corpus.VectorSet, optFns ...func(o *Options)) (*Scanner, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if set.Len() > math.MaxInt32 {
		return nil, fmt.Errorf("%w: corpus of %d rows exceeds int32 index space", ErrInvalidConfig, set.Len())
	}

	return &Scanner{
		set:      set,
		cfg:      opts.Config,
		policy:   opts.Config.Policy(),
		ctrl:     opts.Controller,
		progress: opts.Progress,
	}, nil
}

// TilePairs returns the number of tile pairs the scan will visit.
func (s *Scanner) TilePairs() int {
	numTiles := (s.set.Len() + s.cfg.TileSize - 1) / s.cfg.TileSize
	return numTiles * (numTiles + 1) / 2
}

type tilePair struct {
	r0, c0 int
}

// Scan scores every tile pair and appends retained edges to the sink. It
// returns the run's counters; on error the sink's contents are undefined
// and the caller discards the buffer.
func (s *Scanner) Scan(ctx context.Context, sink Sink) (Stats, error) {
	start := time.Now()

	n := s.set.Len()
	tileSize := s.cfg.TileSize
	totalPairs := int64(s.TilePairs())

	var tilesDone, edgesSoFar atomic.Int64

	workers := make([]*workerStats, s.cfg.Workers)
	for i := range workers {
		workers[i] = newWorkerStats()
	}

	g, ctx := errgroup.WithContext(ctx)

	tiles := make(chan tilePair)
	g.Go(func() error {
		defer close(tiles)
		for r0 := 0; r0 < n; r0 += tileSize {
			for c0 := r0; c0 < n; c0 += tileSize {
				select {
				case tiles <- tilePair{r0: r0, c0: c0}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		return nil
	})

	for _, ws := range workers {
		ws := ws
		g.Go(func() error {
			scores := make([]float32, tileSize*tileSize)
			var scratch []edgebuf.Pair

			for tile := range tiles {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				retained, err := s.scanTile(ctx, tile, scores, &scratch, sink, ws)
				if err != nil {
					return err
				}

				done := tilesDone.Add(1)
				edges := edgesSoFar.Add(int64(retained))
				if s.progress != nil {
					s.progress(Progress{TilesDone: done, TilesTotal: totalPairs, Edges: edges})
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	stats := fold(workers)
	stats.Duration = time.Since(start)

	return stats, nil
}

// scanTile scores one block, applies the threshold policy and emits the
// surviving pairs. It returns the number of retained edges.
func (s *Scanner) scanTile(ctx context.Context, tile tilePair, scores []float32, scratch *[]edgebuf.Pair, sink Sink, ws *workerStats) (int, error) {
	n := s.set.Len()
	rend := min(tile.r0+s.cfg.TileSize, n)
	cend := min(tile.c0+s.cfg.TileSize, n)
	rows := rend - tile.r0
	cols := cend - tile.c0

	blockBytes := int64(rows*cols) * 4
	if err := s.ctrl.AcquireMemory(ctx, blockBytes); err != nil {
		return 0, fmt.Errorf("scan tile (%d, %d): %w", tile.r0, tile.c0, err)
	}
	defer s.ctrl.ReleaseMemory(blockBytes)

	block := scores[:rows*cols]
	simd.DotBlock(s.set.Rows(tile.r0, rend), s.set.Rows(tile.c0, cend), s.set.Dim(), block)
	ws.pairsScored += int64(len(block))

	effective := s.policy.EffectiveThreshold(block)

	// Collect every candidate at the effective threshold. The count feeds
	// the skip decision before the diagonal filter runs.
	pairs := (*scratch)[:0]
	for i := 0; i < rows; i++ {
		rowScores := block[i*cols : (i+1)*cols]
		for j, score := range rowScores {
			if score >= effective {
				pairs = append(pairs, edgebuf.Pair{
					Row: int32(tile.r0 + i),
					Col: int32(tile.c0 + j),
				})
			}
		}
	}
	*scratch = pairs

	ws.candidateEdges += int64(len(pairs))
	if len(pairs) > s.policy.MaxEdgesPerTile {
		ws.tilesSkipped++
		return 0, nil
	}

	if tile.r0 == tile.c0 {
		// Diagonal block: keep the strict upper triangle so self pairs and
		// within-tile symmetric duplicates never reach the buffer.
		kept := pairs[:0]
		for _, p := range pairs {
			if p.Col > p.Row {
				kept = append(kept, p)
			}
		}
		pairs = kept
	}

	if len(pairs) > 0 {
		res, err := sink.Append(pairs)
		if err != nil {
			return 0, fmt.Errorf("scan tile (%d, %d): %w", tile.r0, tile.c0, err)
		}
		if res.Grown {
			ws.bufferGrows++
		}

		for _, p := range pairs {
			ws.endpoints.Add(uint32(p.Row))
			ws.endpoints.Add(uint32(p.Col))
		}
		ws.retainedEdges += int64(len(pairs))
	}
	ws.tilesScored++

	return len(pairs), nil
}
