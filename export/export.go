// Package export writes Neo4j bulk-import CSV files from built graph
// artifacts. Nodes come from the corpus metadata, edges from the stored
// nonzeros of the similarity matrix. Rows stream straight to disk; the
// edge set is never materialized in memory.
package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/hupe1980/simgraph/corpus"
	"github.com/hupe1980/simgraph/internal/fs"
	"github.com/hupe1980/simgraph/resource"
	"github.com/hupe1980/simgraph/sparse"
)

// Node label and relationship type stamped on every row.
const (
	NodeLabel = "Document"
	EdgeType  = "SIMILAR_TO"
)

// File names written into the output directory.
const (
	NodesFile = "nodes.csv"
	EdgesFile = "edges.csv"
)

// ErrIDCount is returned when the id list disagrees with the matrix shape.
var ErrIDCount = errors.New("export: id count does not match matrix rows")

// Options configures an Exporter.
type Options struct {
	// FS is the file system used for all reads and writes.
	FS fs.FileSystem

	// Controller throttles CSV write bandwidth through its IO limit. Nil
	// enforces nothing.
	Controller *resource.Controller
}

// DefaultOptions returns the default exporter options.
func DefaultOptions() Options {
	return Options{FS: fs.Default}
}

// Exporter turns matrix, id and metadata artifacts into import CSVs.
type Exporter struct {
	opts Options
}

// New creates an Exporter.
func New(optFns ...func(o *Options)) *Exporter {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.FS == nil {
		opts.FS = fs.Default
	}
	return &Exporter{opts: opts}
}

// Stats reports what an export produced.
type Stats struct {
	// Nodes is the number of node rows, one per metadata record.
	Nodes int
	// Edges is the number of relationship rows, one per stored nonzero.
	Edges int
}

// Export writes nodes.csv and edges.csv into outDir. Both files are written
// atomically; a failed export leaves no partial file behind.
func (e *Exporter) Export(ctx context.Context, matrixPath, idsPath, metadataPath, outDir string) (Stats, error) {
	m, err := sparse.Load(e.opts.FS, matrixPath)
	if err != nil {
		return Stats{}, err
	}

	ids, err := sparse.ReadIDs(e.opts.FS, idsPath)
	if err != nil {
		return Stats{}, err
	}
	if len(ids) != m.Rows {
		return Stats{}, fmt.Errorf("%w: %d ids for %d rows", ErrIDCount, len(ids), m.Rows)
	}

	docs, err := corpus.LoadMetadata(ctx, metadataPath, func(o *corpus.Options) {
		o.FS = e.opts.FS
	})
	if err != nil {
		return Stats{}, err
	}

	if err := e.opts.FS.MkdirAll(outDir, 0o755); err != nil {
		return Stats{}, fmt.Errorf("export: create %s: %w", outDir, err)
	}

	if err := e.writeNodes(ctx, filepath.Join(outDir, NodesFile), docs); err != nil {
		return Stats{}, err
	}
	if err := e.writeEdges(ctx, filepath.Join(outDir, EdgesFile), m, ids); err != nil {
		return Stats{}, err
	}

	return Stats{Nodes: len(docs), Edges: m.NNZ()}, nil
}

func (e *Exporter) writeNodes(ctx context.Context, path string, docs []corpus.Document) error {
	return sparse.SaveToFile(e.opts.FS, path, func(w io.Writer) error {
		cw := csv.NewWriter(resource.NewRateLimitedWriter(w, e.opts.Controller, ctx))
		if err := cw.Write([]string{"documentId:ID", "title", "category", ":LABEL"}); err != nil {
			return err
		}
		for i, doc := range docs {
			if i%4096 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			if err := cw.Write([]string{doc.ID, doc.Title, doc.Category, NodeLabel}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// writeEdges emits one row per stored nonzero. The matrix stores both
// directions of every edge, so the file mirrors the symmetric
// representation exactly.
func (e *Exporter) writeEdges(ctx context.Context, path string, m *sparse.CSR, ids []string) error {
	return sparse.SaveToFile(e.opts.FS, path, func(w io.Writer) error {
		cw := csv.NewWriter(resource.NewRateLimitedWriter(w, e.opts.Controller, ctx))
		if err := cw.Write([]string{":START_ID", ":END_ID", "similarity:float", ":TYPE"}); err != nil {
			return err
		}

		record := []string{"", "", "", EdgeType}
		for i := 0; i < m.Rows; i++ {
			if i%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			for k := m.Indptr[i]; k < m.Indptr[i+1]; k++ {
				record[0] = ids[i]
				record[1] = ids[m.Indices[k]]
				record[2] = strconv.FormatFloat(float64(m.Data[k]), 'g', -1, 64)
				if err := cw.Write(record); err != nil {
					return err
				}
			}
		}
		cw.Flush()
		return cw.Error()
	})
}
