// Package manifest writes and reads the JSON run manifest stored beside
// the graph artifacts. The manifest records what was built, from which
// input, with which configuration, and carries a checksum per artifact so
// downstream consumers can verify what they fetched.
package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/simgraph/internal/fs"
	"github.com/hupe1980/simgraph/internal/hash"
)

// CurrentVersion is the manifest document version this package writes.
const CurrentVersion = 1

// Manifest describes one completed build run.
type Manifest struct {
	Version   int        `json:"version"`
	RunID     string     `json:"run_id"`
	CreatedAt time.Time  `json:"created_at"`
	Tool      string     `json:"tool"`
	Input     string     `json:"input"`
	Docs      int        `json:"docs"`
	Dim       int        `json:"dim"`
	Config    Config     `json:"config"`
	Stats     Stats      `json:"stats"`
	Artifacts []Artifact `json:"artifacts"`
}

// Config echoes the build configuration that produced the run.
type Config struct {
	TileSize           int     `json:"tile_size"`
	BaseThreshold      float32 `json:"base_threshold"`
	TargetSparsity     float64 `json:"target_sparsity"`
	MaxEdgesMultiplier float64 `json:"max_edges_multiplier"`
	PercentileCap      float64 `json:"percentile_cap"`
	Workers            int     `json:"workers"`
	Format             string  `json:"format"`
	Compression        string  `json:"compression,omitempty"`
}

// Stats is the scan and assembly outcome snapshot.
type Stats struct {
	TilesScored      int64   `json:"tiles_scored"`
	TilesSkipped     int64   `json:"tiles_skipped"`
	PairsScored      int64   `json:"pairs_scored"`
	CandidateEdges   int64   `json:"candidate_edges"`
	RetainedEdges    int64   `json:"retained_edges"`
	BufferGrows      int64   `json:"buffer_grows"`
	BufferFlushes    int64   `json:"buffer_flushes"`
	ConnectedDocs    int64   `json:"connected_docs"`
	NNZ              int64   `json:"nnz"`
	AchievedSparsity float64 `json:"achieved_sparsity"`
	DurationMS       int64   `json:"duration_ms"`
}

// Artifact names one produced file with its size and CRC32C checksum.
type Artifact struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Bytes  int64  `json:"bytes"`
	CRC32C uint32 `json:"crc32c"`
}

// Artifact kinds.
const (
	KindMatrix = "matrix"
	KindIDs    = "ids"
)

// New returns a manifest stamped with a fresh run id and creation time.
// The caller fills in the build facts before writing.
func New(tool string) *Manifest {
	return &Manifest{
		Version:   CurrentVersion,
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Tool:      tool,
	}
}

// DescribeArtifact stats and checksums one produced file.
func DescribeArtifact(fsys fs.FileSystem, path, kind string) (Artifact, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("describe artifact %s: %w", filepath.Base(path), err)
	}

	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return Artifact{}, fmt.Errorf("describe artifact %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	sum, err := hash.SumReader(f)
	if err != nil {
		return Artifact{}, fmt.Errorf("describe artifact %s: %w", filepath.Base(path), err)
	}

	return Artifact{
		Name:   filepath.Base(path),
		Kind:   kind,
		Bytes:  info.Size(),
		CRC32C: sum,
	}, nil
}

// Write atomically saves m at path: temp file, fsync, rename, dir sync.
func Write(fsys fs.FileSystem, path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	data = append(data, '\n')

	tmpPath := path + ".tmp"
	f, err := fsys.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		fsys.Remove(tmpPath)
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		fsys.Remove(tmpPath)
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		fsys.Remove(tmpPath)
		return fmt.Errorf("write manifest: %w", err)
	}

	if err := fsys.Rename(tmpPath, path); err != nil {
		fsys.Remove(tmpPath)
		return fmt.Errorf("write manifest: %w", err)
	}

	if d, err := fsys.OpenFile(filepath.Dir(path), os.O_RDONLY, 0); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// Read loads a manifest and checks its document version.
func Read(fsys fs.FileSystem, path string) (*Manifest, error) {
	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if m.Version > CurrentVersion {
		return nil, fmt.Errorf("read manifest: unsupported version %d (expected %d)", m.Version, CurrentVersion)
	}
	return &m, nil
}
