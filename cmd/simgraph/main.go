package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/simgraph"
	"github.com/hupe1980/simgraph/blobstore"
	minioblob "github.com/hupe1980/simgraph/blobstore/minio"
	s3blob "github.com/hupe1980/simgraph/blobstore/s3"
	"github.com/hupe1980/simgraph/engine"
	"github.com/hupe1980/simgraph/export"
	"github.com/hupe1980/simgraph/internal/fs"
	"github.com/hupe1980/simgraph/manifest"
	"github.com/hupe1980/simgraph/sparse"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "simgraph",
	Short: "Build document-similarity graphs from embedding corpora",
	Long: `Builds a sparse document-similarity graph from a TSV vector corpus and
manages the produced artifacts: inspect a finished run, export it as
Neo4j bulk-import CSVs, or publish it to a blob store.`,
}

// buildConfig mirrors the build flags. Keys use the flag names; a value from
// the file applies only where the flag was not set on the command line.
type buildConfig struct {
	Input              *string  `yaml:"input"`
	Out                *string  `yaml:"out"`
	TileSize           *int     `yaml:"tile-size"`
	BaseThreshold      *float64 `yaml:"base-threshold"`
	TargetSparsity     *float64 `yaml:"target-sparsity"`
	MaxEdgesMultiplier *float64 `yaml:"max-edges-multiplier"`
	PercentileCap      *float64 `yaml:"percentile-cap"`
	Workers            *int     `yaml:"workers"`
	FlushEvery         *int     `yaml:"flush-every"`
	Format             *string  `yaml:"format"`
	Compression        *string  `yaml:"compression"`
	ScratchDir         *string  `yaml:"scratch-dir"`
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build graph artifacts from a vector corpus",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		var file buildConfig
		if configPath != "" {
			if err := loadConfigFile(configPath, &file); err != nil {
				return err
			}
		}

		input := stringSetting(cmd, "input", file.Input)
		out := stringSetting(cmd, "out", file.Out)
		if input == "" {
			return fmt.Errorf("input corpus is required (--input or config file)")
		}
		if out == "" {
			return fmt.Errorf("output prefix is required (--out or config file)")
		}

		format, err := sparse.ParseFormat(stringSetting(cmd, "format", file.Format))
		if err != nil {
			return err
		}
		compression, err := sparse.ParseCompression(stringSetting(cmd, "compression", file.Compression))
		if err != nil {
			return err
		}

		targetSparsity := floatSetting(cmd, "target-sparsity", file.TargetSparsity)

		opts := []simgraph.Option{
			simgraph.WithTileSize(intSetting(cmd, "tile-size", file.TileSize)),
			simgraph.WithBaseThreshold(float32(floatSetting(cmd, "base-threshold", file.BaseThreshold))),
			simgraph.WithTargetSparsity(targetSparsity),
			simgraph.WithMaxEdgesMultiplier(floatSetting(cmd, "max-edges-multiplier", file.MaxEdgesMultiplier)),
			simgraph.WithPercentileCap(floatSetting(cmd, "percentile-cap", file.PercentileCap)),
			simgraph.WithWorkers(intSetting(cmd, "workers", file.Workers)),
			simgraph.WithMatrixFormat(format),
			simgraph.WithCompression(compression),
			simgraph.WithLogLevel(logLevel()),
		}
		if flushEvery := intSetting(cmd, "flush-every", file.FlushEvery); flushEvery > 0 {
			opts = append(opts, simgraph.WithFlushEvery(flushEvery))
		}
		if scratchDir := stringSetting(cmd, "scratch-dir", file.ScratchDir); scratchDir != "" {
			opts = append(opts, simgraph.WithScratchDir(scratchDir))
		}

		ctx := context.Background()
		res, err := simgraph.Build(ctx, input, out, opts...)
		if err != nil {
			return fmt.Errorf("build failed: %w", err)
		}

		fmt.Printf("Built %s\n", res.MatrixPath)
		fmt.Printf("  Documents: %d (dim %d)\n", res.N, res.Dim)
		fmt.Printf("  Edges: %d retained, %d stored entries\n", res.Stats.RetainedEdges, res.NNZ)
		fmt.Printf("  Sparsity: %.4f (target %.4f)\n", res.Stats.AchievedSparsity(res.N), targetSparsity)
		fmt.Printf("  Tiles: %d scored, %d skipped\n", res.Stats.TilesScored, res.Stats.TilesSkipped)
		fmt.Printf("  Duration: %s\n", res.Stats.Duration.Round(time.Millisecond))
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write Neo4j bulk-import CSVs from built artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		matrixPath, _ := cmd.Flags().GetString("matrix")
		idsPath, _ := cmd.Flags().GetString("ids")
		metadataPath, _ := cmd.Flags().GetString("metadata")
		outDir, _ := cmd.Flags().GetString("out-dir")

		ctx := context.Background()
		stats, err := export.New().Export(ctx, matrixPath, idsPath, metadataPath, outDir)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		fmt.Printf("Exported %d nodes and %d edges to %s\n", stats.Nodes, stats.Edges, outDir)
		return nil
	},
}

// inspectReport is the JSON shape of the inspect output.
type inspectReport struct {
	Manifest   *manifest.Manifest `json:"manifest"`
	Docs       int                `json:"docs"`
	NNZ        int                `json:"nnz"`
	Sparsity   float64            `json:"sparsity"`
	Symmetric  bool               `json:"symmetric"`
	TopDegrees []docDegree        `json:"top_degrees"`
}

type docDegree struct {
	ID     string `json:"id"`
	Degree int    `json:"degree"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <prefix>",
	Short: "Print the manifest and recomputed facts for a finished run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := args[0]

		man, err := manifest.Read(fs.Default, prefix+simgraph.ManifestSuffix)
		if err != nil {
			return err
		}
		matrixPath, idsPath, err := artifactPaths(prefix, man)
		if err != nil {
			return err
		}

		if verify, _ := cmd.Flags().GetBool("verify"); verify {
			if err := verifyArtifacts(filepath.Dir(matrixPath), man); err != nil {
				return err
			}
		}

		m, err := sparse.Load(fs.Default, matrixPath)
		if err != nil {
			return err
		}
		ids, err := sparse.ReadIDs(fs.Default, idsPath)
		if err != nil {
			return err
		}
		if len(ids) != m.Rows {
			return fmt.Errorf("id count %d does not match matrix rows %d", len(ids), m.Rows)
		}

		report := inspectReport{
			Manifest:   man,
			Docs:       m.Rows,
			NNZ:        m.NNZ(),
			Sparsity:   sparsity(m),
			Symmetric:  m.IsSymmetric(),
			TopDegrees: topDegrees(m, ids, 5),
		}

		if outputJSON, _ := cmd.Flags().GetBool("json"); outputJSON {
			data, _ := json.MarshalIndent(report, "", "  ")
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("Run: %s (created %s)\n", man.RunID, man.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Input: %s (%d docs, dim %d)\n", man.Input, man.Docs, man.Dim)
		fmt.Printf("Config: tile %d, threshold %.2f, target sparsity %.4f, workers %d\n",
			man.Config.TileSize, man.Config.BaseThreshold, man.Config.TargetSparsity, man.Config.Workers)
		fmt.Printf("Scan: %d of %d pairs retained, %d tiles skipped, took %s\n",
			man.Stats.RetainedEdges, man.Stats.PairsScored, man.Stats.TilesSkipped,
			time.Duration(man.Stats.DurationMS)*time.Millisecond)
		fmt.Printf("Matrix: %s\n", matrixPath)
		fmt.Printf("  Documents: %d\n", report.Docs)
		fmt.Printf("  Stored entries: %d\n", report.NNZ)
		fmt.Printf("  Sparsity: %.4f\n", report.Sparsity)
		fmt.Printf("  Symmetric: %t\n", report.Symmetric)
		if int64(report.NNZ) != man.Stats.NNZ {
			fmt.Printf("  WARNING: manifest records %d stored entries\n", man.Stats.NNZ)
		}
		if len(report.TopDegrees) > 0 {
			fmt.Println("Top degrees:")
			for _, d := range report.TopDegrees {
				fmt.Printf("  %s  %d\n", d.ID, d.Degree)
			}
		}
		return nil
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish <prefix>",
	Short: "Upload the artifacts of a finished run to a blob store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := args[0]
		ctx := context.Background()

		man, err := manifest.Read(fs.Default, prefix+simgraph.ManifestSuffix)
		if err != nil {
			return err
		}
		matrixPath, idsPath, err := artifactPaths(prefix, man)
		if err != nil {
			return err
		}

		store, err := openBlobStore(ctx, cmd)
		if err != nil {
			return err
		}

		res := &simgraph.Result{
			RunID:        man.RunID,
			MatrixPath:   matrixPath,
			IDsPath:      idsPath,
			ManifestPath: prefix + simgraph.ManifestSuffix,
		}

		var opts []simgraph.Option
		if verbose {
			opts = append(opts, simgraph.WithLogLevel(slog.LevelDebug))
		}
		uploads, err := simgraph.Publish(ctx, store, res, opts...)
		if err != nil {
			return fmt.Errorf("publish failed: %w", err)
		}

		var total int64
		for _, u := range uploads {
			fmt.Printf("  %s (%d bytes)\n", u.Key, u.Bytes)
			total += u.Bytes
		}
		fmt.Printf("Published %d artifacts (%d bytes) under %s\n", len(uploads), total, man.RunID)
		return nil
	},
}

// loadConfigFile reads a YAML config whose keys mirror the build flag names.
// Unknown keys are rejected.
func loadConfigFile(path string, cfg *buildConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func stringSetting(cmd *cobra.Command, name string, file *string) string {
	if file != nil && !cmd.Flags().Changed(name) {
		return *file
	}
	v, _ := cmd.Flags().GetString(name)
	return v
}

func intSetting(cmd *cobra.Command, name string, file *int) int {
	if file != nil && !cmd.Flags().Changed(name) {
		return *file
	}
	v, _ := cmd.Flags().GetInt(name)
	return v
}

func floatSetting(cmd *cobra.Command, name string, file *float64) float64 {
	if file != nil && !cmd.Flags().Changed(name) {
		return *file
	}
	v, _ := cmd.Flags().GetFloat64(name)
	return v
}

func logLevel() slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// artifactPaths resolves the matrix and id files named by the manifest
// relative to the prefix directory.
func artifactPaths(prefix string, man *manifest.Manifest) (matrixPath, idsPath string, err error) {
	dir := filepath.Dir(prefix)
	for _, a := range man.Artifacts {
		switch a.Kind {
		case manifest.KindMatrix:
			matrixPath = filepath.Join(dir, a.Name)
		case manifest.KindIDs:
			idsPath = filepath.Join(dir, a.Name)
		}
	}
	if matrixPath == "" || idsPath == "" {
		return "", "", fmt.Errorf("manifest names no matrix or id artifact")
	}
	return matrixPath, idsPath, nil
}

// verifyArtifacts recomputes size and checksum of every artifact the
// manifest names and compares them to the recorded values.
func verifyArtifacts(dir string, man *manifest.Manifest) error {
	for _, want := range man.Artifacts {
		got, err := manifest.DescribeArtifact(fs.Default, filepath.Join(dir, want.Name), want.Kind)
		if err != nil {
			return err
		}
		if got.Bytes != want.Bytes || got.CRC32C != want.CRC32C {
			return fmt.Errorf("artifact %s does not match its manifest entry", want.Name)
		}
	}
	fmt.Printf("Checksums: OK (%d artifacts)\n", len(man.Artifacts))
	return nil
}

func sparsity(m *sparse.CSR) float64 {
	if m.Rows == 0 {
		return 0
	}
	return float64(m.NNZ()) / (float64(m.Rows) * float64(m.Cols))
}

// topDegrees returns the k highest-degree documents, ties broken by id.
func topDegrees(m *sparse.CSR, ids []string, k int) []docDegree {
	out := make([]docDegree, 0, m.Rows)
	for i := 0; i < m.Rows; i++ {
		deg := int(m.Indptr[i+1] - m.Indptr[i])
		if deg == 0 {
			continue
		}
		out = append(out, docDegree{ID: ids[i], Degree: deg})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Degree != out[j].Degree {
			return out[i].Degree > out[j].Degree
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// openBlobStore picks the publish destination from the flags: a local
// directory, a MinIO endpoint or AWS S3.
func openBlobStore(ctx context.Context, cmd *cobra.Command) (blobstore.Store, error) {
	dir, _ := cmd.Flags().GetString("dir")
	endpoint, _ := cmd.Flags().GetString("endpoint")
	useS3, _ := cmd.Flags().GetBool("s3")
	bucket, _ := cmd.Flags().GetString("bucket")
	keyPrefix, _ := cmd.Flags().GetString("prefix")

	switch {
	case dir != "":
		return blobstore.NewLocalStore(nil, filepath.Join(dir, keyPrefix)), nil
	case endpoint != "":
		if bucket == "" {
			return nil, fmt.Errorf("bucket is required with --endpoint")
		}
		accessKey, _ := cmd.Flags().GetString("access-key")
		secretKey, _ := cmd.Flags().GetString("secret-key")
		secure, _ := cmd.Flags().GetBool("secure")
		client, err := minio.New(endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
			Secure: secure,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create minio client: %w", err)
		}
		return minioblob.NewStore(client, bucket, keyPrefix), nil
	case useS3:
		if bucket == "" {
			return nil, fmt.Errorf("bucket is required with --s3")
		}
		region, _ := cmd.Flags().GetString("region")
		store, err := s3blob.New(ctx, bucket, s3blob.WithPrefix(keyPrefix), s3blob.WithRegion(region))
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("a destination is required: --dir, --endpoint or --s3")
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	// Build command
	buildCmd.Flags().String("input", "", "Vector corpus TSV (id<TAB>v1,v2,...)")
	buildCmd.Flags().String("out", "", "Output artifact prefix")
	buildCmd.Flags().Int("tile-size", engine.DefaultTileSize, "Tile width of the scan")
	buildCmd.Flags().Float64("base-threshold", engine.DefaultBaseThreshold, "Minimum dot score for an edge")
	buildCmd.Flags().Float64("target-sparsity", engine.DefaultTargetSparsity, "Expected retained fraction of the score grid")
	buildCmd.Flags().Float64("max-edges-multiplier", engine.DefaultMaxEdgesMultiplier, "Slack over the per-tile budget before thresholds adapt")
	buildCmd.Flags().Float64("percentile-cap", engine.DefaultPercentileCap, "Percentile a hot tile's threshold is raised to")
	buildCmd.Flags().Int("workers", runtime.NumCPU(), "Scan worker goroutines")
	buildCmd.Flags().Int("flush-every", 0, "Pairs per spill flush (0 for the default)")
	buildCmd.Flags().String("format", "npz", "Matrix format (npz/binary)")
	buildCmd.Flags().String("compression", "lz4", "Block compression of the binary format (none/lz4/zstd)")
	buildCmd.Flags().String("scratch-dir", "", "Spill directory (default system temp)")
	buildCmd.Flags().String("config", "", "YAML config file; flags win over file values")

	// Export command
	exportCmd.Flags().String("matrix", "", "Matrix artifact path")
	exportCmd.Flags().String("ids", "", "Id list path")
	exportCmd.Flags().String("metadata", "", "Corpus metadata TSV")
	exportCmd.Flags().String("out-dir", "import", "Output directory for the CSVs")
	exportCmd.MarkFlagRequired("matrix")
	exportCmd.MarkFlagRequired("ids")
	exportCmd.MarkFlagRequired("metadata")

	// Inspect command
	inspectCmd.Flags().Bool("json", false, "Output as JSON")
	inspectCmd.Flags().Bool("verify", false, "Recompute artifact checksums against the manifest")

	// Publish command
	publishCmd.Flags().String("bucket", "", "Destination bucket")
	publishCmd.Flags().String("prefix", "", "Key prefix within the destination")
	publishCmd.Flags().String("dir", "", "Publish into a local directory instead of a bucket")
	publishCmd.Flags().String("endpoint", "", "MinIO endpoint (host:port)")
	publishCmd.Flags().Bool("s3", false, "Publish to AWS S3 via the default credential chain")
	publishCmd.Flags().String("region", "", "AWS region override")
	publishCmd.Flags().String("access-key", os.Getenv("MINIO_ACCESS_KEY"), "MinIO access key (defaults to $MINIO_ACCESS_KEY)")
	publishCmd.Flags().String("secret-key", os.Getenv("MINIO_SECRET_KEY"), "MinIO secret key (defaults to $MINIO_SECRET_KEY)")
	publishCmd.Flags().Bool("secure", false, "Use TLS for the MinIO endpoint")

	rootCmd.AddCommand(
		buildCmd,
		exportCmd,
		inspectCmd,
		publishCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
