package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/hupe1980/simgraph/corpus"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// FillUniform fills dst with random values in range [0, 1).
// Locks only once per call (preferred over calling Float32 in a loop).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// FillUniformRange fills dst with random values in range [minVal, maxVal).
func (r *RNG) FillUniformRange(dst []float32, minVal, maxVal float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	span := maxVal - minVal
	for i := range dst {
		dst[i] = minVal + r.rand.Float32()*span
	}
}

// UniformMatrix generates num row-major vectors with values in range [0, 1).
func (r *RNG) UniformMatrix(num, dim int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	for i := range data {
		data[i] = r.rand.Float32()
	}
	return data
}

// GaussianMatrix generates num row-major vectors with values from a standard
// normal distribution.
func (r *RNG) GaussianMatrix(num, dim int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	for i := range data {
		data[i] = float32(r.rand.NormFloat64())
	}
	return data
}

// UnitMatrix generates num L2-normalized row-major vectors (on the
// hypersphere). With unit rows every pairwise dot product lands in [-1, 1],
// which makes similarity thresholds easy to reason about in tests.
func (r *RNG) UnitMatrix(num, dim int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	for i := 0; i < num; i++ {
		r.fillUnitLocked(data[i*dim : (i+1)*dim])
	}
	return data
}

// fillUnitLocked fills vec with a random unit vector (caller must hold lock).
// Gaussian samples give a uniform direction on the sphere.
func (r *RNG) fillUnitLocked(vec []float32) {
	var norm float64
	for j := range vec {
		v := r.rand.NormFloat64()
		vec[j] = float32(v)
		norm += v * v
	}

	if norm == 0 {
		norm = 1 // Avoid division by zero, though unlikely with floats
	}

	invNorm := float32(1.0 / math.Sqrt(norm))
	for j := range vec {
		vec[j] *= invNorm
	}
}

// ClusteredMatrix generates row-major vectors clustered around random unit
// centroids. Row i belongs to cluster i%clusters, so same-cluster rows score
// high against each other and tile scans see hot and cold blocks, which is
// what drives the threshold adaptation paths.
func (r *RNG) ClusteredMatrix(num, dim, clusters int, spread float32) []float32 {
	centroids := r.UnitMatrix(clusters, dim)

	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	for i := 0; i < num; i++ {
		centroid := centroids[(i%clusters)*dim : (i%clusters+1)*dim]
		vec := data[i*dim : (i+1)*dim]

		for j := range vec {
			// Add Gaussian noise to centroid
			vec[j] = centroid[j] + float32(r.rand.NormFloat64())*spread
		}
	}
	return data
}

// DocIDs returns n document ids of the form doc-0000, zero-padded so
// lexicographic and row order agree.
func DocIDs(n int) []string {
	width := 1
	for lim := 10; lim < n; lim *= 10 {
		width++
	}

	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("doc-%0*d", width, i)
	}
	return ids
}

// ClusteredSet builds a VectorSet of clustered vectors with generated ids.
func (r *RNG) ClusteredSet(num, dim, clusters int, spread float32) *corpus.VectorSet {
	set, err := corpus.NewVectorSet(DocIDs(num), r.ClusteredMatrix(num, dim, clusters, spread), dim)
	if err != nil {
		panic("testutil: " + err.Error())
	}
	return set
}

// UniformSet builds a VectorSet of uniform vectors with generated ids.
func (r *RNG) UniformSet(num, dim int) *corpus.VectorSet {
	set, err := corpus.NewVectorSet(DocIDs(num), r.UniformMatrix(num, dim), dim)
	if err != nil {
		panic("testutil: " + err.Error())
	}
	return set
}

// VectorsTSV encodes ids and a row-major matrix in the corpus input format:
// one row per line, id and comma-joined components separated by a tab.
// Components are formatted so they parse back to the identical float32.
func VectorsTSV(ids []string, matrix []float32, dim int) string {
	var sb strings.Builder
	for i, id := range ids {
		sb.WriteString(id)
		sb.WriteByte('\t')
		row := matrix[i*dim : (i+1)*dim]
		for j, v := range row {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// WriteVectorsTSV writes a corpus input file for ids and matrix.
func WriteVectorsTSV(path string, ids []string, matrix []float32, dim int) error {
	return os.WriteFile(path, []byte(VectorsTSV(ids, matrix, dim)), 0o644)
}

// MetadataTSV encodes documents in the metadata sidecar format:
// id, title and category separated by tabs.
func MetadataTSV(docs []corpus.Document) string {
	var sb strings.Builder
	for _, d := range docs {
		sb.WriteString(d.ID)
		sb.WriteByte('\t')
		sb.WriteString(d.Title)
		sb.WriteByte('\t')
		sb.WriteString(d.Category)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// WriteMetadataTSV writes a metadata sidecar file for docs.
func WriteMetadataTSV(path string, docs []corpus.Document) error {
	return os.WriteFile(path, []byte(MetadataTSV(docs)), 0o644)
}
