package corpus

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch is returned when ids, data and dimension disagree.
	ErrShapeMismatch = errors.New("corpus: ids and matrix shape mismatch")
)

// VectorSet holds an embedding corpus as an ordered id list plus one flat
// row-major float32 matrix. Row i of the matrix belongs to ids[i]; the row
// index is the document's identity for the rest of the pipeline.
type VectorSet struct {
	ids  []string
	data []float32
	dim  int
}

// NewVectorSet builds a VectorSet from pre-existing rows. data must hold
// exactly len(ids)*dim values.
func NewVectorSet(ids []string, data []float32, dim int) (*VectorSet, error) {
	if dim < 0 {
		return nil, fmt.Errorf("%w: negative dimension %d", ErrShapeMismatch, dim)
	}
	if len(ids)*dim != len(data) {
		return nil, fmt.Errorf("%w: %d ids, dimension %d, %d values", ErrShapeMismatch, len(ids), dim, len(data))
	}
	return &VectorSet{ids: ids, data: data, dim: dim}, nil
}

// Len returns the number of documents.
func (s *VectorSet) Len() int { return len(s.ids) }

// Dim returns the embedding dimension.
func (s *VectorSet) Dim() int { return s.dim }

// IDs returns the ordered document ids. The slice aliases internal memory
// and must not be modified.
func (s *VectorSet) IDs() []string { return s.ids }

// Row returns the vector of document i. The slice aliases internal memory.
func (s *VectorSet) Row(i int) []float32 {
	return s.data[i*s.dim : (i+1)*s.dim]
}

// Rows returns the flattened vectors of documents [lo, hi). The slice
// aliases internal memory.
func (s *VectorSet) Rows(lo, hi int) []float32 {
	return s.data[lo*s.dim : hi*s.dim]
}

// Matrix returns the whole flat matrix. The slice aliases internal memory.
func (s *VectorSet) Matrix() []float32 { return s.data }
