package simd

// Kernel function pointers - set once at init, zero runtime overhead.
// Generic implementations are the default; platform-specific init()
// functions override with SIMD versions when available.
var (
	kernelDot      = dotGeneric
	kernelDotBatch = dotBatchGeneric
	kernelDotBlock = dotBlockGeneric
)

// Dot calculates the dot product of two vectors.
//
// SAFETY: Assumes len(a) == len(b). Caller MUST ensure lengths match.
func Dot(a, b []float32) float32 {
	return kernelDot(a, b)
}

// DotBatch calculates dot products of query against a batch of vectors.
// targets is a flattened array of N vectors, each of dimension dim.
// out must have length N (len(targets) / dim).
func DotBatch(query []float32, targets []float32, dim int, out []float32) {
	kernelDotBatch(query, targets, dim, out)
}

// DotBlock calculates all pairwise dot products between two flattened vector
// groups. rows holds R vectors and cols holds C vectors, each of dimension
// dim. out must have length R*C and receives the row-major score block
// out[i*C+j] = dot(rows[i], cols[j]).
func DotBlock(rows, cols []float32, dim int, out []float32) {
	kernelDotBlock(rows, cols, dim, out)
}

func dotGeneric(a, b []float32) float32 {
	var ret float32
	for i := range a {
		ret += a[i] * b[i]
	}

	return ret
}

func dotBatchGeneric(query []float32, targets []float32, dim int, out []float32) {
	if dim <= 0 || len(out) == 0 {
		return
	}
	if len(query) < dim {
		return
	}

	q := query[:dim]
	maxVal := len(targets) / dim
	n := len(out)
	if maxVal < n {
		n = maxVal
	}

	for i := 0; i < n; i++ {
		offset := i * dim
		vec := targets[offset : offset+dim]
		out[i] = kernelDot(q, vec)
	}
}

func dotBlockGeneric(rows, cols []float32, dim int, out []float32) {
	if dim <= 0 {
		return
	}

	r := len(rows) / dim
	c := len(cols) / dim
	if len(out) < r*c {
		return
	}

	for i := 0; i < r; i++ {
		q := rows[i*dim : (i+1)*dim]
		kernelDotBatch(q, cols, dim, out[i*c:(i+1)*c])
	}
}
