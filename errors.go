package simgraph

import (
	"errors"
	"fmt"

	"github.com/hupe1980/simgraph/corpus"
	"github.com/hupe1980/simgraph/edgebuf"
	"github.com/hupe1980/simgraph/engine"
)

var (
	// ErrInvalidConfig is returned when the configured build options fail
	// validation.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrBufferFinalized is returned on appends to an edge buffer that has
	// already been finalized.
	ErrBufferFinalized = errors.New("edge buffer finalized")

	// ErrBufferClosed is returned on use of an edge buffer after Close.
	ErrBufferClosed = errors.New("edge buffer closed")
)

// ErrMalformedRow indicates an input row that cannot be parsed. Any
// malformed row aborts the build; a partial graph is never produced.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrMalformedRow struct {
	Line   int
	Reason string
	cause  error
}

func (e *ErrMalformedRow) Error() string {
	return fmt.Sprintf("malformed row at line %d: %s", e.Line, e.Reason)
}

func (e *ErrMalformedRow) Unwrap() error { return e.cause }

// ErrDimensionMismatch indicates a vector row whose width disagrees with the
// first row of the corpus.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Line     int
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch at line %d: expected %d, got %d", e.Line, e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrIO indicates a failed filesystem operation during the build. The temp
// files involved are cleaned up best-effort before it is returned.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrIO struct {
	Phase string
	Op    string
	Path  string
	cause error
}

func (e *ErrIO) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", e.Phase, e.Op, e.Path, e.cause)
}

func (e *ErrIO) Unwrap() error { return e.cause }

// translateError normalizes subpackage errors into the root taxonomy.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var mr *corpus.ErrMalformedRow
	if errors.As(err, &mr) {
		return &ErrMalformedRow{Line: mr.Line, Reason: mr.Reason, cause: err}
	}
	var dm *corpus.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Line: dm.Line, Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}

	if errors.Is(err, edgebuf.ErrFinalized) {
		return fmt.Errorf("%w: %w", ErrBufferFinalized, err)
	}
	if errors.Is(err, edgebuf.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrBufferClosed, err)
	}

	if errors.Is(err, engine.ErrInvalidConfig) {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return err
}

// phaseError tags err with the pipeline phase it surfaced in.
func phaseError(phase string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", phase, translateError(err))
}
