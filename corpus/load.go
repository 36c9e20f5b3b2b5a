package corpus

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hupe1980/simgraph/internal/fs"
)

// ErrMalformedRow indicates an input row that cannot be parsed.
// Any malformed row aborts the load; partial corpora are never returned.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrMalformedRow struct {
	Line   int // 1-based line number
	Reason string
	cause  error
}

func (e *ErrMalformedRow) Error() string {
	return fmt.Sprintf("malformed row at line %d: %s", e.Line, e.Reason)
}

func (e *ErrMalformedRow) Unwrap() error { return e.cause }

// ErrDimensionMismatch indicates a row whose vector width disagrees with the
// first row of the file.
type ErrDimensionMismatch struct {
	Line     int
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch at line %d: expected %d values, got %d", e.Line, e.Expected, e.Actual)
}

// Options configures corpus loading.
type Options struct {
	// FS is the file system used to open the corpus file.
	FS fs.FileSystem
	// Delimiter separates the id column from the vector column.
	Delimiter byte
	// MaxLineBytes bounds the scanner's line buffer.
	MaxLineBytes int
}

// DefaultOptions returns the default load options.
func DefaultOptions() Options {
	return Options{
		FS:           fs.Default,
		Delimiter:    '\t',
		MaxLineBytes: 16 << 20,
	}
}

// Load reads a corpus file in two passes. The first pass counts documents
// and fixes the dimension from the first row; the second parses every row
// into a single pre-sized matrix. Row order in the file becomes row order in
// the returned set.
func Load(ctx context.Context, path string, optFns ...func(o *Options)) (*VectorSet, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	f, err := opts.FS.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	n, dim, err := countRows(ctx, f, opts)
	if err != nil {
		return nil, err
	}

	if n == 0 {
		return &VectorSet{}, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind corpus: %w", err)
	}

	ids := make([]string, 0, n)
	data := make([]float32, n*dim)

	sc := newLineScanner(f, opts.MaxLineBytes)
	line := 0
	row := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if text == "" {
			// Pass one guarantees blanks only trail the data.
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("load corpus: %w", err)
		}

		id, vec, err := splitRow(text, opts.Delimiter, line)
		if err != nil {
			return nil, err
		}

		if err := parseVector(vec, data[row*dim:(row+1)*dim], dim, line); err != nil {
			return nil, err
		}

		ids = append(ids, id)
		row++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}

	return &VectorSet{ids: ids, data: data, dim: dim}, nil
}

// countRows performs the first pass: number of rows and the dimension of the
// first row. Blank lines are tolerated at the end of the file only.
func countRows(ctx context.Context, r io.Reader, opts Options) (n, dim int, err error) {
	sc := newLineScanner(r, opts.MaxLineBytes)
	line := 0
	blankAt := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if text == "" {
			if blankAt == 0 {
				blankAt = line
			}
			continue
		}
		if blankAt != 0 {
			return 0, 0, &ErrMalformedRow{Line: blankAt, Reason: "blank line inside corpus"}
		}

		if err := ctx.Err(); err != nil {
			return 0, 0, fmt.Errorf("load corpus: %w", err)
		}

		if n == 0 {
			_, vec, err := splitRow(text, opts.Delimiter, line)
			if err != nil {
				return 0, 0, err
			}
			dim = strings.Count(vec, ",") + 1
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return 0, 0, fmt.Errorf("read corpus: %w", err)
	}
	return n, dim, nil
}

func newLineScanner(r io.Reader, maxLine int) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)
	return sc
}

func splitRow(text string, delim byte, line int) (id, vec string, err error) {
	id, vec, ok := strings.Cut(text, string(delim))
	if !ok {
		return "", "", &ErrMalformedRow{Line: line, Reason: "missing delimiter between id and vector"}
	}
	if id == "" {
		return "", "", &ErrMalformedRow{Line: line, Reason: "empty document id"}
	}
	if vec == "" {
		return "", "", &ErrMalformedRow{Line: line, Reason: "empty vector"}
	}
	return id, vec, nil
}

// parseVector parses a comma-joined float list into dst, which has room for
// exactly dim values.
func parseVector(vec string, dst []float32, dim int, line int) error {
	got := 0
	for _, field := range strings.Split(vec, ",") {
		if got == dim {
			return &ErrDimensionMismatch{Line: line, Expected: dim, Actual: strings.Count(vec, ",") + 1}
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 32)
		if err != nil {
			return &ErrMalformedRow{Line: line, Reason: fmt.Sprintf("invalid float %q", field), cause: err}
		}
		dst[got] = float32(v)
		got++
	}
	if got != dim {
		return &ErrDimensionMismatch{Line: line, Expected: dim, Actual: got}
	}
	return nil
}
