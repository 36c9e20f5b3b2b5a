package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCorpus(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vectors.tsv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeCorpus(t, "doc-a\t1.0,2.0,3.0\ndoc-b\t-4.5,0,1e-2\ndoc-c\t0.25,0.5,0.75\n")

	set, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 3, set.Len())
	assert.Equal(t, 3, set.Dim())
	assert.Equal(t, []string{"doc-a", "doc-b", "doc-c"}, set.IDs())
	assert.Equal(t, []float32{1, 2, 3}, set.Row(0))
	assert.Equal(t, []float32{-4.5, 0, 0.01}, set.Row(1))
	assert.Equal(t, []float32{0.25, 0.5, 0.75}, set.Row(2))
	assert.Len(t, set.Matrix(), 9)
}

func TestLoad_RowOrderIsIdentity(t *testing.T) {
	// Ids deliberately unsorted; the file order must win.
	path := writeCorpus(t, "z\t1,0\na\t0,1\nm\t1,1\n")

	set, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, set.IDs())
	assert.Equal(t, []float32{1, 1}, set.Row(2))
}

func TestLoad_DuplicateIDsKept(t *testing.T) {
	path := writeCorpus(t, "dup\t1,0\ndup\t0,1\n")

	set, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, []string{"dup", "dup"}, set.IDs())
}

func TestLoad_TrailingBlankLine(t *testing.T) {
	path := writeCorpus(t, "a\t1,2\nb\t3,4\n\n")

	set, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeCorpus(t, "")

	set, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
	assert.Equal(t, 0, set.Dim())
}

func TestLoad_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    int
	}{
		{"missing delimiter", "a\t1,2\nnodelimiter\n", 2},
		{"empty id", "\t1,2\n", 1},
		{"empty vector", "a\t\n", 1},
		{"invalid float", "a\t1,2\nb\t1,oops\n", 2},
		{"blank line inside", "a\t1,2\n\nb\t3,4\n", 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeCorpus(t, tc.content)

			_, err := Load(context.Background(), path)
			require.Error(t, err)

			var rowErr *ErrMalformedRow
			require.ErrorAs(t, err, &rowErr)
			assert.Equal(t, tc.line, rowErr.Line)
		})
	}
}

func TestLoad_DimensionMismatch(t *testing.T) {
	t.Run("too few values", func(t *testing.T) {
		path := writeCorpus(t, "a\t1,2,3\nb\t1,2\n")

		_, err := Load(context.Background(), path)
		var dimErr *ErrDimensionMismatch
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, 2, dimErr.Line)
		assert.Equal(t, 3, dimErr.Expected)
		assert.Equal(t, 2, dimErr.Actual)
	})

	t.Run("too many values", func(t *testing.T) {
		path := writeCorpus(t, "a\t1,2\nb\t1,2,3\n")

		_, err := Load(context.Background(), path)
		var dimErr *ErrDimensionMismatch
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, 2, dimErr.Line)
		assert.Equal(t, 2, dimErr.Expected)
		assert.Equal(t, 3, dimErr.Actual)
	})
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.tsv"))
	assert.Error(t, err)
}

func TestLoad_ContextCanceled(t *testing.T) {
	path := writeCorpus(t, "a\t1,2\nb\t3,4\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad_CustomDelimiter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.csv")
	require.NoError(t, os.WriteFile(path, []byte("a;1,2\nb;3,4\n"), 0o644))

	set, err := Load(context.Background(), path, func(o *Options) {
		o.Delimiter = ';'
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, set.IDs())
}

func TestLoadMetadata(t *testing.T) {
	path := writeCorpus(t, "p1\tTitle One\tstat.ML\tabstract text here\np2\tTitle, Two\tcs.LG\n")

	docs, err := LoadMetadata(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, Document{ID: "p1", Title: "Title One", Category: "stat.ML"}, docs[0])
	assert.Equal(t, Document{ID: "p2", Title: "Title, Two", Category: "cs.LG"}, docs[1])
}

func TestLoadMetadata_ShortRows(t *testing.T) {
	path := writeCorpus(t, "p1\tOnly Title\np2\n")

	docs, err := LoadMetadata(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, Document{ID: "p1", Title: "Only Title"}, docs[0])
	assert.Equal(t, Document{ID: "p2"}, docs[1])
}

func TestLoadMetadata_EmptyID(t *testing.T) {
	path := writeCorpus(t, "\tTitle\tcat\n")

	_, err := LoadMetadata(context.Background(), path)
	var rowErr *ErrMalformedRow
	assert.True(t, errors.As(err, &rowErr))
}
