package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMmap_OpenReadClose(t *testing.T) {
	// Create a file with some data
	content := []byte("Hello, Mmap!")
	f, err := os.CreateTemp("", "mmap_test")
	require.NoError(t, err)
	defer os.Remove(f.Name())

	_, err = f.Write(content)
	require.NoError(t, err)
	f.Close()

	// Open mmap
	m, err := Open(f.Name())
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, int64(len(content)), int64(m.Size()))
	assert.Equal(t, content, m.Bytes())
	assert.False(t, m.Writable())

	// ReadAt
	buf := make([]byte, 5)
	n, err := m.ReadAt(buf, 7) // "Mmap!"
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "Mmap!", string(buf))

	// ReadAt out of bounds
	buf2 := make([]byte, 10)
	n, err = m.ReadAt(buf2, 100)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)

	// ReadAt partial
	buf3 := make([]byte, 10)
	n, err = m.ReadAt(buf3, 7) // "Mmap!" (5 bytes)
	assert.Equal(t, 5, n)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "Mmap!", string(buf3[:n]))

	// ReadAt negative offset
	_, err = m.ReadAt(buf, -1)
	assert.Equal(t, ErrInvalidOffset, err)
}

func TestMmap_EmptyFile(t *testing.T) {
	f, err := os.CreateTemp("", "mmap_test_empty")
	require.NoError(t, err)
	defer os.Remove(f.Name())
	f.Close()

	m, err := Open(f.Name())
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 0, m.Size())
}

func TestMmap_CreateWriteSync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairs.buf")

	m, err := Create(path, 64)
	require.NoError(t, err)
	defer m.Close()

	assert.True(t, m.Writable())
	assert.Equal(t, 64, m.Size())

	copy(m.Bytes(), []byte("edge data"))
	require.NoError(t, m.Sync())
	require.NoError(t, m.Close())

	// Content must be visible through a fresh read-only mapping.
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 64, r.Size())
	assert.Equal(t, []byte("edge data"), r.Bytes()[:9])
}

func TestMmap_Grow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grow.buf")

	m, err := Create(path, 16)
	require.NoError(t, err)
	defer m.Close()

	copy(m.Bytes(), []byte("0123456789abcdef"))

	require.NoError(t, m.Grow(64))
	assert.Equal(t, 64, m.Size())

	// Old content survives the remap.
	assert.Equal(t, []byte("0123456789abcdef"), m.Bytes()[:16])

	// New tail is writable.
	copy(m.Bytes()[16:], []byte("tail"))
	require.NoError(t, m.Sync())

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(64), fi.Size())

	// Shrinking or same-size grow is rejected.
	assert.ErrorIs(t, m.Grow(64), ErrInvalidSize)
	assert.ErrorIs(t, m.Grow(8), ErrInvalidSize)
}

func TestMmap_GrowReadOnly(t *testing.T) {
	f, err := os.CreateTemp("", "mmap_test_ro")
	require.NoError(t, err)
	defer os.Remove(f.Name())
	_, err = f.Write([]byte("data"))
	require.NoError(t, err)
	f.Close()

	m, err := Open(f.Name())
	require.NoError(t, err)
	defer m.Close()

	assert.ErrorIs(t, m.Grow(1024), ErrReadOnly)
}

func TestMmap_CreateInvalidSize(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "bad.buf"), 0)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestMmap_CreateBadDir(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "missing", "x.buf"), 16)
	assert.Error(t, err)
}
