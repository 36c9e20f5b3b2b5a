package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hupe1980/simgraph/internal/fs"
)

// LocalStore implements Store using a directory on the local file system.
// Blob names map to slash-separated paths below the root directory, and
// writes commit via rename so a crash never leaves a partial blob visible.
type LocalStore struct {
	fsys fs.FileSystem
	root string
}

// NewLocalStore creates a LocalStore rooted at the given directory.
// A nil fsys falls back to the local file system.
func NewLocalStore(fsys fs.FileSystem, root string) *LocalStore {
	if fsys == nil {
		fsys = fs.Default
	}
	return &LocalStore{fsys: fsys, root: root}
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Open opens a blob for reading.
func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	p := s.path(name)

	f, err := s.fsys.OpenFile(p, os.O_RDONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &localBlob{f: f, size: info.Size()}, nil
}

// Create opens a blob for writing. Data lands in a temp file next to the
// target and the rename on Close makes it visible atomically.
func (s *LocalStore) Create(_ context.Context, name string) (WritableBlob, error) {
	p := s.path(name)
	dir := filepath.Dir(p)

	if err := s.fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	tmp, err := s.fsys.CreateTemp(dir, filepath.Base(p)+".tmp-*")
	if err != nil {
		return nil, err
	}

	return &localWritableBlob{fsys: s.fsys, f: tmp, tmpName: tmp.Name(), target: p}, nil
}

// Put writes a blob atomically.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	w, err := s.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		if a, ok := w.(Aborter); ok {
			_ = a.Abort()
		}
		return err
	}
	return w.Close()
}

// Delete removes a blob.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	err := s.fsys.Remove(s.path(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List returns all blob names under prefix, sorted. Temp files from
// in-flight writes are excluded.
func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	var names []string

	var walk func(dir, rel string) error
	walk = func(dir, rel string) error {
		entries, err := s.fsys.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		for _, e := range entries {
			name := e.Name()
			childRel := name
			if rel != "" {
				childRel = rel + "/" + name
			}
			if e.IsDir() {
				if err := walk(filepath.Join(dir, name), childRel); err != nil {
					return err
				}
				continue
			}
			if strings.Contains(name, ".tmp-") {
				continue
			}
			if prefix == "" || strings.HasPrefix(childRel, prefix) {
				names = append(names, childRel)
			}
		}
		return nil
	}

	if err := walk(s.root, ""); err != nil {
		return nil, err
	}

	sort.Strings(names)
	return names, nil
}

// localBlob reads a committed blob straight from its file.
type localBlob struct {
	f    fs.File
	size int64
}

func (b *localBlob) Read(p []byte) (int, error) { return b.f.Read(p) }
func (b *localBlob) Close() error               { return b.f.Close() }
func (b *localBlob) Size() int64                { return b.size }

// localWritableBlob stages writes in a temp file and commits on Close.
type localWritableBlob struct {
	fsys    fs.FileSystem
	f       fs.File
	tmpName string
	target  string
	done    bool
}

func (w *localWritableBlob) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

func (w *localWritableBlob) Sync() error {
	return w.f.Sync()
}

// Close flushes the temp file and renames it over the target. The temp
// file is removed on every failure path.
func (w *localWritableBlob) Close() error {
	if w.done {
		return nil
	}
	w.done = true

	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		_ = w.fsys.Remove(w.tmpName)
		return err
	}
	if err := w.f.Close(); err != nil {
		_ = w.fsys.Remove(w.tmpName)
		return err
	}
	if err := w.fsys.Rename(w.tmpName, w.target); err != nil {
		_ = w.fsys.Remove(w.tmpName)
		return err
	}

	// Best-effort directory sync so the rename survives a crash.
	if d, err := w.fsys.OpenFile(filepath.Dir(w.target), os.O_RDONLY, 0); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// Abort discards the temp file without committing.
func (w *localWritableBlob) Abort() error {
	if w.done {
		return nil
	}
	w.done = true

	_ = w.f.Close()
	return w.fsys.Remove(w.tmpName)
}
