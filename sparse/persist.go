package sparse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hupe1980/simgraph/internal/fs"
)

// ErrUnknownFormat is returned for an unrecognized artifact format.
var ErrUnknownFormat = errors.New("sparse: unknown artifact format")

// Format selects the matrix artifact encoding.
type Format uint8

const (
	// FormatNPZ is the default scipy-compatible encoding.
	FormatNPZ Format = iota
	// FormatBinary is the native block-compressed encoding.
	FormatBinary
)

func (f Format) String() string {
	switch f {
	case FormatNPZ:
		return "npz"
	case FormatBinary:
		return "binary"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(f))
	}
}

// Ext returns the artifact filename extension for the format.
func (f Format) Ext() string {
	if f == FormatBinary {
		return ".sgm"
	}
	return ".npz"
}

// ParseFormat maps a config string to a Format.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "npz", "":
		return FormatNPZ, nil
	case "binary", "sgm":
		return FormatBinary, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// SaveToFile writes an artifact atomically: temp file in the target
// directory, buffered write, fsync, rename. The temp file is removed on
// every failure path.
func SaveToFile(fsys fs.FileSystem, filename string, writeFunc func(w io.Writer) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := fsys.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return fmt.Errorf("persist %s: %w", base, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = fsys.Remove(tmpName)
	}()

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := writeFunc(buf); err != nil {
		return fmt.Errorf("persist %s: %w", base, err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("persist %s: %w", base, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("persist %s: %w", base, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persist %s: %w", base, err)
	}

	if err := fsys.Rename(tmpName, filename); err != nil {
		return fmt.Errorf("persist %s: %w", base, err)
	}

	// Best-effort directory sync so the rename survives a crash.
	if d, err := fsys.OpenFile(dir, os.O_RDONLY, 0); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	// The rename consumed the temp file; stop the deferred cleanup from
	// touching the final artifact.
	tmpName = ""
	return nil
}

// SaveMatrix persists m at path in the given format.
func SaveMatrix(fsys fs.FileSystem, path string, m *CSR, format Format, compression CompressionType) error {
	return SaveToFile(fsys, path, func(w io.Writer) error {
		switch format {
		case FormatNPZ:
			return WriteNPZ(w, m)
		case FormatBinary:
			return WriteBinary(w, m, compression)
		default:
			return fmt.Errorf("%w: %d", ErrUnknownFormat, format)
		}
	})
}

// SaveIDs persists the ordered id list, one id per line. Line i holds the
// id of matrix row and column i.
func SaveIDs(fsys fs.FileSystem, path string, ids []string) error {
	return SaveToFile(fsys, path, func(w io.Writer) error {
		for _, id := range ids {
			if _, err := io.WriteString(w, id); err != nil {
				return err
			}
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadIDs loads an id list artifact in line order.
func ReadIDs(fsys fs.FileSystem, path string) ([]string, error) {
	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("read ids %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		ids = append(ids, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ids %s: %w", filepath.Base(path), err)
	}
	return ids, nil
}

// Load reads a matrix artifact, sniffing the format from its leading
// magic: a zip local header means NPZ, the native magic means binary.
func Load(fsys fs.FileSystem, path string) (*CSR, error) {
	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("load matrix %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return nil, fmt.Errorf("load matrix %s: %w", filepath.Base(path), err)
	}

	switch {
	case string(magic[:2]) == "PK":
		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("load matrix %s: %w", filepath.Base(path), err)
		}
		m, err := ReadNPZ(f, info.Size())
		if err != nil {
			return nil, fmt.Errorf("load matrix %s: %w", filepath.Base(path), err)
		}
		return m, nil

	case string(magic[:]) == binaryMagic:
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("load matrix %s: %w", filepath.Base(path), err)
		}
		m, err := ReadBinary(bufio.NewReaderSize(f, 256*1024))
		if err != nil {
			return nil, fmt.Errorf("load matrix %s: %w", filepath.Base(path), err)
		}
		return m, nil

	default:
		return nil, fmt.Errorf("load matrix %s: %w", filepath.Base(path), ErrInvalidMagic)
	}
}
