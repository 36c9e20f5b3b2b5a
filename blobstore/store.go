package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for durable storage of build artifacts.
// Implementations must be safe for concurrent use.
type Store interface {
	// Open opens a blob for reading.
	// Returns ErrNotFound if the blob does not exist.
	Open(ctx context.Context, name string) (Blob, error)

	// Create opens a blob for streaming writes. The blob becomes visible
	// only when Close returns nil.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put writes a blob atomically.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored blob.
type Blob interface {
	io.Reader
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob is a write handle for a blob under construction.
// Close commits the blob; until then readers cannot observe it.
type WritableBlob interface {
	io.Writer
	io.Closer
	// Sync flushes buffered data to durable storage where the backend
	// supports it. Streaming backends may treat it as a no-op.
	Sync() error
}

// Aborter is an optional interface for WritableBlobs that can discard
// an upload in progress instead of committing it.
type Aborter interface {
	// Abort cancels the upload and releases its resources. Calling Abort
	// after Close has no effect.
	Abort() error
}
