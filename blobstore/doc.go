// Package blobstore provides storage backends for publishing build artifacts.
//
// Store is the interface for writing and reading artifact blobs. A blob
// created through Create becomes visible only when Close commits it, so
// readers never observe a partial upload. Implementations must be safe for
// concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, commits via atomic rename
//   - MemoryStore: in-memory store for testing
//   - s3.Store: Amazon S3 with streaming multipart uploads
//   - minio.Store: MinIO and other S3-compatible object storage
//
// # Publishing Artifacts
//
// Publish uploads the files of a finished build under a shared key prefix,
// typically the run id:
//
//	store := blobstore.NewLocalStore(nil, "/var/lib/simgraph")
//	uploads, err := blobstore.Publish(ctx, store, res.RunID, []string{
//	    res.MatrixPath, res.IDsPath, res.ManifestPath,
//	})
//
// # Custom Implementations
//
// Implement the Store interface to support custom storage backends. Backends
// that can discard a half-written upload should also implement Aborter on
// their WritableBlob so failed publishes leave nothing behind.
package blobstore
