// Package s3 provides an S3 implementation of the blobstore.Store interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("graphs/"),
//	    s3.WithRegion("us-east-1"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	uploads, err := blobstore.Publish(ctx, store, res.RunID, []string{
//	    res.MatrixPath, res.IDsPath, res.ManifestPath,
//	})
//
// # Features
//
//   - Streaming multipart uploads, so artifacts never buffer fully in memory
//   - Automatic pagination for listing
//   - Configurable prefix for sharing a bucket between projects
//
// NewStore accepts any Client implementation, which keeps the store testable
// without network access and lets callers bring a preconfigured *s3.Client.
package s3
