package minio

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/simgraph/blobstore"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := envOr("MINIO_ENDPOINT", "localhost:9000")
	accessKey := envOr("MINIO_ACCESS_KEY", "minioadmin")
	secretKey := envOr("MINIO_SECRET_KEY", "minioadmin")
	bucket := envOr("MINIO_BUCKET", "simgraph-test")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	// Check if MinIO is reachable
	_, err = client.ListBuckets(ctx)
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	// Ensure bucket exists
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		err = client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
		require.NoError(t, err)
	}

	store := NewStore(client, bucket, "test-prefix/")

	// Test Put and Open
	data := []byte("hello minio world")
	err = store.Put(ctx, "graph.npz", data)
	require.NoError(t, err)

	blob, err := store.Open(ctx, "graph.npz")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	got, err := io.ReadAll(blob)
	require.NoError(t, err)
	require.Equal(t, data, got)
	require.NoError(t, blob.Close())

	// Test List
	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, "graph.npz")

	// Test Delete
	err = store.Delete(ctx, "graph.npz")
	require.NoError(t, err)

	// Verify deleted
	_, err = store.Open(ctx, "graph.npz")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	// Deleting again is not an error
	require.NoError(t, store.Delete(ctx, "graph.npz"))

	// Test Create (streaming)
	wb, err := store.Create(ctx, "stream.bin")
	require.NoError(t, err)
	_, err = wb.Write([]byte("streamed data"))
	require.NoError(t, err)
	err = wb.Close()
	require.NoError(t, err)

	blob2, err := store.Open(ctx, "stream.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(13), blob2.Size())
	require.NoError(t, blob2.Close())

	// Test Abort leaves nothing behind
	wb2, err := store.Create(ctx, "aborted.bin")
	require.NoError(t, err)
	_, err = wb2.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, wb2.(blobstore.Aborter).Abort())

	_, err = store.Open(ctx, "aborted.bin")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	// Cleanup
	_ = store.Delete(ctx, "stream.bin")
}
