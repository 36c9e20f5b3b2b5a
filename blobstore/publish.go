package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/simgraph/internal/fs"
	"github.com/hupe1980/simgraph/resource"
)

// PublishOptions configures Publish.
type PublishOptions struct {
	// FS is the file system local artifacts are read from.
	FS fs.FileSystem

	// Controller gates upload concurrency through its background slots and
	// throttles read bandwidth through its IO limit. Nil enforces nothing.
	Controller *resource.Controller
}

// Upload describes one published artifact.
type Upload struct {
	// Key is the full blob name the artifact was stored under.
	Key string

	// Bytes is the number of bytes uploaded.
	Bytes int64

	// Duration is the wall time of this upload.
	Duration time.Duration
}

// Publish uploads the named local files to the store, keyed by their base
// names under prefix. Files upload concurrently, each holding one background
// slot of the controller for its duration.
//
// Uploads are returned in the order of paths. On error the store may hold a
// subset of the artifacts; keys are stable, so a retry overwrites them.
func Publish(ctx context.Context, store Store, prefix string, paths []string, optFns ...func(o *PublishOptions)) ([]Upload, error) {
	opts := PublishOptions{
		FS: fs.Default,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.FS == nil {
		opts.FS = fs.Default
	}

	uploads := make([]Upload, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			key := path.Join(prefix, filepath.Base(p))

			if err := ctx.Err(); err != nil {
				return fmt.Errorf("publish %s: %w", key, err)
			}
			if err := opts.Controller.AcquireBackground(ctx); err != nil {
				return fmt.Errorf("publish %s: %w", key, err)
			}
			defer opts.Controller.ReleaseBackground()

			start := time.Now()
			n, err := putFile(ctx, store, opts, key, p)
			if err != nil {
				return fmt.Errorf("publish %s: %w", key, err)
			}
			uploads[i] = Upload{Key: key, Bytes: n, Duration: time.Since(start)}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return uploads, nil
}

// putFile streams one local file into the store. The destination blob is
// aborted, not committed, when the copy fails.
func putFile(ctx context.Context, store Store, opts PublishOptions, key, localPath string) (int64, error) {
	f, err := opts.FS.OpenFile(localPath, os.O_RDONLY, 0)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w, err := store.Create(ctx, key)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(w, resource.NewRateLimitedReader(f, opts.Controller, ctx))
	if err != nil {
		if a, ok := w.(Aborter); ok {
			_ = a.Abort()
		} else {
			_ = w.Close()
		}
		return 0, err
	}

	if err := w.Close(); err != nil {
		return 0, err
	}
	return n, nil
}
