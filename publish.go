package simgraph

import (
	"context"
	"time"

	"github.com/hupe1980/simgraph/blobstore"
)

// Publish uploads the artifacts of a finished build to the store, keyed by
// their base names under the build's run id. It returns one Upload per
// artifact, in the order matrix, ids, manifest.
//
// The same options as Build apply here: WithResourceController bounds upload
// concurrency and bandwidth, WithFS redirects local reads, and the logger
// and metrics collector observe every upload.
func Publish(ctx context.Context, store blobstore.Store, res *Result, optFns ...Option) ([]blobstore.Upload, error) {
	opts := applyOptions(optFns)
	log := opts.logger.WithRun(res.RunID)

	paths := []string{res.MatrixPath, res.IDsPath, res.ManifestPath}

	start := time.Now()
	uploads, err := blobstore.Publish(ctx, store, res.RunID, paths, func(o *blobstore.PublishOptions) {
		o.FS = opts.fsys
		o.Controller = opts.controller
	})
	if err != nil {
		opts.metricsCollector.RecordPublish(0, time.Since(start), err)
		log.LogPublish(ctx, "", 0, err)
		return nil, phaseError("publish", err)
	}

	for _, u := range uploads {
		opts.metricsCollector.RecordPublish(u.Bytes, u.Duration, nil)
		log.LogPublish(ctx, u.Key, u.Bytes, nil)
	}
	return uploads, nil
}
