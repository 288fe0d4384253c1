package sources

import (
	"context"
	"io"

	"github.com/digimosa/hawk-scan/internal/exclusion"
	"github.com/digimosa/hawk-scan/internal/models"
)

// object is one listed item of a bucket.
type object struct {
	Key  string
	ETag string
}

// bucket is the part of an object store client the scanner needs.
type bucket interface {
	Name() string
	// List calls fn for every object; a false return stops listing.
	List(ctx context.Context, fn func(object) bool) error
	Download(ctx context.Context, key string, w io.Writer) error
}

// scanBucket lists b, skips excluded keys and submits one task per object.
func scanBucket(ctx context.Context, env *Env, source, profile string, b bucket, filter exclusion.Filter, cache *remoteCache) error {
	log := env.Log.WithField("source", source).WithField("profile", profile)
	log.WithField("bucket", b.Name()).Info("Scanning bucket")

	return b.List(ctx, func(obj object) bool {
		if filter.File(obj.Key) {
			log.WithField("key", obj.Key).Debug("Excluding object")
			return true
		}
		return env.Pool.Submit(ctx, func(ctx context.Context) []models.Finding {
			path, cached, err := cache.fetch(ctx, obj.ETag, obj.Key, func(ctx context.Context, w io.Writer) error {
				return b.Download(ctx, obj.Key, w)
			})
			if err != nil {
				log.WithError(err).WithField("key", obj.Key).Error("Download failed")
				return nil
			}
			defer cache.release(path)
			if cached {
				log.WithField("key", obj.Key).Debug("Using cached copy")
			}

			recs := env.Scanner.ScanFile(ctx, path, source)
			return findings(recs, profile, func(f *models.Finding) {
				f.Bucket = b.Name()
				f.FilePath = obj.Key
			})
		})
	})
}
