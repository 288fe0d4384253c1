package sources

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/digimosa/hawk-scan/internal/config"
	"github.com/digimosa/hawk-scan/internal/exclusion"
)

// runGCS serves both gcs and firebase profiles; Firebase storage buckets
// are GCS buckets.
func runGCS(ctx context.Context, env *Env, source string, profiles map[string]config.BucketProfile) {
	for _, name := range profileNames(profiles) {
		p := profiles[name]
		if err := scanGCS(ctx, env, source, name, p); err != nil {
			env.fail(source, name, err)
		}
	}
}

func scanGCS(ctx context.Context, env *Env, source, profile string, p config.BucketProfile) error {
	if p.BucketName == "" {
		return fmt.Errorf("bucket_name is required")
	}

	var opts []option.ClientOption
	if p.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(p.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create storage client: %w", err)
	}
	env.Defer(func() { client.Close() })

	cache, err := newRemoteCache(env.CacheDir, source, p.Cache)
	if err != nil {
		return err
	}
	b := &gcsBucket{handle: client.Bucket(p.BucketName), name: p.BucketName}
	filter := exclusion.NewFilter(p.ExcludeExtensions, p.ExcludePatterns)
	return scanBucket(ctx, env, source, profile, b, filter, cache)
}

type gcsBucket struct {
	handle *storage.BucketHandle
	name   string
}

func (b *gcsBucket) Name() string { return b.name }

func (b *gcsBucket) List(ctx context.Context, fn func(object) bool) error {
	it := b.handle.Objects(ctx, nil)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to list objects: %w", err)
		}
		if attrs.Name == "" || attrs.Name[len(attrs.Name)-1] == '/' {
			continue
		}
		if !fn(object{Key: attrs.Name, ETag: attrs.Etag}) {
			return nil
		}
	}
}

func (b *gcsBucket) Download(ctx context.Context, key string, w io.Writer) error {
	r, err := b.handle.Object(key).NewReader(ctx)
	if err != nil {
		return err
	}
	defer r.Close()
	_, err = io.Copy(w, r)
	return err
}
