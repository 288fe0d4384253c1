package sources

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/digimosa/hawk-scan/internal/config"
	"github.com/digimosa/hawk-scan/internal/exclusion"
	"github.com/digimosa/hawk-scan/internal/models"
)

func runS3(ctx context.Context, env *Env, profiles map[string]config.S3Profile) {
	for _, name := range profileNames(profiles) {
		p := profiles[name]
		if err := scanS3(ctx, env, name, p); err != nil {
			env.fail(models.SourceS3, name, err)
		}
	}
}

func scanS3(ctx context.Context, env *Env, profile string, p config.S3Profile) error {
	if p.BucketName == "" {
		return fmt.Errorf("bucket_name is required")
	}
	b, err := newS3Bucket(ctx, p)
	if err != nil {
		return err
	}
	cache, err := newRemoteCache(env.CacheDir, models.SourceS3, p.Cache)
	if err != nil {
		return err
	}
	filter := exclusion.NewFilter(p.ExcludeExtensions, p.ExcludePatterns)
	return scanBucket(ctx, env, models.SourceS3, profile, b, filter, cache)
}

type s3Bucket struct {
	client *s3.Client
	name   string
}

func newS3Bucket(ctx context.Context, p config.S3Profile) (*s3Bucket, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if p.Region != "" {
		opts = append(opts, awsconfig.WithRegion(p.Region))
	}
	if p.AccessKey != "" && p.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(p.AccessKey, p.SecretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if p.Endpoint != "" {
			o.BaseEndpoint = aws.String(p.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &s3Bucket{client: client, name: p.BucketName}, nil
}

func (b *s3Bucket) Name() string { return b.name }

func (b *s3Bucket) List(ctx context.Context, fn func(object) bool) error {
	pages := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.name),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || key[len(key)-1] == '/' {
				continue
			}
			if !fn(object{Key: key, ETag: aws.ToString(obj.ETag)}) {
				return nil
			}
		}
	}
	return nil
}

func (b *s3Bucket) Download(ctx context.Context, key string, w io.Writer) error {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}
	defer out.Body.Close()
	_, err = io.Copy(w, out.Body)
	return err
}
