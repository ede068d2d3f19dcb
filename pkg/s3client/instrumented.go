package s3client

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mwantia/s3offload/pkg/log"
	"github.com/mwantia/s3offload/pkg/metrics"
)

// maxUploadRetries bounds how often a temporary PutObject failure is retried.
const maxUploadRetries = 2

type instrumented struct {
	client   Client
	provider string
	log      log.LoggerService
	// backoff returns the wait schedule between upload attempts; nil means
	// exponential.
	backoff func() backoff.BackOff
}

func (c *instrumented) uploadPolicy(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff
	if c.backoff != nil {
		b = c.backoff()
	} else {
		b = backoff.NewExponentialBackOff()
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, maxUploadRetries), ctx)
}

func (c *instrumented) record(operation string, start time.Time, err error) {
	metrics.RecordS3Operation(operation, c.provider, time.Since(start), err == nil)
}

func (c *instrumented) PutObject(ctx context.Context, in PutInput) (int64, error) {
	var size int64

	err := backoff.RetryNotify(func() error {
		start := time.Now()
		n, err := c.client.PutObject(ctx, in)
		c.record("put_object", start, err)
		if err != nil {
			if Temporary(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		size = n
		return nil
	}, c.uploadPolicy(ctx), func(err error, wait time.Duration) {
		c.log.Warn("Retrying upload of '%s' to '%s' in %s: %v", in.Key, in.Bucket, wait, err)
	})
	if err != nil {
		return 0, err
	}

	metrics.RecordUpload(size)
	c.log.Debug("Uploaded '%s' to '%s' (%d bytes)", in.Key, in.Bucket, size)
	return size, nil
}

func (c *instrumented) ListObjects(ctx context.Context, bucket, prefix, token string, maxKeys int32) (ListPage, error) {
	start := time.Now()
	page, err := c.client.ListObjects(ctx, bucket, prefix, token, maxKeys)
	c.record("list_objects", start, err)
	return page, err
}

func (c *instrumented) HeadBucket(ctx context.Context, bucket string) error {
	start := time.Now()
	err := c.client.HeadBucket(ctx, bucket)
	c.record("head_bucket", start, err)
	return err
}

func (c *instrumented) ListBuckets(ctx context.Context) ([]string, error) {
	start := time.Now()
	names, err := c.client.ListBuckets(ctx)
	c.record("list_buckets", start, err)
	return names, err
}

func (c *instrumented) GetBucketLocation(ctx context.Context, bucket string) (string, error) {
	start := time.Now()
	region, err := c.client.GetBucketLocation(ctx, bucket)
	c.record("get_bucket_location", start, err)
	return region, err
}

func (c *instrumented) PresignGetObject(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	start := time.Now()
	signed, err := c.client.PresignGetObject(ctx, bucket, key, ttl)
	c.record("presign_get_object", start, err)
	return signed, err
}
