// Package s3client turns bucket connection parameters into object storage
// clients. The default implementation is the AWS SDK; the "minio" provider
// uses minio-go. Both are wrapped with metrics and upload retries.
package s3client

import (
	"context"
	"strings"
	"time"
)

const DefaultRegion = "us-east-1"

// Connection holds everything needed to reach a bucket's storage service.
type Connection struct {
	Provider     string
	AccessKey    string
	SecretKey    string
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// RegionOrDefault returns the configured region or us-east-1.
func (c Connection) RegionOrDefault() string {
	if r := strings.TrimSpace(c.Region); r != "" {
		return r
	}
	return DefaultRegion
}

// Options are per-process client settings that don't belong to a bucket.
type Options struct {
	InsecureSkipVerify bool
}

type PutInput struct {
	Bucket       string
	Key          string
	SourcePath   string
	ContentType  string
	ACL          string
	CacheControl string
	StorageClass string
}

type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

type ListPage struct {
	Objects   []Object
	NextToken string
	Truncated bool
}

// Client is the subset of the S3 API the engine relies on.
type Client interface {
	// PutObject uploads the file at in.SourcePath and returns the bytes sent.
	PutObject(ctx context.Context, in PutInput) (int64, error)

	// ListObjects lists at most maxKeys objects under prefix, continuing
	// from token when it is not empty.
	ListObjects(ctx context.Context, bucket, prefix, token string, maxKeys int32) (ListPage, error)

	HeadBucket(ctx context.Context, bucket string) error

	ListBuckets(ctx context.Context) ([]string, error)

	GetBucketLocation(ctx context.Context, bucket string) (string, error)

	// PresignGetObject returns a URL granting read access to key for ttl.
	PresignGetObject(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// Factory builds clients. Consumers treat a construction error as
// "no client" and skip the operation instead of failing the caller.
type Factory interface {
	New(ctx context.Context, conn Connection, opts Options) (Client, error)
}
