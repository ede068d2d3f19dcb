package s3client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type minioClient struct {
	client *minio.Client
}

func newMinioClient(conn Connection, opts Options) (*minioClient, error) {
	host, secure, err := splitEndpoint(conn.Endpoint)
	if err != nil {
		return nil, err
	}

	lookup := minio.BucketLookupDNS
	if conn.UsePathStyle {
		lookup = minio.BucketLookupPath
	}

	options := &minio.Options{
		Creds:        credentials.NewStaticV4(conn.AccessKey, conn.SecretKey, ""),
		Secure:       secure,
		Region:       conn.RegionOrDefault(),
		BucketLookup: lookup,
	}
	if opts.InsecureSkipVerify && secure {
		options.Transport = insecureTransport()
	}

	client, err := minio.New(host, options)
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &minioClient{client: client}, nil
}

// splitEndpoint turns "https://host:port" into minio's host + secure pair.
func splitEndpoint(endpoint string) (string, bool, error) {
	if endpoint == "" {
		return "s3.amazonaws.com", true, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "", false, fmt.Errorf("invalid endpoint '%s'", endpoint)
	}
	return u.Host, u.Scheme == "https", nil
}

func (c *minioClient) PutObject(ctx context.Context, in PutInput) (int64, error) {
	f, err := os.Open(in.SourcePath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	opts := minio.PutObjectOptions{
		ContentType:  in.ContentType,
		CacheControl: in.CacheControl,
		StorageClass: in.StorageClass,
	}
	if in.ACL != "" {
		opts.UserMetadata = map[string]string{"x-amz-acl": in.ACL}
	}

	uploaded, err := c.client.PutObject(ctx, in.Bucket, in.Key, f, info.Size(), opts)
	if err != nil {
		return 0, err
	}
	return uploaded.Size, nil
}

func (c *minioClient) ListObjects(ctx context.Context, bucket, prefix, token string, maxKeys int32) (ListPage, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objects := c.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:     prefix,
		Recursive:  true,
		MaxKeys:    int(maxKeys),
		StartAfter: token,
	})

	var page ListPage
	for object := range objects {
		if object.Err != nil {
			return ListPage{}, object.Err
		}
		// One extra object tells us whether the listing continues.
		if len(page.Objects) == int(maxKeys) {
			page.Truncated = true
			break
		}
		page.Objects = append(page.Objects, Object{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
		})
	}
	if page.Truncated && len(page.Objects) > 0 {
		page.NextToken = page.Objects[len(page.Objects)-1].Key
	}
	return page, nil
}

func (c *minioClient) HeadBucket(ctx context.Context, bucket string) error {
	exists, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if !exists {
		return minio.ErrorResponse{
			Code:       "NoSuchBucket",
			Message:    "The specified bucket does not exist",
			BucketName: bucket,
			StatusCode: http.StatusNotFound,
		}
	}
	return nil
}

func (c *minioClient) ListBuckets(ctx context.Context) ([]string, error) {
	buckets, err := c.client.ListBuckets(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(buckets))
	for _, bucket := range buckets {
		names = append(names, bucket.Name)
	}
	return names, nil
}

func (c *minioClient) GetBucketLocation(ctx context.Context, bucket string) (string, error) {
	return c.client.GetBucketLocation(ctx, bucket)
}

func (c *minioClient) PresignGetObject(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	u, err := c.client.PresignedGetObject(ctx, bucket, key, ttl, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
