// Package s3test provides an in-memory object store for engine tests.
package s3test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/smithy-go"

	"github.com/mwantia/s3offload/pkg/s3client"
)

// Upload is a recorded PutObject call.
type Upload struct {
	s3client.PutInput
	Body []byte
}

// Factory hands out clients backed by one shared in-memory store.
type Factory struct {
	mu sync.Mutex

	Buckets     map[string]map[string]s3client.Object
	Uploads     []Upload
	Connections []s3client.Connection
	Locations   map[string]string

	// Error injection
	NewErr     error
	PutErr     error
	ListErr    error
	PresignErr error
	LocateErr  error
}

func NewFactory(buckets ...string) *Factory {
	f := &Factory{
		Buckets:   make(map[string]map[string]s3client.Object),
		Locations: make(map[string]string),
	}
	for _, b := range buckets {
		f.Buckets[b] = make(map[string]s3client.Object)
	}
	return f
}

// AddObject places an object in bucket as if it had been uploaded elsewhere.
func (f *Factory) AddObject(bucket, key string, size int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Buckets[bucket] == nil {
		f.Buckets[bucket] = make(map[string]s3client.Object)
	}
	f.Buckets[bucket][key] = s3client.Object{Key: key, Size: size, LastModified: time.Now().UTC()}
}

// Keys returns the sorted object keys of bucket.
func (f *Factory) Keys(bucket string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.Buckets[bucket]))
	for k := range f.Buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *Factory) New(_ context.Context, conn s3client.Connection, _ s3client.Options) (s3client.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.NewErr != nil {
		return nil, f.NewErr
	}
	f.Connections = append(f.Connections, conn)
	return &client{factory: f, conn: conn}, nil
}

// NoSuchBucket mirrors the provider error for a missing bucket.
func NoSuchBucket() error {
	return &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "The specified bucket does not exist"}
}

type client struct {
	factory *Factory
	conn    s3client.Connection
}

func (c *client) bucket(name string) (map[string]s3client.Object, error) {
	objects, ok := c.factory.Buckets[name]
	if !ok {
		return nil, NoSuchBucket()
	}
	return objects, nil
}

func (c *client) PutObject(_ context.Context, in s3client.PutInput) (int64, error) {
	body, err := os.ReadFile(in.SourcePath)
	if err != nil {
		return 0, err
	}

	c.factory.mu.Lock()
	defer c.factory.mu.Unlock()

	if c.factory.PutErr != nil {
		return 0, c.factory.PutErr
	}
	objects, err := c.bucket(in.Bucket)
	if err != nil {
		return 0, err
	}

	objects[in.Key] = s3client.Object{Key: in.Key, Size: int64(len(body)), LastModified: time.Now().UTC()}
	c.factory.Uploads = append(c.factory.Uploads, Upload{PutInput: in, Body: body})
	return int64(len(body)), nil
}

func (c *client) ListObjects(_ context.Context, bucket, prefix, token string, maxKeys int32) (s3client.ListPage, error) {
	c.factory.mu.Lock()
	defer c.factory.mu.Unlock()

	if c.factory.ListErr != nil {
		return s3client.ListPage{}, c.factory.ListErr
	}
	objects, err := c.bucket(bucket)
	if err != nil {
		return s3client.ListPage{}, err
	}

	keys := make([]string, 0, len(objects))
	for k := range objects {
		if strings.HasPrefix(k, prefix) && k > token {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	page := s3client.ListPage{}
	if maxKeys > 0 && len(keys) > int(maxKeys) {
		keys = keys[:maxKeys]
		page.Truncated = true
		page.NextToken = keys[len(keys)-1]
	}
	for _, k := range keys {
		page.Objects = append(page.Objects, objects[k])
	}
	return page, nil
}

func (c *client) HeadBucket(_ context.Context, bucket string) error {
	c.factory.mu.Lock()
	defer c.factory.mu.Unlock()

	_, err := c.bucket(bucket)
	return err
}

func (c *client) ListBuckets(context.Context) ([]string, error) {
	c.factory.mu.Lock()
	defer c.factory.mu.Unlock()

	names := make([]string, 0, len(c.factory.Buckets))
	for name := range c.factory.Buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (c *client) GetBucketLocation(_ context.Context, bucket string) (string, error) {
	c.factory.mu.Lock()
	defer c.factory.mu.Unlock()

	if c.factory.LocateErr != nil {
		return "", c.factory.LocateErr
	}
	if _, err := c.bucket(bucket); err != nil {
		return "", err
	}
	return c.factory.Locations[bucket], nil
}

func (c *client) PresignGetObject(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	c.factory.mu.Lock()
	defer c.factory.mu.Unlock()

	if c.factory.PresignErr != nil {
		return "", c.factory.PresignErr
	}
	if c.conn.Endpoint == "" {
		return "", errors.New("no endpoint")
	}
	return fmt.Sprintf("%s/%s/%s?X-Amz-Expires=%d", c.conn.Endpoint, bucket,
		key, int(ttl.Seconds())), nil
}
