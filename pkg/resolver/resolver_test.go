package resolver_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwantia/s3offload/pkg/bucket"
	"github.com/mwantia/s3offload/pkg/db/models"
	"github.com/mwantia/s3offload/pkg/db/store/storetest"
	"github.com/mwantia/s3offload/pkg/log"
	"github.com/mwantia/s3offload/pkg/resolver"
	"github.com/mwantia/s3offload/pkg/s3client/s3test"
	"github.com/mwantia/s3offload/pkg/settings"
)

const local = "http://localhost/uploads/2024/07/photo.jpg"

func TestDeriveKey(t *testing.T) {
	assert.Equal(t, "2024/01/img.png", resolver.DeriveKey("", "2024/01/img.png"))
	assert.Equal(t, "site/a/2024/01/img.png", resolver.DeriveKey("site/a", "2024/01/img.png"))
	assert.Equal(t, "site/a/2024/01/img.png", resolver.DeriveKey("/site/a/", "/2024/01/img.png"))
}

func TestLocalURL(t *testing.T) {
	assert.Equal(t, local, resolver.LocalURL("http://localhost/uploads/", "2024/07/photo.jpg"))
	assert.Empty(t, resolver.LocalURL("http://localhost/uploads", ""))
}

type fixture struct {
	registry *bucket.Registry
	factory  *s3test.Factory
	resolver *resolver.Resolver
	bucket   *bucket.Config
}

func setup(t *testing.T, cdn string) *fixture {
	st := storetest.New(t)
	registry := bucket.NewRegistry(st, log.NewDiscardLogger())
	factory := s3test.NewFactory("media1")

	pathStyle := true
	cfg, err := registry.Add(context.Background(), bucket.Input{
		Name:         "media1",
		AccessKey:    "minio",
		SecretKey:    "minio123",
		Endpoint:     "http://localhost:9000",
		UsePathStyle: &pathStyle,
		PathPrefix:   "uploads",
		CDNBase:      cdn,
	})
	require.NoError(t, err)

	return &fixture{
		registry: registry,
		factory:  factory,
		resolver: resolver.New(registry, factory, log.NewDiscardLogger()),
		bucket:   cfg,
	}
}

func (f *fixture) file() *models.File {
	return &models.File{
		ID:         1,
		Path:       "2024/07/photo.jpg",
		Offloaded:  true,
		BucketID:   f.bucket.Ref().Ptr(),
		BucketName: f.bucket.Name,
		RemoteKey:  "uploads/2024/07/photo.jpg",
	}
}

func TestURLLocalCases(t *testing.T) {
	f := setup(t, "")
	s := settings.Defaults()
	ctx := context.Background()

	notOffloaded := f.file()
	notOffloaded.Offloaded = false
	assert.Equal(t, local, f.resolver.URL(ctx, notOffloaded, local, s))

	noKey := f.file()
	noKey.RemoteKey = ""
	assert.Equal(t, local, f.resolver.URL(ctx, noKey, local, s))

	disabled := s
	disabled.Enabled = false
	assert.Equal(t, local, f.resolver.URL(ctx, f.file(), local, disabled))

	missing := f.file()
	id := uint(999)
	missing.BucketID = &id
	assert.Equal(t, local, f.resolver.URL(ctx, missing, local, s))
}

func TestURLPathStyle(t *testing.T) {
	f := setup(t, "")
	s := settings.Defaults()

	assert.Equal(t, "http://localhost:9000/media1/uploads/2024/07/photo.jpg",
		f.resolver.URL(context.Background(), f.file(), local, s))
}

func TestURLVirtualHosted(t *testing.T) {
	f := setup(t, "")
	ctx := context.Background()

	off := false
	_, err := f.registry.Update(ctx, f.bucket.ID, bucket.Input{Endpoint: "https://media1.s3.example.com/", UsePathStyle: &off})
	require.NoError(t, err)

	assert.Equal(t, "https://media1.s3.example.com/uploads/2024/07/photo.jpg",
		f.resolver.URL(ctx, f.file(), local, settings.Defaults()))
}

func TestURLCDNWinsOverPrivate(t *testing.T) {
	f := setup(t, "https://cdn.example.com")
	s := settings.Defaults()
	s.PrivateBucket = true

	assert.Equal(t, "https://cdn.example.com/uploads/2024/07/photo.jpg",
		f.resolver.URL(context.Background(), f.file(), local, s))
	assert.Empty(t, f.factory.Connections)
}

func TestURLSigned(t *testing.T) {
	f := setup(t, "")
	s := settings.Defaults()
	s.PrivateBucket = true
	s.SignedTTL = 600

	assert.Equal(t, "http://localhost:9000/media1/uploads/2024/07/photo.jpg?X-Amz-Expires=600",
		f.resolver.URL(context.Background(), f.file(), local, s))
}

func TestURLSigningFailure(t *testing.T) {
	f := setup(t, "")
	f.factory.PresignErr = errors.New("signing failed")
	s := settings.Defaults()
	s.PrivateBucket = true

	assert.Equal(t, "http://localhost:9000/media1/uploads/2024/07/photo.jpg",
		f.resolver.URL(context.Background(), f.file(), local, s))

	s.SignedURLFallback = false
	assert.Empty(t, f.resolver.URL(context.Background(), f.file(), local, s))
}

func TestURLVirtualBucket(t *testing.T) {
	f := setup(t, "")
	s := settings.Defaults()
	s.Bucket = "fallback"
	s.AccessKey = "key"
	s.SecretKey = "secret"
	s.Endpoint = "http://localhost:9000"
	s.PathPrefix = "site"

	file := &models.File{ID: 2, Offloaded: true, BucketName: "fallback", RemoteKey: "site/a.png"}
	assert.Equal(t, "http://localhost:9000/fallback/site/a.png",
		f.resolver.URL(context.Background(), file, local, s))

	s.Bucket = ""
	assert.Equal(t, local, f.resolver.URL(context.Background(), file, local, s))
}

func TestEndpointURLWithoutEndpoint(t *testing.T) {
	b := &bucket.Config{Name: "media1", Region: "eu-central-1"}
	assert.Equal(t, "https://media1.s3.eu-central-1.amazonaws.com/uploads/a.jpg",
		resolver.EndpointURL(b, "uploads/a.jpg"))

	b.UsePathStyle = true
	assert.Equal(t, "https://s3.eu-central-1.amazonaws.com/media1/uploads/a.jpg",
		resolver.EndpointURL(b, "uploads/a.jpg"))

	b.Region = ""
	assert.Equal(t, "https://s3.us-east-1.amazonaws.com/media1/uploads/a.jpg",
		resolver.EndpointURL(b, "uploads/a.jpg"))

	b.Endpoint = "http://localhost:9000/"
	assert.Equal(t, "http://localhost:9000/media1/uploads/a.jpg",
		resolver.EndpointURL(b, "uploads/a.jpg"))
}
