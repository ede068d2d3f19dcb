// Package resolver derives remote object keys and serving URLs.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mwantia/s3offload/pkg/bucket"
	"github.com/mwantia/s3offload/pkg/db/models"
	"github.com/mwantia/s3offload/pkg/log"
	"github.com/mwantia/s3offload/pkg/metrics"
	"github.com/mwantia/s3offload/pkg/s3client"
	"github.com/mwantia/s3offload/pkg/settings"
)

// DeriveKey joins a normalized bucket prefix and a path relative to the
// upload root.
func DeriveKey(prefix, rel string) string {
	rel = strings.TrimLeft(rel, "/")
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return rel
	}
	return prefix + "/" + rel
}

// EndpointURL is the unsigned URL of key on the bucket's endpoint. Without
// an endpoint the regional AWS endpoint is used, the same one the client
// uploads to.
func EndpointURL(b *bucket.Config, key string) string {
	endpoint := strings.TrimRight(b.Endpoint, "/")
	if endpoint == "" {
		region := b.Connection().RegionOrDefault()
		if b.UsePathStyle {
			return fmt.Sprintf("https://s3.%s.amazonaws.com/%s/%s", region, b.Name, key)
		}
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", b.Name, region, key)
	}
	if b.UsePathStyle {
		return endpoint + "/" + b.Name + "/" + key
	}
	return endpoint + "/" + key
}

type Resolver struct {
	registry *bucket.Registry
	factory  s3client.Factory
	log      log.LoggerService
}

func New(registry *bucket.Registry, factory s3client.Factory, logger log.LoggerService) *Resolver {
	return &Resolver{
		registry: registry,
		factory:  factory,
		log:      logger,
	}
}

// URL returns the address a client should fetch file from. Anything that
// prevents a remote URL falls back to localURL. When signing a private
// object fails and fallback is disabled the result is empty.
func (r *Resolver) URL(ctx context.Context, file *models.File, localURL string, s settings.Settings) string {
	if file == nil || !file.Offloaded || file.RemoteKey == "" {
		return localURL
	}
	if !s.Enabled {
		return localURL
	}

	b, err := r.registry.Resolve(ctx, bucket.FromColumn(file.BucketID), s)
	if err != nil {
		r.log.Debug("No bucket for file %d: %v", file.ID, err)
		return localURL
	}
	key := file.RemoteKey

	if b.CDNBase != "" {
		return strings.TrimRight(b.CDNBase, "/") + "/" + key
	}

	if s.PrivateBucket {
		signed, err := r.presign(ctx, b, key, s)
		metrics.RecordSignedURL(err == nil)
		if err == nil {
			return signed
		}

		r.log.Warn("Failed to sign URL for file %d: %s", file.ID, s3client.Describe(err, b.AccessKey, b.SecretKey))
		if !s.SignedURLFallback {
			return ""
		}
	}

	return EndpointURL(b, key)
}

func (r *Resolver) presign(ctx context.Context, b *bucket.Config, key string, s settings.Settings) (string, error) {
	client, err := r.factory.New(ctx, b.Connection(), s3client.Options{InsecureSkipVerify: s.DisableSSLVerify})
	if err != nil {
		return "", err
	}
	return client.PresignGetObject(ctx, b.Name, key, s.SignedTTLDuration())
}

// LocalURL is the URL of a file served from the local upload root.
func LocalURL(baseURL, rel string) string {
	if rel == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(rel, "/")
}
