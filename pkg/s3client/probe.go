package s3client

import (
	"context"
	"strings"

	"github.com/mwantia/s3offload/pkg/apperr"
)

// ConnectionParams are the ad-hoc connection details submitted while an
// administrator configures a bucket, before anything is persisted.
type ConnectionParams struct {
	Provider     string `json:"provider"`
	AccessKey    string `json:"access_key"`
	SecretKey    string `json:"secret_key"`
	Region       string `json:"region"`
	Endpoint     string `json:"endpoint"`
	Bucket       string `json:"bucket"`
	UsePathStyle bool   `json:"use_path_style"`
}

func (p ConnectionParams) connection() Connection {
	return Connection{
		Provider:     p.Provider,
		AccessKey:    strings.TrimSpace(p.AccessKey),
		SecretKey:    strings.TrimSpace(p.SecretKey),
		Region:       strings.TrimSpace(p.Region),
		Endpoint:     strings.TrimRight(strings.TrimSpace(p.Endpoint), "/"),
		UsePathStyle: p.UsePathStyle,
	}
}

func (p ConnectionParams) validate(needBucket bool) error {
	conn := p.connection()
	if conn.AccessKey == "" || conn.SecretKey == "" || conn.Endpoint == "" {
		return apperr.Validation("Missing required connection parameters")
	}
	if needBucket && strings.TrimSpace(p.Bucket) == "" {
		return apperr.Validation("Missing required connection parameters")
	}
	return nil
}

type RegionResult struct {
	Region   string `json:"region"`
	Fallback bool   `json:"fallback"`
	Message  string `json:"message,omitempty"`
}

// Prober runs the connection checks used by the bucket setup screens.
type Prober struct {
	factory Factory
	opts    Options
}

func NewProber(factory Factory, opts Options) *Prober {
	return &Prober{factory: factory, opts: opts}
}

func (p *Prober) client(ctx context.Context, params ConnectionParams) (Client, error) {
	client, err := p.factory.New(ctx, params.connection(), p.opts)
	if err != nil {
		return nil, apperr.Transport("Could not create S3 client", err)
	}
	return client, nil
}

// ListBuckets returns the bucket names visible to the given credentials.
func (p *Prober) ListBuckets(ctx context.Context, params ConnectionParams) ([]string, error) {
	if err := params.validate(false); err != nil {
		return nil, err
	}
	client, err := p.client(ctx, params)
	if err != nil {
		return nil, err
	}

	names, err := client.ListBuckets(ctx)
	if err != nil {
		return nil, apperr.Transport(Describe(err, params.AccessKey, params.SecretKey), err)
	}
	return names, nil
}

// DetectRegion asks the provider for the bucket's location constraint. An
// empty or "null" constraint means us-east-1. When the provider refuses,
// the supplied region (or the default) is returned with Fallback set.
func (p *Prober) DetectRegion(ctx context.Context, params ConnectionParams) (*RegionResult, error) {
	if err := params.validate(true); err != nil {
		return nil, err
	}
	client, err := p.client(ctx, params)
	if err != nil {
		return nil, err
	}

	location, err := client.GetBucketLocation(ctx, strings.TrimSpace(params.Bucket))
	if err != nil {
		return &RegionResult{
			Region:   params.connection().RegionOrDefault(),
			Fallback: true,
			Message:  Describe(err, params.AccessKey, params.SecretKey),
		}, nil
	}

	location = strings.TrimSpace(location)
	if location == "" || strings.EqualFold(location, "null") {
		location = DefaultRegion
	}
	return &RegionResult{Region: location}, nil
}

// TestConnection verifies that the bucket exists and is reachable.
func (p *Prober) TestConnection(ctx context.Context, params ConnectionParams) error {
	if err := params.validate(true); err != nil {
		return err
	}
	client, err := p.client(ctx, params)
	if err != nil {
		return err
	}

	if err := client.HeadBucket(ctx, strings.TrimSpace(params.Bucket)); err != nil {
		return apperr.Transport(Describe(err, params.AccessKey, params.SecretKey), err)
	}
	return nil
}
