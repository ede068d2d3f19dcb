package s3client

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"strings"

	"github.com/mwantia/s3offload/pkg/log"
)

const ProviderMinio = "minio"

var ErrMissingCredentials = errors.New("access key and secret key are required")

// DefaultFactory creates SDK-backed clients.
type DefaultFactory struct {
	log log.LoggerService
}

func NewFactory(logger log.LoggerService) *DefaultFactory {
	return &DefaultFactory{log: logger}
}

func (f *DefaultFactory) New(ctx context.Context, conn Connection, opts Options) (Client, error) {
	if conn.AccessKey == "" || conn.SecretKey == "" {
		return nil, ErrMissingCredentials
	}

	provider := strings.ToLower(strings.TrimSpace(conn.Provider))

	var (
		client Client
		err    error
	)
	switch provider {
	case ProviderMinio:
		client, err = newMinioClient(conn, opts)
	default:
		provider = "aws"
		client, err = newAWSClient(ctx, conn, opts)
	}
	if err != nil {
		f.log.Error("Failed to create %s client for endpoint '%s': %v", provider, conn.Endpoint, err)
		return nil, err
	}

	return &instrumented{
		client:   client,
		provider: provider,
		log:      f.log,
	}, nil
}

func insecureTransport() *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit operator opt-in
	return transport
}
