package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/mwantia/s3offload/internal/api"
	config "github.com/mwantia/s3offload/internal/config/server"
	"github.com/mwantia/s3offload/pkg/audit"
	"github.com/mwantia/s3offload/pkg/auth"
	"github.com/mwantia/s3offload/pkg/bucket"
	"github.com/mwantia/s3offload/pkg/db/store"
	"github.com/mwantia/s3offload/pkg/discovery"
	"github.com/mwantia/s3offload/pkg/log"
	"github.com/mwantia/s3offload/pkg/nonce"
	"github.com/mwantia/s3offload/pkg/resolver"
	"github.com/mwantia/s3offload/pkg/s3client"
	"github.com/mwantia/s3offload/pkg/settings"
	"github.com/mwantia/s3offload/pkg/syncer"
)

// OpenStore opens and migrates the configured metadata store.
func OpenStore(ctx context.Context, cfg *config.BaseServerConfig) (*store.SQLiteStore, error) {
	st, err := store.NewSQLiteStore(store.SQLiteConfig{
		Path:     cfg.Metadata.SQLite.Path,
		LogLevel: store.ParseLogLevel(cfg.Metadata.LogLevel),
	})
	if err != nil {
		return nil, err
	}
	if err := st.Connect(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to connect metadata store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to migrate metadata store: %w", err)
	}
	return st, nil
}

// BuildServices wires the offload services on top of an open store. The
// authenticator is only created when a JWT secret is configured.
func BuildServices(cfg *config.BaseServerConfig, st store.MetadataStore, logger log.LoggerService) (api.Services, error) {
	registry := bucket.NewRegistry(st, logger.Named("bucket"))
	factory := s3client.NewFactory(logger.Named("s3"))
	recorder := audit.NewRecorder(st)

	services := api.Services{
		Store:     st,
		Settings:  settings.NewStore(st),
		Registry:  registry,
		Factory:   factory,
		Resolver:  resolver.New(registry, factory, logger.Named("resolver")),
		Syncer:    syncer.NewEngine(st, registry, factory, recorder, syncer.FSLocator{Root: cfg.Uploads.Root}, logger.Named("sync")),
		Discovery: discovery.NewEngine(st, registry, factory, recorder, logger.Named("discovery")),
		Audit:     recorder,
	}

	if cfg.HTTP.JWTSecret == "" {
		return services, nil
	}

	authenticator, err := auth.New(cfg.HTTP.JWTSecret)
	if err != nil {
		return services, err
	}
	services.Auth = authenticator
	services.Nonces = nonce.NewManager(authenticator.Secret(), parseDuration(cfg.HTTP.NonceTTL, 12*time.Hour))

	return services, nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
