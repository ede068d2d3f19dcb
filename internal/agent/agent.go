package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/mwantia/fabric/pkg/container"
	"github.com/mwantia/s3offload/internal/api"
	config "github.com/mwantia/s3offload/internal/config/server"
	"github.com/mwantia/s3offload/pkg/db/store"
	"github.com/mwantia/s3offload/pkg/log"
)

type S3OffloadAgent struct {
	mutex sync.RWMutex
	wait  sync.WaitGroup

	cfg    *config.BaseServerConfig
	sc     *container.ServiceContainer
	log    log.LoggerService
	store  *store.SQLiteStore
	server *http.Server
}

func NewAgent(cfg *config.BaseServerConfig) *S3OffloadAgent {
	return &S3OffloadAgent{
		cfg: cfg,
		sc:  container.NewServiceContainer(),
		log: log.NewLoggerService("s3offload", cfg.Log),
	}
}

func (a *S3OffloadAgent) setupServices(ctx context.Context) error {
	if a.cfg.HTTP.JWTSecret == "" {
		return errors.New("http.jwt_secret must be set to serve the admin API")
	}

	st, err := OpenStore(ctx, a.cfg)
	if err != nil {
		return err
	}
	a.store = st

	errs := container.Errors{}

	a.log.Debug("Registering 'LoggerService'...")
	errs.Add(container.Register[log.LoggerServiceImpl](a.sc,
		container.With[log.LoggerService](),
		container.WithInstance(a.log)))

	a.log.Debug("Registering 'MetadataStore'...")
	errs.Add(container.Register[store.SQLiteStore](a.sc,
		container.With[store.MetadataStore](),
		container.WithInstance(st)))

	if err := errs.Errors(); err != nil {
		return err
	}

	ok, resolved := a.sc.ResolveByType(ctx, reflect.TypeOf((*store.MetadataStore)(nil)).Elem())
	if !ok {
		return errors.New("failed to resolve MetadataStore: no store registered")
	}
	metadata, ok := resolved.(store.MetadataStore)
	if !ok {
		return errors.New("resolved store is not a MetadataStore")
	}

	services, err := BuildServices(a.cfg, metadata, a.log)
	if err != nil {
		return err
	}

	handler := api.New(services, api.Options{
		RequestTimeout: parseDuration(a.cfg.HTTP.RequestTimeout, 5*time.Minute),
		AllowedOrigins: a.cfg.HTTP.AllowedOrigins,
		UploadsBaseURL: a.cfg.Uploads.BaseURL,
	}, a.log.Named("http")).Handler()

	a.server = &http.Server{
		Addr:              a.cfg.HTTP.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

func (a *S3OffloadAgent) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a.mutex.Lock()
	if err := a.setupServices(ctx); err != nil {
		a.mutex.Unlock()
		a.close()
		return err
	}
	a.mutex.Unlock()

	failed := make(chan error, 1)
	a.wait.Add(1)
	go func() {
		defer a.wait.Done()

		a.log.Info("Serving admin API on '%s'", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.log.Info("Shutting down...")
	case serveErr = <-failed:
		a.log.Error("Admin API stopped: %v", serveErr)
	}

	timeout := parseDuration(a.cfg.ShutdownTimeout, 60*time.Second)
	shutdown, cancelShutdown := context.WithTimeout(context.Background(), timeout)
	defer cancelShutdown()

	if err := a.server.Shutdown(shutdown); err != nil {
		a.log.Warn("Failed to shut down admin API gracefully: %v", err)
	}
	a.wait.Wait()

	if err := a.sc.Cleanup(shutdown); err != nil {
		return fmt.Errorf("failed to complete service container cleanup: %w", err)
	}
	a.close()

	return serveErr
}

func (a *S3OffloadAgent) close() {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("Failed to close metadata store: %v", err)
	}
	a.store = nil

	if closer, ok := a.log.(io.Closer); ok {
		_ = closer.Close()
	}
}
