// Package api exposes the offload engine as an authenticated JSON API.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mwantia/s3offload/pkg/audit"
	"github.com/mwantia/s3offload/pkg/auth"
	"github.com/mwantia/s3offload/pkg/bucket"
	"github.com/mwantia/s3offload/pkg/db/store"
	"github.com/mwantia/s3offload/pkg/discovery"
	"github.com/mwantia/s3offload/pkg/log"
	"github.com/mwantia/s3offload/pkg/metrics"
	"github.com/mwantia/s3offload/pkg/nonce"
	"github.com/mwantia/s3offload/pkg/resolver"
	"github.com/mwantia/s3offload/pkg/s3client"
	"github.com/mwantia/s3offload/pkg/settings"
	"github.com/mwantia/s3offload/pkg/syncer"
)

// Services are the engine components the API drives.
type Services struct {
	Store     store.MetadataStore
	Settings  *settings.Store
	Registry  *bucket.Registry
	Factory   s3client.Factory
	Resolver  *resolver.Resolver
	Syncer    *syncer.Engine
	Discovery *discovery.Engine
	Audit     *audit.Recorder
	Auth      *auth.Authenticator
	Nonces    *nonce.Manager
}

type Options struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
	UploadsBaseURL string
}

type Server struct {
	Services
	opts Options
	log  log.LoggerService
}

func New(services Services, opts Options, logger log.LoggerService) *Server {
	return &Server{
		Services: services,
		opts:     opts,
		log:      logger,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(s.observe)
	r.Use(chiMiddleware.Recoverer)

	if len(s.opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", NonceHeader},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.opts.RequestTimeout > 0 {
			r.Use(chiMiddleware.Timeout(s.opts.RequestTimeout))
		}
		r.Use(s.requireAdmin)
		r.Use(s.requireNonce)

		r.Get("/nonce", s.issueNonce)
		r.Get("/stats", s.stats)
		r.Get("/logs", s.listLogs)

		r.Route("/buckets", func(r chi.Router) {
			r.Get("/", s.listBuckets)
			r.Post("/", s.createBucket)
			r.Get("/{id}", s.getBucket)
			r.Put("/{id}", s.updateBucket)
			r.Delete("/{id}", s.deleteBucket)
			r.Post("/{id}/default", s.setDefaultBucket)
			r.Post("/{id}/discover", s.discoverBucket)
		})

		r.Post("/sync", s.syncPage)

		r.Route("/files", func(r chi.Router) {
			r.Get("/", s.listFiles)
			r.Post("/", s.registerUpload)
			r.Get("/{id}", s.getFile)
			r.Post("/{id}/sync", s.syncFile)
			r.Get("/{id}/url", s.fileURL)
			r.Put("/{id}/bucket", s.changeBucket)
			r.Get("/{id}/membership", s.membership)
		})

		r.Route("/connection", func(r chi.Router) {
			r.Post("/buckets", s.connectionBuckets)
			r.Post("/region", s.connectionRegion)
			r.Post("/test", s.connectionTest)
		})

		r.Get("/settings", s.getSettings)
		r.Put("/settings", s.putSettings)
		r.Patch("/settings", s.patchSettings)
	})

	return r
}
