package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mwantia/s3offload/pkg/auth"
	"github.com/mwantia/s3offload/pkg/metrics"
)

const NonceHeader = "X-Offload-Nonce"

// wrappedWriter captures the status code written by downstream handlers.
type wrappedWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *wrappedWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// observe logs and measures every request by its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &wrappedWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		duration := time.Since(start)

		metrics.RecordHTTPRequest(r.Method, route, ww.statusCode, duration)
		s.log.Debug("%s %s %d %s", r.Method, r.URL.Path, ww.statusCode, duration)
	})
}

// requireAdmin validates the bearer token and requires the admin role.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			fail(w, http.StatusUnauthorized, "authorization header required")
			return
		}

		claims, err := s.Auth.Validate(token)
		if err != nil {
			fail(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if claims.Role != auth.RoleAdmin {
			fail(w, http.StatusForbidden, "Unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

// requireNonce guards state-changing requests with a single-use nonce
// issued to the same subject.
func (s *Server) requireNonce(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		claims := auth.GetClaims(r.Context())
		if claims == nil {
			fail(w, http.StatusUnauthorized, "authorization header required")
			return
		}
		if err := s.Nonces.Consume(r.Header.Get(NonceHeader), claims.Subject); err != nil {
			fail(w, http.StatusForbidden, "Invalid nonce")
			return
		}

		next.ServeHTTP(w, r)
	})
}
