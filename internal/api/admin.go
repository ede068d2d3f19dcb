package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mwantia/s3offload/pkg/auth"
	"github.com/mwantia/s3offload/pkg/bucket"
	"github.com/mwantia/s3offload/pkg/db/models"
)

func (s *Server) issueNonce(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())

	token, expires, err := s.Nonces.Issue(claims.Subject)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, map[string]any{
		"nonce":      token,
		"header":     NonceHeader,
		"expires_at": expires.UTC().Format(time.RFC3339),
	})
}

type statsView struct {
	FilesTotal     int64  `json:"files_total"`
	FilesOffloaded int64  `json:"files_offloaded"`
	FilesLocal     int64  `json:"files_local"`
	BucketsTotal   int    `json:"buckets_total"`
	BucketsActive  int    `json:"buckets_active"`
	DefaultBucket  string `json:"default_bucket,omitempty"`
	Enabled        bool   `json:"enabled"`
	SyncMode       string `json:"sync_mode"`
	MultiBucket    bool   `json:"multi_bucket"`
	AutoDiscover   bool   `json:"auto_discover"`
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	current, err := s.Settings.Load(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	total, offloaded, err := s.Store.CountFiles(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	buckets, err := s.Registry.List(r.Context(), false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := statsView{
		FilesTotal:     total,
		FilesOffloaded: offloaded,
		FilesLocal:     total - offloaded,
		BucketsTotal:   len(buckets),
		Enabled:        current.Enabled,
		SyncMode:       current.SyncMode,
		MultiBucket:    current.MultiBucket(),
		AutoDiscover:   current.AutoDiscoverEnabled,
	}
	for _, b := range buckets {
		if b.IsActive {
			out.BucketsActive++
		}
	}

	def, err := s.Registry.Default(r.Context(), current)
	switch {
	case err == nil:
		out.DefaultBucket = def.Label
	case !errors.Is(err, bucket.ErrNoBucket):
		s.writeError(w, r, err)
		return
	}
	ok(w, out)
}

func (s *Server) listLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := models.SyncLogFilter{
		Action: strings.TrimSpace(query.Get("action")),
		Status: strings.TrimSpace(query.Get("status")),
		Limit:  parseLimit(query.Get("limit"), 100, 500),
	}
	if raw := query.Get("file_id"); raw != "" {
		id, err := parseID(raw, "file ID")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		filter.FileID = id
	}
	if raw := query.Get("bucket_id"); raw != "" {
		id, err := parseID(raw, "bucket ID")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		filter.BucketID = &id
	}

	entries, err := s.Audit.Recent(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, entries)
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	current, err := s.Settings.Load(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, current.Redacted())
}

// putSettings replaces the settings; omitted fields reset to defaults.
func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	next, err := s.Settings.Save(r.Context(), raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("Settings replaced by '%s'", auth.GetClaims(r.Context()).Subject)
	ok(w, next.Redacted())
}

func (s *Server) patchSettings(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	next, err := s.Settings.Merge(r.Context(), raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("Settings updated by '%s'", auth.GetClaims(r.Context()).Subject)
	ok(w, next.Redacted())
}
