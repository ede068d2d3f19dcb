package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mwantia/s3offload/pkg/bucket"
	"github.com/mwantia/s3offload/pkg/discovery"
)

func (s *Server) listBuckets(w http.ResponseWriter, r *http.Request) {
	buckets, err := s.Registry.List(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]bucket.Config, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, b.Redacted())
	}
	ok(w, out)
}

func (s *Server) getBucket(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "bucket ID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	b, err := s.Registry.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, b.Redacted())
}

func (s *Server) createBucket(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := bucket.DecodeInput(raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	b, err := s.Registry.Add(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	created(w, b.Redacted())
}

func (s *Server) updateBucket(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "bucket ID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	raw, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := bucket.DecodeInput(raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	b, err := s.Registry.Update(r.Context(), id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, b.Redacted())
}

func (s *Server) deleteBucket(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "bucket ID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.Registry.Remove(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, map[string]uint{"deleted": id})
}

func (s *Server) setDefaultBucket(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "bucket ID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	b, err := s.Registry.SetDefault(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, b.Redacted())
}

func (s *Server) discoverBucket(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "bucket ID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body struct {
		SkipExisting      bool   `json:"skip_existing"`
		MaxKeys           int32  `json:"max_keys"`
		ContinuationToken string `json:"continuation_token"`
	}
	if err := decode(r, &body, true); err != nil {
		s.writeError(w, r, err)
		return
	}

	current, err := s.Settings.Load(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.Discovery.Discover(r.Context(), discovery.Request{
		BucketID:          id,
		SkipExisting:      body.SkipExisting,
		MaxKeys:           body.MaxKeys,
		ContinuationToken: body.ContinuationToken,
	}, current)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, result)
}
