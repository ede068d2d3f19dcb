package api

import (
	"net/http"

	"github.com/mwantia/s3offload/pkg/s3client"
)

func (s *Server) prober(r *http.Request) (*s3client.Prober, s3client.ConnectionParams, error) {
	var params s3client.ConnectionParams
	if err := decode(r, &params, false); err != nil {
		return nil, params, err
	}
	current, err := s.Settings.Load(r.Context())
	if err != nil {
		return nil, params, err
	}
	return s3client.NewProber(s.Factory, s3client.Options{InsecureSkipVerify: current.DisableSSLVerify}), params, nil
}

func (s *Server) connectionBuckets(w http.ResponseWriter, r *http.Request) {
	prober, params, err := s.prober(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	names, err := prober.ListBuckets(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, map[string][]string{"buckets": names})
}

func (s *Server) connectionRegion(w http.ResponseWriter, r *http.Request) {
	prober, params, err := s.prober(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := prober.DetectRegion(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, result)
}

func (s *Server) connectionTest(w http.ResponseWriter, r *http.Request) {
	prober, params, err := s.prober(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := prober.TestConnection(r.Context(), params); err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, map[string]string{"message": "Connection successful"})
}
