package api

import (
	"net/http"

	"github.com/mwantia/s3offload/pkg/apperr"
	"github.com/mwantia/s3offload/pkg/syncer"
)

var errInvalidBucketID = apperr.Validation("Invalid bucket ID")

// syncPage runs one page of a manual sync. The client repeats the call with
// offset=processed and after=next_after until done.
func (s *Server) syncPage(w http.ResponseWriter, r *http.Request) {
	var req syncer.Request
	if err := decode(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	current, err := s.Settings.Load(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.Syncer.Page(r.Context(), req, current)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, result)
}
