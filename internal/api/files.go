package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mwantia/s3offload/pkg/db/models"
	"github.com/mwantia/s3offload/pkg/db/store"
	"github.com/mwantia/s3offload/pkg/resolver"
	"github.com/mwantia/s3offload/pkg/settings"
	"github.com/mwantia/s3offload/pkg/syncer"
)

// fileView is a file record together with its serving URL.
type fileView struct {
	models.File
	URL string `json:"url"`
}

func (s *Server) view(r *http.Request, file *models.File, current settings.Settings) fileView {
	local := resolver.LocalURL(s.opts.UploadsBaseURL, file.Path)
	return fileView{
		File: *file,
		URL:  s.Resolver.URL(r.Context(), file, local, current),
	}
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := models.FileFilter{
		Limit:  parseLimit(query.Get("limit"), 50, 500),
		Offset: max(0, parseLimit(query.Get("offset"), 0, 1<<30)),
	}

	current, err := s.Settings.Load(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	raw := strings.TrimSpace(query.Get("bucket"))
	if raw != "" && !current.MultiBucket() {
		s.writeError(w, r, settings.ErrMultiBucketDisabled)
		return
	}
	switch raw {
	case "":
	case "local":
		filter.LocalOnly = true
	default:
		id, err := parseID(raw, "bucket ID")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		filter.BucketID = &id
	}

	files, err := s.Store.ListFiles(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]fileView, 0, len(files))
	for i := range files {
		out = append(out, s.view(r, &files[i], current))
	}
	ok(w, out)
}

func (s *Server) fileFromPath(w http.ResponseWriter, r *http.Request) (*models.File, settings.Settings, bool) {
	id, err := parseID(chi.URLParam(r, "id"), "file ID")
	if err != nil {
		s.writeError(w, r, err)
		return nil, settings.Settings{}, false
	}
	current, err := s.Settings.Load(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return nil, settings.Settings{}, false
	}
	file, err := s.Store.GetFile(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		err = syncer.ErrFileNotFound
	}
	if err != nil {
		s.writeError(w, r, err)
		return nil, settings.Settings{}, false
	}
	return file, current, true
}

func (s *Server) getFile(w http.ResponseWriter, r *http.Request) {
	file, current, found := s.fileFromPath(w, r)
	if !found {
		return
	}
	ok(w, s.view(r, file, current))
}

func (s *Server) fileURL(w http.ResponseWriter, r *http.Request) {
	file, current, found := s.fileFromPath(w, r)
	if !found {
		return
	}
	ok(w, map[string]string{"url": s.view(r, file, current).URL})
}

// membership reports whether the file is stored in the given bucket.
func (s *Server) membership(w http.ResponseWriter, r *http.Request) {
	fileID, err := parseID(chi.URLParam(r, "id"), "file ID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	bucketID, err := parseID(r.URL.Query().Get("bucket_id"), "bucket ID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	current, err := s.Settings.Load(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !current.MultiBucket() {
		s.writeError(w, r, settings.ErrMultiBucketDisabled)
		return
	}

	match, err := s.Registry.Contains(r.Context(), fileID, bucketID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, map[string]bool{"match": match})
}

func (s *Server) registerUpload(w http.ResponseWriter, r *http.Request) {
	var in syncer.NewFile
	if err := decode(r, &in, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	current, err := s.Settings.Load(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	file, item, err := s.Syncer.HandleUpload(r.Context(), in, current)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	created(w, map[string]any{
		"file": s.view(r, file, current),
		"sync": item,
	})
}

func (s *Server) syncFile(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "file ID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	current, err := s.Settings.Load(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	item, err := s.Syncer.SyncSingle(r.Context(), id, current)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, item)
}

func (s *Server) changeBucket(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "file ID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body struct {
		BucketID uint `json:"bucket_id"`
	}
	if err := decode(r, &body, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.BucketID == 0 {
		s.writeError(w, r, errInvalidBucketID)
		return
	}
	current, err := s.Settings.Load(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	item, err := s.Syncer.ChangeBucket(r.Context(), id, body.BucketID, current)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, item)
}
