package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/mwantia/s3offload/pkg/apperr"
	"github.com/mwantia/s3offload/pkg/audit"
	"github.com/mwantia/s3offload/pkg/db/models"
	"github.com/mwantia/s3offload/pkg/db/store"
	"github.com/mwantia/s3offload/pkg/settings"
)

var ErrFileNotFound = apperr.NotFound("File not found")

func (e *Engine) file(ctx context.Context, id uint) (*models.File, error) {
	if id == 0 {
		return nil, apperr.Validation("Invalid file ID")
	}
	file, err := e.store.GetFile(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load file %d: %w", id, err)
	}
	return file, nil
}

// SyncSingle uploads one file to the default bucket, even when it is
// already offloaded.
func (e *Engine) SyncSingle(ctx context.Context, fileID uint, s settings.Settings) (*Item, error) {
	file, err := e.file(ctx, fileID)
	if err != nil {
		return nil, err
	}

	item := e.syncFile(ctx, file, e.resolveTarget(ctx, 0, s), audit.ActionSingleSync, s)
	return &item, item.Err()
}

// ChangeBucket re-uploads the file under the new bucket's prefix. The
// object in the previous bucket is kept.
func (e *Engine) ChangeBucket(ctx context.Context, fileID, bucketID uint, s settings.Settings) (*Item, error) {
	if !s.MultiBucket() {
		return nil, settings.ErrMultiBucketDisabled
	}
	file, err := e.file(ctx, fileID)
	if err != nil {
		return nil, err
	}
	b, err := e.registry.Get(ctx, bucketID)
	if err != nil {
		return nil, err
	}

	if file.Offloaded && file.BucketID != nil && *file.BucketID == b.ID {
		return &Item{
			ID:      file.ID,
			Name:    path.Base(file.Path),
			Status:  string(audit.StatusSuccess),
			Message: "Already stored in this bucket",
			Key:     file.RemoteKey,
			Bucket:  b.Name,
		}, nil
	}

	item := e.syncFile(ctx, file, target{bucket: b, ref: b.Ref()}, audit.ActionBucketChange, s)
	return &item, item.Err()
}

// NewFile describes a file the host just stored below the upload root.
type NewFile struct {
	Path     string `json:"path"`
	Title    string `json:"title"`
	MimeType string `json:"mime_type"`
	Bucket   string `json:"bucket"`
}

// HandleUpload registers a new upload and, in auto mode, offloads it right
// away unless its MIME type is excluded. A failed offload keeps the file
// local and is reported through the returned item.
func (e *Engine) HandleUpload(ctx context.Context, in NewFile, s settings.Settings) (*models.File, *Item, error) {
	if in.Path == "" {
		return nil, nil, apperr.Validation("Invalid file path")
	}
	rel, err := e.locator.RelPath(e.locator.AbsPath(in.Path))
	if err != nil {
		return nil, nil, apperr.Validation("Invalid file path")
	}

	info, err := os.Stat(e.locator.AbsPath(rel))
	if err != nil || info.IsDir() {
		return nil, nil, ErrFileNotFound
	}

	file := &models.File{
		Path:     rel,
		Title:    in.Title,
		MimeType: in.MimeType,
		Size:     info.Size(),
	}
	if file.Title == "" {
		file.Title = path.Base(rel)
	}
	if file.MimeType == "" {
		file.MimeType = contentType(file)
	}
	if err := e.store.CreateFile(ctx, file); err != nil {
		return nil, nil, fmt.Errorf("failed to register upload: %w", err)
	}

	if !s.Enabled || s.SyncMode != settings.SyncModeAuto || s.ExcludesMIME(file.MimeType) {
		return file, nil, nil
	}

	item := e.syncFile(ctx, file, e.resolveByName(ctx, in.Bucket, s), audit.ActionUpload, s)
	if item.Failed() {
		e.log.Warn("Keeping upload %d local: %s", file.ID, item.Message)
	}
	return file, &item, nil
}
