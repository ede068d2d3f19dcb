// Package audit appends sync, discovery and bucket-change outcomes to the
// sync log. Entries are never updated or deleted.
package audit

import (
	"context"
	"fmt"

	"github.com/mwantia/s3offload/pkg/bucket"
	"github.com/mwantia/s3offload/pkg/db/models"
	"github.com/mwantia/s3offload/pkg/db/store"
)

type Action string

const (
	ActionUpload       Action = "upload"
	ActionManualSync   Action = "manual_sync"
	ActionSingleSync   Action = "single_sync"
	ActionBucketChange Action = "bucket_change"
	ActionDiscover     Action = "discover"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

type Recorder struct {
	store store.MetadataStore
}

func NewRecorder(st store.MetadataStore) *Recorder {
	return &Recorder{store: st}
}

// With binds the recorder to a transaction-scoped store.
func (r *Recorder) With(tx store.MetadataStore) *Recorder {
	return &Recorder{store: tx}
}

func (r *Recorder) Record(ctx context.Context, fileID uint, ref bucket.Ref, action Action, status Status, message string) error {
	entry := &models.SyncLog{
		FileID:   fileID,
		BucketID: ref.Ptr(),
		Action:   string(action),
		Status:   string(status),
		Message:  message,
	}
	if err := r.store.CreateSyncLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to record %s/%s for file %d: %w", action, status, fileID, err)
	}
	return nil
}

// Recent lists entries newest first.
func (r *Recorder) Recent(ctx context.Context, filter models.SyncLogFilter) ([]models.SyncLog, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return r.store.ListSyncLogs(ctx, filter)
}
