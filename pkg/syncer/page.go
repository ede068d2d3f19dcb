package syncer

import (
	"context"
	"fmt"

	"github.com/mwantia/s3offload/pkg/audit"
	"github.com/mwantia/s3offload/pkg/db/models"
	"github.com/mwantia/s3offload/pkg/settings"
)

// Request selects one page of a sync run. BucketID zero targets the default
// bucket. Offset counts the files processed by earlier pages; AfterID is the
// NextAfter of the previous page and zero on the first one.
type Request struct {
	BucketID uint `json:"bucket_id"`
	Force    bool `json:"force"`
	Offset   int  `json:"offset"`
	AfterID  uint `json:"after"`
}

type PageResult struct {
	Total     int64  `json:"total"`
	Processed int64  `json:"processed"`
	Success   int    `json:"success"`
	Failed    int    `json:"failed"`
	Items     []Item `json:"items"`
	NextAfter uint   `json:"next_after"`
	Done      bool   `json:"done"`
}

// Page syncs the next batch of candidates in id order. Callers keep
// requesting pages until Done; stopping early leaves synced files synced.
func (e *Engine) Page(ctx context.Context, req Request, s settings.Settings) (*PageResult, error) {
	offset := max(0, req.Offset)

	files, count, err := e.store.ListSyncCandidates(ctx, models.CandidateQuery{
		Force:   req.Force,
		AfterID: req.AfterID,
		Offset:  offset,
		Limit:   s.PageSize(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load sync candidates: %w", err)
	}

	result := &PageResult{
		Total:     count,
		Processed: int64(offset + len(files)),
		Items:     make([]Item, 0, len(files)),
		NextAfter: req.AfterID,
	}
	if req.AfterID > 0 {
		result.Total = int64(offset) + count
	}

	var t target
	if len(files) > 0 {
		t = e.resolveTarget(ctx, req.BucketID, s)
	}

	for i := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item := e.syncFile(ctx, &files[i], t, audit.ActionManualSync, s)
		if item.Failed() {
			result.Failed++
		} else {
			result.Success++
		}
		result.Items = append(result.Items, item)
		result.NextAfter = files[i].ID
	}

	result.Done = len(files) == 0 || result.Processed >= result.Total
	e.log.Info("Sync page: %d/%d processed, %d succeeded, %d failed",
		result.Processed, result.Total, result.Success, result.Failed)
	return result, nil
}
