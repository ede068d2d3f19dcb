// Package discovery imports objects that already exist in a bucket as file
// records.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/mwantia/s3offload/pkg/apperr"
	"github.com/mwantia/s3offload/pkg/audit"
	"github.com/mwantia/s3offload/pkg/bucket"
	"github.com/mwantia/s3offload/pkg/db/models"
	"github.com/mwantia/s3offload/pkg/db/store"
	"github.com/mwantia/s3offload/pkg/log"
	"github.com/mwantia/s3offload/pkg/metrics"
	"github.com/mwantia/s3offload/pkg/s3client"
	"github.com/mwantia/s3offload/pkg/settings"
)

// DefaultMaxKeys bounds one discovery call.
const DefaultMaxKeys = 100

type Request struct {
	BucketID          uint   `json:"bucket_id"`
	SkipExisting      bool   `json:"skip_existing"`
	MaxKeys           int32  `json:"max_keys"`
	ContinuationToken string `json:"continuation_token"`
}

type Item struct {
	ID      uint   `json:"id,omitempty"`
	Name    string `json:"name"`
	Key     string `json:"key"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type Result struct {
	Found     int    `json:"found"`
	Imported  int    `json:"imported"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	Items     []Item `json:"items"`
	NextToken string `json:"next_token,omitempty"`
	Truncated bool   `json:"truncated"`
}

const (
	statusImported = "imported"
	statusSkipped  = "skipped"
	statusFailed   = "failed"
)

type Engine struct {
	store    store.MetadataStore
	registry *bucket.Registry
	factory  s3client.Factory
	audit    *audit.Recorder
	log      log.LoggerService
}

func NewEngine(st store.MetadataStore, registry *bucket.Registry, factory s3client.Factory,
	recorder *audit.Recorder, logger log.LoggerService) *Engine {
	return &Engine{
		store:    st,
		registry: registry,
		factory:  factory,
		audit:    recorder,
		log:      logger,
	}
}

// Discover lists one bounded page of the bucket and imports every object
// that has no file record yet. A failing object does not stop the others.
func (e *Engine) Discover(ctx context.Context, req Request, s settings.Settings) (*Result, error) {
	if req.BucketID == 0 {
		return nil, apperr.Validation("Bucket ID required")
	}
	b, err := e.registry.Get(ctx, req.BucketID)
	if err != nil {
		return nil, err
	}

	client, err := e.factory.New(ctx, b.Connection(), s3client.Options{InsecureSkipVerify: s.DisableSSLVerify})
	if err != nil {
		return nil, apperr.Transport("Could not create S3 client", err)
	}

	maxKeys := req.MaxKeys
	if maxKeys <= 0 || maxKeys > 1000 {
		maxKeys = DefaultMaxKeys
	}

	page, err := client.ListObjects(ctx, b.Name, b.PathPrefix, req.ContinuationToken, maxKeys)
	if err != nil {
		return nil, apperr.Transport(s3client.Describe(err, b.AccessKey, b.SecretKey), err)
	}

	result := &Result{
		Items:     make([]Item, 0, len(page.Objects)),
		NextToken: page.NextToken,
		Truncated: page.Truncated,
	}
	for _, object := range page.Objects {
		if strings.HasSuffix(object.Key, "/") {
			continue
		}
		result.Found++

		item := e.importObject(ctx, b, object, req.SkipExisting)
		switch item.Status {
		case statusImported:
			result.Imported++
		case statusSkipped:
			result.Skipped++
			continue
		default:
			result.Failed++
		}
		result.Items = append(result.Items, item)
	}

	if err := e.registry.MarkSynced(ctx, b.Ref(), time.Now().UTC()); err != nil {
		e.log.Warn("%v", err)
	}
	metrics.RecordDiscovery(result.Imported, result.Skipped, result.Failed)

	e.log.Info("Discovered %d objects in '%s': %d imported, %d skipped, %d failed",
		result.Found, b.Name, result.Imported, result.Skipped, result.Failed)
	return result, nil
}

func (e *Engine) importObject(ctx context.Context, b *bucket.Config, object s3client.Object, skipExisting bool) Item {
	name := path.Base(object.Key)
	item := Item{Name: name, Key: object.Key}

	if skipExisting {
		existing, err := e.store.FindFileByRemoteKey(ctx, object.Key)
		switch {
		case err == nil:
			item.ID = existing.ID
			item.Status = statusSkipped
			return item
		case !errors.Is(err, store.ErrNotFound):
			e.log.Error("Failed to look up '%s': %v", object.Key, err)
			item.Status = statusFailed
			item.Message = "Lookup failed"
			return item
		}
	}

	file := &models.File{
		Title:      name,
		MimeType:   mime.TypeByExtension(path.Ext(name)),
		Size:       object.Size,
		Offloaded:  true,
		BucketID:   b.Ref().Ptr(),
		BucketName: b.Name,
		RemoteKey:  object.Key,
		Discovered: true,
	}

	err := e.store.Transaction(ctx, func(tx store.MetadataStore) error {
		if err := tx.CreateFile(ctx, file); err != nil {
			return fmt.Errorf("failed to create file record: %w", err)
		}
		return e.audit.With(tx).Record(ctx, file.ID, b.Ref(), audit.ActionDiscover, audit.StatusSuccess, "")
	})
	if err != nil {
		e.log.Error("Failed to import '%s' from '%s': %v", object.Key, b.Name, err)
		item.Status = statusFailed
		item.Message = "Import failed"
		return item
	}

	item.ID = file.ID
	item.Status = statusImported
	return item
}
