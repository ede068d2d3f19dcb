// Package syncer uploads local files to buckets and records the outcome.
package syncer

import (
	"context"
	"errors"
	"mime"
	"os"
	"path"

	"github.com/mwantia/s3offload/pkg/apperr"
	"github.com/mwantia/s3offload/pkg/audit"
	"github.com/mwantia/s3offload/pkg/bucket"
	"github.com/mwantia/s3offload/pkg/db/models"
	"github.com/mwantia/s3offload/pkg/db/store"
	"github.com/mwantia/s3offload/pkg/log"
	"github.com/mwantia/s3offload/pkg/metrics"
	"github.com/mwantia/s3offload/pkg/resolver"
	"github.com/mwantia/s3offload/pkg/s3client"
	"github.com/mwantia/s3offload/pkg/settings"
)

const (
	MsgSynced        = "Synced successfully"
	MsgFileNotFound  = "File not found"
	MsgNoBucket      = "No bucket configured"
	MsgBucketMissing = "Bucket not found"
	MsgNoClient      = "Could not create S3 client"
	MsgRecordFailed  = "Failed to record offload"
)

// Item is the outcome for one file.
type Item struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Key     string `json:"key,omitempty"`
	Bucket  string `json:"bucket,omitempty"`

	kind apperr.Kind
}

func (i Item) Failed() bool {
	return i.Status == string(audit.StatusFailed)
}

// Err converts a failed item into a classified error.
func (i Item) Err() error {
	if !i.Failed() {
		return nil
	}
	return apperr.New(i.kind, i.Message)
}

type Engine struct {
	store    store.MetadataStore
	registry *bucket.Registry
	factory  s3client.Factory
	audit    *audit.Recorder
	locator  Locator
	log      log.LoggerService
}

func NewEngine(st store.MetadataStore, registry *bucket.Registry, factory s3client.Factory,
	recorder *audit.Recorder, locator Locator, logger log.LoggerService) *Engine {
	return &Engine{
		store:    st,
		registry: registry,
		factory:  factory,
		audit:    recorder,
		locator:  locator,
		log:      logger,
	}
}

// target is the bucket a file goes to, or the reason there is none.
type target struct {
	bucket *bucket.Config
	ref    bucket.Ref
	err    error
}

func (e *Engine) resolveTarget(ctx context.Context, id uint, s settings.Settings) target {
	var (
		b   *bucket.Config
		err error
	)
	if id > 0 {
		b, err = e.registry.Get(ctx, id)
	} else {
		b, err = e.registry.Default(ctx, s)
	}
	if err != nil {
		return target{ref: bucket.Persisted(id), err: err}
	}
	return target{bucket: b, ref: b.Ref()}
}

func (e *Engine) resolveByName(ctx context.Context, name string, s settings.Settings) target {
	if name == "" {
		return e.resolveTarget(ctx, 0, s)
	}
	b, err := e.registry.GetByName(ctx, name)
	if err != nil {
		return target{err: err}
	}
	return target{bucket: b, ref: b.Ref()}
}

// syncFile uploads one file and records the outcome. The offload metadata
// and the success entry are written in one transaction.
func (e *Engine) syncFile(ctx context.Context, file *models.File, t target, action audit.Action, s settings.Settings) Item {
	item := Item{ID: file.ID, Name: path.Base(file.Path)}

	abs := e.locator.AbsPath(file.Path)
	if info, err := os.Stat(abs); file.Path == "" || err != nil || info.IsDir() {
		return e.fail(ctx, item, t.ref, action, apperr.KindNotFound, MsgFileNotFound)
	}

	if t.err != nil {
		switch {
		case errors.Is(t.err, bucket.ErrNotFound):
			return e.fail(ctx, item, t.ref, action, apperr.KindNotFound, MsgBucketMissing)
		case errors.Is(t.err, bucket.ErrNoBucket):
			return e.fail(ctx, item, t.ref, action, apperr.KindConfiguration, MsgNoBucket)
		default:
			e.log.Error("Failed to resolve bucket for file %d: %v", file.ID, t.err)
			return e.fail(ctx, item, t.ref, action, apperr.KindInternal, MsgNoBucket)
		}
	}
	b := t.bucket

	client, err := e.factory.New(ctx, b.Connection(), s3client.Options{InsecureSkipVerify: s.DisableSSLVerify})
	if err != nil {
		e.log.Warn("Failed to create client for bucket '%s': %v", b.Name, err)
		return e.fail(ctx, item, t.ref, action, apperr.KindTransport, MsgNoClient)
	}

	key := resolver.DeriveKey(b.PathPrefix, file.Path)
	item.Key = key
	item.Bucket = b.Name

	_, err = client.PutObject(ctx, s3client.PutInput{
		Bucket:       b.Name,
		Key:          key,
		SourcePath:   abs,
		ContentType:  contentType(file),
		ACL:          s.ACL(),
		CacheControl: s.CacheControl,
		StorageClass: s.StorageClass,
	})
	if err != nil {
		e.log.Warn("Failed to upload file %d to '%s': %v", file.ID, b.Name, err)
		return e.fail(ctx, item, t.ref, action, apperr.KindTransport, s3client.Describe(err, b.AccessKey, b.SecretKey))
	}

	err = e.store.Transaction(ctx, func(tx store.MetadataStore) error {
		if err := tx.MarkFileOffloaded(ctx, file.ID, t.ref.Ptr(), b.Name, key); err != nil {
			return err
		}
		return e.audit.With(tx).Record(ctx, file.ID, t.ref, action, audit.StatusSuccess, "")
	})
	if err != nil {
		e.log.Error("Uploaded file %d but failed to record it: %v", file.ID, err)
		return e.fail(ctx, item, t.ref, action, apperr.KindInternal, MsgRecordFailed)
	}

	file.Offloaded = true
	file.BucketID = t.ref.Ptr()
	file.BucketName = b.Name
	file.RemoteKey = key

	if s.DeleteLocalAfterOffload {
		if err := os.Remove(abs); err != nil {
			e.log.Warn("Failed to delete local copy of file %d: %v", file.ID, err)
		}
	}

	metrics.RecordSyncFile(string(action), true)
	e.log.Debug("Synced file %d to '%s' as '%s'", file.ID, b.Name, key)

	item.Status = string(audit.StatusSuccess)
	item.Message = MsgSynced
	return item
}

func (e *Engine) fail(ctx context.Context, item Item, ref bucket.Ref, action audit.Action, kind apperr.Kind, msg string) Item {
	if err := e.audit.Record(ctx, item.ID, ref, action, audit.StatusFailed, msg); err != nil {
		e.log.Error("%v", err)
	}
	metrics.RecordSyncFile(string(action), false)

	item.Status = string(audit.StatusFailed)
	item.Message = msg
	item.kind = kind
	return item
}

func contentType(file *models.File) string {
	if file.MimeType != "" {
		return file.MimeType
	}
	if t := mime.TypeByExtension(path.Ext(file.Path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
