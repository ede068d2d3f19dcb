// Package bucket owns the bucket registry and resolves which bucket an
// operation targets.
package bucket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mwantia/s3offload/pkg/apperr"
	"github.com/mwantia/s3offload/pkg/db/models"
	"github.com/mwantia/s3offload/pkg/db/store"
	"github.com/mwantia/s3offload/pkg/log"
	"github.com/mwantia/s3offload/pkg/settings"
)

var (
	ErrNotFound  = apperr.NotFound("Bucket not found")
	ErrNoBucket  = apperr.Configuration("No bucket configured")
	ErrDuplicate = apperr.Validation("A bucket with this name already exists")
)

// Registry is the only writer of bucket rows.
type Registry struct {
	store store.MetadataStore
	log   log.LoggerService
}

func NewRegistry(st store.MetadataStore, logger log.LoggerService) *Registry {
	return &Registry{
		store: st,
		log:   logger,
	}
}

// List returns buckets ordered default first, then by label.
func (r *Registry) List(ctx context.Context, activeOnly bool) ([]Config, error) {
	rows, err := r.store.ListBuckets(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	out := make([]Config, 0, len(rows))
	for i := range rows {
		out = append(out, *fromModel(&rows[i]))
	}
	return out, nil
}

func (r *Registry) Get(ctx context.Context, id uint) (*Config, error) {
	if id == 0 {
		return nil, ErrNotFound
	}
	row, err := r.store.GetBucket(ctx, id)
	if err != nil {
		return nil, lookupErr(err)
	}
	return fromModel(row), nil
}

func (r *Registry) GetByName(ctx context.Context, name string) (*Config, error) {
	row, err := r.store.GetBucketByName(ctx, name)
	if err != nil {
		return nil, lookupErr(err)
	}
	return fromModel(row), nil
}

func lookupErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("failed to load bucket: %w", err)
}

// Default resolves the bucket used when none is named: the active default,
// then any active bucket, then the virtual bucket from settings. ErrNoBucket
// means offloading is unavailable.
func (r *Registry) Default(ctx context.Context, s settings.Settings) (*Config, error) {
	row, err := r.store.GetDefaultBucket(ctx)
	if errors.Is(err, store.ErrNotFound) {
		row, err = r.store.GetFirstActiveBucket(ctx)
	}
	switch {
	case err == nil:
		return fromModel(row), nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("failed to resolve default bucket: %w", err)
	}

	if virtual := FromSettings(s); virtual != nil {
		return virtual, nil
	}
	return nil, ErrNoBucket
}

// Resolve turns a stored reference back into a bucket.
func (r *Registry) Resolve(ctx context.Context, ref Ref, s settings.Settings) (*Config, error) {
	if ref.IsVirtual() {
		if virtual := FromSettings(s); virtual != nil {
			return virtual, nil
		}
		return nil, ErrNotFound
	}
	id, ok := ref.ID()
	if !ok {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *Registry) Add(ctx context.Context, in Input) (*Config, error) {
	in.Normalize()
	if err := in.Validate(true); err != nil {
		return nil, err
	}

	row := in.model()
	err := r.store.Transaction(ctx, func(tx store.MetadataStore) error {
		if _, err := tx.GetBucketByName(ctx, row.Name); err == nil {
			return ErrDuplicate
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		if row.IsDefault {
			if err := tx.ClearDefaultBuckets(ctx); err != nil {
				return err
			}
		}
		return tx.CreateBucket(ctx, row)
	})
	if err != nil {
		return nil, mutationErr("create", err)
	}

	r.log.Info("Added bucket '%s' (id %d)", row.Name, row.ID)
	return fromModel(row), nil
}

// Update replaces every field except the name, which is immutable.
func (r *Registry) Update(ctx context.Context, id uint, in Input) (*Config, error) {
	in.Normalize()
	if err := in.Validate(false); err != nil {
		return nil, err
	}

	var row *models.Bucket
	err := r.store.Transaction(ctx, func(tx store.MetadataStore) error {
		current, err := tx.GetBucket(ctx, id)
		if err != nil {
			return lookupErr(err)
		}

		in.apply(current)
		if current.IsDefault {
			if err := tx.ClearDefaultBuckets(ctx); err != nil {
				return err
			}
		}
		row = current
		return tx.UpdateBucket(ctx, current)
	})
	if err != nil {
		return nil, mutationErr("update", err)
	}

	r.log.Info("Updated bucket '%s' (id %d)", row.Name, row.ID)
	return fromModel(row), nil
}

// Remove deletes the registry row. Remote objects are left untouched.
func (r *Registry) Remove(ctx context.Context, id uint) error {
	if err := r.store.DeleteBucket(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete bucket: %w", err)
	}

	r.log.Info("Removed bucket %d", id)
	return nil
}

// SetDefault promotes the bucket, clearing the previous default in the same
// transaction.
func (r *Registry) SetDefault(ctx context.Context, id uint) (*Config, error) {
	var row *models.Bucket
	err := r.store.Transaction(ctx, func(tx store.MetadataStore) error {
		current, err := tx.GetBucket(ctx, id)
		if err != nil {
			return lookupErr(err)
		}
		if err := tx.ClearDefaultBuckets(ctx); err != nil {
			return err
		}

		current.IsDefault = true
		row = current
		return tx.UpdateBucket(ctx, current)
	})
	if err != nil {
		return nil, mutationErr("promote", err)
	}

	r.log.Info("Bucket '%s' is now the default", row.Name)
	return fromModel(row), nil
}

// MarkSynced records the last discovery or sync time. The virtual bucket
// has no row to update.
func (r *Registry) MarkSynced(ctx context.Context, ref Ref, at time.Time) error {
	id, ok := ref.ID()
	if !ok {
		return nil
	}
	if err := r.store.UpdateBucketLastSync(ctx, id, at); err != nil {
		return fmt.Errorf("failed to update last sync of bucket %d: %w", id, err)
	}
	return nil
}

// Contains reports whether the file is offloaded to the persisted bucket.
func (r *Registry) Contains(ctx context.Context, fileID, bucketID uint) (bool, error) {
	file, err := r.store.GetFile(ctx, fileID)
	if errors.Is(err, store.ErrNotFound) {
		return false, apperr.NotFound("File not found")
	}
	if err != nil {
		return false, fmt.Errorf("failed to load file %d: %w", fileID, err)
	}
	return file.Offloaded && file.BucketID != nil && *file.BucketID == bucketID, nil
}

func mutationErr(op string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("failed to %s bucket: %w", op, err)
}
