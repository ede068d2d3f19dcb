package store

import (
	"context"
	"errors"
	"time"

	"github.com/mwantia/s3offload/pkg/db/models"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("record not found")

// MetadataStore defines the interface for database operations
type MetadataStore interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	Health(ctx context.Context) error

	// Transaction runs fn against a store bound to a single database
	// transaction. Returning an error from fn rolls everything back.
	Transaction(ctx context.Context, fn func(tx MetadataStore) error) error

	// Bucket operations
	CreateBucket(ctx context.Context, bucket *models.Bucket) error
	GetBucket(ctx context.Context, id uint) (*models.Bucket, error)
	GetBucketByName(ctx context.Context, name string) (*models.Bucket, error)
	GetDefaultBucket(ctx context.Context) (*models.Bucket, error)
	GetFirstActiveBucket(ctx context.Context) (*models.Bucket, error)
	ListBuckets(ctx context.Context, activeOnly bool) ([]models.Bucket, error)
	UpdateBucket(ctx context.Context, bucket *models.Bucket) error
	ClearDefaultBuckets(ctx context.Context) error
	UpdateBucketLastSync(ctx context.Context, id uint, at time.Time) error
	DeleteBucket(ctx context.Context, id uint) error

	// File operations
	CreateFile(ctx context.Context, file *models.File) error
	GetFile(ctx context.Context, id uint) (*models.File, error)
	FindFileByRemoteKey(ctx context.Context, key string) (*models.File, error)
	ListFiles(ctx context.Context, filter models.FileFilter) ([]models.File, error)
	ListSyncCandidates(ctx context.Context, query models.CandidateQuery) ([]models.File, int64, error)
	CountFiles(ctx context.Context) (total int64, offloaded int64, err error)
	MarkFileOffloaded(ctx context.Context, id uint, bucketID *uint, bucketName, key string) error

	// Sync log operations (append-only)
	CreateSyncLog(ctx context.Context, entry *models.SyncLog) error
	ListSyncLogs(ctx context.Context, filter models.SyncLogFilter) ([]models.SyncLog, error)

	// Setting operations
	GetSetting(ctx context.Context, key string) (*models.Setting, error)
	PutSetting(ctx context.Context, key, value string) error
}
