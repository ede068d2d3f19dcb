package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mwantia/s3offload/pkg/db/migrations"
	"github.com/mwantia/s3offload/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteStore implements MetadataStore using SQLite
type SQLiteStore struct {
	db   *gorm.DB
	path string
}

// DB returns the underlying GORM database instance
func (s *SQLiteStore) DB() *gorm.DB {
	return s.db
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path     string
	LogLevel logger.LogLevel
}

// ParseLogLevel maps the metadata.log_level setting onto gorm's levels.
func ParseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return logger.Error
	case "warn", "warning":
		return logger.Warn
	case "info", "debug":
		return logger.Info
	default:
		return logger.Silent
	}
}

// NewSQLiteStore creates a new SQLite-backed metadata store
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	// Default to silent logging
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Silent
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(cfg.LogLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// SQLite only supports 1 writer; a single connection also keeps
	// ":memory:" databases alive across calls.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	return &SQLiteStore{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Connect verifies the database connection
func (s *SQLiteStore) Connect(ctx context.Context) error {
	return s.Health(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return migrations.NewMigrator(s.db).Migrate(ctx)
}

// Health checks database connectivity
func (s *SQLiteStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLiteStore) Transaction(ctx context.Context, fn func(tx MetadataStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&SQLiteStore{db: tx, path: s.path})
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Bucket operations

func (s *SQLiteStore) CreateBucket(ctx context.Context, bucket *models.Bucket) error {
	return s.db.WithContext(ctx).Create(bucket).Error
}

func (s *SQLiteStore) GetBucket(ctx context.Context, id uint) (*models.Bucket, error) {
	var bucket models.Bucket
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&bucket).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &bucket, nil
}

func (s *SQLiteStore) GetBucketByName(ctx context.Context, name string) (*models.Bucket, error) {
	var bucket models.Bucket
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&bucket).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &bucket, nil
}

func (s *SQLiteStore) GetDefaultBucket(ctx context.Context) (*models.Bucket, error) {
	var bucket models.Bucket
	err := s.db.WithContext(ctx).
		Where("is_default = ? AND is_active = ?", true, true).
		Order("id ASC").
		First(&bucket).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &bucket, nil
}

func (s *SQLiteStore) GetFirstActiveBucket(ctx context.Context) (*models.Bucket, error) {
	var bucket models.Bucket
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		First(&bucket).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &bucket, nil
}

func (s *SQLiteStore) ListBuckets(ctx context.Context, activeOnly bool) ([]models.Bucket, error) {
	var buckets []models.Bucket
	query := s.db.WithContext(ctx)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("is_default DESC").Order("label ASC").Find(&buckets).Error
	return buckets, err
}

func (s *SQLiteStore) UpdateBucket(ctx context.Context, bucket *models.Bucket) error {
	return s.db.WithContext(ctx).Save(bucket).Error
}

func (s *SQLiteStore) ClearDefaultBuckets(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Model(&models.Bucket{}).
		Where("is_default = ?", true).
		Update("is_default", false).Error
}

func (s *SQLiteStore) UpdateBucketLastSync(ctx context.Context, id uint, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.Bucket{}).
		Where("id = ?", id).
		Update("last_sync_at", at).Error
}

func (s *SQLiteStore) DeleteBucket(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Bucket{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// File operations

func (s *SQLiteStore) CreateFile(ctx context.Context, file *models.File) error {
	return s.db.WithContext(ctx).Create(file).Error
}

func (s *SQLiteStore) GetFile(ctx context.Context, id uint) (*models.File, error) {
	var file models.File
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&file).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &file, nil
}

func (s *SQLiteStore) FindFileByRemoteKey(ctx context.Context, key string) (*models.File, error) {
	var file models.File
	err := s.db.WithContext(ctx).
		Where("remote_key = ?", key).
		Order("id ASC").
		First(&file).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &file, nil
}

func (s *SQLiteStore) ListFiles(ctx context.Context, filter models.FileFilter) ([]models.File, error) {
	var files []models.File
	query := s.db.WithContext(ctx).Model(&models.File{})

	if filter.LocalOnly {
		query = query.Where("offloaded = ?", false)
	} else if filter.BucketID != nil {
		query = query.Where("bucket_id = ?", *filter.BucketID)
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	err := query.Order("id ASC").Find(&files).Error
	return files, err
}

func (s *SQLiteStore) candidates(ctx context.Context, query models.CandidateQuery) *gorm.DB {
	db := s.db.WithContext(ctx).Model(&models.File{})
	if !query.Force {
		db = db.Where("offloaded = ?", false)
	}
	if query.AfterID > 0 {
		db = db.Where("id > ?", query.AfterID)
	}
	return db
}

func (s *SQLiteStore) ListSyncCandidates(ctx context.Context, query models.CandidateQuery) ([]models.File, int64, error) {
	var total int64
	if err := s.candidates(ctx, query).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count sync candidates: %w", err)
	}

	page := s.candidates(ctx, query).Order("id ASC")
	if query.Limit > 0 {
		page = page.Limit(query.Limit)
	}
	if query.AfterID == 0 && query.Offset > 0 {
		page = page.Offset(query.Offset)
	}

	var files []models.File
	if err := page.Find(&files).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to query sync candidates: %w", err)
	}
	return files, total, nil
}

func (s *SQLiteStore) CountFiles(ctx context.Context) (int64, int64, error) {
	var total, offloaded int64
	if err := s.db.WithContext(ctx).Model(&models.File{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err := s.db.WithContext(ctx).Model(&models.File{}).Where("offloaded = ?", true).Count(&offloaded).Error; err != nil {
		return 0, 0, err
	}
	return total, offloaded, nil
}

func (s *SQLiteStore) MarkFileOffloaded(ctx context.Context, id uint, bucketID *uint, bucketName, key string) error {
	result := s.db.WithContext(ctx).
		Model(&models.File{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"offloaded":   true,
			"bucket_id":   bucketID,
			"bucket_name": bucketName,
			"remote_key":  key,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Sync log operations

func (s *SQLiteStore) CreateSyncLog(ctx context.Context, entry *models.SyncLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *SQLiteStore) ListSyncLogs(ctx context.Context, filter models.SyncLogFilter) ([]models.SyncLog, error) {
	var entries []models.SyncLog
	query := s.db.WithContext(ctx)

	if filter.FileID > 0 {
		query = query.Where("file_id = ?", filter.FileID)
	}
	if filter.BucketID != nil {
		query = query.Where("bucket_id = ?", *filter.BucketID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	err := query.Order("id DESC").Find(&entries).Error
	return entries, err
}

// Setting operations

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	var setting models.Setting
	err := s.db.WithContext(ctx).Where("setting_key = ?", key).First(&setting).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &setting, nil
}

func (s *SQLiteStore) PutSetting(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var setting models.Setting
		err := tx.Where("setting_key = ?", key).First(&setting).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&models.Setting{Key: key, Value: value}).Error
		}
		if err != nil {
			return err
		}
		setting.Value = value
		return tx.Save(&setting).Error
	})
}
