package discovery_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwantia/s3offload/pkg/apperr"
	"github.com/mwantia/s3offload/pkg/audit"
	"github.com/mwantia/s3offload/pkg/bucket"
	"github.com/mwantia/s3offload/pkg/db/models"
	"github.com/mwantia/s3offload/pkg/db/store"
	"github.com/mwantia/s3offload/pkg/db/store/storetest"
	"github.com/mwantia/s3offload/pkg/discovery"
	"github.com/mwantia/s3offload/pkg/log"
	"github.com/mwantia/s3offload/pkg/s3client/s3test"
	"github.com/mwantia/s3offload/pkg/settings"
)

type fixture struct {
	ctx     context.Context
	store   *store.SQLiteStore
	factory *s3test.Factory
	engine  *discovery.Engine
	bucket  *bucket.Config
	reg     *bucket.Registry
}

func setup(t *testing.T) *fixture {
	st := storetest.New(t)
	logger := log.NewDiscardLogger()
	registry := bucket.NewRegistry(st, logger)
	factory := s3test.NewFactory("media1")

	cfg, err := registry.Add(context.Background(), bucket.Input{
		Name:       "media1",
		AccessKey:  "minio",
		SecretKey:  "minio123",
		Endpoint:   "http://localhost:9000",
		PathPrefix: "uploads",
	})
	require.NoError(t, err)

	return &fixture{
		ctx:     context.Background(),
		store:   st,
		factory: factory,
		engine:  discovery.NewEngine(st, registry, factory, audit.NewRecorder(st), logger),
		bucket:  cfg,
		reg:     registry,
	}
}

func TestDiscoverTwiceSkipsExisting(t *testing.T) {
	f := setup(t)
	f.factory.AddObject("media1", "uploads/a.jpg", 10)
	f.factory.AddObject("media1", "uploads/b.png", 20)
	f.factory.AddObject("media1", "uploads/docs/", 0)
	f.factory.AddObject("media1", "other/c.jpg", 30)

	req := discovery.Request{BucketID: f.bucket.ID, SkipExisting: true}

	first, err := f.engine.Discover(f.ctx, req, settings.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Found)
	assert.Equal(t, 2, first.Imported)
	assert.Zero(t, first.Skipped)
	require.Len(t, first.Items, 2)

	second, err := f.engine.Discover(f.ctx, req, settings.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Found)
	assert.Zero(t, second.Imported)
	assert.Equal(t, 2, second.Skipped)

	file, err := f.store.FindFileByRemoteKey(f.ctx, "uploads/a.jpg")
	require.NoError(t, err)
	assert.True(t, file.Offloaded)
	assert.True(t, file.Discovered)
	assert.Equal(t, "a.jpg", file.Title)
	assert.Equal(t, "image/jpeg", file.MimeType)
	assert.EqualValues(t, 10, file.Size)
	assert.Equal(t, f.bucket.ID, *file.BucketID)

	entries, err := f.store.ListSyncLogs(f.ctx, models.SyncLogFilter{Action: "discover"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	got, err := f.reg.Get(f.ctx, f.bucket.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastSyncAt)
}

func TestDiscoverWithoutSkipImportsDuplicates(t *testing.T) {
	f := setup(t)
	f.factory.AddObject("media1", "uploads/a.jpg", 10)

	req := discovery.Request{BucketID: f.bucket.ID}
	for range 2 {
		result, err := f.engine.Discover(f.ctx, req, settings.Defaults())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Imported)
	}
}

func TestDiscoverBoundedPages(t *testing.T) {
	f := setup(t)
	for _, k := range []string{"uploads/1", "uploads/2", "uploads/3"} {
		f.factory.AddObject("media1", k, 1)
	}

	result, err := f.engine.Discover(f.ctx, discovery.Request{BucketID: f.bucket.ID, MaxKeys: 2}, settings.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.True(t, result.Truncated)
	require.NotEmpty(t, result.NextToken)

	result, err = f.engine.Discover(f.ctx, discovery.Request{
		BucketID:          f.bucket.ID,
		MaxKeys:           2,
		ContinuationToken: result.NextToken,
	}, settings.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.False(t, result.Truncated)
}

func TestDiscoverErrors(t *testing.T) {
	f := setup(t)

	_, err := f.engine.Discover(f.ctx, discovery.Request{}, settings.Defaults())
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.engine.Discover(f.ctx, discovery.Request{BucketID: 99}, settings.Defaults())
	assert.ErrorIs(t, err, bucket.ErrNotFound)

	f.factory.ListErr = errors.New("dial tcp: connection refused")
	_, err = f.engine.Discover(f.ctx, discovery.Request{BucketID: f.bucket.ID}, settings.Defaults())
	assert.Equal(t, apperr.KindTransport, apperr.KindOf(err))

	f.factory.ListErr = nil
	f.factory.NewErr = errors.New("boom")
	_, err = f.engine.Discover(f.ctx, discovery.Request{BucketID: f.bucket.ID}, settings.Defaults())
	assert.Equal(t, "Could not create S3 client", apperr.Message(err, ""))
}

// failingStore rejects CreateFile for a single remote key, inside and
// outside transactions.
type failingStore struct {
	store.MetadataStore
	key string
}

func (s *failingStore) CreateFile(ctx context.Context, file *models.File) error {
	if file.RemoteKey == s.key {
		return errors.New("disk I/O error")
	}
	return s.MetadataStore.CreateFile(ctx, file)
}

func (s *failingStore) Transaction(ctx context.Context, fn func(tx store.MetadataStore) error) error {
	return s.MetadataStore.Transaction(ctx, func(tx store.MetadataStore) error {
		return fn(&failingStore{MetadataStore: tx, key: s.key})
	})
}

func TestDiscoverContinuesAfterImportFailure(t *testing.T) {
	f := setup(t)
	for _, key := range []string{"uploads/a.jpg", "uploads/bad.jpg", "uploads/c.jpg"} {
		f.factory.AddObject("media1", key, 5)
	}

	wrapped := &failingStore{MetadataStore: f.store, key: "uploads/bad.jpg"}
	engine := discovery.NewEngine(wrapped, f.reg, f.factory, audit.NewRecorder(wrapped), log.NewDiscardLogger())

	result, err := engine.Discover(f.ctx, discovery.Request{BucketID: f.bucket.ID, SkipExisting: true}, settings.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Found)
	assert.Equal(t, 2, result.Imported)
	assert.Zero(t, result.Skipped)
	assert.Equal(t, 1, result.Failed)

	require.Len(t, result.Items, 3)
	assert.Equal(t, "failed", result.Items[1].Status)
	assert.Equal(t, "uploads/bad.jpg", result.Items[1].Key)

	_, err = f.store.FindFileByRemoteKey(f.ctx, "uploads/bad.jpg")
	assert.ErrorIs(t, err, store.ErrNotFound)

	entries, err := f.store.ListSyncLogs(f.ctx, models.SyncLogFilter{Action: "discover"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
