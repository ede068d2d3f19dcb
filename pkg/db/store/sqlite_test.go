package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwantia/s3offload/pkg/db/models"
	"github.com/mwantia/s3offload/pkg/db/store"
	"github.com/mwantia/s3offload/pkg/db/store/storetest"
)

func TestListBucketsOrdering(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)

	for _, b := range []models.Bucket{
		{Name: "zeta", Label: "Zeta", IsActive: true},
		{Name: "alpha", Label: "Alpha", IsActive: false},
		{Name: "main", Label: "Main", IsActive: true, IsDefault: true},
	} {
		b := b
		require.NoError(t, st.CreateBucket(ctx, &b))
	}

	all, err := st.ListBuckets(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"main", "alpha", "zeta"}, []string{all[0].Name, all[1].Name, all[2].Name})

	active, err := st.ListBuckets(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestSyncCandidatesKeysetAndOffset(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, st.CreateFile(ctx, &models.File{Path: "a.txt", Offloaded: i == 1}))
	}

	page, total, err := st.ListSyncCandidates(ctx, models.CandidateQuery{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, page, 2)
	assert.EqualValues(t, 1, page[0].ID)
	assert.EqualValues(t, 3, page[1].ID)

	page, total, err = st.ListSyncCandidates(ctx, models.CandidateQuery{AfterID: 3, Offset: 2, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, page, 2)
	assert.EqualValues(t, 4, page[0].ID)

	page, total, err = st.ListSyncCandidates(ctx, models.CandidateQuery{Force: true, Offset: 4, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, page, 1)
	assert.EqualValues(t, 5, page[0].ID)
}

func TestMarkFileOffloadedAndLookupByKey(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)

	file := &models.File{Path: "2024/07/photo.jpg"}
	require.NoError(t, st.CreateFile(ctx, file))

	id := uint(7)
	require.NoError(t, st.MarkFileOffloaded(ctx, file.ID, &id, "media1", "uploads/2024/07/photo.jpg"))

	found, err := st.FindFileByRemoteKey(ctx, "uploads/2024/07/photo.jpg")
	require.NoError(t, err)
	assert.True(t, found.Offloaded)
	require.NotNil(t, found.BucketID)
	assert.EqualValues(t, 7, *found.BucketID)

	require.NoError(t, st.MarkFileOffloaded(ctx, file.ID, nil, "virtual", "k"))
	found, err = st.GetFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Nil(t, found.BucketID)

	_, err = st.FindFileByRemoteKey(ctx, "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.ErrorIs(t, st.MarkFileOffloaded(ctx, 999, nil, "x", "y"), store.ErrNotFound)
}

func TestTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)

	boom := errors.New("boom")
	err := st.Transaction(ctx, func(tx store.MetadataStore) error {
		if err := tx.CreateBucket(ctx, &models.Bucket{Name: "tmp", Label: "tmp", IsActive: true}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = st.GetBucketByName(ctx, "tmp")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSettingsAndSyncLogs(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)

	require.NoError(t, st.PutSetting(ctx, "offload", `{"enabled":true}`))
	require.NoError(t, st.PutSetting(ctx, "offload", `{"enabled":false}`))
	setting, err := st.GetSetting(ctx, "offload")
	require.NoError(t, err)
	assert.Equal(t, `{"enabled":false}`, setting.Value)

	bucketID := uint(3)
	require.NoError(t, st.CreateSyncLog(ctx, &models.SyncLog{FileID: 1, BucketID: &bucketID, Action: "manual_sync", Status: "success"}))
	require.NoError(t, st.CreateSyncLog(ctx, &models.SyncLog{FileID: 1, Action: "discover", Status: "failed"}))

	logs, err := st.ListSyncLogs(ctx, models.SyncLogFilter{FileID: 1})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "discover", logs[0].Action)
	assert.WithinDuration(t, time.Now(), logs[0].SyncedAt, time.Minute)

	logs, err = st.ListSyncLogs(ctx, models.SyncLogFilter{BucketID: &bucketID})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
