package client

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwantia/s3offload/pkg/syncer"
)

func TestRunPagesFollowsCursor(t *testing.T) {
	var seen []syncer.Request
	page := func(_ context.Context, req syncer.Request) (*syncer.PageResult, error) {
		seen = append(seen, req)
		if len(seen) == 1 {
			return &syncer.PageResult{Total: 3, Processed: 2, Success: 2, NextAfter: 7}, nil
		}
		return &syncer.PageResult{Total: 3, Processed: 3, Success: 1, NextAfter: 9, Done: true}, nil
	}

	var out bytes.Buffer
	err := runPages(context.Background(), context.Background(), syncer.Request{Force: true}, page, &out, false)
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, syncer.Request{Force: true, AfterID: 7, Offset: 2}, seen[1])
	assert.Contains(t, out.String(), "Processed 3/3 (3 ok, 0 failed)")
}

func TestRunPagesFinishesPageOnInterrupt(t *testing.T) {
	interrupted, interrupt := context.WithCancel(context.Background())
	defer interrupt()

	calls := 0
	page := func(ctx context.Context, _ syncer.Request) (*syncer.PageResult, error) {
		calls++
		interrupt()
		// The page itself keeps a live context.
		require.NoError(t, ctx.Err())
		return &syncer.PageResult{Total: 10, Processed: 5, Success: 5, NextAfter: 5}, nil
	}

	var out bytes.Buffer
	err := runPages(context.Background(), interrupted, syncer.Request{}, page, &out, false)
	require.EqualError(t, err, "sync interrupted after 5 files")
	assert.Equal(t, 1, calls)
	assert.Contains(t, out.String(), "Processed 5/10 (5 ok, 0 failed)")
}

func TestRunPagesReportsFailures(t *testing.T) {
	page := func(context.Context, syncer.Request) (*syncer.PageResult, error) {
		return &syncer.PageResult{
			Total: 1, Processed: 1, Failed: 1, Done: true,
			Items: []syncer.Item{{ID: 1, Name: "a.png", Status: "failed", Message: syncer.MsgFileNotFound}},
		}, nil
	}

	var out bytes.Buffer
	err := runPages(context.Background(), context.Background(), syncer.Request{}, page, &out, true)
	require.EqualError(t, err, "1 files failed to sync")
	assert.Contains(t, out.String(), "a.png: File not found")
}
