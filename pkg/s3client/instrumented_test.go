package s3client

import (
	"context"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwantia/s3offload/pkg/log"
)

// scriptedClient fails PutObject with the queued errors, then succeeds.
type scriptedClient struct {
	Client
	errs  []error
	calls int
}

func (c *scriptedClient) PutObject(_ context.Context, _ PutInput) (int64, error) {
	c.calls++
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		return 0, err
	}
	return 42, nil
}

func newScripted(errs ...error) (*scriptedClient, *instrumented) {
	inner := &scriptedClient{errs: errs}
	return inner, &instrumented{
		client:   inner,
		provider: "custom",
		log:      log.NewDiscardLogger(),
		backoff:  func() backoff.BackOff { return &backoff.ZeroBackOff{} },
	}
}

func slowDown() error {
	return &smithy.GenericAPIError{Code: "SlowDown", Message: "reduce your request rate"}
}

func TestPutObjectRetriesTemporaryErrors(t *testing.T) {
	inner, client := newScripted(slowDown(), slowDown())

	n, err := client.PutObject(context.Background(), PutInput{Bucket: "media1", Key: "a.jpg"})
	require.NoError(t, err)
	assert.EqualValues(t, 42, n)
	assert.Equal(t, 3, inner.calls)
}

func TestPutObjectGivesUpAfterMaxRetries(t *testing.T) {
	inner, client := newScripted(slowDown(), slowDown(), slowDown())

	_, err := client.PutObject(context.Background(), PutInput{Bucket: "media1", Key: "a.jpg"})
	require.Error(t, err)
	assert.Equal(t, "SlowDown", Code(err))
	assert.Equal(t, maxUploadRetries+1, inner.calls)
}

func TestPutObjectDoesNotRetryPermanentErrors(t *testing.T) {
	inner, client := newScripted(&smithy.GenericAPIError{Code: "AccessDenied"})

	_, err := client.PutObject(context.Background(), PutInput{Bucket: "media1", Key: "a.jpg"})
	require.Error(t, err)
	assert.Equal(t, "AccessDenied", Code(err))
	assert.Equal(t, 1, inner.calls)
}

func TestPutObjectStopsWhenContextIsDone(t *testing.T) {
	inner, client := newScripted(slowDown(), slowDown())

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := client.PutObject(ctx, PutInput{Bucket: "media1", Key: "a.jpg"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, inner.calls)
}
