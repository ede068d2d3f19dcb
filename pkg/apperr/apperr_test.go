package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindAndMessageThroughWrapping(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("discover: %w", Transport("Could not create S3 client", cause))

	assert.Equal(t, KindTransport, KindOf(err))
	assert.Equal(t, "Could not create S3 client", Message(err, "internal error"))
	assert.ErrorIs(t, err, cause)
}

func TestUnclassifiedErrorsCollapse(t *testing.T) {
	err := errors.New("sql: database is locked")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "internal error", Message(err, "internal error"))
}
