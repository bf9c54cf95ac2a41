package retry

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/pot-code/microcourse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPolicy = &Policy{
	Attempts:        3,
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
}

func TestDo_RecoversFromTransientFailure(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, driver.ErrBadConn
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestDo_SurfacesUnavailableAfterBudget(t *testing.T) {
	calls := 0
	err := Exec(context.Background(), fastPolicy, func() error {
		calls++
		return context.DeadlineExceeded
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnavailable))
	assert.Equal(t, 3, calls)
}

func TestDo_DoesNotRetrySemanticErrors(t *testing.T) {
	calls := 0
	err := Exec(context.Background(), fastPolicy, func() error {
		calls++
		return domain.ErrNotFound
	})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.False(t, errors.Is(err, domain.ErrUnavailable))
	assert.Equal(t, 1, calls)
}
