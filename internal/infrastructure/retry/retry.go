package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pot-code/microcourse/internal/domain"
	"github.com/pot-code/microcourse/internal/infrastructure/driver"
	"github.com/pot-code/microcourse/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// Policy bounded exponential backoff for transient store failures
type Policy struct {
	Attempts        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy three attempts starting at 50ms
var DefaultPolicy = &Policy{
	Attempts:        3,
	InitialInterval: 50 * time.Millisecond,
	MaxInterval:     time.Second,
}

// Do run op until it succeeds, fails permanently or the attempts are used up.
//
// Only errors classified by driver.IsTransient are retried, once the budget is
// exhausted (or the caller's deadline hits) the error is wrapped in domain.ErrUnavailable
func Do[T any](ctx context.Context, policy *Policy, op func() (T, error)) (T, error) {
	if policy == nil {
		policy = DefaultPolicy
	}
	logger := logging.ExtractLoggerFromContext(ctx)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	if policy.MaxInterval > 0 {
		b.MaxInterval = policy.MaxInterval
	}

	attempt := 0
	res, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		res, err := op()
		if err == nil {
			return res, nil
		}
		if !driver.IsTransient(err) {
			return res, backoff.Permanent(err)
		}
		logger.Warn("transient store failure", zap.Int("retry.attempt", attempt), zap.Error(err))
		return res, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(policy.Attempts))

	if err != nil && (driver.IsTransient(err) || errors.Is(err, context.Canceled)) {
		var zero T
		return zero, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return res, err
}

// Exec same as Do for operations without a result
func Exec(ctx context.Context, policy *Policy, op func() error) error {
	_, err := Do(ctx, policy, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}
