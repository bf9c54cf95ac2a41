package driver

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound key is absent or expired
var ErrKeyNotFound = errors.New("key not found")

// KeyValueDB define a key-value storage interface
type KeyValueDB interface {
	SetEX(ctx context.Context, key string, value string, expiration time.Duration) error
	// Get returns ErrKeyNotFound if key doesn't exist
	Get(ctx context.Context, key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	// Incr increments the integer at key, a missing key counts as 0
	Incr(ctx context.Context, key string) (int64, error)
	Ping(ctx context.Context) error
}
