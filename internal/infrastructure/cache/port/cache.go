package port

import (
	"context"
	"errors"
	"time"
)

// ErrMiss distinguishes an absent key from a transport failure.
var ErrMiss = errors.New("cache: miss")

// Cache is the key-value contract the application sees. Values are plain
// strings; serialization stays with the caller. Implementations must be safe
// for concurrent use.
type Cache interface {
	// Get returns the value for key, or ErrMiss when the key is absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key. A zero or negative TTL means no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Del removes the given keys and reports how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}
