package port

import (
	"context"
	"time"
)

type CacheRepository interface {
	// Get returns the stored value and whether the key exists
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key with the given ttl
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// TryLock waits up to wait for the named lock and holds it for at most hold.
	// ok is false when the wait budget runs out.
	TryLock(ctx context.Context, name string, wait, hold time.Duration) (token string, ok bool, err error)

	// Unlock releases the lock only if it is still owned by token
	Unlock(ctx context.Context, name, token string) error
}
