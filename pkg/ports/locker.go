package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock obtained from a DistributedLocker.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes playback commands for one session across
// replicas, so two hosts never drive the same controller concurrently.
type DistributedLocker interface {
	// Lock blocks until the lock for key (a session ID) is held or ctx ends.
	// The lock expires after ttl if the holder never releases it.
	// The returned UnlockFunc must be called exactly once.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
