package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock taken by DistributedLocker.Lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes turns on one document across processes sharing a store.
type DistributedLocker interface {
	// Lock takes the lock for a document ID, waiting until it is free or ctx is done.
	// The lease expires after ttl if the holder never unlocks, so a crashed replica
	// cannot block the document forever.
	Lock(ctx context.Context, docID string, ttl time.Duration) (UnlockFunc, error)
}
