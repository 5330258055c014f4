package keypool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/footbar/fulfillment/internal/pkg/distlock"
	"github.com/footbar/fulfillment/internal/pkg/logger"
)

// ErrNoKeyAvailable means the pool has no unused rows left. Terminal for
// the requesting line; nothing retries it automatically.
var ErrNoKeyAvailable = errors.New("no key available in pool")

// Allocator hands out one unused key at a time from a pool.
//
// The backing store only offers read-all/write-all, which is not atomic:
// two concurrent allocations could pick the same row before either writes
// back. All allocations for a pool are therefore serialized under a
// per-pool lock held across the whole read+mutate+write span. A LocalLocker
// covers the single-replica deployment; a RedisLocker extends the same
// guarantee across replicas sharing one store.
type Allocator struct {
	store  Store
	locker distlock.Locker
}

// NewAllocator creates an allocator over the given store and locker.
func NewAllocator(store Store, locker distlock.Locker) *Allocator {
	return &Allocator{store: store, locker: locker}
}

// Allocate finds the first unused key in the pool, marks it consumed with
// the consumer email, order id and timestamp, writes the pool back, and
// returns the key. Returns ErrNoKeyAvailable when the pool is exhausted.
func (a *Allocator) Allocate(ctx context.Context, poolID, email, orderID string) (string, error) {
	lock := a.locker.Lock("pool:" + poolID)
	if err := acquire(ctx, lock); err != nil {
		return "", fmt.Errorf("lock pool %s: %w", poolID, err)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("pool lock release failed", "pool", poolID, "error", err)
		}
	}()

	records, err := a.store.ReadAll(ctx, poolID)
	if err != nil {
		return "", err
	}

	idx := -1
	for i := range records {
		if !records[i].Used {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", fmt.Errorf("pool %s: %w", poolID, ErrNoKeyAvailable)
	}

	records[idx].Consume(email, orderID, time.Now())
	if err := a.store.WriteAll(ctx, poolID, records); err != nil {
		return "", fmt.Errorf("persist pool %s: %w", poolID, err)
	}

	logger.Info("key allocated",
		"pool", poolID,
		"key", logger.RedactKey(records[idx].Key),
		"email", email,
		"order_id", orderID,
		"remaining", CountUnused(records))
	return records[idx].Key, nil
}

// Unused returns the pool's current count of allocatable keys.
func (a *Allocator) Unused(ctx context.Context, poolID string) (int, error) {
	records, err := a.store.ReadAll(ctx, poolID)
	if err != nil {
		return 0, err
	}
	return CountUnused(records), nil
}

// acquire polls a try-lock until it is held or the context expires.
// Redis locks are non-blocking by nature; the poll interval keeps pool
// contention fair without hammering the backend.
func acquire(ctx context.Context, lock distlock.DistLock) error {
	for {
		ok, err := lock.Acquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
