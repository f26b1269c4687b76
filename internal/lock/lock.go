package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kiranaledger/backend/internal/store"
)

const (
	acquireAttempts = 3
	retryDelay      = 100 * time.Millisecond
)

// Locker serializes work on one key, such as a purchase id, across callers.
// A busy key surfaces as store.ErrConflict after a few short retries.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// LocalLocker is an in-process Locker for single-replica and test setups.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time)}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	for attempt := 0; attempt < acquireAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, retryDelay); err != nil {
				return nil, err
			}
		}
		if token, ok := l.tryAcquire(key, ttl); ok {
			return func() { l.release(key, token) }, nil
		}
	}
	return nil, busy(key)
}

func (l *LocalLocker) tryAcquire(key string, ttl time.Duration) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if expiry, ok := l.held[key]; ok && now.Before(expiry) {
		return time.Time{}, false
	}
	expiry := now.Add(ttl)
	l.held[key] = expiry
	return expiry, true
}

// release only drops the key if it still carries this holder's expiry, so an
// expired holder cannot free a lock someone else has since taken.
func (l *LocalLocker) release(key string, token time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if expiry, ok := l.held[key]; ok && expiry.Equal(token) {
		delete(l.held, key)
	}
}

func busy(key string) error {
	return fmt.Errorf("%s is busy, retry shortly: %w", key, store.ErrConflict)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PurchaseKey is the lock key guarding edits of one purchase.
func PurchaseKey(purchaseID string) string {
	return "lock:purchase:" + purchaseID
}
