// Package lock provides distributed and local locking abstractions.
// For single-node deployments, memory-based locks are used.
// For multi-instance deployments, Redis-based locks keep background jobs
// such as the OTP sweeper from running on every instance at once.
package lock

import (
	"context"
	"time"
)

// Locker defines the interface for distributed/local locking.
// Each Locker instance acts as one owner: it can only release or extend
// locks it acquired itself.
type Locker interface {
	// Acquire attempts to acquire a lock.
	// Returns true if the lock was acquired, false if it's held by another owner.
	// The lock will automatically expire after the specified TTL.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release releases a lock.
	// Returns true if the lock was released, false if this owner didn't hold it.
	Release(ctx context.Context, key string) (bool, error)

	// Extend extends the TTL of a held lock.
	// Returns true if the lock was extended, false if this owner doesn't hold it.
	Extend(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// AcquireWithRetry attempts to acquire a lock up to maxRetries+1 times,
// waiting retryDelay between attempts.
func AcquireWithRetry(ctx context.Context, l Locker, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	for i := 0; i <= maxRetries; i++ {
		acquired, err := l.Acquire(ctx, key, ttl)
		if err != nil {
			return false, err
		}
		if acquired {
			return true, nil
		}

		// Don't sleep on the last attempt.
		if i < maxRetries {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	return false, nil
}

// =============================================================================
// Common Lock Keys
// =============================================================================

// Keys provides lock key generation for common scenarios.
var Keys = lockKeys{}

type lockKeys struct{}

// OTPSweep returns the lock key for the expired OTP sweeper.
func (lockKeys) OTPSweep() string {
	return "lock:sweep:otp"
}
