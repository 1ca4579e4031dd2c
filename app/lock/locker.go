// Package lock provides advisory locks built on one timeout-driven retry
// engine: file locks (plain, reentrant, temporary and PID files), a bounded
// semaphore over lock files, a Redis pubsub lock and a MySQL named lock.
//
// Every lock follows the same contract. Acquire makes one attempt right away;
// when the lock is contended it either fails fast with ErrAlreadyLocked
// (fail-when-locked) or sleeps a jittered interval and retries until the
// timeout expires with ErrTimeout. Fatal errors abort immediately. Release is
// idempotent except on RLock, where an unbalanced release is an error.
//
// Lock values are not safe for concurrent use; give each goroutine its own.
package lock

import (
	"context"
	"errors"
)

// Locker abstracts the lock implementations in this package.
type Locker interface {
	// Acquire obtains the lock, retrying according to the configured policy.
	Acquire(ctx context.Context, opts ...AcquireOption) error
	// Release frees the lock.
	Release(ctx context.Context) error
}

var (
	_ Locker = (*FileLock)(nil)
	_ Locker = (*RLock)(nil)
	_ Locker = (*TemporaryFileLock)(nil)
	_ Locker = (*PidFileLock)(nil)
	_ Locker = (*RedisLock)(nil)
	_ Locker = (*BoundedSemaphore)(nil)
	_ Locker = (*MySQLLock)(nil)
)

// WithLock runs fn while holding l and releases l on every exit path.
func WithLock(ctx context.Context, l Locker, fn func(ctx context.Context) error, opts ...AcquireOption) (err error) {
	if err := l.Acquire(ctx, opts...); err != nil {
		return err
	}
	defer func() {
		if releaseErr := l.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			err = errors.Join(err, releaseErr)
		}
	}()
	return fn(ctx)
}
