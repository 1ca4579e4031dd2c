package lock

import (
	"context"
	"os"
)

// RLock is a reentrant FileLock: it must be released as many times as it was
// acquired before the file is actually unlocked.
type RLock struct {
	lock  *FileLock
	count int
}

// NewRLock returns an unlocked reentrant lock on path.
func NewRLock(path string, opts ...Option) (*RLock, error) {
	l, err := NewFileLock(path, opts...)
	if err != nil {
		return nil, err
	}
	return &RLock{lock: l}, nil
}

// Acquire locks the file on the first call and only counts on later ones.
func (l *RLock) Acquire(ctx context.Context, opts ...AcquireOption) error {
	if l.count > 0 {
		l.count++
		return nil
	}
	if err := l.lock.Acquire(ctx, opts...); err != nil {
		return err
	}
	l.count = 1
	return nil
}

// Release undoes one Acquire and unlocks the file when the count reaches zero.
func (l *RLock) Release(ctx context.Context) error {
	if l.count == 0 {
		return &Error{Op: "release", Name: l.lock.Path(), Kind: ErrNotHeld}
	}
	l.count--
	if l.count > 0 {
		return nil
	}
	return l.lock.Release(ctx)
}

// Count returns the current acquisition depth.
func (l *RLock) Count() int {
	return l.count
}

// File returns the locked handle, or nil when the lock is not held.
func (l *RLock) File() *os.File {
	return l.lock.File()
}

// Path returns the lock file path.
func (l *RLock) Path() string {
	return l.lock.Path()
}
