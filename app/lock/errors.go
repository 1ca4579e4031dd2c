package lock

import (
	"errors"
	"fmt"
	"strings"
)

// ErrLockFailed is the base of every lock failure; match it to catch them all.
var ErrLockFailed = errors.New("lock failed")

var (
	// ErrAlreadyLocked reports contention observed while fail-when-locked was
	// requested, or a lost subscriber race.
	ErrAlreadyLocked = fmt.Errorf("%w: already locked", ErrLockFailed)
	// ErrTimeout reports that the retry budget ran out before the lock was free.
	ErrTimeout = fmt.Errorf("%w: timeout exceeded", ErrLockFailed)
	// ErrNotHeld reports a release with nothing to release on a reentrant lock.
	ErrNotHeld = fmt.Errorf("%w: lock not held", ErrLockFailed)
	// ErrAlreadyHeld reports an acquire on a lock this instance already holds.
	ErrAlreadyHeld = fmt.Errorf("%w: lock already held by this instance", ErrLockFailed)
	// ErrInvalidMode reports an open mode that would clear the file before it is locked.
	ErrInvalidMode = errors.New("open mode must not truncate the file before locking")
)

// Error carries the context of a failed lock operation. It unwraps to both
// its Kind (one of the sentinels above) and the underlying cause.
type Error struct {
	Op   string
	Name string
	Kind error
	Err  error
	// Fd is the file descriptor involved, when the lock is file based.
	Fd uintptr
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Name != "" {
		b.WriteString(" ")
		b.WriteString(e.Name)
	}
	b.WriteString(": ")
	switch {
	case e.Kind != nil && e.Err != nil:
		b.WriteString(e.Kind.Error())
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	case e.Kind != nil:
		b.WriteString(e.Kind.Error())
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
