// Package platform wraps the operating system's advisory whole-file lock
// calls behind a small strategy interface so callers can inject a fake in
// tests or pick an implementation per target at startup.
package platform

import (
	"errors"
	"os"
)

// Flags select the kind of lock requested from the operating system.
type Flags int

const (
	// Exclusive requests a lock no other handle can share.
	Exclusive Flags = 1 << iota
	// Shared requests a lock other shared holders may also hold.
	Shared
	// NonBlocking makes Lock return ErrWouldBlock instead of waiting.
	NonBlocking
)

var (
	// ErrWouldBlock reports that a non-blocking lock request could not be
	// granted because another handle holds a conflicting lock.
	ErrWouldBlock = errors.New("lock would block")
	// ErrInvalidFlags reports a flag combination the platform cannot honour.
	ErrInvalidFlags = errors.New("invalid lock flags: exactly one of Exclusive or Shared is required")
	// ErrUnsupported is returned on targets without an advisory lock call.
	ErrUnsupported = errors.New("file locking is not supported on this platform")
)

// Locker performs a single lock or unlock call on an open file.
type Locker interface {
	// Lock locks f according to flags. When NonBlocking is set and the lock
	// is held elsewhere the returned error wraps ErrWouldBlock.
	Lock(f *os.File, flags Flags) error
	// Unlock releases any lock held through f.
	Unlock(f *os.File) error
}

// Validate checks that flags request exactly one lock kind.
func Validate(flags Flags) error {
	exclusive := flags&Exclusive != 0
	shared := flags&Shared != 0
	if exclusive == shared {
		return ErrInvalidFlags
	}
	return nil
}

// Blocking reports whether a lock call with flags may wait in the kernel.
func (f Flags) Blocking() bool {
	return f&NonBlocking == 0
}

// String renders flags the way they are written in code.
func (f Flags) String() string {
	var s string
	add := func(part string) {
		if s != "" {
			s += "|"
		}
		s += part
	}
	if f&Exclusive != 0 {
		add("Exclusive")
	}
	if f&Shared != 0 {
		add("Shared")
	}
	if f&NonBlocking != 0 {
		add("NonBlocking")
	}
	if s == "" {
		return "0"
	}
	return s
}

// Default returns the lock implementation for the running platform.
func Default() Locker {
	return defaultLocker{}
}
