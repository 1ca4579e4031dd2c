//go:build windows

package platform

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/windows"
)

const (
	allBytes = ^uint32(0)

	errorNotLocked = syscall.Errno(158)
)

// defaultLocker uses LockFileEx over the whole file.
type defaultLocker struct{}

func (defaultLocker) Lock(f *os.File, flags Flags) error {
	if err := Validate(flags); err != nil {
		return err
	}
	var how uint32
	if flags&Exclusive != 0 {
		how |= windows.LOCKFILE_EXCLUSIVE_LOCK
	}
	if flags&NonBlocking != 0 {
		how |= windows.LOCKFILE_FAIL_IMMEDIATELY
	}
	ol := new(windows.Overlapped)
	err := windows.LockFileEx(windows.Handle(f.Fd()), how, 0, allBytes, allBytes, ol)
	if err == nil {
		return nil
	}
	if errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
		return fmt.Errorf("lockfileex %s: %w", f.Name(), ErrWouldBlock)
	}
	return fmt.Errorf("lockfileex %s: %w", f.Name(), err)
}

func (defaultLocker) Unlock(f *os.File) error {
	ol := new(windows.Overlapped)
	err := windows.UnlockFileEx(windows.Handle(f.Fd()), 0, allBytes, allBytes, ol)
	// An unlocked segment is not an error, matching flock(2).
	if err == nil || errors.Is(err, errorNotLocked) {
		return nil
	}
	return fmt.Errorf("unlockfileex %s: %w", f.Name(), err)
}
