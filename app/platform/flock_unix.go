//go:build unix

package platform

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// defaultLocker uses flock(2), which locks the open file description, so two
// handles opened on the same path conflict even inside one process.
type defaultLocker struct{}

func (defaultLocker) Lock(f *os.File, flags Flags) error {
	if err := Validate(flags); err != nil {
		return err
	}
	how := unix.LOCK_SH
	if flags&Exclusive != 0 {
		how = unix.LOCK_EX
	}
	if flags&NonBlocking != 0 {
		how |= unix.LOCK_NB
	}
	for {
		err := unix.Flock(int(f.Fd()), how)
		if err == nil {
			return nil
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			return fmt.Errorf("flock %s: %w", f.Name(), ErrWouldBlock)
		}
		return fmt.Errorf("flock %s: %w", f.Name(), err)
	}
}

func (defaultLocker) Unlock(f *os.File) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("funlock %s: %w", f.Name(), err)
	}
	return nil
}
