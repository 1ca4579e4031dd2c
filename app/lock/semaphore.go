package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vibast-solutions/ms-go-locks/app/platform"
)

// DefaultSemaphoreName names semaphore slot files when WithName is not given.
const DefaultSemaphoreName = "bounded_semaphore"

// BoundedSemaphore lets at most maximum holders in at once by locking one of
// maximum slot files. Slots are tried in order, 00 first.
type BoundedSemaphore struct {
	maximum int
	opts    *options
	slotOpt *options

	lock *FileLock
	slot int
}

// NewBoundedSemaphore returns a semaphore with maximum slots. It fails fast on
// contention unless WithFailWhenLocked(false) is given.
func NewBoundedSemaphore(maximum int, opts ...Option) (*BoundedSemaphore, error) {
	if maximum < 1 {
		return nil, fmt.Errorf("semaphore maximum must be positive, got %d", maximum)
	}
	o := defaultOptions()
	o.failWhenLocked = true
	o.name = DefaultSemaphoreName
	o.directory = os.TempDir()
	o.apply(opts)

	// Each slot is a single non-blocking try; the semaphore does the retrying.
	slot := *o
	slot.flags |= platform.NonBlocking
	slot.timeout = 0
	slot.failWhenLocked = true

	s := &BoundedSemaphore{maximum: maximum, opts: o, slotOpt: &slot, slot: -1}
	if _, err := newFileLock(s.Filename(0), s.slotOpt); err != nil {
		return nil, err
	}
	return s, nil
}

// Filename returns the path of slot n.
func (s *BoundedSemaphore) Filename(n int) string {
	return filepath.Join(s.opts.directory, fmt.Sprintf("%s.%02d.lock", s.opts.name, n))
}

// Filenames returns the paths of all slots in the order they are tried.
func (s *BoundedSemaphore) Filenames() []string {
	names := make([]string, s.maximum)
	for n := range names {
		names[n] = s.Filename(n)
	}
	return names
}

// Slot returns the held slot index, or -1 when nothing is held.
func (s *BoundedSemaphore) Slot() int {
	return s.slot
}

// Held reports whether this instance holds a slot.
func (s *BoundedSemaphore) Held() bool {
	return s.lock != nil
}

// Acquire takes the first free slot, retrying while all are taken.
func (s *BoundedSemaphore) Acquire(ctx context.Context, opts ...AcquireOption) error {
	if s.lock != nil {
		return &Error{Op: "acquire", Name: s.opts.name, Kind: ErrAlreadyHeld}
	}
	r := newRetrier(s.opts, backendSemaphore, opts)
	return r.run(ctx, s.opts.name, s.tryLock)
}

func (s *BoundedSemaphore) tryLock(context.Context) (bool, error) {
	for n := 0; n < s.maximum; n++ {
		l, err := newFileLock(s.Filename(n), s.slotOpt)
		if err != nil {
			return false, err
		}
		l.backend = backendSemaphore
		ok, err := l.tryAcquire()
		if err != nil {
			return false, err
		}
		if ok {
			s.lock = l
			s.slot = n
			return true, nil
		}
	}
	return false, nil
}

// Release frees the held slot. Releasing an unheld semaphore is a no-op.
func (s *BoundedSemaphore) Release(ctx context.Context) error {
	if s.lock == nil {
		return nil
	}
	l := s.lock
	s.lock = nil
	s.slot = -1
	return l.Release(ctx)
}
