package lock

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-locks/app/platform"
)

// FileLock is an advisory lock on a file. The file is opened first and only
// truncated once the lock is held, so a contender that loses never clears it.
type FileLock struct {
	path    string
	opts    *options
	backend string

	file    *os.File
	cleanup runtime.Cleanup

	// remove deletes the file on release.
	remove bool
	// prepare runs on the locked handle after truncation.
	prepare func(f *os.File) error
}

// NewFileLock validates the configuration and returns an unlocked FileLock.
func NewFileLock(path string, opts ...Option) (*FileLock, error) {
	return newFileLock(path, defaultOptions().apply(opts))
}

func newFileLock(path string, o *options) (*FileLock, error) {
	if o.mode&os.O_TRUNC != 0 {
		return nil, &Error{Op: "open", Name: path, Kind: ErrInvalidMode}
	}
	if err := platform.Validate(o.flags); err != nil {
		return nil, &Error{Op: "open", Name: path, Err: err}
	}
	return &FileLock{path: path, opts: o, backend: backendFile}, nil
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

// File returns the locked handle, or nil when the lock is not held.
func (l *FileLock) File() *os.File {
	return l.file
}

// Held reports whether this instance holds the lock.
func (l *FileLock) Held() bool {
	return l.file != nil
}

// Acquire opens the file and locks it. It returns immediately when the lock
// is already held by l.
func (l *FileLock) Acquire(ctx context.Context, opts ...AcquireOption) error {
	if l.file != nil {
		return nil
	}

	r := newRetrier(l.opts, l.backend, opts)
	warnBlockingTimeout(l.opts.logger, l.path, r.params.timeout, l.opts.flags)

	f, err := l.open()
	if err != nil {
		return err
	}
	// A failed truncate or PID write fails the attempt and the acquisition.
	err = r.run(ctx, l.path, func(context.Context) (bool, error) {
		ok, err := l.lockOnce(f)
		if err != nil || !ok {
			return false, err
		}
		if err := l.hold(f); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		// Closing twice after a failed hold is harmless.
		_ = f.Close()
	}
	return err
}

// Release unlocks and closes the file. Releasing an unheld lock is a no-op.
func (l *FileLock) Release(_ context.Context) error {
	f := l.file
	if f == nil {
		return nil
	}
	l.file = nil
	l.cleanup.Stop()
	observeHeld(l.backend, -1)
	return l.handle(f).release()
}

// tryAcquire makes a single non-retried attempt.
func (l *FileLock) tryAcquire() (bool, error) {
	if l.file != nil {
		return true, nil
	}
	f, err := l.open()
	if err != nil {
		return false, err
	}
	ok, err := l.lockOnce(f)
	if err != nil || !ok {
		_ = f.Close()
		return false, err
	}
	if err := l.hold(f); err != nil {
		return false, err
	}
	return true, nil
}

func (l *FileLock) open() (*os.File, error) {
	mode := l.opts.mode
	if l.opts.create {
		mode |= os.O_CREATE
	} else {
		mode &^= os.O_CREATE
	}
	return os.OpenFile(l.path, mode, l.opts.perm)
}

func (l *FileLock) lockOnce(f *os.File) (bool, error) {
	err := l.opts.platform.Lock(f, l.opts.flags)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, platform.ErrWouldBlock):
		return false, nil
	default:
		return false, &Error{Op: "lock", Name: l.path, Kind: ErrLockFailed, Err: err, Fd: f.Fd()}
	}
}

// hold finishes an acquisition on a locked handle.
func (l *FileLock) hold(f *os.File) error {
	if err := l.prepareFile(f); err != nil {
		fd := f.Fd()
		_ = l.opts.platform.Unlock(f)
		_ = f.Close()
		return &Error{Op: "prepare", Name: l.path, Kind: ErrLockFailed, Err: err, Fd: fd}
	}
	l.file = f
	l.cleanup = runtime.AddCleanup(l, releaseLeaked, l.handle(f))
	observeHeld(l.backend, 1)
	return nil
}

func (l *FileLock) prepareFile(f *os.File) error {
	if l.opts.truncate != nil {
		size := *l.opts.truncate
		if _, err := f.Seek(size, io.SeekStart); err != nil {
			return err
		}
		if err := f.Truncate(size); err != nil {
			return err
		}
	}
	if l.prepare != nil {
		return l.prepare(f)
	}
	return nil
}

func (l *FileLock) handle(f *os.File) heldFile {
	h := heldFile{
		file:     f,
		platform: l.opts.platform,
		log:      l.opts.logger,
		backend:  l.backend,
	}
	if l.remove {
		h.remove = l.path
	}
	return h
}

// heldFile is everything needed to give a lock back without the FileLock
// itself, so the cleanup backstop does not keep the FileLock reachable.
type heldFile struct {
	file     *os.File
	platform platform.Locker
	log      logrus.FieldLogger
	backend  string
	remove   string
}

func (h heldFile) release() error {
	var errs []error
	if err := h.platform.Unlock(h.file); err != nil {
		errs = append(errs, err)
	}
	if err := h.file.Close(); err != nil {
		errs = append(errs, err)
	}
	if h.remove != "" {
		if err := os.Remove(h.remove); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func releaseLeaked(h heldFile) {
	observeHeld(h.backend, -1)
	if err := h.release(); err != nil {
		h.log.WithField("lock", h.file.Name()).Errorf("release leaked lock: %v", err)
		return
	}
	h.log.WithField("lock", h.file.Name()).Warn("lock released by garbage collector; release it explicitly")
}
