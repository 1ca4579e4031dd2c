package lock

import (
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	// DefaultTemporaryFile is the path used when a TemporaryFileLock gets none.
	DefaultTemporaryFile = ".lock"
	// DefaultPidFile is the path used when a PidFileLock gets none.
	DefaultPidFile = ".pid"
)

// TemporaryFileLock is a FileLock whose file is deleted on release.
//
// Exclusivity only holds between contenders that fail fast. A waiter
// (WithFailWhenLocked(false)) keeps retrying on the handle it opened first;
// once the holder unlinks the file that waiter can lock the orphaned inode
// while a newcomer creates and locks a fresh file at the same path, and both
// believe they hold the lock. Use a FileLock when waiters are needed.
type TemporaryFileLock struct {
	*FileLock
}

// NewTemporaryFileLock returns an unlocked TemporaryFileLock. It fails fast on
// contention unless WithFailWhenLocked(false) is given.
func NewTemporaryFileLock(path string, opts ...Option) (*TemporaryFileLock, error) {
	if path == "" {
		path = DefaultTemporaryFile
	}
	o := defaultOptions()
	o.failWhenLocked = true
	l, err := newFileLock(path, o.apply(opts))
	if err != nil {
		return nil, err
	}
	l.remove = true
	return &TemporaryFileLock{FileLock: l}, nil
}

// PidFileLock is a TemporaryFileLock that records the holder's process id in
// the lock file so a blocked contender can tell who owns it.
type PidFileLock struct {
	*TemporaryFileLock
}

// NewPidFileLock returns an unlocked PidFileLock.
func NewPidFileLock(path string, opts ...Option) (*PidFileLock, error) {
	if path == "" {
		path = DefaultPidFile
	}
	t, err := NewTemporaryFileLock(path, opts...)
	if err != nil {
		return nil, err
	}
	t.prepare = func(f *os.File) error {
		return writePID(f, os.Getpid())
	}
	return &PidFileLock{TemporaryFileLock: t}, nil
}

// Enter acquires the lock. When another holder has it, Enter returns that
// holder's pid (0 if unreadable) and acquired=false instead of an error.
// Only fatal failures are returned as errors.
func (l *PidFileLock) Enter(ctx context.Context, opts ...AcquireOption) (owner int, acquired bool, err error) {
	err = l.Acquire(ctx, opts...)
	if err == nil {
		return 0, true, nil
	}
	if errors.Is(err, ErrAlreadyLocked) || errors.Is(err, ErrTimeout) {
		pid, _ := l.ReadPID()
		return pid, false, nil
	}
	return 0, false, err
}

// Acquired reports whether this instance holds the lock.
func (l *PidFileLock) Acquired() bool {
	return l.Held()
}

// ReadPID reads the pid recorded in the lock file. See ReadPID.
func (l *PidFileLock) ReadPID() (int, bool) {
	return ReadPID(l.Path())
}

// ReadPID returns the process id stored at path. A missing, empty, unreadable
// or non-numeric file yields false; it never fails.
func ReadPID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func writePID(f *os.File, pid int) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteString(strconv.Itoa(pid)); err != nil {
		return err
	}
	return f.Sync()
}
