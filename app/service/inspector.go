package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vibast-solutions/ms-go-locks/app/entity"
	"github.com/vibast-solutions/ms-go-locks/app/lock"
)

var ErrLockNotFound = errors.New("lock file not found")

type Inspector struct {
	dir  string
	opts []lock.Option
}

// NewInspector builds an inspector for lock files under dir. opts are applied
// to the check lock (logger, platform).
func NewInspector(dir string, opts ...lock.Option) *Inspector {
	return &Inspector{dir: dir, opts: opts}
}

// Dir returns the inspected lock directory.
func (i *Inspector) Dir() string {
	return i.dir
}

// List returns the names of the regular files in the lock directory, sorted.
func (i *Inspector) List() ([]string, error) {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		return nil, fmt.Errorf("read lock dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// Inspect reports whether the lock file name is currently held. It checks with
// a single non-blocking exclusive attempt on a read-only handle opened without
// O_CREATE, so it never waits, creates files or content, or removes anything.
// The check briefly holds a free lock; a contender failing fast at that
// instant sees it as taken.
func (i *Inspector) Inspect(ctx context.Context, name string) (entity.LockStatus, error) {
	path := filepath.Join(i.dir, name)
	status := entity.LockStatus{Name: name, Path: path}

	opts := append([]lock.Option{}, i.opts...)
	opts = append(opts,
		lock.WithMode(os.O_RDONLY),
		lock.WithCreate(false),
		lock.WithFailWhenLocked(true),
		lock.WithTimeout(0),
	)
	check, err := lock.NewFileLock(path, opts...)
	if err != nil {
		return status, fmt.Errorf("build check lock: %w", err)
	}

	err = check.Acquire(ctx)
	switch {
	case err == nil:
		status.State = entity.LockStateFree
		if err := check.Release(ctx); err != nil {
			return status, fmt.Errorf("release check lock: %w", err)
		}
	case errors.Is(err, lock.ErrAlreadyLocked):
		status.State = entity.LockStateHeld
	case errors.Is(err, fs.ErrNotExist):
		status.State = entity.LockStateMissing
		return status, ErrLockNotFound
	default:
		return status, fmt.Errorf("check lock: %w", err)
	}

	status.PID, _ = lock.ReadPID(path)
	return status, nil
}
