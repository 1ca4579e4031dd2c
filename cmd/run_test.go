package cmd

import (
	"path/filepath"
	"testing"

	"github.com/vibast-solutions/ms-go-locks/app/lock"
	"github.com/vibast-solutions/ms-go-locks/config"
)

func TestBuildLockerFileBackend(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{LockDir: t.TempDir()}
	locker, closeLocker, err := buildLocker(cfg, backendFile, "jobs.lock", 1, nil)
	if err != nil {
		t.Fatalf("buildLocker: %v", err)
	}
	defer closeLocker()

	l, ok := locker.(*lock.FileLock)
	if !ok {
		t.Fatalf("expected *lock.FileLock, got %T", locker)
	}
	if l.Path() != filepath.Join(cfg.LockDir, "jobs.lock") {
		t.Fatalf("relative name not joined with LOCK_DIR: %s", l.Path())
	}

	abs := filepath.Join(t.TempDir(), "abs.lock")
	locker, _, err = buildLocker(cfg, backendFile, abs, 1, nil)
	if err != nil {
		t.Fatalf("buildLocker: %v", err)
	}
	if got := locker.(*lock.FileLock).Path(); got != abs {
		t.Fatalf("absolute name rewritten to %s", got)
	}
}

func TestBuildLockerSemaphoreBackend(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{LockDir: t.TempDir()}
	locker, _, err := buildLocker(cfg, backendSemaphore, "workers", 3, nil)
	if err != nil {
		t.Fatalf("buildLocker: %v", err)
	}
	s, ok := locker.(*lock.BoundedSemaphore)
	if !ok {
		t.Fatalf("expected *lock.BoundedSemaphore, got %T", locker)
	}
	if len(s.Filenames()) != 3 || s.Filename(2) != filepath.Join(cfg.LockDir, "workers.02.lock") {
		t.Fatalf("unexpected slots: %v", s.Filenames())
	}

	if _, _, err := buildLocker(cfg, backendSemaphore, "workers", 0, nil); err == nil {
		t.Fatal("expected error for zero slots")
	}
}

func TestBuildLockerMySQLRequiresDSN(t *testing.T) {
	t.Parallel()

	if _, _, err := buildLocker(&config.Config{}, backendMySQL, "jobs", 1, nil); err == nil {
		t.Fatal("expected error without MYSQL_DSN")
	}
}

func TestBuildLockerRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	if _, _, err := buildLocker(&config.Config{}, "zookeeper", "x", 1, nil); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
