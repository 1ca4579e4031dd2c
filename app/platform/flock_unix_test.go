//go:build unix

package platform

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func openTwice(t *testing.T) (*os.File, *os.File) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a.lock")
	a, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatalf("open a: %v", err)
	}
	b, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatalf("open b: %v", err)
	}
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b
}

func TestFlockExclusiveConflict(t *testing.T) {
	t.Parallel()

	a, b := openTwice(t)
	l := Default()

	if err := l.Lock(a, Exclusive|NonBlocking); err != nil {
		t.Fatalf("lock a: %v", err)
	}
	if err := l.Lock(b, Exclusive|NonBlocking); !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock, got %v", err)
	}
	if err := l.Lock(b, Shared|NonBlocking); !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock for shared, got %v", err)
	}
	if err := l.Unlock(a); err != nil {
		t.Fatalf("unlock a: %v", err)
	}
	if err := l.Lock(b, Exclusive|NonBlocking); err != nil {
		t.Fatalf("lock b after unlock: %v", err)
	}
}

func TestFlockSharedCompatible(t *testing.T) {
	t.Parallel()

	a, b := openTwice(t)
	l := Default()

	if err := l.Lock(a, Shared|NonBlocking); err != nil {
		t.Fatalf("lock a: %v", err)
	}
	if err := l.Lock(b, Shared|NonBlocking); err != nil {
		t.Fatalf("lock b: %v", err)
	}
	if err := l.Lock(b, Exclusive|NonBlocking); !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("expected upgrade to block, got %v", err)
	}
}

func TestFlockRejectsInvalidFlags(t *testing.T) {
	t.Parallel()

	a, _ := openTwice(t)
	if err := Default().Lock(a, NonBlocking); !errors.Is(err, ErrInvalidFlags) {
		t.Fatalf("expected ErrInvalidFlags, got %v", err)
	}
}

func TestFlockClosedFileIsFatal(t *testing.T) {
	t.Parallel()

	a, _ := openTwice(t)
	_ = a.Close()
	err := Default().Lock(a, Exclusive|NonBlocking)
	if err == nil || errors.Is(err, ErrWouldBlock) {
		t.Fatalf("expected fatal error, got %v", err)
	}
}
