package lock

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func newTestSemaphore(t *testing.T, maximum int, dir string, opts ...Option) *BoundedSemaphore {
	t.Helper()
	logger, _ := newTestLogger()
	s, err := NewBoundedSemaphore(maximum, append([]Option{WithDirectory(dir), WithName("test"), WithLogger(logger)}, opts...)...)
	if err != nil {
		t.Fatalf("NewBoundedSemaphore: %v", err)
	}
	t.Cleanup(func() { _ = s.Release(context.Background()) })
	return s
}

func TestBoundedSemaphoreFilenames(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := newTestSemaphore(t, 3, dir)
	want := []string{
		filepath.Join(dir, "test.00.lock"),
		filepath.Join(dir, "test.01.lock"),
		filepath.Join(dir, "test.02.lock"),
	}
	got := s.Filenames()
	if len(got) != len(want) {
		t.Fatalf("expected %d names, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("slot %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	d, err := NewBoundedSemaphore(1)
	if err != nil {
		t.Fatalf("NewBoundedSemaphore: %v", err)
	}
	if base := filepath.Base(d.Filename(0)); base != DefaultSemaphoreName+".00.lock" {
		t.Fatalf("unexpected default name %q", base)
	}
}

func TestBoundedSemaphoreRejectsNonPositiveMaximum(t *testing.T) {
	t.Parallel()

	for _, maximum := range []int{0, -1} {
		if _, err := NewBoundedSemaphore(maximum); err == nil {
			t.Fatalf("expected error for maximum %d", maximum)
		}
	}
}

func TestBoundedSemaphoreTakesSlotsInOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := newTestSemaphore(t, 2, dir)
	b := newTestSemaphore(t, 2, dir)
	c := newTestSemaphore(t, 2, dir)
	ctx := context.Background()

	if err := a.Acquire(ctx); err != nil {
		t.Fatalf("a Acquire: %v", err)
	}
	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("b Acquire: %v", err)
	}
	if a.Slot() != 0 || b.Slot() != 1 {
		t.Fatalf("expected slots 0 and 1, got %d and %d", a.Slot(), b.Slot())
	}

	if err := c.Acquire(ctx); !errors.Is(err, ErrAlreadyLocked) {
		t.Fatalf("expected ErrAlreadyLocked, got %v", err)
	}
	if c.Held() || c.Slot() != -1 {
		t.Fatal("c must not hold a slot")
	}

	clock := newFakeClock()
	waiting := newTestSemaphore(t, 2, dir, WithFailWhenLocked(false), WithTimeout(time.Second), WithClock(clock))
	if err := waiting.Acquire(ctx); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if clock.total() != time.Second {
		t.Fatalf("expected to wait the full timeout, waited %s", clock.total())
	}

	if err := a.Release(ctx); err != nil {
		t.Fatalf("a Release: %v", err)
	}
	if err := c.Acquire(ctx); err != nil {
		t.Fatalf("c Acquire after release: %v", err)
	}
	if c.Slot() != 0 {
		t.Fatalf("expected c to take slot 0, got %d", c.Slot())
	}
	if err := c.Acquire(ctx); !errors.Is(err, ErrAlreadyHeld) {
		t.Fatalf("expected ErrAlreadyHeld, got %v", err)
	}
}

func TestBoundedSemaphoreConcurrentHolders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	const contenders = 3
	sems := make([]*BoundedSemaphore, contenders)
	for i := range sems {
		sems[i] = newTestSemaphore(t, 2, dir)
	}

	var acquired, rejected atomic.Int32
	var g errgroup.Group
	for _, s := range sems {
		g.Go(func() error {
			err := s.Acquire(context.Background())
			switch {
			case err == nil:
				acquired.Add(1)
			case errors.Is(err, ErrAlreadyLocked):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if acquired.Load() != 2 || rejected.Load() != 1 {
		t.Fatalf("expected 2 holders and 1 rejection, got %d and %d", acquired.Load(), rejected.Load())
	}
}
