package lock

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/vibast-solutions/ms-go-locks/app/platform"
)

// fakeClock advances only when slept on.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	return nil
}

func (c *fakeClock) slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

func (c *fakeClock) total() time.Duration {
	var sum time.Duration
	for _, d := range c.slept() {
		sum += d
	}
	return sum
}

func fixedRand(v float64) func() float64 {
	return func() float64 { return v }
}

// fakePlatform returns queued errors from Lock, then succeeds.
type fakePlatform struct {
	mu       sync.Mutex
	lockErrs []error
	locks    int
	unlocks  int
}

func (p *fakePlatform) Lock(_ *os.File, flags platform.Flags) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locks++
	if err := platform.Validate(flags); err != nil {
		return err
	}
	if len(p.lockErrs) > 0 {
		err := p.lockErrs[0]
		p.lockErrs = p.lockErrs[1:]
		return err
	}
	return nil
}

func (p *fakePlatform) Unlock(_ *os.File) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unlocks++
	return nil
}

func newTestLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func tempLockPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

// skipOnWindows skips tests that read a file another handle has locked;
// LockFileEx locks are mandatory for reads on Windows.
func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("locked regions cannot be read on windows")
	}
}

func mustFileLock(t *testing.T, path string, opts ...Option) *FileLock {
	t.Helper()
	logger, _ := newTestLogger()
	l, err := NewFileLock(path, append([]Option{WithLogger(logger)}, opts...)...)
	if err != nil {
		t.Fatalf("NewFileLock: %v", err)
	}
	t.Cleanup(func() { _ = l.Release(context.Background()) })
	return l
}
