package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-locks/app/lock"
)

var ErrEmptyCommand = errors.New("command is required")

// Runner executes commands while holding a lock, the way flock(1) does.
type Runner struct {
	locker lock.Locker
	log    logrus.FieldLogger

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewRunner builds a runner guarded by locker, wired to the process stdio.
func NewRunner(locker lock.Locker, log logrus.FieldLogger) *Runner {
	return &Runner{
		locker: locker,
		log:    log,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run acquires the lock, runs name with args and releases the lock once the
// command exits. A non-zero exit is returned as *exec.ExitError.
func (r *Runner) Run(ctx context.Context, name string, args []string, opts ...lock.AcquireOption) (err error) {
	if name == "" {
		return ErrEmptyCommand
	}

	start := time.Now()
	if err := r.locker.Acquire(ctx, opts...); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	r.log.WithField("waited", time.Since(start)).Debug("lock acquired")
	defer func() {
		if releaseErr := r.locker.Release(context.Background()); releaseErr != nil {
			err = errors.Join(err, fmt.Errorf("release lock: %w", releaseErr))
		}
	}()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	r.log.WithField("command", cmd.String()).Info("running command under lock")
	return cmd.Run()
}

// ExitCode maps a Run error to a process exit status: the command's own
// status when it ran, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return exitErr.ExitCode()
	}
	return 1
}
