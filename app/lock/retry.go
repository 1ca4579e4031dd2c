package lock

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-locks/app/platform"
)

// Clock supplies time to the retry engine.
type Clock interface {
	Now() time.Time
	// Sleep pauses for d or until ctx is done, returning ctx.Err() in that case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func defaultRand() float64 {
	return rand.Float64()
}

type retryParams struct {
	timeout        time.Duration
	checkInterval  time.Duration
	failWhenLocked bool
}

func (p retryParams) with(opts []AcquireOption) retryParams {
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// attemptFunc makes one acquisition attempt. It returns true when the lock is
// held, false with a nil error when it would block, and an error when the
// failure is fatal and must not be retried.
type attemptFunc func(ctx context.Context) (bool, error)

type retrier struct {
	params  retryParams
	clock   Clock
	rand    func() float64
	log     logrus.FieldLogger
	backend string
}

func newRetrier(o *options, backend string, acquireOpts []AcquireOption) retrier {
	return retrier{
		params:  o.retryParams().with(acquireOpts),
		clock:   o.clock,
		rand:    o.rand,
		log:     o.logger,
		backend: backend,
	}
}

// run drives attempt until it succeeds, fails fatally or the budget runs out.
func (r retrier) run(ctx context.Context, name string, attempt attemptFunc) error {
	start := r.clock.Now()
	err := r.loop(ctx, start, name, attempt)
	observeAcquire(r.backend, r.clock.Now().Sub(start), err)
	return err
}

func (r retrier) loop(ctx context.Context, start time.Time, name string, attempt attemptFunc) error {
	bounded := r.params.timeout >= 0
	deadline := start.Add(r.params.timeout)

	for {
		ok, err := attempt(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if r.params.failWhenLocked {
			return &Error{Op: "acquire", Name: name, Kind: ErrAlreadyLocked}
		}

		wait := r.interval()
		if bounded {
			remaining := deadline.Sub(r.clock.Now())
			if remaining <= 0 {
				return &Error{Op: "acquire", Name: name, Kind: ErrTimeout}
			}
			wait = min(wait, remaining)
		}

		r.log.WithFields(logrus.Fields{
			"lock":    name,
			"backend": r.backend,
		}).Debugf("lock contended, retrying in %s", wait)

		if err := r.clock.Sleep(ctx, wait); err != nil {
			return &Error{Op: "acquire", Name: name, Err: err}
		}
	}
}

// interval returns the jittered pause, uniform in [0.5, 1.5) times the
// nominal interval.
func (r retrier) interval() time.Duration {
	effective := r.params.checkInterval
	if effective <= 0 {
		effective = DefaultBaseInterval
	}
	return time.Duration(float64(effective) * (0.5 + r.rand()))
}

// warnBlockingTimeout flags a timeout that a blocking platform call makes moot.
func warnBlockingTimeout(log logrus.FieldLogger, name string, timeout time.Duration, flags platform.Flags) {
	if timeout == 0 || !flags.Blocking() {
		return
	}
	log.WithFields(logrus.Fields{
		"lock":  name,
		"flags": flags.String(),
	}).Warn("timeout has no effect in blocking mode")
}
