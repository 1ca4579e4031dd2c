package lock

import (
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-locks/app/platform"
)

const (
	// DefaultTimeout bounds how long Acquire retries a contended lock.
	DefaultTimeout = 5 * time.Second
	// DefaultCheckInterval is the nominal pause between attempts.
	DefaultCheckInterval = 250 * time.Millisecond
	// DefaultBaseInterval replaces a non-positive check interval.
	DefaultBaseInterval = 100 * time.Millisecond
	// DefaultFlags request an exclusive lock without waiting in the kernel.
	DefaultFlags = platform.Exclusive | platform.NonBlocking
	// DefaultMode opens the lock file for reading and writing, creating it.
	DefaultMode = os.O_RDWR | os.O_CREATE
	// DefaultPerm is applied to lock files created by this package.
	DefaultPerm os.FileMode = 0o644

	// Forever disables the acquire timeout. Any negative duration behaves the same.
	Forever time.Duration = -1
)

type options struct {
	timeout        time.Duration
	checkInterval  time.Duration
	failWhenLocked bool
	flags          platform.Flags
	mode           int
	perm           os.FileMode
	truncate       *int64
	create         bool

	logger   logrus.FieldLogger
	platform platform.Locker
	clock    Clock
	rand     func() float64

	redisClient  *redis.Client
	redisOptions *redis.Options
	pubsub       PubSub

	name      string
	directory string
}

// Option configures a lock at construction time. Options that do not apply
// to a lock type are ignored by it.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		timeout:       DefaultTimeout,
		checkInterval: DefaultCheckInterval,
		flags:         DefaultFlags,
		mode:          DefaultMode,
		perm:          DefaultPerm,
		create:        true,
		logger:        logrus.StandardLogger(),
		platform:      platform.Default(),
		clock:         realClock{},
		rand:          defaultRand,
	}
}

func (o *options) apply(opts []Option) *options {
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) retryParams() retryParams {
	return retryParams{
		timeout:        o.timeout,
		checkInterval:  o.checkInterval,
		failWhenLocked: o.failWhenLocked,
	}
}

// WithTimeout sets how long Acquire keeps retrying. Use Forever to wait without limit.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithCheckInterval sets the nominal pause between attempts.
func WithCheckInterval(interval time.Duration) Option {
	return func(o *options) {
		o.checkInterval = interval
	}
}

// WithFailWhenLocked makes Acquire return ErrAlreadyLocked on the first
// contended attempt instead of waiting out the timeout.
func WithFailWhenLocked(fail bool) Option {
	return func(o *options) {
		o.failWhenLocked = fail
	}
}

// WithFlags sets the platform lock flags.
func WithFlags(flags platform.Flags) Option {
	return func(o *options) {
		o.flags = flags
	}
}

// WithMode sets the os.OpenFile flags used for the lock file. os.O_CREATE is
// added unless WithCreate(false) is given; os.O_TRUNC is rejected.
func WithMode(mode int) Option {
	return func(o *options) {
		o.mode = mode
	}
}

// WithCreate controls whether a missing lock file is created. With false,
// Acquire fails with an error matching fs.ErrNotExist instead.
func WithCreate(create bool) Option {
	return func(o *options) {
		o.create = create
	}
}

// WithPerm sets the permissions of created lock files.
func WithPerm(perm os.FileMode) Option {
	return func(o *options) {
		o.perm = perm
	}
}

// WithTruncate truncates the lock file to size once the lock is held.
func WithTruncate(size int64) Option {
	return func(o *options) {
		o.truncate = &size
	}
}

// WithLogger sets the logger used for contention and misuse messages.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithPlatform replaces the operating system lock primitive.
func WithPlatform(p platform.Locker) Option {
	return func(o *options) {
		o.platform = p
	}
}

// WithClock replaces the clock used for deadlines and sleeping.
func WithClock(clock Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithRand replaces the jitter source. fn must return values in [0, 1).
func WithRand(fn func() float64) Option {
	return func(o *options) {
		o.rand = fn
	}
}

// WithRedisClient makes a RedisLock use client. The lock never closes it.
func WithRedisClient(client *redis.Client) Option {
	return func(o *options) {
		o.redisClient = client
	}
}

// WithRedisOptions makes a RedisLock open (and own) its own client.
func WithRedisOptions(opts *redis.Options) Option {
	return func(o *options) {
		o.redisOptions = opts
	}
}

// WithPubSub makes a RedisLock use an arbitrary broker.
func WithPubSub(ps PubSub) Option {
	return func(o *options) {
		o.pubsub = ps
	}
}

// WithName sets the name shared by the slots of a BoundedSemaphore.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithDirectory sets where a BoundedSemaphore keeps its slot files.
func WithDirectory(dir string) Option {
	return func(o *options) {
		o.directory = dir
	}
}

// AcquireOption overrides a retry setting for a single Acquire call.
type AcquireOption func(*retryParams)

// WithAcquireTimeout overrides the timeout for one call.
func WithAcquireTimeout(timeout time.Duration) AcquireOption {
	return func(p *retryParams) {
		p.timeout = timeout
	}
}

// WithAcquireCheckInterval overrides the check interval for one call.
func WithAcquireCheckInterval(interval time.Duration) AcquireOption {
	return func(p *retryParams) {
		p.checkInterval = interval
	}
}

// WithAcquireFailWhenLocked overrides fail-when-locked for one call.
func WithAcquireFailWhenLocked(fail bool) AcquireOption {
	return func(p *retryParams) {
		p.failWhenLocked = fail
	}
}
