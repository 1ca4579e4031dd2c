package lock

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultRedisAddr is dialled when a RedisLock gets no client or options.
	DefaultRedisAddr = "localhost:6379"

	redisUnsubscribeTimeout = 5 * time.Second
)

// PubSub is the broker surface RedisLock relies on.
type PubSub interface {
	// NumSub returns the number of subscribers of channel.
	NumSub(ctx context.Context, channel string) (int64, error)
	// Subscribe subscribes to channel and returns once the broker confirmed it.
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Subscription is a live subscription to one channel.
type Subscription interface {
	Unsubscribe(ctx context.Context) error
}

type redisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub adapts a go-redis client to PubSub.
func NewRedisPubSub(client *redis.Client) PubSub {
	return redisPubSub{client: client}
}

func (p redisPubSub) NumSub(ctx context.Context, channel string) (int64, error) {
	counts, err := p.client.PubSubNumSub(ctx, channel).Result()
	if err != nil {
		return 0, err
	}
	return counts[channel], nil
}

func (p redisPubSub) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := p.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	return &redisSubscription{pubsub: ps, channel: channel}, nil
}

type redisSubscription struct {
	pubsub  *redis.PubSub
	channel string
}

// Unsubscribe waits for the broker to confirm before closing the dedicated
// connection, so the subscriber count has dropped when it returns.
func (s *redisSubscription) Unsubscribe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, redisUnsubscribeTimeout)
	defer cancel()

	err := s.pubsub.Unsubscribe(ctx, s.channel)
	if err == nil {
		err = s.awaitUnsubscribed(ctx)
	}
	closeErr := s.pubsub.Close()
	if errors.Is(err, redis.ErrClosed) {
		err = nil
	}
	if errors.Is(closeErr, redis.ErrClosed) {
		closeErr = nil
	}
	return errors.Join(err, closeErr)
}

func (s *redisSubscription) awaitUnsubscribed(ctx context.Context) error {
	for {
		msg, err := s.pubsub.Receive(ctx)
		if err != nil {
			return err
		}
		if sub, ok := msg.(*redis.Subscription); ok && sub.Kind == "unsubscribe" && sub.Channel == s.channel {
			return nil
		}
	}
}

// RedisLock is a distributed lock whose token is being the only subscriber
// of a pubsub channel. The broker drops subscriptions of dead connections, so
// a crashed holder releases the lock without any TTL.
//
// Between counting and subscribing two contenders can both see zero; the
// second count catches most of these races but the guarantee is best-effort.
type RedisLock struct {
	channel string
	opts    *options
	pubsub  PubSub
	// client is set only when the lock opened it and must close it.
	client *redis.Client

	sub     Subscription
	cleanup runtime.Cleanup
}

// NewRedisLock returns an unlocked RedisLock on channel. Without
// WithRedisClient or WithPubSub it opens its own client, closed by Close.
func NewRedisLock(channel string, opts ...Option) *RedisLock {
	o := defaultOptions().apply(opts)
	l := &RedisLock{channel: channel, opts: o}
	switch {
	case o.pubsub != nil:
		l.pubsub = o.pubsub
	case o.redisClient != nil:
		l.pubsub = NewRedisPubSub(o.redisClient)
	default:
		ro := o.redisOptions
		if ro == nil {
			ro = &redis.Options{Addr: DefaultRedisAddr}
		}
		l.client = redis.NewClient(ro)
		l.pubsub = NewRedisPubSub(l.client)
	}
	return l
}

// Channel returns the channel used as the lock.
func (l *RedisLock) Channel() string {
	return l.channel
}

// Held reports whether this instance holds the lock.
func (l *RedisLock) Held() bool {
	return l.sub != nil
}

// Acquire subscribes to the channel once it has no subscribers.
func (l *RedisLock) Acquire(ctx context.Context, opts ...AcquireOption) error {
	if l.sub != nil {
		return &Error{Op: "acquire", Name: l.channel, Kind: ErrAlreadyHeld}
	}
	r := newRetrier(l.opts, backendRedis, opts)
	if err := r.run(ctx, l.channel, l.attempt); err != nil {
		return err
	}
	l.cleanup = runtime.AddCleanup(l, releaseLeakedSubscription, leakedSubscription{
		sub:     l.sub,
		channel: l.channel,
		log:     l.opts.logger,
	})
	observeHeld(backendRedis, 1)
	return nil
}

func (l *RedisLock) attempt(ctx context.Context) (bool, error) {
	n, err := l.pubsub.NumSub(ctx, l.channel)
	if err != nil {
		return false, &Error{Op: "numsub", Name: l.channel, Kind: ErrLockFailed, Err: err}
	}
	if n > 0 {
		return false, nil
	}

	sub, err := l.pubsub.Subscribe(ctx, l.channel)
	if err != nil {
		return false, &Error{Op: "subscribe", Name: l.channel, Kind: ErrLockFailed, Err: err}
	}
	n, err = l.pubsub.NumSub(ctx, l.channel)
	if err != nil {
		_ = sub.Unsubscribe(ctx)
		return false, &Error{Op: "numsub", Name: l.channel, Kind: ErrLockFailed, Err: err}
	}
	if n == 1 {
		l.sub = sub
		return true, nil
	}

	l.opts.logger.WithFields(logrus.Fields{
		"lock":        l.channel,
		"subscribers": n,
	}).Debug("lost subscribe race, backing off")
	if err := sub.Unsubscribe(ctx); err != nil {
		return false, &Error{Op: "unsubscribe", Name: l.channel, Kind: ErrLockFailed, Err: err}
	}
	return false, nil
}

// Release unsubscribes from the channel. Releasing an unheld lock is a no-op.
func (l *RedisLock) Release(ctx context.Context) error {
	sub := l.sub
	if sub == nil {
		return nil
	}
	l.sub = nil
	l.cleanup.Stop()
	observeHeld(backendRedis, -1)
	if err := sub.Unsubscribe(ctx); err != nil {
		return &Error{Op: "release", Name: l.channel, Err: err}
	}
	return nil
}

// Close releases the lock and closes the client if the lock opened it.
func (l *RedisLock) Close() error {
	err := l.Release(context.Background())
	if l.client != nil {
		err = errors.Join(err, l.client.Close())
		l.client = nil
	}
	return err
}

type leakedSubscription struct {
	sub     Subscription
	channel string
	log     logrus.FieldLogger
}

func releaseLeakedSubscription(s leakedSubscription) {
	observeHeld(backendRedis, -1)
	if err := s.sub.Unsubscribe(context.Background()); err != nil {
		s.log.WithField("lock", s.channel).Errorf("release leaked lock: %v", err)
		return
	}
	s.log.WithField("lock", s.channel).Warn("lock released by garbage collector; release it explicitly")
}
