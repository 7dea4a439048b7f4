// Package lock provides keyed mutual exclusion for cache fills that may race
// across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned when the lock could not be taken before the wait expired
var ErrNotObtained = errors.New("lock not obtained")

// Locker hands out a release func for an exclusive hold on key
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// NopLocker never blocks; used when no Redis is configured
type NopLocker struct{}

func (NopLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

// RedisLocker implements Locker on top of redislock
type RedisLocker struct {
	client *redislock.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

// RedisOptions tunes RedisLocker
type RedisOptions struct {
	Prefix string
	// TTL bounds how long a crashed holder blocks others.
	TTL time.Duration
	// Wait bounds how long Acquire blocks before giving up.
	Wait  time.Duration
	Retry time.Duration
}

// NewRedisLocker builds a locker sharing rdb
func NewRedisLocker(rdb redis.UniversalClient, opts RedisOptions) *RedisLocker {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.Wait <= 0 {
		opts.Wait = 10 * time.Second
	}
	if opts.Retry <= 0 {
		opts.Retry = 100 * time.Millisecond
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		prefix: opts.Prefix,
		ttl:    opts.TTL,
		wait:   opts.Wait,
		retry:  opts.Retry,
	}
}

// Acquire blocks until key is held, Wait elapses, or ctx is done
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	lk, err := l.client.Obtain(waitCtx, l.prefix+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.retry),
	})
	if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = lk.Release(releaseCtx)
	}, nil
}

// NewRedisClient parses url, pings the server and returns the client
func NewRedisClient(ctx context.Context, url string, db int) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = db

	rc := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rc, nil
}
