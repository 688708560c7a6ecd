package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"rental_expiry_monitor/internal/domain/run"
)

const defaultLockKey = "lock:rental-expiry-monitor:run"

// Locker is the part of *redislock.Client the guard needs.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// RedisGuard extends the in-process guard across hosts sharing one table.
type RedisGuard struct {
	local  *LocalGuard
	locker Locker
	key    string
	ttl    time.Duration
	logger *logrus.Entry
}

func NewRedisGuard(local *LocalGuard, locker Locker, ttl time.Duration, logger *logrus.Entry) *RedisGuard {
	return &RedisGuard{
		local:  local,
		locker: locker,
		key:    defaultLockKey,
		ttl:    ttl,
		logger: logger,
	}
}

// NewRedisClient connects to Redis and checks the connection.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0, // use default DB
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// NewRedisLocker wraps a client in a redislock client.
func NewRedisLocker(rdb *redis.Client) *redislock.Client {
	return redislock.New(rdb)
}

// Acquire takes the local guard, then the shared Redis lock. When Redis cannot be reached the pass
// proceeds under the local guard only.
func (g *RedisGuard) Acquire(ctx context.Context) (func(), error) {
	releaseLocal, err := g.local.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	lock, err := g.locker.Obtain(ctx, g.key, g.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		releaseLocal()
		g.logger.WithField("key", g.key).Warn("Run lock is held by another host")
		return nil, run.ErrRunInProgress
	}
	if err != nil {
		g.logger.WithError(err).WithField("key", g.key).Warn("Error obtaining redis lock; proceeding with in-process guard only")
		return releaseLocal, nil
	}

	return func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			g.logger.WithError(err).WithField("key", g.key).Warn("Failed to release redis lock")
		}
		releaseLocal()
	}, nil
}
