package infrastructure

import (
	"context"
	"sync"

	"github.com/bsm/redislock"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"marketbot/internal/pkg/logger"
	"marketbot/internal/service/inventory/domain/port"
)

// RedisLocker 基于 bsm/redislock，底层是 SET NX PX，天然是原子的 "不存在才创建"。
// TTL 限定持锁进程崩溃后锁的最长占用时间。
type RedisLocker struct {
	client *redislock.Client
	key    string
}

func NewRedisLocker(rdb redis.UniversalClient, key string) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb), key: key}
}

func (r *RedisLocker) Acquire(ctx context.Context, opts port.AcquireOptions) (port.Lease, error) {
	opts = opts.WithDefaults()
	waitCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	lock, err := r.client.Obtain(waitCtx, r.key, opts.TTL, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(opts.PollInterval),
	})
	switch {
	case err == nil:
		return &redisLease{lock: lock}, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, redislock.ErrNotObtained), errors.Is(err, context.DeadlineExceeded):
		return nil, port.ErrLockTimeout
	default:
		return nil, errors.Wrapf(err, "redis lock %s", r.key)
	}
}

type redisLease struct {
	lock *redislock.Lock

	mu       sync.Mutex
	released bool
}

// Release 锁已过期 (ErrLockNotHeld) 视为已经释放，但临界区可能已经和别人重叠，需要告警
func (l *redisLease) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return nil
	}
	err := l.lock.Release(ctx)
	switch {
	case errors.Is(err, redislock.ErrLockNotHeld):
		logger.Ctx(ctx).Warn().Str("key", l.lock.Key()).
			Msg("⚠️ redis lock lease expired before release, critical section may have overlapped")
	case err != nil:
		return errors.Wrap(err, "redis lock release")
	}
	l.released = true
	return nil
}
