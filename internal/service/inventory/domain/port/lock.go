package port

import (
	"context"
	"time"

	"marketbot/internal/service/inventory/domain"
)

const (
	DefaultLockTimeout      = 3 * time.Second
	DefaultLockPollInterval = 50 * time.Millisecond
	DefaultLockTTL          = 30 * time.Second
)

// ErrLockTimeout 在超时时间内拿不到锁时返回，调用方可以退避重试
var ErrLockTimeout = domain.ErrLockTimeout

// AcquireOptions 控制一次加锁的等待行为。
// TTL 限定持有者崩溃后锁最多被占用多久 (ZooKeeper 依赖会话过期，不使用 TTL)。
type AcquireOptions struct {
	Timeout      time.Duration
	PollInterval time.Duration
	TTL          time.Duration
}

// WithDefaults 为零值字段填充默认值
func (o AcquireOptions) WithDefaults() AcquireOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultLockTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultLockPollInterval
	}
	if o.TTL <= 0 {
		o.TTL = DefaultLockTTL
	}
	return o
}

// Lease 代表一次成功的加锁。Release 可以重复调用。
type Lease interface {
	Release(ctx context.Context) error
}

// Locker 是保护账本修改的跨进程互斥锁。
// 实现必须使用原子的 "不存在才创建" 原语，不能先检查再创建。
type Locker interface {
	Acquire(ctx context.Context, opts AcquireOptions) (Lease, error)
}
