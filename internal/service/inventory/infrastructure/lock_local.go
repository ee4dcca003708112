package infrastructure

import (
	"context"
	"sync"
	"time"

	"marketbot/internal/service/inventory/domain/port"
)

// LocalLocker 是单实例部署使用的进程内锁。
// 用容量为 1 的 channel 作为令牌，获取时按轮询间隔重试直到超时。
type LocalLocker struct {
	token chan struct{}
}

func NewLocalLocker() *LocalLocker {
	l := &LocalLocker{token: make(chan struct{}, 1)}
	l.token <- struct{}{}
	return l
}

func (l *LocalLocker) Acquire(ctx context.Context, opts port.AcquireOptions) (port.Lease, error) {
	opts = opts.WithDefaults()
	deadline := time.NewTimer(opts.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.token:
			return &localLease{l: l}, nil
		default:
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, port.ErrLockTimeout
		case <-ticker.C:
		}
	}
}

type localLease struct {
	l    *LocalLocker
	once sync.Once
}

func (lease *localLease) Release(context.Context) error {
	lease.once.Do(func() { lease.l.token <- struct{}{} })
	return nil
}
