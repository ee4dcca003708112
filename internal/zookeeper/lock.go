// internal/zookeeper/lock.go
package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/google/uuid"

	"marketbot/internal/pkg/logger"
	"marketbot/internal/service/inventory/domain/port"
)

const (
	DefaultRoot = "/distributed_locks" // 所有分布式锁的根节点
)

// Conn 是锁用到的 *zk.Conn 方法子集
type Conn interface {
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	Get(path string) ([]byte, *zk.Stat, error)
	Delete(path string, version int32) error
	ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error)
}

// Connect 建立 ZooKeeper 会话。会话过期时临时节点会被自动删除，崩溃的持锁者不会永久占用锁。
func Connect(servers []string, sessionTimeout time.Duration) (*zk.Conn, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect zookeeper %v: %w", servers, err)
	}
	return conn, nil
}

// DistributedLock 用一个固定路径的临时节点实现互斥:
// Create 本身就是原子的 "不存在才创建"，节点已存在时等待删除事件或轮询间隔后重试。
type DistributedLock struct {
	conn Conn
	root string
	path string // 锁节点路径，例如 /distributed_locks/inventory:ledger
}

// NewDistributedLock 创建一个新的分布式锁实例
func NewDistributedLock(conn Conn, root, resourceID string) *DistributedLock {
	if root == "" {
		root = DefaultRoot
	}
	return &DistributedLock{
		conn: conn,
		root: root,
		path: path.Join(root, strings.ReplaceAll(resourceID, "/", "_")),
	}
}

// Path 返回锁节点路径
func (l *DistributedLock) Path() string { return l.path }

// Acquire 阻塞直到拿到锁，超时返回 port.ErrLockTimeout
func (l *DistributedLock) Acquire(ctx context.Context, opts port.AcquireOptions) (port.Lease, error) {
	opts = opts.WithDefaults()
	if err := l.ensureRoot(); err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	token := uuid.NewString()
	for {
		_, err := l.conn.Create(l.path, []byte(token), zk.FlagEphemeral, zk.WorldACL(zk.PermAll))
		if err == nil {
			return &zkLease{lock: l, token: token}, nil
		}
		if !errors.Is(err, zk.ErrNodeExists) {
			return nil, fmt.Errorf("failed to create lock node %s: %w", l.path, err)
		}

		// 节点已被别人持有，监听删除事件，同时用轮询间隔兜底
		exists, _, events, err := l.conn.ExistsW(l.path)
		if err != nil {
			return nil, fmt.Errorf("failed to watch lock node %s: %w", l.path, err)
		}
		if !exists {
			continue
		}
		timer := time.NewTimer(opts.PollInterval)
		select {
		case <-events:
		case <-timer.C:
		case <-waitCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, port.ErrLockTimeout
		}
		timer.Stop()
	}
}

// ensureRoot 创建根节点，生产环境通常由初始化脚本完成
func (l *DistributedLock) ensureRoot() error {
	parts := strings.Split(strings.Trim(l.root, "/"), "/")
	current := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		current += "/" + p
		_, err := l.conn.Create(current, nil, 0, zk.WorldACL(zk.PermAll))
		if err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return fmt.Errorf("failed to create lock root node %s: %w", current, err)
		}
	}
	return nil
}

type zkLease struct {
	lock  *DistributedLock
	token string

	mu       sync.Mutex
	released bool
}

// Release 只删除自己创建的节点，可以重复调用
func (z *zkLease) Release(ctx context.Context) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.released {
		return nil
	}

	data, stat, err := z.lock.conn.Get(z.lock.path)
	if errors.Is(err, zk.ErrNoNode) {
		z.warnLost(ctx)
		z.released = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read lock node: %w", err)
	}
	if string(data) != z.token {
		// 会话过期后节点已被别人重新创建
		z.warnLost(ctx)
		z.released = true
		return nil
	}
	err = z.lock.conn.Delete(z.lock.path, stat.Version)
	if err != nil && !errors.Is(err, zk.ErrNoNode) && !errors.Is(err, zk.ErrBadVersion) {
		return fmt.Errorf("failed to delete lock node: %w", err)
	}
	z.released = true
	return nil
}

func (z *zkLease) warnLost(ctx context.Context) {
	logger.Ctx(ctx).Warn().Str("path", z.lock.path).
		Msg("⚠️ zookeeper lock node gone before release, critical section may have overlapped")
}
