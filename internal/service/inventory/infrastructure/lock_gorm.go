package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketbot/internal/pkg/logger"
	"marketbot/internal/service/inventory/domain/port"
)

// LockModel 对应 ledger_locks 表，name 主键保证同一时刻只有一行
type LockModel struct {
	Name      string    `gorm:"column:name;primaryKey;size:128"`
	Owner     string    `gorm:"column:owner;size:64;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
}

func (LockModel) TableName() string {
	return "ledger_locks"
}

// GormLocker 用 SQL 主键冲突实现 "不存在才创建"，适合已有 MySQL 但没有 Redis/ZooKeeper 的部署。
type GormLocker struct {
	db   *gorm.DB
	name string
	now  func() time.Time
}

func NewGormLocker(db *gorm.DB, name string) *GormLocker {
	return &GormLocker{db: db, name: name, now: time.Now}
}

func (g *GormLocker) Acquire(ctx context.Context, opts port.AcquireOptions) (port.Lease, error) {
	opts = opts.WithDefaults()
	deadline := time.NewTimer(opts.Timeout)
	defer deadline.Stop()

	owner := uuid.NewString()
	for {
		ok, err := g.tryAcquire(ctx, owner, opts.TTL)
		if err != nil {
			return nil, err
		}
		if ok {
			return &gormLease{locker: g, owner: owner}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, port.ErrLockTimeout
		case <-time.After(opts.PollInterval):
		}
	}
}

func (g *GormLocker) tryAcquire(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	db := g.db.WithContext(ctx)
	now := g.now().UTC()

	// 回收过期的锁
	if err := db.Where("name = ? AND expires_at < ?", g.name, now).Delete(&LockModel{}).Error; err != nil {
		return false, errors.Wrap(err, "sql lock: purge expired")
	}

	row := LockModel{Name: g.name, Owner: owner, ExpiresAt: now.Add(ttl)}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return false, errors.Wrap(err, "sql lock: insert")
	}

	// 冲突时 DoNothing 不报错，以读回的 owner 判断是否是自己插入的
	var current LockModel
	if err := db.Where("name = ?", g.name).Take(&current).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, "sql lock: read back")
	}
	return current.Owner == owner, nil
}

type gormLease struct {
	locker *GormLocker
	owner  string
	once   sync.Once
	err    error
}

// Release 只删除自己持有的行，可以重复调用。
// 行已经不在说明租约过期后被别人回收，记一条告警。
func (l *gormLease) Release(ctx context.Context) error {
	l.once.Do(func() {
		result := l.locker.db.WithContext(ctx).
			Where("name = ? AND owner = ?", l.locker.name, l.owner).
			Delete(&LockModel{})
		if result.Error != nil {
			l.err = errors.Wrap(result.Error, "sql lock: release")
			return
		}
		if result.RowsAffected == 0 {
			logger.Ctx(ctx).Warn().Str("lock", l.locker.name).Str("owner", l.owner).
				Msg("⚠️ sql lock lease expired before release, critical section may have overlapped")
		}
	})
	return l.err
}
