// internal/service/inventory/wire.go
package inventory

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"marketbot/internal/pkg/bootstrap"
	"marketbot/internal/pkg/logger"
	"marketbot/internal/pkg/mq"
	"marketbot/internal/pkg/redis"
	"marketbot/internal/service/inventory/application"
	"marketbot/internal/service/inventory/domain/port"
	"marketbot/internal/service/inventory/infrastructure"
	"marketbot/internal/zookeeper"
)

// Components 是按配置装配好的引擎及其依赖，服务进程和运维 CLI 共用
type Components struct {
	Service *application.Service
	Ledger  port.LedgerStore
	Orders  *infrastructure.GormOrderStore

	closers []bootstrap.Closer
}

// Closers 按打开顺序返回需要关闭的资源，StartService 会逆序调用
func (c *Components) Closers() []bootstrap.Closer {
	return c.closers
}

// Close 逆序关闭所有资源，供不经过 StartService 的调用方 (CLI) 使用
func (c *Components) Close(ctx context.Context) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("Error closing resource")
		}
	}
}

// Build 根据配置选择账本存储、订单存储、锁和事件发布者。
// withEvents=false 时不创建 Kafka 生产者 (CLI 不发布事件)。
func Build(ctx context.Context, cfg bootstrap.Config, withEvents bool) (_ *Components, err error) {
	c := &Components{}
	defer func() {
		if err != nil {
			c.Close(ctx)
		}
	}()

	db, err := openSQL(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	c.Orders = infrastructure.NewGormOrderStore(db)

	var rdb goredis.UniversalClient
	if cfg.Ledger.Backend == "redis" || cfg.Lock.Backend == "redis" {
		if rdb, err = redis.NewClient(ctx, cfg.Infra.Redis); err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func(context.Context) error { return rdb.Close() })
	}

	switch cfg.Ledger.Backend {
	case "redis":
		c.Ledger = infrastructure.NewRedisLedgerStore(rdb, cfg.Ledger.RedisKey)
	default:
		c.Ledger = infrastructure.NewGormLedgerStore(db)
	}

	locker, err := c.buildLocker(cfg, db, rdb)
	if err != nil {
		return nil, err
	}

	opts := []application.Option{
		application.WithTracer(otel.Tracer(cfg.App.Name)),
		application.WithLockOptions(port.AcquireOptions{
			Timeout:      cfg.Lock.Timeout,
			PollInterval: cfg.Lock.PollInterval,
			TTL:          cfg.Lock.TTL,
		}),
	}
	if withEvents && cfg.Infra.Kafka.Enabled {
		writer := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.EventTopic)
		c.closers = append(c.closers, func(context.Context) error { return writer.Close() })
		opts = append(opts, application.WithEventPublisher(infrastructure.NewKafkaEventPublisher(writer)))
	}

	c.Service = application.NewService(c.Ledger, c.Orders, locker, opts...)
	logger.Ctx(ctx).Info().
		Str("ledger", cfg.Ledger.Backend).
		Str("lock", cfg.Lock.Backend).
		Bool("events", withEvents && cfg.Infra.Kafka.Enabled).
		Msg("✅ Inventory engine assembled.")
	return c, nil
}

// openSQL 订单始终在 SQL 中: 配置了 MySQL DSN 就用 MySQL，否则使用 SQLite 文件
func openSQL(ctx context.Context, cfg bootstrap.Config) (*gorm.DB, error) {
	if cfg.Ledger.Backend == "mysql" || (cfg.Ledger.Backend == "redis" && cfg.Infra.MySQL.DSN != "") {
		return infrastructure.OpenDB(ctx, infrastructure.DBConfig{
			Driver:       "mysql",
			DSN:          cfg.Infra.MySQL.DSN,
			MaxOpenConns: cfg.Infra.MySQL.MaxOpenConns,
			MaxIdleConns: cfg.Infra.MySQL.MaxIdleConns,
			ConnMaxLife:  cfg.Infra.MySQL.ConnMaxLife,
		})
	}
	return infrastructure.OpenDB(ctx, infrastructure.DBConfig{Driver: "sqlite", DSN: cfg.Infra.SQLite.Path})
}

func (c *Components) buildLocker(cfg bootstrap.Config, db *gorm.DB, rdb goredis.UniversalClient) (port.Locker, error) {
	switch cfg.Lock.Backend {
	case "redis":
		return infrastructure.NewRedisLocker(rdb, cfg.Lock.Name), nil
	case "zookeeper":
		conn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, cfg.Infra.Zookeeper.SessionTimeout)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func(context.Context) error { conn.Close(); return nil })
		return zookeeper.NewDistributedLock(conn, cfg.Infra.Zookeeper.Root, cfg.Lock.Name), nil
	case "sql":
		return infrastructure.NewGormLocker(db, cfg.Lock.Name), nil
	case "local":
		return infrastructure.NewLocalLocker(), nil
	}
	return nil, fmt.Errorf("unknown lock backend %q", cfg.Lock.Backend)
}
