package infrastructure

import (
	"context"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	applog "marketbot/internal/pkg/logger"
)

// DBConfig 描述如何打开账本/订单所在的数据库
type DBConfig struct {
	Driver       string // mysql | sqlite
	DSN          string // mysql DSN 或 sqlite 文件路径
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxLife  time.Duration
	LogLevel     logger.LogLevel
}

// OpenDB 打开数据库并迁移库存相关的表
func OpenDB(ctx context.Context, cfg DBConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dsnCfg, err := gomysql.ParseDSN(cfg.DSN)
		if err != nil {
			return nil, errors.Wrap(err, "parse mysql dsn")
		}
		// 时间列需要解析为 time.Time，并统一使用 UTC
		dsnCfg.ParseTime = true
		dsnCfg.Loc = time.UTC
		dialector = mysql.New(mysql.Config{DSNConfig: dsnCfg})
	case "sqlite":
		// WAL + busy_timeout 让多个进程 (服务与运维 CLI) 可以共享同一个文件
		dialector = sqlite.Open(cfg.DSN + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	default:
		return nil, errors.Errorf("unsupported database driver %q", cfg.Driver)
	}

	level := cfg.LogLevel
	if level == 0 {
		level = logger.Warn
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(level)})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", cfg.Driver)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql.DB")
	}
	if cfg.Driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLife > 0 {
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLife)
		}
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	applog.Ctx(ctx).Info().Str("driver", cfg.Driver).Msg("✅ Database connected and migrated.")
	return db, nil
}

// Migrate 创建/更新库存相关的表
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&ProductModel{}, &VariantModel{}, &OrderModel{}, &LockModel{}); err != nil {
		return errors.Wrap(err, "auto migrate")
	}
	return nil
}
