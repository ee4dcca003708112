package interfaces

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"marketbot/internal/service/inventory/application"
	"marketbot/internal/service/inventory/domain"
	"marketbot/internal/service/inventory/infrastructure"
)

type testEnv struct {
	svc    *application.Service
	ledger *infrastructure.GormLedgerStore
	orders *infrastructure.GormOrderStore
}

// newTestEnv 用临时 SQLite 文件搭一个完整的引擎，预置 mug/shirt 两个商品和若干订单
func newTestEnv(t *testing.T, orderIDs ...string) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := infrastructure.OpenDB(ctx, infrastructure.DBConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "inventory.db"),
		LogLevel: gormlogger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	env := &testEnv{
		ledger: infrastructure.NewGormLedgerStore(db),
		orders: infrastructure.NewGormOrderStore(db),
	}
	require.NoError(t, env.ledger.Save(ctx, domain.Dataset{
		"seller-1": {
			{BaseSKU: "mug", Stock: 5},
			{BaseSKU: "shirt", Stock: 10, Variations: []domain.Variant{{VariantID: "red", Stock: 3}}},
		},
	}))
	for _, id := range orderIDs {
		require.NoError(t, env.orders.Create(ctx, &domain.Order{OrderID: id}))
	}
	env.svc = application.NewService(env.ledger, env.orders, infrastructure.NewLocalLocker())
	return env
}

func (e *testEnv) available(t *testing.T, sku string) int {
	t.Helper()
	n, found, err := e.svc.GetAvailableStock(context.Background(), sku)
	require.NoError(t, err)
	require.True(t, found)
	return n
}

func (e *testEnv) order(t *testing.T, id string) *domain.Order {
	t.Helper()
	o, err := e.orders.FindByID(context.Background(), id)
	require.NoError(t, err)
	return o
}
