package inventory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketbot/internal/pkg/bootstrap"
	"marketbot/internal/service/inventory/domain"
	"marketbot/internal/service/inventory/infrastructure"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name      string
		ledger    string
		lock      string
		wantRedis bool
	}{
		{name: "sqlite ledger with local lock", ledger: "sqlite", lock: "local"},
		{name: "sqlite ledger with sql lock", ledger: "sqlite", lock: "sql"},
		{name: "redis ledger with redis lock", ledger: "redis", lock: "redis", wantRedis: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			cfg := bootstrap.DefaultConfig()
			cfg.Ledger.Backend = tt.ledger
			cfg.Lock.Backend = tt.lock
			cfg.Infra.SQLite.Path = filepath.Join(t.TempDir(), "inventory.db")
			if tt.ledger == "redis" || tt.lock == "redis" {
				cfg.Infra.Redis.Addrs = []string{miniredis.RunT(t).Addr()}
			}
			require.NoError(t, cfg.Validate())

			c, err := Build(ctx, cfg, true)
			require.NoError(t, err)
			defer c.Close(ctx)

			_, isRedis := c.Ledger.(*infrastructure.RedisLedgerStore)
			assert.Equal(t, tt.wantRedis, isRedis)

			require.NoError(t, c.Service.ReplaceDataset(ctx, domain.Dataset{"s": {{BaseSKU: "mug", Stock: 2}}}))
			require.NoError(t, c.Orders.Create(ctx, &domain.Order{OrderID: "o1"}))

			res, err := c.Service.ReserveForPayment(ctx, "o1", "mug", 2)
			require.NoError(t, err)
			assert.True(t, res.OK, res.Reason)

			available, found, err := c.Service.GetAvailableStock(ctx, "mug")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, 0, available)
		})
	}
}

func TestBuildFailsOnUnreachableRedis(t *testing.T) {
	cfg := bootstrap.DefaultConfig()
	cfg.Lock.Backend = "redis"
	cfg.Infra.SQLite.Path = filepath.Join(t.TempDir(), "inventory.db")
	cfg.Infra.Redis.Addrs = []string{"127.0.0.1:1"}

	_, err := Build(context.Background(), cfg, false)
	assert.Error(t, err)
}
