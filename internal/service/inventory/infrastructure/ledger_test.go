package infrastructure

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketbot/internal/service/inventory/domain"
	"marketbot/internal/service/inventory/domain/port"
)

func ledgerFixture() domain.Dataset {
	return domain.Dataset{
		"seller-1": {
			{BaseSKU: "shirt", Stock: 10, Reserved: 4, Variations: []domain.Variant{
				{VariantID: "red", Stock: 3, Reserved: 1, PriceDelta: decimal.RequireFromString("2.50")},
				{VariantID: "blue", Stock: 2, PriceDelta: decimal.RequireFromString("-1.00")},
			}},
			{BaseSKU: "mug", Stock: 7},
		},
		"seller-2": {
			{BaseSKU: "poster", Stock: 1},
		},
	}
}

func assertLedgerRoundTrip(t *testing.T, store port.LedgerStore) {
	t.Helper()
	ctx := context.Background()

	empty, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, store.Save(ctx, ledgerFixture()))
	got, err := store.Load(ctx)
	require.NoError(t, err)

	require.Len(t, got["seller-1"], 2)
	shirt := got.FindProduct("shirt")
	require.NotNil(t, shirt)
	assert.Equal(t, 10, shirt.Stock)
	assert.Equal(t, 4, shirt.Reserved)
	require.Len(t, shirt.Variations, 2)
	assert.Equal(t, "red", shirt.Variations[0].VariantID)
	assert.True(t, decimal.RequireFromString("2.5").Equal(shirt.Variations[0].PriceDelta))
	assert.True(t, decimal.RequireFromString("-1").Equal(shirt.Variations[1].PriceDelta))
	assert.Equal(t, "mug", got["seller-1"][1].BaseSKU)
	assert.NotNil(t, got.FindProduct("poster"))

	// 第二次保存整体替换
	c, _ := got.Resolve(domain.SKU{Base: "shirt", Variant: "blue"})
	c.Reserve(2)
	delete(got, "seller-2")
	require.NoError(t, store.Save(ctx, got))

	again, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, again.FindProduct("poster"))
	assert.Equal(t, 2, again.FindProduct("shirt").Variations[1].Reserved)
}

func TestGormLedgerStoreRoundTrip(t *testing.T) {
	assertLedgerRoundTrip(t, NewGormLedgerStore(setupTestDB(t)))
}

func TestRedisLedgerStoreRoundTrip(t *testing.T) {
	_, rdb := setupTestRedis(t)
	assertLedgerRoundTrip(t, NewRedisLedgerStore(rdb, ""))
}

func TestRedisLedgerStoreDefaultsMissingCounters(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	// 旧数据没有 reserved 字段，stock 为负数
	require.NoError(t, mr.Set(DefaultLedgerKey, `{"o":[{"base_sku":"hat","stock":-2,"variations":[{"variant_id":"s","stock":5}]}]}`))

	ds, err := NewRedisLedgerStore(rdb, "").Load(context.Background())
	require.NoError(t, err)
	hat := ds.FindProduct("hat")
	require.NotNil(t, hat)
	assert.Equal(t, 0, hat.Stock)
	assert.Equal(t, 0, hat.Reserved)
	assert.Equal(t, 5, hat.Variations[0].Stock)
	assert.True(t, hat.Variations[0].PriceDelta.IsZero())
}

func TestRedisLedgerStoreWireFormat(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	require.NoError(t, NewRedisLedgerStore(rdb, "k").Save(context.Background(), domain.Dataset{
		"o": {{BaseSKU: "hat", Stock: 1, Variations: []domain.Variant{{VariantID: "s", Stock: 1, PriceDelta: decimal.RequireFromString("0.5")}}}},
	}))
	raw, err := mr.Get("k")
	require.NoError(t, err)
	for _, field := range []string{`"base_sku"`, `"stock"`, `"reserved"`, `"variations"`, `"variant_id"`, `"price_delta"`} {
		assert.Contains(t, raw, field)
	}
}

func TestRedisLedgerStoreRejectsCorruptData(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	require.NoError(t, mr.Set(DefaultLedgerKey, "not json"))
	_, err := NewRedisLedgerStore(rdb, "").Load(context.Background())
	assert.Error(t, err)
}
