package infrastructure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketbot/internal/service/inventory/domain"
	"marketbot/internal/service/inventory/domain/port"
)

func TestGormOrderStore(t *testing.T) {
	ctx := context.Background()
	store := NewGormOrderStore(setupTestDB(t))

	_, err := store.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, port.ErrOrderNotFound)
	err = store.UpdateInventory(ctx, "missing", domain.InventoryFields{Reserved: true})
	assert.ErrorIs(t, err, port.ErrOrderNotFound)

	require.NoError(t, store.Create(ctx, &domain.Order{OrderID: "o-1"}))
	require.NoError(t, store.Create(ctx, &domain.Order{OrderID: "o-2"}))

	fields := domain.InventoryFields{
		Mode:     domain.ModeCart,
		SKU:      domain.CartPlaceholderSKU("o-1"),
		Items:    []domain.Item{{SKU: "A", Qty: 2}, {SKU: "B|x", Qty: 1}},
		Reserved: true,
	}
	require.NoError(t, store.UpdateInventory(ctx, "o-1", fields))
	// 重复写入相同的值不能被误判为订单不存在
	require.NoError(t, store.UpdateInventory(ctx, "o-1", fields))

	got, err := store.FindByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", got.OrderID)
	assert.Equal(t, fields, got.InventoryFields)

	reserved, err := store.ListReserved(ctx)
	require.NoError(t, err)
	require.Len(t, reserved, 1)
	assert.Equal(t, "o-1", reserved[0].OrderID)

	// 零值字段也要写回
	require.NoError(t, store.UpdateInventory(ctx, "o-1", domain.InventoryFields{Mode: domain.ModeCart, Items: fields.Items, Reason: "expired"}))
	got, err = store.FindByID(ctx, "o-1")
	require.NoError(t, err)
	assert.False(t, got.Reserved)
	assert.Equal(t, "expired", got.Reason)
	assert.Empty(t, got.SKU)

	require.NoError(t, store.Delete(ctx, "o-2"))
	_, err = store.FindByID(ctx, "o-2")
	assert.ErrorIs(t, err, port.ErrOrderNotFound)
}
