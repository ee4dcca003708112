package port

import (
	"context"
	"errors"

	"marketbot/internal/service/inventory/domain"
)

var ErrOrderNotFound = errors.New("order not found")

// LedgerStore 以整体为单位读写商品/规格数据集。
// Store 本身不加锁，串行化由引擎负责；Save 对读者必须是原子的。
type LedgerStore interface {
	Load(ctx context.Context) (domain.Dataset, error)
	Save(ctx context.Context, ds domain.Dataset) error
}

// OrderStore 是订单子系统的出站端口。引擎只读订单并更新库存字段，从不创建订单。
type OrderStore interface {
	// FindByID 订单不存在时返回 ErrOrderNotFound
	FindByID(ctx context.Context, orderID string) (*domain.Order, error)
	// UpdateInventory 只写 inv_* 与 sku 字段，订单不存在时返回 ErrOrderNotFound
	UpdateInventory(ctx context.Context, orderID string, fields domain.InventoryFields) error
	// ListReserved 返回所有 inv_reserved=true 的订单，供对账使用
	ListReserved(ctx context.Context) ([]domain.Order, error)
}

// EventPublisher 发布库存事件，失败不影响业务结果
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.InventoryEvent) error
}
