package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"marketbot/internal/service/inventory/domain"
	"marketbot/internal/service/inventory/domain/port"
)

// GormOrderStore 是 port.OrderStore 的 GORM 实现
type GormOrderStore struct {
	db *gorm.DB
}

func NewGormOrderStore(db *gorm.DB) *GormOrderStore {
	return &GormOrderStore{db: db}
}

func (r *GormOrderStore) FindByID(ctx context.Context, orderID string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, port.ErrOrderNotFound
		}
		return nil, errors.Wrapf(err, "orders: find %s", orderID)
	}
	return toDomainOrder(&model), nil
}

// UpdateInventory 只更新库存相关的列。
// 先确认订单存在再更新，MySQL 在值未变化时 RowsAffected 为 0，不能用它判断订单是否存在。
func (r *GormOrderStore) UpdateInventory(ctx context.Context, orderID string, f domain.InventoryFields) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&OrderModel{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
			return errors.Wrapf(err, "orders: check %s", orderID)
		}
		if count == 0 {
			return port.ErrOrderNotFound
		}
		m := toOrderModel(&domain.Order{OrderID: orderID, InventoryFields: f})
		// Select 指定列，零值 (false/""/0) 也会被写入
		err := tx.Model(&OrderModel{}).Where("order_id = ?", orderID).
			Select("inv_mode", "sku", "inv_qty", "inv_items", "inv_reserved", "inv_deducted", "inv_reason").
			Updates(m).Error
		if err != nil {
			return errors.Wrapf(err, "orders: update inventory %s", orderID)
		}
		return nil
	})
}

func (r *GormOrderStore) ListReserved(ctx context.Context) ([]domain.Order, error) {
	var models []OrderModel
	if err := r.db.WithContext(ctx).Where("inv_reserved = ?", true).Order("order_id").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "orders: list reserved")
	}
	orders := make([]domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, *toDomainOrder(&models[i]))
	}
	return orders, nil
}

// Create 只供运维工具和测试使用；生产环境订单由订单子系统创建
func (r *GormOrderStore) Create(ctx context.Context, order *domain.Order) error {
	if err := r.db.WithContext(ctx).Create(toOrderModel(order)).Error; err != nil {
		return errors.Wrapf(err, "orders: create %s", order.OrderID)
	}
	return nil
}

// Delete 只供运维工具和测试使用
func (r *GormOrderStore) Delete(ctx context.Context, orderID string) error {
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&OrderModel{}).Error; err != nil {
		return errors.Wrapf(err, "orders: delete %s", orderID)
	}
	return nil
}
