package infrastructure

import (
	"github.com/shopspring/decimal"

	"marketbot/internal/service/inventory/domain"
)

// ProductModel 对应 ledger_products 表
type ProductModel struct {
	ID         uint           `gorm:"primaryKey"`
	Owner      string         `gorm:"column:owner;size:64;index;not null"`
	Position   int            `gorm:"column:position;not null"`
	BaseSKU    string         `gorm:"column:base_sku;size:128;uniqueIndex;not null"`
	Stock      int            `gorm:"column:stock;not null;default:0"`
	Reserved   int            `gorm:"column:reserved;not null;default:0"`
	Variations []VariantModel `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
}

// TableName 指定 GORM 应该使用的表名
func (ProductModel) TableName() string {
	return "ledger_products"
}

// VariantModel 对应 ledger_variants 表
type VariantModel struct {
	ID         uint            `gorm:"primaryKey"`
	ProductID  uint            `gorm:"column:product_id;uniqueIndex:idx_variant;not null"`
	VariantID  string          `gorm:"column:variant_id;size:128;uniqueIndex:idx_variant;not null"`
	Position   int             `gorm:"column:position;not null"`
	Stock      int             `gorm:"column:stock;not null;default:0"`
	Reserved   int             `gorm:"column:reserved;not null;default:0"`
	PriceDelta decimal.Decimal `gorm:"column:price_delta;type:decimal(12,2);not null;default:0"`
}

func (VariantModel) TableName() string {
	return "ledger_variants"
}

// OrderModel 只映射订单表中与库存相关的列，其余列由订单子系统维护
type OrderModel struct {
	OrderID     string        `gorm:"column:order_id;primaryKey;size:64"`
	InvMode     string        `gorm:"column:inv_mode;size:16"`
	SKU         string        `gorm:"column:sku;size:255"`
	InvQty      int           `gorm:"column:inv_qty"`
	InvItems    []domain.Item `gorm:"column:inv_items;serializer:json"`
	InvReserved bool          `gorm:"column:inv_reserved;index"`
	InvDeducted bool          `gorm:"column:inv_deducted"`
	InvReason   string        `gorm:"column:inv_reason;size:255"`
}

func (OrderModel) TableName() string {
	return "orders"
}

func toDomainDataset(models []ProductModel) domain.Dataset {
	ds := domain.Dataset{}
	for _, m := range models {
		p := domain.Product{BaseSKU: m.BaseSKU, Stock: m.Stock, Reserved: m.Reserved}
		for _, v := range m.Variations {
			p.Variations = append(p.Variations, domain.Variant{
				VariantID:  v.VariantID,
				Stock:      v.Stock,
				Reserved:   v.Reserved,
				PriceDelta: v.PriceDelta,
			})
		}
		ds[m.Owner] = append(ds[m.Owner], p)
	}
	return ds
}

func toProductModels(ds domain.Dataset) []ProductModel {
	var models []ProductModel
	for _, owner := range ds.Owners() {
		for i, p := range ds[owner] {
			m := ProductModel{Owner: owner, Position: i, BaseSKU: p.BaseSKU, Stock: p.Stock, Reserved: p.Reserved}
			for j, v := range p.Variations {
				m.Variations = append(m.Variations, VariantModel{
					VariantID:  v.VariantID,
					Position:   j,
					Stock:      v.Stock,
					Reserved:   v.Reserved,
					PriceDelta: v.PriceDelta,
				})
			}
			models = append(models, m)
		}
	}
	return models
}

func toDomainOrder(m *OrderModel) *domain.Order {
	return &domain.Order{
		OrderID: m.OrderID,
		InventoryFields: domain.InventoryFields{
			Mode:     domain.Mode(m.InvMode),
			SKU:      m.SKU,
			Qty:      m.InvQty,
			Items:    m.InvItems,
			Reserved: m.InvReserved,
			Deducted: m.InvDeducted,
			Reason:   m.InvReason,
		},
	}
}

func toOrderModel(o *domain.Order) *OrderModel {
	return &OrderModel{
		OrderID:     o.OrderID,
		InvMode:     string(o.Mode),
		SKU:         o.SKU,
		InvQty:      o.Qty,
		InvItems:    o.Items,
		InvReserved: o.Reserved,
		InvDeducted: o.Deducted,
		InvReason:   o.Reason,
	}
}
