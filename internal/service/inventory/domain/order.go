// internal/service/inventory/domain/order.go
package domain

import (
	"strings"
)

// Mode 是订单的库存模式
type Mode string

const (
	ModeSingle Mode = "single"
	ModeCart   Mode = "cart"
)

// Item 是购物车中的一行
type Item struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

// InventoryFields 是订单上由库存引擎独占写入的字段。
// 订单记录本身由订单子系统创建，引擎只更新这些字段。
type InventoryFields struct {
	Mode     Mode   `json:"inv_mode,omitempty"`
	SKU      string `json:"sku"`
	Qty      int    `json:"inv_qty"`
	Items    []Item `json:"inv_items"`
	Reserved bool   `json:"inv_reserved"`
	Deducted bool   `json:"inv_deducted"`
	Reason   string `json:"inv_reason"`
}

// Order 只包含库存引擎关心的字段
type Order struct {
	OrderID string `json:"order_id"`
	InventoryFields
}

// EffectiveMode 缺省视为 single
func (f InventoryFields) EffectiveMode() Mode {
	if f.Mode == "" {
		return ModeSingle
	}
	return f.Mode
}

func (f InventoryFields) IsCart() bool {
	return f.EffectiveMode() == ModeCart
}

// NormalizeQty 把数量下限钳制为 1
func NormalizeQty(qty int) int {
	if qty < 1 {
		return 1
	}
	return qty
}

// Line 是解析后的购物车行
type Line struct {
	Item Item
	SKU  SKU
}

// ParseItems 规范化购物车条目 (qty 至少为 1，sku 去空白)，
// 任意一行 sku 为空、"none" 或 "cart" 都会拒绝整个请求。
func ParseItems(items []Item) ([]Line, error) {
	if len(items) == 0 {
		return nil, &Error{Kind: KindInvalidRequest, Reason: "cart has no items"}
	}
	lines := make([]Line, 0, len(items))
	for _, it := range items {
		raw := strings.TrimSpace(it.SKU)
		if strings.EqualFold(raw, cartPlaceholder) {
			return nil, invalidSKU(it.SKU)
		}
		sku, err := ParseSKU(raw)
		if err != nil {
			return nil, err
		}
		lines = append(lines, Line{
			Item: Item{SKU: raw, Qty: NormalizeQty(it.Qty)},
			SKU:  sku,
		})
	}
	return lines, nil
}

// ItemsOf 取回规范化后的条目，用于写回订单
func ItemsOf(lines []Line) []Item {
	items := make([]Item, len(lines))
	for i, l := range lines {
		items[i] = l.Item
	}
	return items
}
