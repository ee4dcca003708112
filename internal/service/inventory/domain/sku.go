// internal/service/inventory/domain/sku.go
package domain

import (
	"fmt"
	"strings"
)

const (
	// SKUSeparator 分隔 base_sku 与 variant_id，例如 "shirt|red-xl"
	SKUSeparator = "|"

	placeholderNone = "none"
	cartPlaceholder = "cart"
	cartPrefix      = "cart:"
)

// SKU 是解析后的组合 SKU。Variant 为空表示直接作用于 Product 计数器。
type SKU struct {
	Base    string
	Variant string
}

// HasVariant 判断是否指向某个规格
func (s SKU) HasVariant() bool { return s.Variant != "" }

func (s SKU) String() string {
	if s.Variant == "" {
		return s.Base
	}
	return s.Base + SKUSeparator + s.Variant
}

// ParseSKU 在第一个分隔符处拆分 SKU。
// 空串、缺失或 "none"（大小写不敏感）都是非法输入，必须在任何查找之前拒绝。
func ParseSKU(raw string) (SKU, error) {
	token := strings.TrimSpace(raw)
	if isEmptyToken(token) {
		return SKU{}, invalidSKU(raw)
	}
	base, variant, _ := strings.Cut(token, SKUSeparator)
	base = strings.TrimSpace(base)
	if isEmptyToken(base) {
		return SKU{}, invalidSKU(raw)
	}
	variant = strings.TrimSpace(variant)
	if isEmptyToken(variant) {
		variant = ""
	}
	return SKU{Base: base, Variant: variant}, nil
}

// IsCartPlaceholder 判断 SKU 是否属于购物车占位命名空间 ("cart" 或 "cart:<id>")
func IsCartPlaceholder(raw string) bool {
	token := strings.ToLower(strings.TrimSpace(raw))
	return token == cartPlaceholder || strings.HasPrefix(token, cartPrefix)
}

// IsReleasablePlaceholder 判断单品释放时是否应直接视为无操作
func IsReleasablePlaceholder(raw string) bool {
	token := strings.TrimSpace(raw)
	return isEmptyToken(token) || IsCartPlaceholder(token)
}

// CartPlaceholderSKU 是购物车订单写入 sku 字段的占位值
func CartPlaceholderSKU(orderID string) string {
	return cartPrefix + orderID
}

func isEmptyToken(token string) bool {
	return token == "" || strings.EqualFold(token, placeholderNone)
}

func invalidSKU(raw string) *Error {
	return &Error{Kind: KindInvalidSKU, SKU: raw, Reason: fmt.Sprintf("invalid sku %q", raw)}
}
