// internal/service/inventory/domain/product.go
package domain

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Variant 是商品下的规格，拥有独立的 stock/reserved 计数器，不从父商品扣减。
type Variant struct {
	VariantID  string          `json:"variant_id"`
	Stock      int             `json:"stock"`
	Reserved   int             `json:"reserved"`
	PriceDelta decimal.Decimal `json:"price_delta"`
}

// Product 是库存账本中的一条商品记录。
type Product struct {
	BaseSKU    string    `json:"base_sku"`
	Stock      int       `json:"stock"`
	Reserved   int       `json:"reserved"`
	Variations []Variant `json:"variations"`
}

// FindVariant 返回指向切片内部元素的指针，修改会直接作用在数据集上
func (p *Product) FindVariant(id string) *Variant {
	for i := range p.Variations {
		if p.Variations[i].VariantID == id {
			return &p.Variations[i]
		}
	}
	return nil
}

// Dataset 是账本的完整快照: owner -> 商品列表
type Dataset map[string][]Product

// Owners 按字典序返回所有 owner，保证扫描顺序稳定
func (d Dataset) Owners() []string {
	owners := make([]string, 0, len(d))
	for owner := range d {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners
}

// FindProduct 跨所有 owner 查找 base_sku，返回第一个命中的商品。
// SKU 按约定全局唯一。
func (d Dataset) FindProduct(baseSKU string) *Product {
	for _, owner := range d.Owners() {
		products := d[owner]
		for i := range products {
			if products[i].BaseSKU == baseSKU {
				return &products[i]
			}
		}
	}
	return nil
}

// Lookup 描述一次 SKU 解析的结果
type Lookup int

const (
	LookupFound Lookup = iota
	LookupProductMissing
	LookupVariantMissing
)

// Resolve 找到 SKU 对应的计数器
func (d Dataset) Resolve(sku SKU) (Counters, Lookup) {
	p := d.FindProduct(sku.Base)
	if p == nil {
		return Counters{}, LookupProductMissing
	}
	if !sku.HasVariant() {
		return Counters{Stock: &p.Stock, Reserved: &p.Reserved}, LookupFound
	}
	v := p.FindVariant(sku.Variant)
	if v == nil {
		return Counters{}, LookupVariantMissing
	}
	return Counters{Stock: &v.Stock, Reserved: &v.Reserved}, LookupFound
}

// Walk 依次访问每个商品及其规格的计数器
func (d Dataset) Walk(fn func(owner string, sku SKU, c Counters)) {
	for _, owner := range d.Owners() {
		products := d[owner]
		for i := range products {
			p := &products[i]
			fn(owner, SKU{Base: p.BaseSKU}, Counters{Stock: &p.Stock, Reserved: &p.Reserved})
			for j := range p.Variations {
				v := &p.Variations[j]
				fn(owner, SKU{Base: p.BaseSKU, Variant: v.VariantID}, Counters{Stock: &v.Stock, Reserved: &v.Reserved})
			}
		}
	}
}

// Clone 深拷贝数据集
func (d Dataset) Clone() Dataset {
	out := make(Dataset, len(d))
	for owner, products := range d {
		cp := make([]Product, len(products))
		for i, p := range products {
			cp[i] = p
			if p.Variations != nil {
				cp[i].Variations = append([]Variant(nil), p.Variations...)
			}
		}
		out[owner] = cp
	}
	return out
}

// NormalizeDataset 在加载后执行一次默认值补齐：
// 缺失或负数的计数器归零，字符串去掉首尾空白，nil 数据集变为空数据集。
func NormalizeDataset(d Dataset) Dataset {
	if d == nil {
		return Dataset{}
	}
	for owner, products := range d {
		for i := range products {
			p := &products[i]
			p.BaseSKU = strings.TrimSpace(p.BaseSKU)
			p.Stock = nonNegative(p.Stock)
			p.Reserved = nonNegative(p.Reserved)
			for j := range p.Variations {
				v := &p.Variations[j]
				v.VariantID = strings.TrimSpace(v.VariantID)
				v.Stock = nonNegative(v.Stock)
				v.Reserved = nonNegative(v.Reserved)
			}
		}
		d[owner] = products
	}
	return d
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
