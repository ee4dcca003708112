package application

import (
	"context"
	"fmt"

	"marketbot/internal/service/inventory/domain"
)

// GetAvailableStock 是不加锁的快照读，只用于展示；修改路径会在锁内重新校验。
// 商品不存在返回 found=false，规格不存在返回 (0, true)。
func (s *Service) GetAvailableStock(ctx context.Context, rawSKU string) (int, bool, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetAvailableStock")
	defer span.End()

	sku, err := domain.ParseSKU(rawSKU)
	if err != nil {
		return 0, false, nil
	}
	ds, err := s.ledger.Load(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, false, fmt.Errorf("load ledger: %w", err)
	}
	c, lookup := ds.Resolve(sku)
	switch lookup {
	case domain.LookupProductMissing:
		return 0, false, nil
	case domain.LookupVariantMissing:
		return 0, true, nil
	}
	return max(c.Available(), 0), true, nil
}

// CheckAvailable 判断快照中是否至少有 qty 个可用单位
func (s *Service) CheckAvailable(ctx context.Context, rawSKU string, qty int) (bool, error) {
	available, found, err := s.GetAvailableStock(ctx, rawSKU)
	if err != nil || !found {
		return false, err
	}
	return available >= domain.NormalizeQty(qty), nil
}

// Snapshot 返回当前账本的只读快照
func (s *Service) Snapshot(ctx context.Context) (domain.Dataset, error) {
	ds, err := s.ledger.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return ds, nil
}
