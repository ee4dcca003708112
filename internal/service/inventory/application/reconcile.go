package application

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"marketbot/internal/pkg/logger"
	"marketbot/internal/service/inventory/domain"
)

// Drift 是账本 reserved 与订单推算值不一致的一个 SKU
type Drift struct {
	Owner    string `json:"owner"`
	SKU      string `json:"sku"`
	Stock    int    `json:"stock"`
	Ledger   int    `json:"ledger_reserved"`
	Expected int    `json:"expected_reserved"`
}

// Reconcile 根据所有 inv_reserved=true 的订单重新推算每个 SKU 的 reserved，
// 返回不一致的条目；fix=true 时把 reserved 修正为推算值 (不超过 stock) 并保存。
func (s *Service) Reconcile(ctx context.Context, fix bool) ([]Drift, error) {
	ctx, span := s.tracer.Start(ctx, "app.Reconcile")
	defer span.End()
	span.SetAttributes(attribute.Bool("reconcile.fix", fix))
	log := logger.Ctx(ctx).With().Str("op", opReconcile).Logger()

	var drifts []Drift
	err := s.criticalSection(ctx, opReconcile, func(sec *section) error {
		orders, err := s.orders.ListReserved(ctx)
		if err != nil {
			return fmt.Errorf("list reserved orders: %w", err)
		}
		expected := expectedReservations(orders)

		known := make(map[string]bool)
		sec.ds.Walk(func(owner string, sku domain.SKU, c domain.Counters) {
			key := sku.String()
			known[key] = true
			want := expected[key]
			if *c.Reserved == want {
				return
			}
			drifts = append(drifts, Drift{Owner: owner, SKU: key, Stock: *c.Stock, Ledger: *c.Reserved, Expected: want})
			if fix {
				*c.Reserved = min(want, *c.Stock)
			}
		})
		for key, qty := range expected {
			if !known[key] {
				log.Warn().Str("sku", key).Int("qty", qty).Msg("reserved orders reference a sku missing from the ledger")
			}
		}
		if fix && len(drifts) > 0 {
			return sec.save()
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	sort.Slice(drifts, func(i, j int) bool { return drifts[i].SKU < drifts[j].SKU })
	for _, d := range drifts {
		log.Warn().Str("sku", d.SKU).Int("ledger", d.Ledger).Int("expected", d.Expected).Bool("fixed", fix).
			Msg("reservation drift detected")
	}
	span.SetAttributes(attribute.Int("reconcile.drifts", len(drifts)))
	return drifts, nil
}

func expectedReservations(orders []domain.Order) map[string]int {
	expected := make(map[string]int)
	add := func(raw string, qty int) {
		sku, err := domain.ParseSKU(raw)
		if err != nil {
			return
		}
		expected[sku.String()] += domain.NormalizeQty(qty)
	}
	for _, o := range orders {
		if !o.Reserved {
			continue
		}
		if o.IsCart() {
			for _, it := range o.Items {
				add(it.SKU, it.Qty)
			}
			continue
		}
		add(o.SKU, o.Qty)
	}
	return expected
}
