// internal/service/inventory/application/cart.go
package application

import (
	"context"
	"fmt"
	"math"

	"marketbot/internal/pkg/logger"
	"marketbot/internal/service/inventory/domain"
)

// cartTarget 是一个购物车行解析到的计数器，以及同一 SKU 在整个购物车中的累计数量
type cartTarget struct {
	line     domain.Line
	counters domain.Counters
}

// resolveCart 解析所有行并累计每个 SKU 的需求量。
// 同一 SKU 出现多次时按总量校验，避免分别校验通过但合计超卖。
func resolveCart(ds domain.Dataset, lines []domain.Line) ([]cartTarget, map[string]int, *domain.Result) {
	targets := make([]cartTarget, 0, len(lines))
	demand := make(map[string]int, len(lines))
	for _, l := range lines {
		c, lookup := ds.Resolve(l.SKU)
		switch lookup {
		case domain.LookupProductMissing:
			res := productMissing(l.SKU)
			return nil, nil, &res
		case domain.LookupVariantMissing:
			res := variantMissing(l.SKU)
			return nil, nil, &res
		}
		key := l.SKU.String()
		demand[key] = addDemand(demand[key], l.Item.Qty)
		targets = append(targets, cartTarget{line: l, counters: c})
	}
	return targets, demand, nil
}

// addDemand 饱和累加，溢出时停在 math.MaxInt
func addDemand(total, qty int) int {
	if qty > math.MaxInt-total {
		return math.MaxInt
	}
	return total + qty
}

// covers 判断 have 是否满足 need；饱和后的需求量视为任何库存都无法满足
func covers(have, need int) bool {
	return need < math.MaxInt && have >= need
}

// ReserveCartForPayment 全有或全无地预占整个购物车:
// 第一阶段校验所有行，任何一行不满足都不做修改；第二阶段才逐行预占，最后只保存一次。
func (s *Service) ReserveCartForPayment(ctx context.Context, orderID string, items []domain.Item) (domain.Result, error) {
	return s.run(ctx, opReserveCart, orderID, func(ctx context.Context) (domain.Result, *domain.InventoryEvent, error) {
		lines, err := domain.ParseItems(items)
		if err != nil {
			return domain.RejectWith(err), nil, nil
		}

		var (
			res   domain.Result
			event *domain.InventoryEvent
		)
		err = s.criticalSection(ctx, opReserveCart, func(sec *section) error {
			order, err := s.findOrder(ctx, orderID)
			if err != nil {
				return err
			}
			if order == nil {
				res = orderMissing(orderID)
				return nil
			}
			if order.Reserved && order.IsCart() {
				res = domain.Succeed("cart already reserved")
				return nil
			}
			if order.Deducted {
				res = domain.Succeed("already confirmed")
				return nil
			}
			if order.Reserved {
				res = domain.Reject(domain.KindInvalidRequest, "order already holds a single-item reservation")
				return nil
			}

			// 阶段一: 只读校验
			targets, demand, failed := resolveCart(sec.ds, lines)
			if failed != nil {
				res = *failed
				return nil
			}
			for _, t := range targets {
				key := t.line.SKU.String()
				if avail := t.counters.Available(); !covers(avail, demand[key]) {
					res = domain.Reject(domain.KindOutOfStock,
						fmt.Sprintf("only %d of %s available, cart needs %d", max(avail, 0), key, demand[key])).
						WithSKU(key).
						WithAvailable(avail)
					return nil
				}
			}

			// 阶段二: 全部通过后才修改
			for _, t := range targets {
				t.counters.Reserve(t.line.Item.Qty)
			}
			if err := sec.save(); err != nil {
				return err
			}

			fields := order.InventoryFields
			fields.Mode = domain.ModeCart
			fields.SKU = domain.CartPlaceholderSKU(orderID)
			fields.Qty = 0
			fields.Items = domain.ItemsOf(lines)
			fields.Reserved = true
			fields.Deducted = false
			fields.Reason = ""
			ok, err := s.stamp(ctx, orderID, fields)
			if err != nil {
				return err
			}
			if !ok {
				for _, t := range targets {
					t.counters.Unreserve(t.line.Item.Qty)
				}
				if err := sec.save(); err != nil {
					return fmt.Errorf("roll back cart reservation: %w", err)
				}
				logger.Ctx(ctx).Warn().Str("order_id", orderID).Int("items", len(lines)).
					Msg("order vanished after cart reserve, reservation rolled back")
				res = orderMissing(orderID)
				return nil
			}

			order.InventoryFields = fields
			res = domain.Succeed(fmt.Sprintf("reserved %d cart items", len(lines)))
			event = domain.NewInventoryEvent(domain.EventReserved, order, "")
			return nil
		})
		return res, event, err
	})
}

// ConfirmCartPayment 先校验所有行的 reserved/stock，全部满足后才扣减
func (s *Service) ConfirmCartPayment(ctx context.Context, orderID string) (domain.Result, error) {
	return s.run(ctx, opConfirmCart, orderID, func(ctx context.Context) (domain.Result, *domain.InventoryEvent, error) {
		var (
			res   domain.Result
			event *domain.InventoryEvent
		)
		err := s.criticalSection(ctx, opConfirmCart, func(sec *section) error {
			order, err := s.findOrder(ctx, orderID)
			if err != nil {
				return err
			}
			if order == nil {
				res = orderMissing(orderID)
				return nil
			}
			if order.Deducted && order.IsCart() {
				res = domain.Succeed("cart already confirmed")
				return nil
			}
			if !order.IsCart() {
				res = domain.Reject(domain.KindInvalidRequest, "order is not in cart mode")
				return nil
			}
			if len(order.Items) == 0 {
				res = domain.Reject(domain.KindInvalidRequest, "cart has no items")
				return nil
			}
			if !order.Reserved {
				res = domain.Succeed("nothing reserved")
				return nil
			}

			lines, err := domain.ParseItems(order.Items)
			if err != nil {
				res = domain.RejectWith(err)
				return nil
			}
			targets, demand, failed := resolveCart(sec.ds, lines)
			if failed != nil {
				res = domain.Reject(domain.KindNotFound, failed.Reason).WithSKU(failed.SKU)
				return nil
			}
			for _, t := range targets {
				key := t.line.SKU.String()
				if !covers(*t.counters.Reserved, demand[key]) {
					res = domain.Reject(domain.KindReservationMissing,
						fmt.Sprintf("reservation for %s missing: reserved %d < %d", key, *t.counters.Reserved, demand[key])).WithSKU(key)
					return nil
				}
				if !covers(*t.counters.Stock, demand[key]) {
					res = domain.Reject(domain.KindInsufficientStock,
						fmt.Sprintf("insufficient stock for %s: %d < %d", key, *t.counters.Stock, demand[key])).WithSKU(key)
					return nil
				}
			}

			for _, t := range targets {
				t.counters.Deduct(t.line.Item.Qty)
			}
			if err := sec.save(); err != nil {
				return err
			}

			fields := order.InventoryFields
			fields.Reserved = false
			fields.Deducted = true
			ok, err := s.stamp(ctx, orderID, fields)
			if err != nil {
				return err
			}
			if !ok {
				for _, t := range targets {
					t.counters.Reserve(t.line.Item.Qty)
					t.counters.Restock(t.line.Item.Qty)
				}
				if err := sec.save(); err != nil {
					return fmt.Errorf("roll back cart deduction: %w", err)
				}
				res = orderMissing(orderID)
				return nil
			}

			order.InventoryFields = fields
			res = domain.Succeed(fmt.Sprintf("deducted %d cart items", len(lines)))
			event = domain.NewInventoryEvent(domain.EventConfirmed, order, "")
			return nil
		})
		return res, event, err
	})
}

// ReleaseCartOnFailureOrRefund 逐行尽力释放；单行的商品已不存在时跳过，不影响整体。
// 只接受购物车订单，单品订单必须使用 ReleaseOnFailureOrRefund。
func (s *Service) ReleaseCartOnFailureOrRefund(ctx context.Context, orderID, reason string) (domain.Result, error) {
	return s.run(ctx, opReleaseCart, orderID, func(ctx context.Context) (domain.Result, *domain.InventoryEvent, error) {
		var (
			res   domain.Result
			event *domain.InventoryEvent
		)
		err := s.criticalSection(ctx, opReleaseCart, func(sec *section) error {
			order, err := s.findOrder(ctx, orderID)
			if err != nil {
				return err
			}
			if order == nil {
				res = orderMissing(orderID)
				return nil
			}
			if !order.IsCart() {
				res = domain.Reject(domain.KindInvalidRequest, "order is not in cart mode, use single-item release")
				return nil
			}

			outcomes := make([]domain.ItemOutcome, 0, len(order.Items))
			changed := false
			for _, it := range order.Items {
				qty := domain.NormalizeQty(it.Qty)
				out := domain.ItemOutcome{SKU: it.SKU, Qty: qty, Outcome: domain.OutcomeSkipped}
				sku, err := domain.ParseSKU(it.SKU)
				switch {
				case err != nil:
					out.Outcome = domain.OutcomeFailed
					out.Detail = err.Error()
				case !order.Reserved && !order.Deducted:
					out.Detail = "nothing held"
				default:
					c, lookup := sec.ds.Resolve(sku)
					if lookup != domain.LookupFound {
						out.Detail = "product or variant no longer exists"
						break
					}
					if order.Reserved {
						c.Unreserve(qty)
					}
					if order.Deducted {
						c.Restock(qty)
					}
					out.Outcome = domain.OutcomeReleased
					changed = true
				}
				if out.Outcome != domain.OutcomeReleased && out.Detail != "nothing held" {
					logger.Ctx(ctx).Warn().Str("order_id", orderID).Str("sku", it.SKU).
						Str("outcome", string(out.Outcome)).Msg(out.Detail)
				}
				outcomes = append(outcomes, out)
			}
			if changed {
				if err := sec.save(); err != nil {
					return err
				}
			}

			fields := order.InventoryFields
			fields.Reserved = false
			fields.Deducted = false
			fields.Reason = reason
			ok, err := s.stamp(ctx, orderID, fields)
			if err != nil {
				return err
			}
			if !ok {
				res = orderMissing(orderID)
				return nil
			}

			if len(order.Items) == 0 {
				res = domain.Succeed("nothing to release")
				res.Outcome = domain.OutcomeSkipped
				return nil
			}
			res = domain.Succeed(fmt.Sprintf("released cart: %s", reason))
			res.Items = outcomes
			res.Outcome = domain.OutcomeSkipped
			if changed {
				res.Outcome = domain.OutcomeReleased
				event = domain.NewInventoryEvent(domain.EventReleased, order, reason)
			}
			return nil
		})
		return res, event, err
	})
}
