// internal/service/inventory/application/reservation.go
package application

import (
	"context"
	"fmt"
	"strings"

	"marketbot/internal/pkg/logger"
	"marketbot/internal/service/inventory/domain"
)

// ReserveForPayment 为单品订单预占库存。
// 订单已经处于预占状态时直接成功，不会重复占用 (重复的 webhook/重试是安全的)。
func (s *Service) ReserveForPayment(ctx context.Context, orderID, rawSKU string, qty int) (domain.Result, error) {
	return s.run(ctx, opReserve, orderID, func(ctx context.Context) (domain.Result, *domain.InventoryEvent, error) {
		qty := domain.NormalizeQty(qty)
		sku, parseErr := domain.ParseSKU(rawSKU)

		var (
			res   domain.Result
			event *domain.InventoryEvent
		)
		err := s.criticalSection(ctx, opReserve, func(sec *section) error {
			order, err := s.findOrder(ctx, orderID)
			if err != nil {
				return err
			}
			if order == nil {
				res = orderMissing(orderID)
				return nil
			}
			if order.Reserved {
				res = domain.Succeed("already reserved")
				return nil
			}
			if order.Deducted {
				res = domain.Succeed("already confirmed")
				return nil
			}

			if parseErr != nil {
				// 把非法 SKU 写到订单上，失败原因在订单记录中可见
				fields := order.InventoryFields
				fields.SKU = strings.TrimSpace(rawSKU)
				fields.Reserved = false
				ok, err := s.stamp(ctx, orderID, fields)
				if err != nil {
					return err
				}
				if !ok {
					res = orderMissing(orderID)
					return nil
				}
				res = domain.RejectWith(parseErr)
				return nil
			}

			c, lookup := sec.ds.Resolve(sku)
			switch lookup {
			case domain.LookupProductMissing:
				res = productMissing(sku)
				return nil
			case domain.LookupVariantMissing:
				res = variantMissing(sku)
				return nil
			}
			if avail := c.Available(); avail < qty {
				res = domain.Reject(domain.KindOutOfStock, fmt.Sprintf("only %d of %s available", max(avail, 0), sku)).
					WithSKU(sku.String()).
					WithAvailable(avail)
				return nil
			}

			c.Reserve(qty)
			if err := sec.save(); err != nil {
				return err
			}

			fields := order.InventoryFields
			fields.Mode = domain.ModeSingle
			fields.SKU = sku.String()
			fields.Qty = qty
			fields.Items = nil
			fields.Reserved = true
			fields.Deducted = false
			fields.Reason = ""
			ok, err := s.stamp(ctx, orderID, fields)
			if err != nil {
				return err
			}
			if !ok {
				// 订单在计数器修改之后消失: 在同一临界区内回滚，避免留下没有订单对应的占用
				c.Unreserve(qty)
				if err := sec.save(); err != nil {
					return fmt.Errorf("roll back reservation of %s: %w", sku, err)
				}
				logger.Ctx(ctx).Warn().Str("order_id", orderID).Str("sku", sku.String()).Int("qty", qty).
					Msg("order vanished after reserve, reservation rolled back")
				res = orderMissing(orderID)
				return nil
			}

			order.InventoryFields = fields
			res = domain.Succeed(fmt.Sprintf("reserved %d x %s", qty, sku))
			event = domain.NewInventoryEvent(domain.EventReserved, order, "")
			return nil
		})
		return res, event, err
	})
}

// ConfirmPayment 支付成功后把预占转为永久扣减
func (s *Service) ConfirmPayment(ctx context.Context, orderID string) (domain.Result, error) {
	return s.run(ctx, opConfirm, orderID, func(ctx context.Context) (domain.Result, *domain.InventoryEvent, error) {
		var (
			res   domain.Result
			event *domain.InventoryEvent
		)
		err := s.criticalSection(ctx, opConfirm, func(sec *section) error {
			order, err := s.findOrder(ctx, orderID)
			if err != nil {
				return err
			}
			if order == nil {
				res = orderMissing(orderID)
				return nil
			}
			if order.Deducted {
				res = domain.Succeed("already confirmed")
				return nil
			}
			if order.IsCart() {
				res = domain.Reject(domain.KindInvalidRequest, "order is in cart mode, use cart confirm")
				return nil
			}
			if !order.Reserved {
				res = domain.Succeed("nothing reserved")
				return nil
			}
			sku, err := domain.ParseSKU(order.SKU)
			if err != nil {
				res = domain.RejectWith(err)
				return nil
			}

			qty := domain.NormalizeQty(order.Qty)
			c, lookup := sec.ds.Resolve(sku)
			if lookup != domain.LookupFound {
				res = domain.Reject(domain.KindNotFound, fmt.Sprintf("%s not found", sku)).WithSKU(sku.String())
				return nil
			}
			// reserved 不足说明预占丢失，stock 不足是不可能出现的状态，两者分开报告
			if *c.Reserved < qty {
				res = domain.Reject(domain.KindReservationMissing,
					fmt.Sprintf("reservation for %s missing: reserved %d < %d", sku, *c.Reserved, qty)).WithSKU(sku.String())
				return nil
			}
			if *c.Stock < qty {
				res = domain.Reject(domain.KindInsufficientStock,
					fmt.Sprintf("insufficient stock for %s: %d < %d", sku, *c.Stock, qty)).WithSKU(sku.String())
				return nil
			}

			c.Deduct(qty)
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
				c.Reserve(qty)
				c.Restock(qty)
				if err := sec.save(); err != nil {
					return fmt.Errorf("roll back deduction of %s: %w", sku, err)
				}
				res = orderMissing(orderID)
				return nil
			}

			order.InventoryFields = fields
			res = domain.Succeed(fmt.Sprintf("deducted %d x %s", qty, sku))
			event = domain.NewInventoryEvent(domain.EventConfirmed, order, "")
			return nil
		})
		return res, event, err
	})
}

// ReleaseOnFailureOrRefund 支付失败/取消/退款时释放预占，已扣减的库存会回补。
// 商品或规格已经不存在时只更新订单，不会失败，退款流程不能被库存阻塞。
func (s *Service) ReleaseOnFailureOrRefund(ctx context.Context, orderID, reason string) (domain.Result, error) {
	return s.run(ctx, opRelease, orderID, func(ctx context.Context) (domain.Result, *domain.InventoryEvent, error) {
		var (
			res   domain.Result
			event *domain.InventoryEvent
		)
		err := s.criticalSection(ctx, opRelease, func(sec *section) error {
			order, err := s.findOrder(ctx, orderID)
			if err != nil {
				return err
			}
			if order == nil {
				res = orderMissing(orderID)
				return nil
			}
			// 购物车订单由 ReleaseCartOnFailureOrRefund 处理
			sku, parseErr := domain.ParseSKU(order.SKU)
			if order.IsCart() || domain.IsReleasablePlaceholder(order.SKU) || parseErr != nil {
				res = domain.Succeed("nothing to release")
				res.Outcome = domain.OutcomeSkipped
				return nil
			}

			qty := domain.NormalizeQty(order.Qty)
			outcome := domain.OutcomeSkipped
			if order.Reserved || order.Deducted {
				c, lookup := sec.ds.Resolve(sku)
				if lookup == domain.LookupFound {
					if order.Reserved {
						c.Unreserve(qty)
					}
					if order.Deducted {
						c.Restock(qty)
					}
					if err := sec.save(); err != nil {
						return err
					}
					outcome = domain.OutcomeReleased
				} else {
					logger.Ctx(ctx).Warn().Str("order_id", orderID).Str("sku", sku.String()).
						Msg("release skipped: product or variant no longer exists")
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

			res = domain.Succeed(fmt.Sprintf("released %s: %s", sku, reason))
			res.Outcome = outcome
			if outcome == domain.OutcomeReleased {
				event = domain.NewInventoryEvent(domain.EventReleased, order, reason)
			}
			return nil
		})
		return res, event, err
	})
}
