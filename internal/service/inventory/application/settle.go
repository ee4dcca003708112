package application

import (
	"context"

	"marketbot/internal/service/inventory/domain"
)

// ConfirmOrder 按订单的 inv_mode 选择单品或购物车确认，供不知道结账模式的支付回调使用。
// 这里的读取不加锁，只用于分派；具体操作会在锁内重新读取订单。
func (s *Service) ConfirmOrder(ctx context.Context, orderID string) (domain.Result, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return domain.Result{}, err
	}
	if order == nil {
		return orderMissing(orderID), nil
	}
	if order.IsCart() {
		return s.ConfirmCartPayment(ctx, orderID)
	}
	return s.ConfirmPayment(ctx, orderID)
}

// ReleaseOrder 按订单的 inv_mode 选择单品或购物车释放
func (s *Service) ReleaseOrder(ctx context.Context, orderID, reason string) (domain.Result, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return domain.Result{}, err
	}
	if order == nil {
		return orderMissing(orderID), nil
	}
	if order.IsCart() {
		return s.ReleaseCartOnFailureOrRefund(ctx, orderID, reason)
	}
	return s.ReleaseOnFailureOrRefund(ctx, orderID, reason)
}
