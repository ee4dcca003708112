package cli

import (
	"context"

	"marketbot/internal/service/inventory/application"
	"marketbot/internal/service/inventory/client"
	"marketbot/internal/service/inventory/domain"
)

// engine 是 CLI 需要的操作集合，*client.Client 和 localEngine 都实现它
type engine interface {
	Reserve(ctx context.Context, orderID, sku string, qty int) (domain.Result, error)
	ReserveCart(ctx context.Context, orderID string, items []domain.Item) (domain.Result, error)
	Confirm(ctx context.Context, orderID string) (domain.Result, error)
	Release(ctx context.Context, orderID, reason string) (domain.Result, error)
	Available(ctx context.Context, sku string, qty int) (client.Availability, error)
}

var _ engine = (*client.Client)(nil)

type localEngine struct {
	svc *application.Service
}

func (e localEngine) Reserve(ctx context.Context, orderID, sku string, qty int) (domain.Result, error) {
	return e.svc.ReserveForPayment(ctx, orderID, sku, qty)
}

func (e localEngine) ReserveCart(ctx context.Context, orderID string, items []domain.Item) (domain.Result, error) {
	return e.svc.ReserveCartForPayment(ctx, orderID, items)
}

func (e localEngine) Confirm(ctx context.Context, orderID string) (domain.Result, error) {
	return e.svc.ConfirmOrder(ctx, orderID)
}

func (e localEngine) Release(ctx context.Context, orderID, reason string) (domain.Result, error) {
	return e.svc.ReleaseOrder(ctx, orderID, reason)
}

func (e localEngine) Available(ctx context.Context, sku string, qty int) (client.Availability, error) {
	qty = domain.NormalizeQty(qty)
	available, found, err := e.svc.GetAvailableStock(ctx, sku)
	if err != nil {
		return client.Availability{}, err
	}
	return client.Availability{
		SKU:       sku,
		Found:     found,
		Available: available,
		Qty:       qty,
		Enough:    found && available >= qty,
	}, nil
}
