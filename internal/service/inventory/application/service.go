// internal/service/inventory/application/service.go
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"marketbot/internal/pkg/logger"
	"marketbot/internal/service/inventory/domain"
	"marketbot/internal/service/inventory/domain/port"
)

const (
	opReserve       = "reserve"
	opConfirm       = "confirm"
	opRelease       = "release"
	opReserveCart   = "reserve_cart"
	opConfirmCart   = "confirm_cart"
	opReleaseCart   = "release_cart"
	opReconcile     = "reconcile"
	releaseTimeout  = 5 * time.Second
	lockBusyMessage = "inventory is busy, please try again"
)

// Service 是库存预占引擎。所有修改账本的操作都在同一把锁的临界区内完成:
// 加锁 -> 重新加载数据集 -> 校验并修改 -> 保存 -> 写回订单 -> 释放锁。
type Service struct {
	ledger   port.LedgerStore
	orders   port.OrderStore
	locker   port.Locker
	events   port.EventPublisher
	lockOpts port.AcquireOptions
	tracer   trace.Tracer
}

type Option func(*Service)

// WithLockOptions 覆盖默认的 3s 超时 / 50ms 轮询
func WithLockOptions(opts port.AcquireOptions) Option {
	return func(s *Service) { s.lockOpts = opts.WithDefaults() }
}

func WithEventPublisher(p port.EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func NewService(ledger port.LedgerStore, orders port.OrderStore, locker port.Locker, opts ...Option) *Service {
	s := &Service{
		ledger:   ledger,
		orders:   orders,
		locker:   locker,
		lockOpts: port.AcquireOptions{}.WithDefaults(),
		tracer:   otel.Tracer("inventory-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// section 是一次持锁的临界区，进入时 ds 已经是最新加载的数据集
type section struct {
	ctx    context.Context
	ds     domain.Dataset
	ledger port.LedgerStore
}

func (sec *section) save() error {
	if err := sec.ledger.Save(sec.ctx, sec.ds); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// criticalSection 加锁后执行 fn，任何退出路径 (包括 panic) 都会释放锁。
// 超时返回 port.ErrLockTimeout。
func (s *Service) criticalSection(ctx context.Context, op string, fn func(sec *section) error) error {
	start := time.Now()
	lease, err := s.locker.Acquire(ctx, s.lockOpts)
	lockWaitSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, port.ErrLockTimeout) {
			lockTimeoutsTotal.WithLabelValues(op).Inc()
			return err
		}
		return fmt.Errorf("acquire ledger lock: %w", err)
	}
	defer func() {
		// 调用方的 ctx 可能已经取消，释放锁使用独立的超时
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := lease.Release(relCtx); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("op", op).Msg("failed to release ledger lock")
		}
	}()

	ds, err := s.ledger.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	return fn(&section{ctx: ctx, ds: ds, ledger: s.ledger})
}

type opFunc func(ctx context.Context) (domain.Result, *domain.InventoryEvent, error)

// run 负责 span、日志、指标和事件发布，fn 只关心业务
func (s *Service) run(ctx context.Context, op, orderID string, fn opFunc) (domain.Result, error) {
	ctx, span := s.tracer.Start(ctx, "app."+op)
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	res, event, err := fn(ctx)
	if errors.Is(err, port.ErrLockTimeout) {
		res, event, err = domain.Reject(domain.KindLockTimeout, lockBusyMessage), nil, nil
	}
	observeResult(op, res, err)

	log := logger.Ctx(ctx).With().Str("op", op).Str("order_id", orderID).Logger()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Msg("inventory operation failed")
		return domain.Result{}, err
	}
	if !res.OK {
		span.SetAttributes(attribute.String("inventory.kind", string(res.Kind)))
		log.Info().Str("kind", string(res.Kind)).Str("sku", res.SKU).Msg(res.Reason)
		return res, nil
	}
	log.Info().Str("outcome", string(res.Outcome)).Msg(res.Reason)

	if event != nil && s.events != nil {
		if err := s.events.Publish(ctx, event); err != nil {
			// 事件是尽力而为的，不影响操作结果
			log.Warn().Err(err).Str("event", string(event.Type)).Msg("failed to publish inventory event")
		}
	}
	return res, nil
}

// findOrder 订单不存在时返回 (nil, nil)
func (s *Service) findOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if errors.Is(err, port.ErrOrderNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find order %s: %w", orderID, err)
	}
	return order, nil
}

// stamp 写回订单的库存字段，订单已不存在时返回 false
func (s *Service) stamp(ctx context.Context, orderID string, fields domain.InventoryFields) (bool, error) {
	err := s.orders.UpdateInventory(ctx, orderID, fields)
	if errors.Is(err, port.ErrOrderNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("update order %s: %w", orderID, err)
	}
	return true, nil
}

func orderMissing(orderID string) domain.Result {
	return domain.Reject(domain.KindOrderMissing, fmt.Sprintf("order %s not found", orderID))
}

func productMissing(sku domain.SKU) domain.Result {
	return domain.Reject(domain.KindNotFound, fmt.Sprintf("product %s not found", sku.Base)).WithSKU(sku.String())
}

func variantMissing(sku domain.SKU) domain.Result {
	// 规格不存在按 "存在但无货" 处理，与商品不存在区分开
	return domain.Reject(domain.KindOutOfStock, fmt.Sprintf("variant %s is not available", sku)).
		WithSKU(sku.String()).
		WithAvailable(0)
}
