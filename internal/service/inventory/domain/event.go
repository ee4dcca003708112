// internal/service/inventory/domain/event.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType 库存事件类型
type EventType string

const (
	EventReserved  EventType = "inventory.reserved"
	EventConfirmed EventType = "inventory.confirmed"
	EventReleased  EventType = "inventory.released"
)

// InventoryEvent 在每次成功的状态迁移之后发布，用于下游对账和通知
type InventoryEvent struct {
	EventID    string    `json:"event_id"`
	Type       EventType `json:"type"`
	OrderID    string    `json:"order_id"`
	Mode       Mode      `json:"mode"`
	Items      []Item    `json:"items"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewInventoryEvent(typ EventType, order *Order, reason string) *InventoryEvent {
	items := order.Items
	if !order.IsCart() {
		items = []Item{{SKU: order.SKU, Qty: NormalizeQty(order.Qty)}}
	}
	return &InventoryEvent{
		EventID:    uuid.New().String(),
		Type:       typ,
		OrderID:    order.OrderID,
		Mode:       order.EffectiveMode(),
		Items:      items,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}

// PaymentStatus 是支付网关回传的结果
type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentExpired   PaymentStatus = "expired"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentRefunded  PaymentStatus = "refunded"
)

// PaymentOutcome 是支付结果消息，只触发 confirm/release，不做结算
type PaymentOutcome struct {
	OrderID string        `json:"order_id"`
	Status  PaymentStatus `json:"status"`
	Reason  string        `json:"reason,omitempty"`
}

// ReleaseReason 没有显式原因时使用状态本身
func (p PaymentOutcome) ReleaseReason() string {
	if p.Reason != "" {
		return p.Reason
	}
	return string(p.Status)
}
