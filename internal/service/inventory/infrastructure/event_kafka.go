package infrastructure

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"marketbot/internal/pkg/mq"
	"marketbot/internal/service/inventory/domain"
)

// KafkaEventPublisher 把库存事件写入 Kafka，以 order_id 作为分区键保证同一订单的事件有序
type KafkaEventPublisher struct {
	writer mq.MessageWriter
}

func NewKafkaEventPublisher(writer mq.MessageWriter) *KafkaEventPublisher {
	return &KafkaEventPublisher{writer: writer}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, event *domain.InventoryEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "encode inventory event")
	}
	if err := mq.ProduceMessage(ctx, p.writer, []byte(event.OrderID), payload); err != nil {
		return errors.Wrapf(err, "publish %s for order %s", event.Type, event.OrderID)
	}
	return nil
}
