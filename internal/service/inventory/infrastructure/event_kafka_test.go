package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketbot/internal/service/inventory/domain"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaEventPublisher(t *testing.T) {
	w := &fakeWriter{}
	pub := NewKafkaEventPublisher(w)
	order := &domain.Order{OrderID: "o-1", InventoryFields: domain.InventoryFields{SKU: "shirt|red", Qty: 2}}

	require.NoError(t, pub.Publish(context.Background(), domain.NewInventoryEvent(domain.EventReserved, order, "")))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("o-1"), w.msgs[0].Key)

	var got domain.InventoryEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, domain.EventReserved, got.Type)
	assert.Equal(t, domain.ModeSingle, got.Mode)
	assert.Equal(t, []domain.Item{{SKU: "shirt|red", Qty: 2}}, got.Items)
	assert.NotEmpty(t, got.EventID)
}

func TestKafkaEventPublisherError(t *testing.T) {
	pub := NewKafkaEventPublisher(&fakeWriter{err: errors.New("leader not available")})
	err := pub.Publish(context.Background(), &domain.InventoryEvent{Type: domain.EventReleased, OrderID: "o-2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "o-2")
}
