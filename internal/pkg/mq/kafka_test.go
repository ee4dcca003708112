package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaHeaderCarrier(t *testing.T) {
	var c KafkaHeaderCarrier
	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("a", "3")

	assert.Equal(t, "3", c.Get("a"))
	assert.Equal(t, "", c.Get("missing"))
	assert.Equal(t, []string{"a", "b"}, c.Keys())
}

func TestProduceMessagePropagatesTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "produce")
	defer span.End()

	w := &recordingWriter{}
	require.NoError(t, ProduceMessage(ctx, w, []byte("k"), []byte("v")))
	require.Len(t, w.msgs, 1)

	extracted := ExtractTraceContext(context.Background(), w.msgs[0])
	assert.Equal(t, span.SpanContext().TraceID(), trace.SpanContextFromContext(extracted).TraceID())
}

func TestFailureHandlerForwardsDeadLetter(t *testing.T) {
	w := &recordingWriter{}
	h := NewFailureHandler(w)
	msg := kafka.Message{
		Topic:     "payment-outcomes",
		Partition: 2,
		Offset:    41,
		Key:       []byte("o-1"),
		Value:     []byte(`{"order_id":"o-1"}`),
		Headers:   []kafka.Header{{Key: "traceparent", Value: []byte("x")}},
	}

	h.Handle(context.Background(), msg, errors.New("db down"))

	require.Len(t, w.msgs, 1)
	dead := w.msgs[0]
	carrier := KafkaHeaderCarrier(dead.Headers)
	assert.Equal(t, "payment-outcomes", carrier.Get(HeaderOriginalTopic))
	assert.Equal(t, "2", carrier.Get(HeaderOriginalPartition))
	assert.Equal(t, "41", carrier.Get(HeaderOriginalOffset))
	assert.Equal(t, "db down", carrier.Get(HeaderExceptionMessage))
	assert.Equal(t, "x", carrier.Get("traceparent"))
	assert.Equal(t, msg.Value, dead.Value)
	assert.Empty(t, dead.Topic)

	// 原消息头不应被修改
	assert.Len(t, msg.Headers, 1)
}

func TestFailureHandlerSwallowsWriteError(t *testing.T) {
	h := NewFailureHandler(&recordingWriter{err: errors.New("broker unavailable")})
	assert.NotPanics(t, func() {
		h.Handle(context.Background(), kafka.Message{Topic: "t"}, errors.New("boom"))
	})
}

func TestDeadLetterTopic(t *testing.T) {
	assert.Equal(t, "payment-outcomes.dlt", DeadLetterTopic("payment-outcomes"))
}
