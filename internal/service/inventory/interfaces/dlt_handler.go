// internal/service/inventory/interfaces/dlt_handler.go
package interfaces

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"marketbot/internal/pkg/logger"
	"marketbot/internal/pkg/mq"
)

// DltConsumerAdapter 监听死信队列并记录日志，供人工对账
type DltConsumerAdapter struct {
	reader MessageReader
	topic  string
}

func NewDltConsumerAdapter(reader MessageReader, topic string) *DltConsumerAdapter {
	return &DltConsumerAdapter{reader: reader, topic: topic}
}

func (a *DltConsumerAdapter) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("✅ DLT consumer started.")
	defer func() {
		_ = a.reader.Close()
		logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("🛑 DLT consumer stopped.")
	}()
	for {
		msg, err := a.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		LogDeadLetter(ctx, msg)

		// 死信记录日志即视为已处理
		if err := a.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("failed to commit dead letter")
		}
	}
}

// LogDeadLetter 以结构化日志记录一条死信的原始位置和失败原因
func LogDeadLetter(ctx context.Context, msg kafka.Message) {
	carrier := mq.KafkaHeaderCarrier(msg.Headers)
	logger.Ctx(ctx).Error().
		Str("reason", "dead_letter_message_received").
		Str("original_topic", carrier.Get(mq.HeaderOriginalTopic)).
		Str("original_partition", carrier.Get(mq.HeaderOriginalPartition)).
		Str("original_offset", carrier.Get(mq.HeaderOriginalOffset)).
		Str("exception_fqcn", carrier.Get(mq.HeaderExceptionFqcn)).
		Str("exception_message", carrier.Get(mq.HeaderExceptionMessage)).
		Str("key", string(msg.Key)).
		Str("value", string(msg.Value)).
		Msg("🚨 CRITICAL: Dead letter message received")
}
