// internal/service/inventory/interfaces/payment_consumer.go
package interfaces

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"marketbot/internal/pkg/logger"
	"marketbot/internal/pkg/mq"
	"marketbot/internal/service/inventory/domain"
)

// MessageReader 是 *kafka.Reader 的最小接口
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderSettler 是消费者驱动的应用服务能力，按订单模式分派 confirm/release
type OrderSettler interface {
	ConfirmOrder(ctx context.Context, orderID string) (domain.Result, error)
	ReleaseOrder(ctx context.Context, orderID, reason string) (domain.Result, error)
}

// ErrUnknownPaymentStatus 表示消息里的 status 无法识别
var ErrUnknownPaymentStatus = errors.New("unknown payment status")

// PaymentConsumerAdapter 监听支付结果 topic 并驱动 confirm/release。
// 处理失败的消息转发到死信队列，随后总是提交 offset。
type PaymentConsumerAdapter struct {
	reader         MessageReader
	topic          string
	settler        OrderSettler
	failureHandler *mq.FailureHandler
	tracer         trace.Tracer
	retryBackoff   time.Duration
}

func NewPaymentConsumerAdapter(reader MessageReader, topic string, settler OrderSettler, failureHandler *mq.FailureHandler) *PaymentConsumerAdapter {
	return &PaymentConsumerAdapter{
		reader:         reader,
		topic:          topic,
		settler:        settler,
		failureHandler: failureHandler,
		tracer:         otel.Tracer(serviceName),
		retryBackoff:   time.Second,
	}
}

// Run 阻塞消费直到 ctx 取消，可以直接作为 bootstrap.Worker 使用
func (a *PaymentConsumerAdapter) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("✅ Payment consumer started.")
	defer func() {
		if err := a.reader.Close(); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("failed to close payment reader")
		}
		logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("🛑 Payment consumer stopped.")
	}()

	for {
		msg, err := a.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Ctx(ctx).Error().Err(err).Msg("could not fetch payment message, retrying")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(a.retryBackoff):
			}
			continue
		}

		msgCtx := mq.ExtractTraceContext(ctx, msg)
		if err := a.HandleMessage(msgCtx, msg); err != nil {
			a.failureHandler.Handle(msgCtx, msg, err)
		}
		// 无论成功或已移交死信，都提交 offset
		if err := a.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Int64("offset", msg.Offset).Msg("failed to commit payment message")
		}
	}
}

// HandleMessage 解析一条支付结果并调用引擎。
// 业务拒绝 (订单不存在、预占丢失...) 只记录日志；锁超时和基础设施错误返回 error，由调用方转入死信队列。
func (a *PaymentConsumerAdapter) HandleMessage(ctx context.Context, msg kafka.Message) error {
	ctx, span := a.tracer.Start(ctx, "kafka.payment-outcome", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", msg.Topic),
		attribute.Int64("messaging.kafka.offset", msg.Offset),
	)

	err := a.handle(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (a *PaymentConsumerAdapter) handle(ctx context.Context, msg kafka.Message) error {
	var outcome domain.PaymentOutcome
	if err := json.Unmarshal(msg.Value, &outcome); err != nil {
		return errors.Wrap(err, "decode payment outcome")
	}
	if outcome.OrderID == "" {
		return errors.New("payment outcome without order_id")
	}
	log := logger.Ctx(ctx).With().Str("order_id", outcome.OrderID).Str("status", string(outcome.Status)).Logger()

	var (
		res domain.Result
		err error
	)
	switch outcome.Status {
	case domain.PaymentSucceeded:
		res, err = a.settler.ConfirmOrder(ctx, outcome.OrderID)
	case domain.PaymentFailed, domain.PaymentExpired, domain.PaymentCancelled, domain.PaymentRefunded:
		res, err = a.settler.ReleaseOrder(ctx, outcome.OrderID, outcome.ReleaseReason())
	default:
		return errors.Wrapf(ErrUnknownPaymentStatus, "status %q", outcome.Status)
	}
	if err != nil {
		return errors.Wrapf(err, "settle order %s", outcome.OrderID)
	}
	if res.Kind == domain.KindLockTimeout {
		return fmt.Errorf("settle order %s: %w", outcome.OrderID, res.Err())
	}
	if !res.OK {
		log.Warn().Str("kind", string(res.Kind)).Msgf("⚠️ payment outcome rejected by inventory: %s", res.Reason)
		return nil
	}
	log.Info().Str("outcome", string(res.Outcome)).Msg("✅ payment outcome applied")
	return nil
}
