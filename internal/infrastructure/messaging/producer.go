package messaging

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"faq-rag-api/pkg/logger"
)

const defaultMaxLen = 100000

var tracer = otel.Tracer("messaging")

// Producer 向对话事件流追加消息，流长度近似裁剪到 maxLen
type Producer struct {
	client *redis.Client
	maxLen int64
}

func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = defaultMaxLen
	}
	return &Producer{client: client, maxLen: maxLen}
}

// Publish 返回 Redis 分配的条目 ID
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	values, err := msg.values()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish %s: %w", msg.Type, err)
	}
	span.SetAttributes(attribute.String("stream.message_id", id))
	return id, nil
}

func (p *Producer) PublishTurnCompleted(ctx context.Context, ev *TurnCompletedEvent) (string, error) {
	msg, err := NewMessage(ev.MessageID, TypeTurnCompleted, ev.SessionID, ev)
	if err != nil {
		return "", err
	}
	msg.SetMetadata("answer_type", ev.AnswerType)
	return p.Publish(ctx, StreamChatEvents, withRequestMetadata(ctx, msg))
}

func (p *Producer) PublishFeedbackRecorded(ctx context.Context, ev *FeedbackRecordedEvent) (string, error) {
	msg, err := NewMessage(ev.MessageID, TypeFeedbackRecorded, ev.SessionID, ev)
	if err != nil {
		return "", err
	}
	return p.Publish(ctx, StreamChatEvents, withRequestMetadata(ctx, msg))
}

// withRequestMetadata 带上 trace_id 与 request_id，消费端据此串联日志
func withRequestMetadata(ctx context.Context, msg *Message) *Message {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		msg.SetMetadata("trace_id", sc.TraceID().String())
	}
	if v, ok := ctx.Value(logger.RequestIDKey).(string); ok && v != "" {
		msg.SetMetadata("request_id", v)
	}
	return msg
}
