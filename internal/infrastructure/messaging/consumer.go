package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"faq-rag-api/pkg/logger"
	"faq-rag-api/pkg/metrics"
)

const (
	readBatch    = 10
	pendingBatch = 20
	minReclaim   = 5 * time.Minute
)

var errRetriesExhausted = errors.New("message exceeded max retries")

// MessageHandler 返回错误时消息保持待确认状态，按退避重试
type MessageHandler func(ctx context.Context, msg *Message) error

// ConsumerConfig 消费者配置；零值字段使用默认值
type ConsumerConfig struct {
	Stream        Stream
	Group         ConsumerGroup
	ConsumerName  string
	BlockTimeout  time.Duration
	ClaimInterval time.Duration
	RetryLimit    int
	Backoff       BackoffConfig
}

func (c *ConsumerConfig) withDefaults() {
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = 5 * time.Second
	}
	if c.ClaimInterval <= 0 {
		c.ClaimInterval = 30 * time.Second
	}
	if c.RetryLimit <= 0 {
		c.RetryLimit = 3
	}
	if c.Backoff.Initial <= 0 {
		c.Backoff = DefaultBackoffConfig()
	}
}

// Consumer 消费组读取者：处理新消息、按退避重试自己的待确认消息，
// 并接管其他实例长时间未确认的消息；重试耗尽后写入死信流
type Consumer struct {
	client      *redis.Client
	cfg         ConsumerConfig
	reclaimIdle time.Duration

	mu       sync.RWMutex
	handlers map[string]MessageHandler
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewConsumer(client *redis.Client, cfg ConsumerConfig) *Consumer {
	cfg.withDefaults()
	reclaim := 2 * cfg.Backoff.Max
	if reclaim < minReclaim {
		reclaim = minReclaim
	}
	return &Consumer{
		client:      client,
		cfg:         cfg,
		reclaimIdle: reclaim,
		handlers:    make(map[string]MessageHandler),
	}
}

// Handle 注册消息类型的处理器；未注册的类型直接确认并计为 skipped
func (c *Consumer) Handle(msgType string, h MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = h
}

func (c *Consumer) handler(msgType string) (MessageHandler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[msgType]
	return h, ok
}

// Start 创建消费组（已存在则忽略）并在后台开始消费
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return fmt.Errorf("consumer already running")
	}

	err := c.client.XGroupCreateMkStream(ctx, string(c.cfg.Stream), string(c.cfg.Group), "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		c.loop(runCtx)
	}(c.done)
	return nil
}

// Stop 停止消费并等待当前消息处理完成
func (c *Consumer) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Consumer) loop(ctx context.Context) {
	logger.Info(ctx, "consumer started",
		"stream", c.cfg.Stream,
		"group", c.cfg.Group,
		"consumer", c.cfg.ConsumerName,
	)

	c.reclaimStale(ctx)
	reclaim := time.NewTicker(c.cfg.ClaimInterval)
	defer reclaim.Stop()

	for ctx.Err() == nil {
		c.retryOwnPending(ctx)

		select {
		case <-reclaim.C:
			c.reclaimStale(ctx)
		default:
		}

		c.readNew(ctx)
	}
	logger.Info(context.WithoutCancel(ctx), "consumer stopped", "stream", c.cfg.Stream)
}

func (c *Consumer) readNew(ctx context.Context) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    string(c.cfg.Group),
		Consumer: c.cfg.ConsumerName,
		Streams:  []string{string(c.cfg.Stream), ">"},
		Count:    readBatch,
		Block:    c.cfg.BlockTimeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return
		}
		logger.Error(ctx, "failed to read from stream", err, "stream", c.cfg.Stream)
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
		return
	}

	for _, s := range streams {
		for _, xmsg := range s.Messages {
			c.process(ctx, xmsg)
		}
	}
}

// retryOwnPending 重投本实例退避期已过的待确认消息
func (c *Consumer) retryOwnPending(ctx context.Context) {
	for _, p := range c.pending(ctx, c.cfg.ConsumerName) {
		attempts := int(p.RetryCount)
		if attempts >= c.cfg.RetryLimit {
			c.settle(ctx, p.ID, 0, true)
			continue
		}
		delay := c.cfg.Backoff.Delay(attempts)
		if p.Idle < delay {
			continue
		}
		c.settle(ctx, p.ID, delay, false)
	}
}

// reclaimStale 接管其他实例空闲超过 reclaimIdle 的消息
func (c *Consumer) reclaimStale(ctx context.Context) {
	for _, p := range c.pending(ctx, "") {
		if p.Consumer == c.cfg.ConsumerName || p.Idle < c.reclaimIdle {
			continue
		}
		c.settle(ctx, p.ID, c.reclaimIdle, int(p.RetryCount) >= c.cfg.RetryLimit)
	}
}

// pending consumer 为空时列出整个消费组的待确认消息
func (c *Consumer) pending(ctx context.Context, consumer string) []redis.XPendingExt {
	out, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   string(c.cfg.Stream),
		Group:    string(c.cfg.Group),
		Start:    "-",
		End:      "+",
		Count:    pendingBatch,
		Consumer: consumer,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			logger.Error(ctx, "failed to query pending messages", err, "stream", c.cfg.Stream)
		}
		return nil
	}
	return out
}

// settle 认领消息后重新处理，或在重试耗尽时转入死信流
func (c *Consumer) settle(ctx context.Context, id string, minIdle time.Duration, exhausted bool) {
	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   string(c.cfg.Stream),
		Group:    string(c.cfg.Group),
		Consumer: c.cfg.ConsumerName,
		MinIdle:  minIdle,
		Messages: []string{id},
	}).Result()
	if err != nil {
		logger.Error(ctx, "failed to claim pending message", err, "message_id", id)
		return
	}

	for _, xmsg := range claimed {
		if !exhausted {
			c.process(ctx, xmsg)
			continue
		}
		msg, err := Decode(xmsg.Values)
		if err != nil {
			c.ack(ctx, xmsg.ID)
			continue
		}
		c.deadLetter(ctx, xmsg.ID, msg, errRetriesExhausted)
	}
}

func (c *Consumer) process(ctx context.Context, xmsg redis.XMessage) {
	ctx, span := tracer.Start(ctx, "consumer.process",
		trace.WithAttributes(
			attribute.String("stream", string(c.cfg.Stream)),
			attribute.String("stream.message_id", xmsg.ID),
		))
	defer span.End()

	msg, err := Decode(xmsg.Values)
	if err != nil {
		logger.Error(ctx, "dropping malformed stream entry", err, "message_id", xmsg.ID)
		c.ack(ctx, xmsg.ID)
		return
	}
	ctx = logContext(ctx, msg)
	span.SetAttributes(
		attribute.String("message.id", msg.ID),
		attribute.String("message.type", msg.Type),
		attribute.String("session_id", msg.SessionID),
	)

	h, ok := c.handler(msg.Type)
	if !ok {
		logger.Warn(ctx, "no handler for message type", "type", msg.Type)
		c.count("skipped")
		c.ack(ctx, xmsg.ID)
		return
	}

	if err := h(ctx, msg); err != nil {
		span.RecordError(err)
		logger.Error(ctx, "handler failed", err, "message_id", msg.ID, "type", msg.Type)
		c.count("failed")
		c.onFailure(ctx, xmsg.ID, msg, err)
		return
	}
	c.count("success")
	c.ack(ctx, xmsg.ID)
}

// onFailure 未达重试上限时保留待确认，由 retryOwnPending 退避重投
func (c *Consumer) onFailure(ctx context.Context, streamID string, msg *Message, cause error) {
	attempts := c.deliveries(ctx, streamID)
	if attempts < c.cfg.RetryLimit {
		logger.Info(ctx, "message left pending for retry", "message_id", msg.ID, "retry_count", attempts)
		return
	}
	logger.Warn(ctx, "message moved to DLQ after max retries", "message_id", msg.ID, "retry_count", attempts)
	c.deadLetter(ctx, streamID, msg, cause)
}

func (c *Consumer) deliveries(ctx context.Context, streamID string) int {
	p, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: string(c.cfg.Stream),
		Group:  string(c.cfg.Group),
		Start:  streamID,
		End:    streamID,
		Count:  1,
	}).Result()
	if err != nil || len(p) == 0 {
		return 0
	}
	return int(p[0].RetryCount)
}

// deadLetter 写入死信流后确认原消息
func (c *Consumer) deadLetter(ctx context.Context, streamID string, msg *Message, cause error) {
	record, _ := json.Marshal(map[string]any{
		"original_stream": string(c.cfg.Stream),
		"data":            msg,
		"error":           cause.Error(),
		"failed_at":       time.Now().Unix(),
	})
	err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream.DLQStream(),
		Values: map[string]any{fieldData: string(record)},
	}).Err()
	if err != nil {
		logger.Error(ctx, "failed to write DLQ message", err, "message_id", msg.ID)
	}
	c.count("dead_letter")
	c.ack(ctx, streamID)
}

func (c *Consumer) ack(ctx context.Context, streamID string) {
	if err := c.client.XAck(ctx, string(c.cfg.Stream), string(c.cfg.Group), streamID).Err(); err != nil {
		logger.Error(ctx, "failed to ack message", err, "message_id", streamID)
	}
}

func (c *Consumer) count(status string) {
	metrics.RedisStreamProcessed.WithLabelValues(string(c.cfg.Stream), status).Inc()
}

// logContext 恢复发布端的 session_id/request_id/trace_id
func logContext(ctx context.Context, msg *Message) context.Context {
	if msg.SessionID != "" {
		ctx = logger.WithContext(ctx, logger.SessionIDKey, msg.SessionID)
	}
	if v := msg.GetMetadata("request_id"); v != "" {
		ctx = logger.WithContext(ctx, logger.RequestIDKey, v)
	}
	if v := msg.GetMetadata("trace_id"); v != "" {
		ctx = logger.WithContext(ctx, logger.TraceIDKey, v)
	}
	return ctx
}
